package dataformats

import "fmt"

const (
	notSetTrackID = -1
	noiseTrackID  = -2
)

// MCCompLabel points back to the simulated track that produced an object.
type MCCompLabel struct {
	TrackID  int32
	EventID  int32
	SourceID int16
	Fake     bool
}

func NewMCCompLabel(trackID, eventID int32, sourceID int16) MCCompLabel {
	return MCCompLabel{TrackID: trackID, EventID: eventID, SourceID: sourceID}
}

func NoiseLabel() MCCompLabel {
	return MCCompLabel{TrackID: noiseTrackID, EventID: notSetTrackID, SourceID: notSetTrackID}
}

func NotSetLabel() MCCompLabel {
	return MCCompLabel{TrackID: notSetTrackID, EventID: notSetTrackID, SourceID: notSetTrackID}
}

func (l MCCompLabel) IsSet() bool {
	return l.TrackID != notSetTrackID
}

func (l MCCompLabel) IsNoise() bool {
	return l.TrackID == noiseTrackID
}

func (l MCCompLabel) IsValid() bool {
	return l.TrackID >= 0
}

// SameParticle compares labels ignoring the fake flag.
func (l MCCompLabel) SameParticle(o MCCompLabel) bool {
	return l.TrackID == o.TrackID && l.EventID == o.EventID && l.SourceID == o.SourceID
}

func (l MCCompLabel) String() string {
	if l.IsNoise() {
		return "[noise]"
	}
	if !l.IsSet() {
		return "[unset]"
	}
	fake := ""
	if l.Fake {
		fake = "-"
	}
	return fmt.Sprintf("[%s%d/%d/%d]", fake, l.SourceID, l.EventID, l.TrackID)
}
