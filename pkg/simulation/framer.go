package simulation

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"golang.org/x/exp/maps"

	"github.com/jmbenlloch/pixreco_go/pkg/dataformats"
)

// ReadoutParams describes the strobing of the chips.
type ReadoutParams struct {
	Continuous bool `json:"continuous"`
	// ROFrameLengthInBC is the frame length in continuous mode.
	ROFrameLengthInBC int `json:"roframe_length_in_bc"`
	// ROFrameLengthTrig is the frame length in ns in triggered mode.
	ROFrameLengthTrig float64 `json:"roframe_length_trig"`
}

func DefaultReadoutParams() ReadoutParams {
	return ReadoutParams{
		Continuous:        true,
		ROFrameLengthInBC: dataformats.LHCMaxBunches / 4,
		ROFrameLengthTrig: 6000,
	}
}

// FramedDigits is the content of one timeframe in readout order.
type FramedDigits struct {
	Digits  []dataformats.Digit
	ROFs    []dataformats.ROFRecord
	MC2ROFs []dataformats.MC2ROFRecord
	Labels  *dataformats.MCTruthContainer
}

type frame struct {
	bc     dataformats.InteractionRecord
	pixels map[pixelKeyChip]*ChipDigit
}

type eventEntry struct {
	record dataformats.MC2ROFRecord
	framed bool
}

type pixelKeyChip struct {
	chip uint16
	col  uint16
	row  uint16
}

// Framer groups the digits of consecutive events into readout frames.
type Framer struct {
	params      ReadoutParams
	frames      map[int64]*frame
	events      []eventEntry
	nextTrigROF int64
}

func NewFramer(params ReadoutParams) (*Framer, error) {
	if params.Continuous && params.ROFrameLengthInBC <= 0 {
		return nil, fmt.Errorf("invalid continuous ROF length: %d BC", params.ROFrameLengthInBC)
	}
	return &Framer{params: params, frames: make(map[int64]*frame)}, nil
}

func (f *Framer) rofLengthNS() float64 {
	return float64(f.params.ROFrameLengthInBC) * dataformats.LHCBunchSpacingNS
}

// AddEvent adds the digits of one event. eventTime is the absolute event
// time in ns, digit times are relative to it.
func (f *Framer) AddEvent(eventID int32, eventTime float64, digits []ChipDigit) {
	record := dataformats.MC2ROFRecord{EventRecordID: eventID, ROFRecordID: -1}
	minROF, maxROF := int64(math.MaxInt64), int64(-1)

	place := func(rof int64, bc dataformats.InteractionRecord, d ChipDigit) {
		fr, ok := f.frames[rof]
		if !ok {
			fr = &frame{bc: bc, pixels: make(map[pixelKeyChip]*ChipDigit)}
			f.frames[rof] = fr
		}
		key := pixelKeyChip{chip: d.ChipIndex, col: d.Col, row: d.Row}
		if existing, ok := fr.pixels[key]; ok {
			existing.merge(d)
		} else {
			copied := d
			copied.Labels = slices.Clone(d.Labels)
			fr.pixels[key] = &copied
		}
		minROF = min(minROF, rof)
		maxROF = max(maxROF, rof)
	}

	if f.params.Continuous {
		for _, d := range digits {
			t := eventTime + d.Time
			rof := int64(math.Floor(t / f.rofLengthNS()))
			if rof < 0 {
				rof = 0
			}
			bc := dataformats.InteractionRecordFromLong(rof * int64(f.params.ROFrameLengthInBC))
			place(rof, bc, d)
		}
	} else {
		rof := f.nextTrigROF
		f.nextTrigROF++
		bc := dataformats.InteractionRecordFromNS(eventTime)
		if _, ok := f.frames[rof]; !ok {
			f.frames[rof] = &frame{bc: bc, pixels: make(map[pixelKeyChip]*ChipDigit)}
		}
		for _, d := range digits {
			// digits later than the strobe are lost in triggered mode
			if d.Time > f.params.ROFrameLengthTrig {
				continue
			}
			place(rof, bc, d)
		}
		minROF, maxROF = rof, rof
	}

	framed := maxROF >= 0
	if framed {
		record.MinROF = uint32(minROF)
		record.MaxROF = uint32(maxROF)
	}
	f.events = append(f.events, eventEntry{record: record, framed: framed})
}

// Flush returns the accumulated frames and resets the framer. In
// continuous mode the gaps between frames are filled with empty frames.
func (f *Framer) Flush() (FramedDigits, error) {
	out := FramedDigits{Labels: dataformats.NewMCTruthContainer()}
	rofs := maps.Keys(f.frames)
	slices.Sort(rofs)
	if f.params.Continuous && len(rofs) > 0 {
		first, last := rofs[0], rofs[len(rofs)-1]
		rofs = rofs[:0]
		for r := first; r <= last; r++ {
			rofs = append(rofs, r)
		}
	}

	rofIndex := make(map[int64]int32, len(rofs))
	for i, rof := range rofs {
		rofIndex[rof] = int32(i)
		record := dataformats.ROFRecord{
			ROFrame:    rof,
			FirstEntry: int32(len(out.Digits)),
		}
		if f.params.Continuous {
			record.BCData = dataformats.InteractionRecordFromLong(rof * int64(f.params.ROFrameLengthInBC))
		}
		if fr, ok := f.frames[rof]; ok {
			record.BCData = fr.bc
			keys := maps.Keys(fr.pixels)
			slices.SortFunc(keys, func(a, b pixelKeyChip) int {
				return cmp.Or(cmp.Compare(a.chip, b.chip), cmp.Compare(a.col, b.col), cmp.Compare(a.row, b.row))
			})
			for _, k := range keys {
				d := fr.pixels[k]
				if err := out.Labels.AddElements(uint32(len(out.Digits)), d.Labels); err != nil {
					return FramedDigits{}, err
				}
				out.Digits = append(out.Digits, d.Digit)
			}
		}
		record.NEntries = int32(len(out.Digits)) - record.FirstEntry
		out.ROFs = append(out.ROFs, record)
	}

	for _, ev := range f.events {
		record := ev.record
		if idx, ok := rofIndex[int64(record.MinROF)]; ok && ev.framed {
			record.ROFRecordID = idx
		}
		out.MC2ROFs = append(out.MC2ROFs, record)
	}

	f.frames = make(map[int64]*frame)
	f.events = nil
	return out, nil
}
