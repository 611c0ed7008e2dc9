package store

import (
	"github.com/jmbenlloch/pixreco_go/pkg/dataformats"
	"github.com/jmbenlloch/pixreco_go/pkg/simulation"
)

type PointHDF5 struct {
	event      int32
	track      int32
	source     int16
	chip       int32
	x          float64
	y          float64
	z          float64
	startX     float64
	startY     float64
	startZ     float64
	time       float64
	energyLoss float64
}

type EventHDF5 struct {
	event      int32
	source     int16
	time       float64
	firstPoint int64
	nPoints    int32
}

type DigitHDF5 struct {
	chip   uint16
	row    uint16
	col    uint16
	charge int32
}

type ROFHDF5 struct {
	orbit      uint32
	bc         uint16
	rof        int64
	firstEntry int32
	nEntries   int32
}

type MC2ROFHDF5 struct {
	event  int32
	rof    int32
	minROF uint32
	maxROF uint32
}

type LabelHDF5 struct {
	track  int32
	event  int32
	source int16
	fake   uint8
}

type LabelIndexHDF5 struct {
	index uint32
}

type CompClusterHDF5 struct {
	chip    uint16
	row     uint16
	col     uint16
	pattern uint16
}

type PatternByteHDF5 struct {
	value uint8
}

// TimeframeHDF5 locates the rows of one timeframe in the other tables of
// a digits or clusters file.
type TimeframeHDF5 struct {
	timeframe    int32
	firstData    int64
	nData        int64
	firstPattern int64
	nPatterns    int64
	firstROF     int64
	nROFs        int64
	firstMC2ROF  int64
	nMC2ROFs     int64
	firstHeader  int64
	nHeaders     int64
	firstLabel   int64
	nLabels      int64
}

type ParameterHDF5 struct {
	name  [STRLEN]byte
	value float64
}

func pointToHDF5(p simulation.Point) PointHDF5 {
	return PointHDF5{
		event:      p.EventID,
		track:      p.TrackID,
		source:     p.SourceID,
		chip:       p.DetectorID,
		x:          p.X,
		y:          p.Y,
		z:          p.Z,
		startX:     p.StartX,
		startY:     p.StartY,
		startZ:     p.StartZ,
		time:       p.Time,
		energyLoss: p.EnergyLoss,
	}
}

func pointFromHDF5(p PointHDF5) simulation.Point {
	return simulation.Point{
		TrackID:    p.track,
		EventID:    p.event,
		SourceID:   p.source,
		DetectorID: p.chip,
		X:          p.x,
		Y:          p.y,
		Z:          p.z,
		StartX:     p.startX,
		StartY:     p.startY,
		StartZ:     p.startZ,
		Time:       p.time,
		EnergyLoss: p.energyLoss,
	}
}

func digitsToHDF5(digits []dataformats.Digit) []DigitHDF5 {
	rows := make([]DigitHDF5, len(digits))
	for i, d := range digits {
		rows[i] = DigitHDF5{chip: d.ChipIndex, row: d.Row, col: d.Col, charge: d.Charge}
	}
	return rows
}

func digitsFromHDF5(rows []DigitHDF5) []dataformats.Digit {
	digits := make([]dataformats.Digit, len(rows))
	for i, r := range rows {
		digits[i] = dataformats.Digit{ChipIndex: r.chip, Row: r.row, Col: r.col, Charge: r.charge}
	}
	return digits
}

func rofsToHDF5(rofs []dataformats.ROFRecord) []ROFHDF5 {
	rows := make([]ROFHDF5, len(rofs))
	for i, r := range rofs {
		rows[i] = ROFHDF5{
			orbit:      r.BCData.Orbit,
			bc:         r.BCData.BC,
			rof:        r.ROFrame,
			firstEntry: r.FirstEntry,
			nEntries:   r.NEntries,
		}
	}
	return rows
}

func rofsFromHDF5(rows []ROFHDF5) []dataformats.ROFRecord {
	rofs := make([]dataformats.ROFRecord, len(rows))
	for i, r := range rows {
		rofs[i] = dataformats.ROFRecord{
			BCData:     dataformats.InteractionRecord{Orbit: r.orbit, BC: r.bc},
			ROFrame:    r.rof,
			FirstEntry: r.firstEntry,
			NEntries:   r.nEntries,
		}
	}
	return rofs
}

func mc2rofsToHDF5(records []dataformats.MC2ROFRecord) []MC2ROFHDF5 {
	rows := make([]MC2ROFHDF5, len(records))
	for i, r := range records {
		rows[i] = MC2ROFHDF5{event: r.EventRecordID, rof: r.ROFRecordID, minROF: r.MinROF, maxROF: r.MaxROF}
	}
	return rows
}

func mc2rofsFromHDF5(rows []MC2ROFHDF5) []dataformats.MC2ROFRecord {
	records := make([]dataformats.MC2ROFRecord, len(rows))
	for i, r := range rows {
		records[i] = dataformats.MC2ROFRecord{EventRecordID: r.event, ROFRecordID: r.rof, MinROF: r.minROF, MaxROF: r.maxROF}
	}
	return records
}

func labelsToHDF5(labels []dataformats.MCCompLabel) []LabelHDF5 {
	rows := make([]LabelHDF5, len(labels))
	for i, l := range labels {
		row := LabelHDF5{track: l.TrackID, event: l.EventID, source: l.SourceID}
		if l.Fake {
			row.fake = 1
		}
		rows[i] = row
	}
	return rows
}

func labelsFromHDF5(rows []LabelHDF5) []dataformats.MCCompLabel {
	labels := make([]dataformats.MCCompLabel, len(rows))
	for i, r := range rows {
		labels[i] = dataformats.MCCompLabel{TrackID: r.track, EventID: r.event, SourceID: r.source, Fake: r.fake != 0}
	}
	return labels
}

func headersToHDF5(headers []dataformats.MCTruthHeaderElement) []LabelIndexHDF5 {
	rows := make([]LabelIndexHDF5, len(headers))
	for i, h := range headers {
		rows[i] = LabelIndexHDF5{index: h.Index}
	}
	return rows
}

func headersFromHDF5(rows []LabelIndexHDF5) []dataformats.MCTruthHeaderElement {
	headers := make([]dataformats.MCTruthHeaderElement, len(rows))
	for i, r := range rows {
		headers[i] = dataformats.MCTruthHeaderElement{Index: r.index}
	}
	return headers
}

func clustersToHDF5(clusters []dataformats.CompClusterExt) []CompClusterHDF5 {
	rows := make([]CompClusterHDF5, len(clusters))
	for i, c := range clusters {
		rows[i] = CompClusterHDF5{chip: c.ChipID, row: c.Row, col: c.Col, pattern: c.PatternID}
	}
	return rows
}

func clustersFromHDF5(rows []CompClusterHDF5) []dataformats.CompClusterExt {
	clusters := make([]dataformats.CompClusterExt, len(rows))
	for i, r := range rows {
		clusters[i] = dataformats.CompClusterExt{ChipID: r.chip, Row: r.row, Col: r.col, PatternID: r.pattern}
	}
	return clusters
}

func patternsToHDF5(stream []byte) []PatternByteHDF5 {
	rows := make([]PatternByteHDF5, len(stream))
	for i, b := range stream {
		rows[i] = PatternByteHDF5{value: b}
	}
	return rows
}

func patternsFromHDF5(rows []PatternByteHDF5) []byte {
	stream := make([]byte, len(rows))
	for i, r := range rows {
		stream[i] = r.value
	}
	return stream
}
