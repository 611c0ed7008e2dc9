package dataformats

import "math"

// LHC timing constants.
const (
	LHCMaxBunches     = 3564
	LHCRFFreq         = 400.789e6
	LHCBunchSpacingNS = 10 * 1e9 / LHCRFFreq
	LHCOrbitNS        = LHCMaxBunches * LHCBunchSpacingNS
)

// InteractionRecord is a bunch crossing identified by orbit and BC.
type InteractionRecord struct {
	Orbit uint32
	BC    uint16
}

// ToLong returns the number of bunch crossings since orbit 0.
func (ir InteractionRecord) ToLong() int64 {
	return int64(ir.Orbit)*LHCMaxBunches + int64(ir.BC)
}

func InteractionRecordFromLong(nbc int64) InteractionRecord {
	if nbc < 0 {
		nbc = 0
	}
	return InteractionRecord{
		Orbit: uint32(nbc / LHCMaxBunches),
		BC:    uint16(nbc % LHCMaxBunches),
	}
}

// InteractionRecordFromNS converts a time in ns to the bunch crossing
// containing it.
func InteractionRecordFromNS(ns float64) InteractionRecord {
	return InteractionRecordFromLong(int64(math.Floor(ns / LHCBunchSpacingNS)))
}

func (ir InteractionRecord) TimeNS() float64 {
	return float64(ir.ToLong()) * LHCBunchSpacingNS
}

// DifferenceInBC returns ir - other in bunch crossings.
func (ir InteractionRecord) DifferenceInBC(other InteractionRecord) int64 {
	return ir.ToLong() - other.ToLong()
}
