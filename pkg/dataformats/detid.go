package dataformats

import "fmt"

// DetID identifies a detector of the experiment.
type DetID int

const (
	ITS DetID = iota
	TPC
	TRD
	TOF
	PHS
	CPV
	EMC
	HMP
	MFT
	MCH
	MID
	ZDC
	FT0
	FV0
	FDD
	CTP
	nDetectors
)

var detectorNames = [nDetectors]string{
	"ITS", "TPC", "TRD", "TOF", "PHS", "CPV", "EMC", "HMP",
	"MFT", "MCH", "MID", "ZDC", "FT0", "FV0", "FDD", "CTP",
}

func (d DetID) Name() string {
	if d < 0 || d >= nDetectors {
		return "UNKNOWN"
	}
	return detectorNames[d]
}

func (d DetID) String() string {
	return d.Name()
}

func DetIDFromName(name string) (DetID, error) {
	for i, n := range detectorNames {
		if n == name {
			return DetID(i), nil
		}
	}
	return -1, fmt.Errorf("unknown detector name %q", name)
}
