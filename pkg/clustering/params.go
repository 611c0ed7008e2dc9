// Package clustering groups fired pixels of the ALPIDE chips into compact
// clusters and encodes their topologies.
package clustering

import "github.com/jmbenlloch/pixreco_go/pkg/dataformats"

// ClustererParam holds the clusterer settings of one detector.
type ClustererParam struct {
	// MaxRowColDiffToMask is the row/column tolerance used when masking
	// pixels fired in the previous frame.
	MaxRowColDiffToMask int `json:"max_row_col_diff_to_mask"`
	// MaxBCDiffToMaskBias is added to the frame length to get the maximum
	// BC separation of frames subject to overflow masking.
	MaxBCDiffToMaskBias int `json:"max_bc_diff_to_mask_bias"`
	// DictFilePath is the directory or prefix of the topology dictionary.
	DictFilePath string `json:"dict_file_path"`
	// NoiseThreshold is the occupancy factor used by the noise calibration.
	NoiseThreshold float64 `json:"noise_threshold"`
}

func DefaultClustererParam() ClustererParam {
	return ClustererParam{
		MaxRowColDiffToMask: 1,
		MaxBCDiffToMaskBias: 10,
		DictFilePath:        "",
		NoiseThreshold:      10,
	}
}

// AlpideParam describes the chip strobing.
type AlpideParam struct {
	ROFrameLengthInBC int `json:"roframe_length_in_bc"`
	// ROFrameLengthTrig is the frame length in ns in triggered mode.
	ROFrameLengthTrig float64 `json:"roframe_length_trig"`
	// StrobeDelay in ns.
	StrobeDelay float64 `json:"strobe_delay"`
}

func DefaultAlpideParam() AlpideParam {
	return AlpideParam{
		ROFrameLengthInBC: dataformats.LHCMaxBunches / 4,
		ROFrameLengthTrig: 6000,
		StrobeDelay:       0,
	}
}

// MaxBCSeparationToMask returns the BC distance below which a frame masks
// the pixels fired in the previous one.
func MaxBCSeparationToMask(cl ClustererParam, alp AlpideParam, continuous bool) int64 {
	nbc := int64(cl.MaxBCDiffToMaskBias)
	if continuous {
		return nbc + int64(alp.ROFrameLengthInBC)
	}
	return nbc + int64(alp.ROFrameLengthTrig/dataformats.LHCBunchSpacingNS)
}
