// Package grp holds the global run parameters shared by the processing
// stages.
package grp

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jmbenlloch/pixreco_go/pkg/dataformats"
)

// DefaultNHBFPerTF is the number of heartbeat frames (orbits) per
// timeframe.
const DefaultNHBFPerTF = 128

// GRPObject describes a run: which detectors are read out and which of
// them are read out continuously.
type GRPObject struct {
	Run                        int      `json:"run" yaml:"run"`
	TimeStart                  int64    `json:"time_start" yaml:"time_start"`
	TimeEnd                    int64    `json:"time_end" yaml:"time_end"`
	FirstOrbit                 uint32   `json:"first_orbit" yaml:"first_orbit"`
	NHBFPerTF                  uint32   `json:"nhbf_per_tf" yaml:"nhbf_per_tf"`
	DetectorsReadOut           []string `json:"detectors_readout" yaml:"detectors_readout"`
	DetectorsContinuousReadOut []string `json:"detectors_continuous_readout" yaml:"detectors_continuous_readout"`
}

func New(run int) *GRPObject {
	return &GRPObject{Run: run, NHBFPerTF: DefaultNHBFPerTF}
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// LoadFrom reads a GRP file, YAML when the extension says so, JSON
// otherwise.
func LoadFrom(path string) (*GRPObject, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read GRP %s: %w", path, err)
	}
	g := New(0)
	if isYAML(path) {
		err = yaml.Unmarshal(data, g)
	} else {
		err = json.Unmarshal(data, g)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot parse GRP %s: %w", path, err)
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid GRP %s: %w", path, err)
	}
	return g, nil
}

// Validate checks detector names and that continuous detectors are read
// out.
func (g *GRPObject) Validate() error {
	var errs []error
	for _, name := range g.DetectorsReadOut {
		if _, err := dataformats.DetIDFromName(name); err != nil {
			errs = append(errs, err)
		}
	}
	for _, name := range g.DetectorsContinuousReadOut {
		if !slices.Contains(g.DetectorsReadOut, name) {
			errs = append(errs, fmt.Errorf("detector %s in continuous readout but not read out", name))
		}
	}
	if g.NHBFPerTF == 0 {
		errs = append(errs, errors.New("no heartbeat frames per timeframe"))
	}
	return errors.Join(errs...)
}

func (g *GRPObject) Save(path string) error {
	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(g)
	} else {
		data, err = json.MarshalIndent(g, "", "  ")
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (g *GRPObject) AddDetReadOut(det dataformats.DetID, continuous bool) {
	if !g.IsDetReadOut(det) {
		g.DetectorsReadOut = append(g.DetectorsReadOut, det.Name())
	}
	if continuous && !g.IsDetContinuousReadOut(det) {
		g.DetectorsContinuousReadOut = append(g.DetectorsContinuousReadOut, det.Name())
	}
}

func (g *GRPObject) IsDetReadOut(det dataformats.DetID) bool {
	return slices.Contains(g.DetectorsReadOut, det.Name())
}

func (g *GRPObject) IsDetContinuousReadOut(det dataformats.DetID) bool {
	return slices.Contains(g.DetectorsContinuousReadOut, det.Name())
}

// TimeframeLengthInBC is the number of bunch crossings per timeframe.
func (g *GRPObject) TimeframeLengthInBC() int64 {
	return int64(g.NHBFPerTF) * dataformats.LHCMaxBunches
}
