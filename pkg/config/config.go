// Package config holds the configuration shared by the reconstruction
// commands. It is read from a JSON file; missing keys keep their default.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jmbenlloch/pixreco_go/pkg/clustering"
	"github.com/jmbenlloch/pixreco_go/pkg/logging"
	"github.com/jmbenlloch/pixreco_go/pkg/simulation"
)

type Configuration struct {
	Verbosity     int    `json:"verbosity"`
	FileIn        string `json:"file_in"`
	FileOut       string `json:"file_out"`
	QAFile        string `json:"qa_file"`
	LookUpTable   string `json:"lookup_table"`
	GRPFile       string `json:"grp_file"`
	MaxTimeframes int    `json:"max_timeframes"`
	EventsPerTF   int    `json:"events_per_tf"`
	NumWorkers    int    `json:"num_workers"`
	UseMC         bool   `json:"use_mc"`
	NoPatterns    bool   `json:"no_patterns"`

	// Toy geometry.
	NChips      int `json:"n_chips"`
	ChipsPerRow int `json:"chips_per_row"`

	Generator simulation.GeneratorParams `json:"generator"`
	Response  simulation.AlpideParams    `json:"response"`
	Readout   simulation.ReadoutParams   `json:"readout"`
	Clusterer clustering.ClustererParam  `json:"clusterer"`
	Alpide    clustering.AlpideParam     `json:"alpide"`

	// Dictionary building.
	MinPatternFrequency float64 `json:"min_pattern_frequency"`

	// Conditions database.
	NoDB     bool   `json:"no_db"`
	DBDriver string `json:"db_driver"`
	DBFile   string `json:"db_file"`
	Host     string `json:"host"`
	User     string `json:"user"`
	Passwd   string `json:"pass"`
	DBName   string `json:"dbname"`
	Run      int    `json:"run"`
	MinRun   int    `json:"min_run"`
	MaxRun   int    `json:"max_run"`

	CompressionLevel int `json:"compression_level"`
}

// Default returns the configuration used for keys absent from the file.
func Default() Configuration {
	var config Configuration

	config.Verbosity = 0
	config.GRPFile = "o2sim_grp.json"
	config.MaxTimeframes = 1000000000
	config.EventsPerTF = 10
	config.NumWorkers = 1
	config.UseMC = true
	config.NoPatterns = false
	config.NChips = 16
	config.ChipsPerRow = 4
	config.Generator = simulation.DefaultGeneratorParams()
	config.Response = simulation.DefaultAlpideParams()
	config.Readout = simulation.DefaultReadoutParams()
	config.Clusterer = clustering.DefaultClustererParam()
	config.Alpide = clustering.DefaultAlpideParam()
	config.MinPatternFrequency = 1e-5
	config.NoDB = true
	config.DBDriver = "mysql"
	config.Host = "localhost"
	config.User = "itsreader"
	config.Passwd = "readonly"
	config.DBName = "ITSCONDITIONS"
	config.Run = 0
	config.MinRun = 0
	config.MaxRun = 999999999
	config.CompressionLevel = 4
	return config
}

func LoadConfiguration(filename string) (Configuration, error) {
	config := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = json.Unmarshal(data, &config)
	if err != nil {
		return config, fmt.Errorf("parsing %s: %w", filename, err)
	}
	return config, nil
}

func PrintConfiguration(config Configuration, logger logging.Logger) {
	logger.Info(fmt.Sprintf("File in: %s", config.FileIn), "config")
	logger.Info(fmt.Sprintf("File out: %s", config.FileOut), "config")
	logger.Info(fmt.Sprintf("QA file: %s", config.QAFile), "config")
	logger.Info(fmt.Sprintf("Lookup table: %s", config.LookUpTable), "config")
	logger.Info(fmt.Sprintf("GRP file: %s", config.GRPFile), "config")
	logger.Info(fmt.Sprintf("Max timeframes: %d", config.MaxTimeframes), "config")
	logger.Info(fmt.Sprintf("Events per TF: %d", config.EventsPerTF), "config")
	logger.Info(fmt.Sprintf("Num workers: %d", config.NumWorkers), "config")
	logger.Info(fmt.Sprintf("Use MC: %t", config.UseMC), "config")
	logger.Info(fmt.Sprintf("No patterns: %t", config.NoPatterns), "config")
	logger.Info(fmt.Sprintf("Chips: %d (%d per row)", config.NChips, config.ChipsPerRow), "config")
	logger.Info(fmt.Sprintf("Threshold: %g e", config.Response.Threshold), "config")
	logger.Info(fmt.Sprintf("Continuous readout: %t", config.Readout.Continuous), "config")
	logger.Info(fmt.Sprintf("ROF length: %d BC / %g ns", config.Alpide.ROFrameLengthInBC, config.Alpide.ROFrameLengthTrig), "config")
	logger.Info(fmt.Sprintf("Dictionary path: %s", config.Clusterer.DictFilePath), "config")
	logger.Info(fmt.Sprintf("No DB: %t", config.NoDB), "config")
	logger.Info(fmt.Sprintf("DB driver: %s", config.DBDriver), "config")
	logger.Info(fmt.Sprintf("Host: %s", config.Host), "config")
	logger.Info(fmt.Sprintf("DB name: %s", config.DBName), "config")
	logger.Info(fmt.Sprintf("Run: %d [%d, %d]", config.Run, config.MinRun, config.MaxRun), "config")
}
