package main

import (
	"flag"
	"fmt"

	sqlx "github.com/jmoiron/sqlx"

	"github.com/jmbenlloch/pixreco_go/pkg/calibration"
	"github.com/jmbenlloch/pixreco_go/pkg/conditions"
	"github.com/jmbenlloch/pixreco_go/pkg/config"
	"github.com/jmbenlloch/pixreco_go/pkg/dataformats"
	"github.com/jmbenlloch/pixreco_go/pkg/logging"
	"github.com/jmbenlloch/pixreco_go/pkg/nameconf"
	"github.com/jmbenlloch/pixreco_go/pkg/store"
)

var (
	logger         logging.SlogLogger
	configuration  config.Configuration
	dbConn         *sqlx.DB
	VerbosityLevel int
)

func main() {
	configFilename := flag.String("config", "", "Configuration file path")
	fileIn := flag.String("in", "", "Digits file, overrides the configuration")
	flag.Parse()

	logger = logging.NewDefaultLogger(0)
	var err error
	configuration, err = config.LoadConfiguration(*configFilename)
	if err != nil {
		message := fmt.Errorf("Error reading configuration file: %w", err)
		logger.Error(message.Error())
		return
	}
	if *fileIn != "" {
		configuration.FileIn = *fileIn
	}
	if configuration.FileIn == "" {
		configuration.FileIn = nameconf.DigitsFileName(dataformats.ITS, "")
	}

	VerbosityLevel = configuration.Verbosity
	logger = logging.NewDefaultLogger(VerbosityLevel)
	if VerbosityLevel > 0 {
		config.PrintConfiguration(configuration, logger)
	}

	result, err := calibrate(configuration.FileIn)
	if err != nil {
		message := fmt.Errorf("Error computing noisy pixels: %w", err)
		logger.Error(message.Error())
		return
	}
	message := fmt.Sprintf("%d noisy pixels out of %d active, in %d frames (mean occupancy %.3g, threshold %.3g)",
		len(result.Noisy), result.NActivePixels, result.NFrames, result.Mean, result.Threshold)
	logger.Info(message, "main")
	if VerbosityLevel > 1 {
		for _, p := range result.Noisy {
			logger.Info(fmt.Sprintf("Noisy pixel: chip %d, row %d, col %d", p.ChipID, p.Row, p.Col), "main")
		}
	}

	if configuration.NoDB {
		return
	}
	dbConn, err = openDatabase()
	if err != nil {
		message := fmt.Errorf("Error connection to database: %w", err)
		logger.Error(message.Error())
		return
	}
	defer dbConn.Close()

	conds := conditions.New(dbConn, logger, VerbosityLevel)
	if configuration.DBDriver == "sqlite" {
		if err := conds.CreateSchema(); err != nil {
			logger.Error(err.Error())
			return
		}
	}
	if err := conds.UploadNoisyPixels(dataformats.ITS, configuration.MinRun, configuration.MaxRun, result.Noisy); err != nil {
		message := fmt.Errorf("Error uploading noisy pixels: %w", err)
		logger.Error(message.Error())
		return
	}
	message = fmt.Sprintf("Uploaded %d noisy pixels for runs [%d, %d]", len(result.Noisy), configuration.MinRun, configuration.MaxRun)
	logger.Info(message, "main")
}

func calibrate(filename string) (calibration.NoiseResult, error) {
	reader, err := store.OpenDigitsFile(filename)
	if err != nil {
		return calibration.NoiseResult{}, err
	}
	defer reader.Close()

	calib := calibration.NewNoiseCalibrator(configuration.Clusterer.NoiseThreshold)
	nTF := min(reader.NTimeframes(), configuration.MaxTimeframes)
	for i := range nTF {
		tf, err := reader.ReadTimeframe(i)
		if err != nil {
			return calibration.NoiseResult{}, fmt.Errorf("timeframe %d: %w", i, err)
		}
		if err := calib.ProcessTimeframe(tf.Digits, tf.ROFs); err != nil {
			return calibration.NoiseResult{}, fmt.Errorf("timeframe %d: %w", i, err)
		}
	}
	return calib.Finalize()
}

func openDatabase() (*sqlx.DB, error) {
	if configuration.DBDriver == "sqlite" {
		return conditions.Open("sqlite", configuration.DBFile)
	}
	return conditions.ConnectToDatabase(configuration.User, configuration.Passwd, configuration.Host, configuration.DBName)
}
