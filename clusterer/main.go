package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strconv"

	sqlx "github.com/jmoiron/sqlx"

	"github.com/jmbenlloch/pixreco_go/pkg/clustering"
	"github.com/jmbenlloch/pixreco_go/pkg/conditions"
	"github.com/jmbenlloch/pixreco_go/pkg/config"
	"github.com/jmbenlloch/pixreco_go/pkg/dataformats"
	"github.com/jmbenlloch/pixreco_go/pkg/its"
	"github.com/jmbenlloch/pixreco_go/pkg/logging"
	"github.com/jmbenlloch/pixreco_go/pkg/nameconf"
	"github.com/jmbenlloch/pixreco_go/pkg/qa"
	"github.com/jmbenlloch/pixreco_go/pkg/workflow"
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
	fileOut := flag.String("out", "", "Clusters file, overrides the configuration")
	qaFile := flag.String("qa", "", "QA plot file, overrides the configuration")
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
	if *fileOut != "" {
		configuration.FileOut = *fileOut
	}
	if *qaFile != "" {
		configuration.QAFile = *qaFile
	}
	if configuration.FileIn == "" {
		configuration.FileIn = nameconf.DigitsFileName(dataformats.ITS, "")
	}
	if configuration.FileOut == "" {
		configuration.FileOut = nameconf.ClustersFileName(dataformats.ITS, "")
	}

	VerbosityLevel = configuration.Verbosity
	logger = logging.NewDefaultLogger(VerbosityLevel)
	if VerbosityLevel > 0 {
		message := fmt.Sprintf("Reading configuration file: %s", *configFilename)
		logger.Info(message, "main")
		config.PrintConfiguration(configuration, logger)
	}

	clustererConfig := its.ClustererConfig{
		Params: configuration.Clusterer,
		Alpide: configuration.Alpide,
		NChips: configuration.NChips,
		Logger: logger,
	}
	if !configuration.NoDB {
		dbConn, err = openDatabase()
		if err != nil {
			message := fmt.Errorf("Error connection to database: %w", err)
			logger.Error(message.Error())
			return
		}
		defer dbConn.Close()
		conds := conditions.New(dbConn, logger, VerbosityLevel)
		clustererConfig.Noise = conds
		if err := checkChannelMapping(conds); err != nil {
			message := fmt.Errorf("Error checking channel mapping: %w", err)
			logger.Error(message.Error())
			return
		}
	}

	specs := []workflow.DataProcessorSpec{
		its.DigitReaderSpec(configuration.UseMC, its.ReaderConfig{
			FileName:      configuration.FileIn,
			MaxTimeframes: configuration.MaxTimeframes,
			Logger:        logger,
		}),
		its.ClustererSpec(configuration.UseMC, clustererConfig),
		its.ClusterWriterSpec(configuration.UseMC, its.WriterConfig{
			FileName:    configuration.FileOut,
			Compression: configuration.CompressionLevel,
			Parameters:  configuration.Clusterer,
			Logger:      logger,
		}),
	}

	var histos *qa.ClusterQA
	if configuration.QAFile != "" {
		var dict *clustering.TopologyDictionary
		dictFile := nameconf.AlpideClusterDictionaryFileName(dataformats.ITS, configuration.Clusterer.DictFilePath, "")
		if nameconf.PathExists(dictFile) {
			if dict, err = clustering.LoadTopologyDictionary(dictFile); err != nil {
				message := fmt.Errorf("Error reading dictionary: %w", err)
				logger.Error(message.Error())
				return
			}
		}
		nPatterns := 0
		if dict != nil {
			nPatterns = dict.Size()
		}
		histos = qa.NewClusterQA(nPatterns)
		specs = append(specs, its.ClusterQASpec(histos, dict))
	}

	runner := workflow.NewRunner(logger)
	runner.SetOption(its.ClustererDeviceName, "grp-file", configuration.GRPFile)
	runner.SetOption(its.ClustererDeviceName, "no-patterns", strconv.FormatBool(configuration.NoPatterns))
	runner.SetOption(its.ClustererDeviceName, "nthreads", strconv.Itoa(configuration.NumWorkers))
	if err := runner.Run(context.Background(), specs); err != nil {
		message := fmt.Errorf("Error running clusterization: %w", err)
		logger.Error(message.Error())
		return
	}
	logger.Info(fmt.Sprintf("Clusters written to %s", configuration.FileOut), "main")

	if histos != nil {
		logger.Info(histos.Summary(), "qa")
		if err := histos.Plot(configuration.QAFile); err != nil {
			logger.Error(err.Error())
		}
	}
}

// checkChannelMapping verifies that every chip has a readout channel when a
// mapping is stored for the run.
func checkChannelMapping(conds *conditions.Conditions) error {
	mapping, err := conds.ChannelMapping(dataformats.ITS, configuration.Run)
	if errors.Is(err, conditions.ErrNoChannelMapping) {
		logger.Info(fmt.Sprintf("No channel mapping for run %d", configuration.Run), "main")
		return nil
	}
	if err != nil {
		return err
	}
	for chip := range configuration.NChips {
		if _, _, err := mapping.ChipToHW(uint16(chip)); err != nil {
			return err
		}
	}
	if VerbosityLevel > 0 {
		logger.Info(fmt.Sprintf("Channel mapping: %d channels", mapping.Size()), "main")
	}
	return nil
}

func openDatabase() (*sqlx.DB, error) {
	if configuration.DBDriver == "sqlite" {
		return conditions.Open("sqlite", configuration.DBFile)
	}
	return conditions.ConnectToDatabase(configuration.User, configuration.Passwd, configuration.Host, configuration.DBName)
}
