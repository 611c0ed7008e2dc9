package main

import (
	"flag"
	"fmt"
	"os"

	sqlx "github.com/jmoiron/sqlx"

	"github.com/jmbenlloch/pixreco_go/pkg/conditions"
	"github.com/jmbenlloch/pixreco_go/pkg/config"
	"github.com/jmbenlloch/pixreco_go/pkg/dataformats"
	"github.com/jmbenlloch/pixreco_go/pkg/logging"
)

var (
	logger         logging.SlogLogger
	configuration  config.Configuration
	dbConn         *sqlx.DB
	VerbosityLevel int
)

func main() {
	configFilename := flag.String("config", "", "Configuration file path")
	table := flag.String("lut", "", "Lookup table file, overrides the configuration")
	flag.Parse()

	logger = logging.NewDefaultLogger(0)
	var err error
	configuration, err = config.LoadConfiguration(*configFilename)
	if err != nil {
		message := fmt.Errorf("Error reading configuration file: %w", err)
		logger.Error(message.Error())
		return
	}
	if *table != "" {
		configuration.LookUpTable = *table
	}

	VerbosityLevel = configuration.Verbosity
	logger = logging.NewDefaultLogger(VerbosityLevel)
	if VerbosityLevel > 0 {
		config.PrintConfiguration(configuration, logger)
	}

	entries, err := readLookUpTable(configuration.LookUpTable)
	if err != nil {
		message := fmt.Errorf("Error reading lookup table: %w", err)
		logger.Error(message.Error())
		return
	}
	if VerbosityLevel > 1 {
		for _, e := range entries {
			logger.Info(fmt.Sprintf("Read channel: link %d, hw address %d -> chip %d", e.Link, e.HWAddress, e.ChipID), "main")
		}
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
	if err := conds.UploadChannelMapping(dataformats.ITS, configuration.MinRun, configuration.MaxRun, entries); err != nil {
		message := fmt.Errorf("Error uploading channel mapping: %w", err)
		logger.Error(message.Error())
		return
	}
	message := fmt.Sprintf("Uploaded %d channels for runs [%d, %d]", len(entries), configuration.MinRun, configuration.MaxRun)
	logger.Info(message, "main")
}

func readLookUpTable(filename string) ([]conditions.ChannelEntry, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return conditions.ParseLookUpTable(f)
}

func openDatabase() (*sqlx.DB, error) {
	if configuration.DBDriver == "sqlite" {
		return conditions.Open("sqlite", configuration.DBFile)
	}
	return conditions.ConnectToDatabase(configuration.User, configuration.Passwd, configuration.Host, configuration.DBName)
}
