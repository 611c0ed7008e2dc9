package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/jmbenlloch/pixreco_go/pkg/config"
	"github.com/jmbenlloch/pixreco_go/pkg/dataformats"
	"github.com/jmbenlloch/pixreco_go/pkg/geometry"
	"github.com/jmbenlloch/pixreco_go/pkg/grp"
	"github.com/jmbenlloch/pixreco_go/pkg/its"
	"github.com/jmbenlloch/pixreco_go/pkg/logging"
	"github.com/jmbenlloch/pixreco_go/pkg/nameconf"
	"github.com/jmbenlloch/pixreco_go/pkg/simulation"
	"github.com/jmbenlloch/pixreco_go/pkg/store"
	"github.com/jmbenlloch/pixreco_go/pkg/workflow"
)

var (
	logger         logging.SlogLogger
	configuration  config.Configuration
	VerbosityLevel int
)

func main() {
	configFilename := flag.String("config", "", "Configuration file path")
	generate := flag.Int("generate", 0, "Generate this number of toy events into the hits file first")
	fileIn := flag.String("in", "", "Hits file, overrides the configuration")
	fileOut := flag.String("out", "", "Digits file, overrides the configuration")
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
	if configuration.FileIn == "" {
		configuration.FileIn = nameconf.HitsFileName(dataformats.ITS, "")
	}
	if configuration.FileOut == "" {
		configuration.FileOut = nameconf.DigitsFileName(dataformats.ITS, "")
	}

	VerbosityLevel = configuration.Verbosity
	logger = logging.NewDefaultLogger(VerbosityLevel)
	if VerbosityLevel > 0 {
		message := fmt.Sprintf("Reading configuration file: %s", *configFilename)
		logger.Info(message, "main")
		config.PrintConfiguration(configuration, logger)
	}

	grid, err := geometry.NewGrid(configuration.NChips, configuration.ChipsPerRow)
	if err != nil {
		message := fmt.Errorf("Error building geometry: %w", err)
		logger.Error(message.Error())
		return
	}

	if *generate > 0 {
		if err := generateHits(grid, *generate); err != nil {
			message := fmt.Errorf("Error generating hits: %w", err)
			logger.Error(message.Error())
			return
		}
	}

	specs := []workflow.DataProcessorSpec{
		its.HitReaderSpec(its.ReaderConfig{
			FileName:      configuration.FileIn,
			EventsPerTF:   configuration.EventsPerTF,
			MaxTimeframes: configuration.MaxTimeframes,
			Logger:        logger,
		}),
		its.DigitizerSpec(its.DigitizerConfig{
			Geometry:  grid,
			Response:  configuration.Response,
			Readout:   configuration.Readout,
			Logger:    logger,
			Verbosity: VerbosityLevel,
		}),
		its.DigitWriterSpec(true, its.WriterConfig{
			FileName:    configuration.FileOut,
			Compression: configuration.CompressionLevel,
			Parameters:  configuration.Response,
			Logger:      logger,
		}),
	}

	runner := workflow.NewRunner(logger)
	runner.SetOption(its.DigitizerDeviceName, "grp-file", configuration.GRPFile)
	if err := runner.Run(context.Background(), specs); err != nil {
		message := fmt.Errorf("Error running digitization: %w", err)
		logger.Error(message.Error())
		return
	}
	logger.Info(fmt.Sprintf("Digits written to %s", configuration.FileOut), "main")
}

func generateHits(grid *geometry.Grid, nEvents int) error {
	gen, err := simulation.NewGenerator(grid, configuration.Generator)
	if err != nil {
		return err
	}
	writer, err := store.NewHitsWriter(configuration.FileIn, configuration.CompressionLevel)
	if err != nil {
		return err
	}
	for range nEvents {
		ev, err := gen.Next()
		if err != nil {
			writer.Close()
			return err
		}
		if err := writer.WriteEvent(ev); err != nil {
			writer.Close()
			return err
		}
	}
	if VerbosityLevel > 0 {
		message := fmt.Sprintf("Generated %d events into %s", writer.NEvents(), configuration.FileIn)
		logger.Info(message, "main")
	}
	if err := writer.Close(); err != nil {
		return err
	}

	// the simulation writes the run parameters next to the hits
	if nameconf.PathExists(configuration.GRPFile) {
		return nil
	}
	g := grp.New(configuration.Run)
	g.AddDetReadOut(dataformats.ITS, configuration.Readout.Continuous)
	return g.Save(configuration.GRPFile)
}
