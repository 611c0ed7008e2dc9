package main

import (
	"flag"
	"fmt"

	"github.com/jmbenlloch/pixreco_go/pkg/clustering"
	"github.com/jmbenlloch/pixreco_go/pkg/config"
	"github.com/jmbenlloch/pixreco_go/pkg/dataformats"
	"github.com/jmbenlloch/pixreco_go/pkg/logging"
	"github.com/jmbenlloch/pixreco_go/pkg/nameconf"
	"github.com/jmbenlloch/pixreco_go/pkg/store"
)

var (
	logger         logging.SlogLogger
	configuration  config.Configuration
	VerbosityLevel int
)

func main() {
	configFilename := flag.String("config", "", "Configuration file path")
	fileIn := flag.String("in", "", "Clusters file, overrides the configuration")
	fileOut := flag.String("out", "", "Dictionary file, defaults to the standard name")
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
		configuration.FileIn = nameconf.ClustersFileName(dataformats.ITS, "")
	}
	dictFile := *fileOut
	if dictFile == "" {
		dictFile = nameconf.AlpideClusterDictionaryFileName(dataformats.ITS, configuration.Clusterer.DictFilePath, "")
	}

	VerbosityLevel = configuration.Verbosity
	logger = logging.NewDefaultLogger(VerbosityLevel)
	if VerbosityLevel > 0 {
		config.PrintConfiguration(configuration, logger)
	}

	patterns, err := readPatterns(configuration.FileIn)
	if err != nil {
		message := fmt.Errorf("Error reading clusters: %w", err)
		logger.Error(message.Error())
		return
	}

	dict := clustering.NewTopologyDictionary()
	dict.Build(patterns, configuration.MinPatternFrequency)
	if err := dict.Save(dictFile); err != nil {
		message := fmt.Errorf("Error writing dictionary: %w", err)
		logger.Error(message.Error())
		return
	}
	message := fmt.Sprintf("Dictionary with %d topologies from %d clusters written to %s", dict.Size(), len(patterns), dictFile)
	logger.Info(message, "main")

	if VerbosityLevel > 1 {
		for id := range min(dict.Size(), 10) {
			entry, err := dict.Entry(uint16(id))
			if err != nil {
				break
			}
			message := fmt.Sprintf("Topology %d: frequency %.4g, COG (%.2f, %.2f)\n%s",
				id, entry.Frequency, entry.COGRow, entry.COGCol, entry.Pattern)
			logger.Info(message, "main")
		}
	}
}

// readPatterns decodes the topology of every cluster of the file. The
// file must have been produced without dictionary or with the one in use.
func readPatterns(filename string) ([]dataformats.ClusterPattern, error) {
	reader, err := store.OpenClustersFile(filename)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var current *clustering.TopologyDictionary
	dictFile := nameconf.AlpideClusterDictionaryFileName(dataformats.ITS, configuration.Clusterer.DictFilePath, "")
	if nameconf.PathExists(dictFile) {
		if current, err = clustering.LoadTopologyDictionary(dictFile); err != nil {
			return nil, err
		}
	}

	var patterns []dataformats.ClusterPattern
	nTF := min(reader.NTimeframes(), configuration.MaxTimeframes)
	for i := range nTF {
		tf, err := reader.ReadTimeframe(i)
		if err != nil {
			return nil, fmt.Errorf("timeframe %d: %w", i, err)
		}
		decoded, err := clustering.DecodePatterns(tf.Clusters, tf.Patterns, current)
		if err != nil {
			return nil, fmt.Errorf("timeframe %d: %w", i, err)
		}
		patterns = append(patterns, decoded...)
	}
	return patterns, nil
}
