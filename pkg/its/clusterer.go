package its

import (
	"fmt"
	"slices"

	"github.com/jmbenlloch/pixreco_go/pkg/clustering"
	"github.com/jmbenlloch/pixreco_go/pkg/dataformats"
	"github.com/jmbenlloch/pixreco_go/pkg/geometry"
	"github.com/jmbenlloch/pixreco_go/pkg/grp"
	"github.com/jmbenlloch/pixreco_go/pkg/logging"
	"github.com/jmbenlloch/pixreco_go/pkg/nameconf"
	"github.com/jmbenlloch/pixreco_go/pkg/workflow"
)

const ClustererDeviceName = "its-clusterer"

// NoisyPixelSource provides the pixels to mask for a run.
type NoisyPixelSource interface {
	NoisyPixels(det dataformats.DetID, run int) ([]dataformats.NoisyPixel, error)
}

type ClustererConfig struct {
	Params clustering.ClustererParam
	Alpide clustering.AlpideParam
	// NChips defaults to the full ITS.
	NChips int
	// Noise is optional.
	Noise  NoisyPixelSource
	Logger logging.Logger
}

// ClustererDPL turns the digits of every timeframe into compact clusters.
type ClustererDPL struct {
	useMC     bool
	config    ClustererConfig
	logger    logging.Logger
	clusterer *clustering.Clusterer
	patterns  bool
	nThreads  int
}

func NewClustererDPL(useMC bool, config ClustererConfig) *ClustererDPL {
	logger := config.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &ClustererDPL{useMC: useMC, config: config, logger: logger}
}

func (c *ClustererDPL) Init(ic *workflow.InitContext) error {
	c.clusterer = clustering.NewClusterer(c.logger)
	nChips := c.config.NChips
	if nChips <= 0 {
		nChips = geometry.ITSNChips
	}
	c.clusterer.SetNChips(nChips)

	grpFile, err := ic.Options().String("grp-file")
	if err != nil {
		return err
	}
	g, err := grp.LoadFrom(grpFile)
	if err != nil {
		return fmt.Errorf("cannot retrieve GRP from the %s file: %w", grpFile, err)
	}
	continuous := g.IsDetContinuousReadOut(dataformats.ITS)
	c.clusterer.SetContinuousReadOut(continuous)

	noPatterns, err := ic.Options().Bool("no-patterns")
	if err != nil {
		return err
	}
	c.patterns = !noPatterns
	nThreads, err := ic.Options().Int("nthreads")
	if err != nil {
		return err
	}
	c.nThreads = max(1, nThreads)

	c.clusterer.SetMaxBCSeparationToMask(clustering.MaxBCSeparationToMask(c.config.Params, c.config.Alpide, continuous))
	c.clusterer.SetMaxRowColDiffToMask(c.config.Params.MaxRowColDiffToMask)

	dictFile := nameconf.AlpideClusterDictionaryFileName(dataformats.ITS, c.config.Params.DictFilePath, "")
	if nameconf.PathExists(dictFile) {
		c.logger.Info(fmt.Sprintf("Running with dictionary: %s", dictFile), "its-clusterer")
		if err := c.clusterer.LoadDictionary(dictFile); err != nil {
			return fmt.Errorf("loading dictionary %s: %w", dictFile, err)
		}
	} else {
		c.logger.Info("Dictionary "+dictFile+" is absent, ITSClusterer expects cluster patterns", "its-clusterer")
	}

	if c.config.Noise != nil {
		pixels, err := c.config.Noise.NoisyPixels(dataformats.ITS, g.Run)
		if err != nil {
			return fmt.Errorf("retrieving noisy pixels for run %d: %w", g.Run, err)
		}
		c.clusterer.SetNoiseMap(clustering.NewNoiseMapFromPixels(nChips, pixels))
	}
	c.clusterer.Print()
	return nil
}

// Clusterer exposes the configured clusterer once Init has run.
func (c *ClustererDPL) Clusterer() *clustering.Clusterer {
	return c.clusterer
}

func (c *ClustererDPL) Run(pc *workflow.ProcessingContext) error {
	digits, err := workflow.Get[[]dataformats.Digit](pc.Inputs(), "digits")
	if err != nil {
		return err
	}
	rofs, err := workflow.Get[[]dataformats.ROFRecord](pc.Inputs(), "ROframes")
	if err != nil {
		return err
	}
	c.logger.Info(fmt.Sprintf("ITSClusterer pulled %d digits, in %d RO frames", len(digits), len(rofs)), "its-clusterer")

	reader := &clustering.DigitPixelReader{}
	reader.SetDigits(digits)
	reader.SetROFRecords(rofs)

	var mc2rofs []dataformats.MC2ROFRecord
	if c.useMC {
		buf, err := workflow.Get[[]byte](pc.Inputs(), "labels")
		if err != nil {
			return err
		}
		labels, err := dataformats.NewConstMCTruthContainerView(buf)
		if err != nil {
			return fmt.Errorf("digit labels: %w", err)
		}
		mc2rofs, err = workflow.Get[[]dataformats.MC2ROFRecord](pc.Inputs(), "MC2ROframes")
		if err != nil {
			return err
		}
		c.logger.Info(fmt.Sprintf("ITSClusterer pulled %d labels", labels.NElements()), "its-clusterer")
		reader.SetMC2ROFRecords(mc2rofs)
		if labels.IndexedSize() > 0 {
			reader.SetDigitsMCTruth(labels)
		}
	}
	if err := reader.Init(); err != nil {
		return err
	}

	res, err := c.clusterer.Process(c.nThreads, reader, clustering.ProcessOptions{Patterns: c.patterns, Labels: c.useMC})
	if err != nil {
		return err
	}
	if res.Patterns == nil {
		res.Patterns = []byte{}
	}

	out := pc.Outputs()
	if err := out.Snapshot(output(DescCompClusters), res.Clusters); err != nil {
		return err
	}
	if err := out.Snapshot(output(DescPatterns), res.Patterns); err != nil {
		return err
	}
	if err := out.Snapshot(output(DescClustersROF), res.ROFs); err != nil {
		return err
	}
	if c.useMC {
		labels := res.Labels
		if labels == nil {
			labels = dataformats.NewMCTruthContainer()
		}
		if err := out.Snapshot(output(DescClustersMCTR), labels); err != nil {
			return err
		}
		// the MC events keep the frames of the digits
		if err := out.Snapshot(output(DescClustersMC2ROF), slices.Clone(mc2rofs)); err != nil {
			return err
		}
	}
	c.logger.Info(fmt.Sprintf("ITSClusterer pushed %d clusters, in %d RO frames", len(res.Clusters), len(res.ROFs)), "its-clusterer")
	return nil
}

func clustererInputs(useMC bool) []workflow.InputSpec {
	inputs := []workflow.InputSpec{
		input("digits", DescDigits),
		input("ROframes", DescDigitsROF),
	}
	if useMC {
		inputs = append(inputs, input("labels", DescDigitsMCTR), input("MC2ROframes", DescDigitsMC2ROF))
	}
	return inputs
}

func clustererOutputs(useMC bool) []workflow.OutputSpec {
	outputs := []workflow.OutputSpec{
		output(DescCompClusters),
		output(DescPatterns),
		output(DescClustersROF),
	}
	if useMC {
		outputs = append(outputs, output(DescClustersMCTR), output(DescClustersMC2ROF))
	}
	return outputs
}

// ClustererSpec declares the its-clusterer device.
func ClustererSpec(useMC bool, config ClustererConfig) workflow.DataProcessorSpec {
	return workflow.DataProcessorSpec{
		Name:      ClustererDeviceName,
		Inputs:    clustererInputs(useMC),
		Outputs:   clustererOutputs(useMC),
		Algorithm: workflow.AdaptFromTask(NewClustererDPL(useMC, config)),
		Options: []workflow.ConfigParamSpec{
			{Name: "grp-file", Type: workflow.VariantString, Default: "o2sim_grp.json", Help: "Name of the grp file"},
			{Name: "no-patterns", Type: workflow.VariantBool, Default: false, Help: "Do not save rare cluster patterns"},
			{Name: "nthreads", Type: workflow.VariantInt, Default: 1, Help: "Number of clustering threads"},
		},
	}
}
