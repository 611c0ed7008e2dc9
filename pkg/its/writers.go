package its

import (
	"fmt"

	"github.com/jmbenlloch/pixreco_go/pkg/dataformats"
	"github.com/jmbenlloch/pixreco_go/pkg/logging"
	"github.com/jmbenlloch/pixreco_go/pkg/store"
	"github.com/jmbenlloch/pixreco_go/pkg/workflow"
)

const (
	DigitWriterDeviceName   = "its-digit-writer"
	ClusterWriterDeviceName = "its-cluster-writer"
)

type WriterConfig struct {
	FileName    string
	Compression int
	// Parameters are stored with the data when not nil.
	Parameters any
	Logger     logging.Logger
}

func (c WriterConfig) logger() logging.Logger {
	if c.Logger == nil {
		return logging.Nop()
	}
	return c.Logger
}

type DigitWriter struct {
	useMC  bool
	config WriterConfig
	writer *store.DigitsWriter
}

func (w *DigitWriter) Init(ic *workflow.InitContext) error {
	var err error
	if w.writer, err = store.NewDigitsWriter(w.config.FileName, w.config.Compression); err != nil {
		return err
	}
	if w.config.Parameters != nil {
		return w.writer.WriteParameters(w.config.Parameters)
	}
	return nil
}

func (w *DigitWriter) Run(pc *workflow.ProcessingContext) error {
	var tf store.DigitsTimeframe
	var err error
	if tf.Digits, err = workflow.Get[[]dataformats.Digit](pc.Inputs(), "digits"); err != nil {
		return err
	}
	if tf.ROFs, err = workflow.Get[[]dataformats.ROFRecord](pc.Inputs(), "ROframes"); err != nil {
		return err
	}
	if w.useMC {
		buf, err := workflow.Get[[]byte](pc.Inputs(), "labels")
		if err != nil {
			return err
		}
		if tf.Labels, err = labelsFromView(buf); err != nil {
			return fmt.Errorf("digit labels: %w", err)
		}
		if tf.MC2ROFs, err = workflow.Get[[]dataformats.MC2ROFRecord](pc.Inputs(), "MC2ROframes"); err != nil {
			return err
		}
	}
	return w.writer.WriteTimeframe(tf)
}

func (w *DigitWriter) Stop() error {
	if w.writer == nil {
		return nil
	}
	w.config.logger().Info(fmt.Sprintf("Wrote %d timeframes to %s", w.writer.NTimeframes(), w.config.FileName), "its-digit-writer")
	return w.writer.Close()
}

func DigitWriterSpec(useMC bool, config WriterConfig) workflow.DataProcessorSpec {
	inputs := []workflow.InputSpec{
		input("digits", DescDigits),
		input("ROframes", DescDigitsROF),
	}
	if useMC {
		inputs = append(inputs, input("labels", DescDigitsMCTR), input("MC2ROframes", DescDigitsMC2ROF))
	}
	return workflow.DataProcessorSpec{
		Name:      DigitWriterDeviceName,
		Inputs:    inputs,
		Algorithm: workflow.AdaptFromTask(&DigitWriter{useMC: useMC, config: config}),
	}
}

type ClusterWriter struct {
	useMC  bool
	config WriterConfig
	writer *store.ClustersWriter
}

func (w *ClusterWriter) Init(ic *workflow.InitContext) error {
	var err error
	if w.writer, err = store.NewClustersWriter(w.config.FileName, w.config.Compression); err != nil {
		return err
	}
	if w.config.Parameters != nil {
		return w.writer.WriteParameters(w.config.Parameters)
	}
	return nil
}

func (w *ClusterWriter) Run(pc *workflow.ProcessingContext) error {
	var tf store.ClustersTimeframe
	var err error
	if tf.Clusters, err = workflow.Get[[]dataformats.CompClusterExt](pc.Inputs(), "compClusters"); err != nil {
		return err
	}
	if tf.Patterns, err = workflow.Get[[]byte](pc.Inputs(), "patterns"); err != nil {
		return err
	}
	if tf.ROFs, err = workflow.Get[[]dataformats.ROFRecord](pc.Inputs(), "ROframes"); err != nil {
		return err
	}
	if w.useMC {
		if tf.Labels, err = workflow.Get[*dataformats.MCTruthContainer](pc.Inputs(), "labels"); err != nil {
			return err
		}
		if tf.MC2ROFs, err = workflow.Get[[]dataformats.MC2ROFRecord](pc.Inputs(), "MC2ROframes"); err != nil {
			return err
		}
	}
	return w.writer.WriteTimeframe(tf)
}

func (w *ClusterWriter) Stop() error {
	if w.writer == nil {
		return nil
	}
	w.config.logger().Info(fmt.Sprintf("Wrote %d timeframes to %s", w.writer.NTimeframes(), w.config.FileName), "its-cluster-writer")
	return w.writer.Close()
}

func clusterConsumerInputs(useMC bool) []workflow.InputSpec {
	inputs := []workflow.InputSpec{
		input("compClusters", DescCompClusters),
		input("patterns", DescPatterns),
		input("ROframes", DescClustersROF),
	}
	if useMC {
		inputs = append(inputs, input("labels", DescClustersMCTR), input("MC2ROframes", DescClustersMC2ROF))
	}
	return inputs
}

func ClusterWriterSpec(useMC bool, config WriterConfig) workflow.DataProcessorSpec {
	return workflow.DataProcessorSpec{
		Name:      ClusterWriterDeviceName,
		Inputs:    clusterConsumerInputs(useMC),
		Algorithm: workflow.AdaptFromTask(&ClusterWriter{useMC: useMC, config: config}),
	}
}
