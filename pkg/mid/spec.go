package mid

import (
	"fmt"

	"github.com/jmbenlloch/pixreco_go/pkg/dataformats"
	"github.com/jmbenlloch/pixreco_go/pkg/logging"
	"github.com/jmbenlloch/pixreco_go/pkg/workflow"
)

const (
	Origin                = "MID"
	ClusterizerDeviceName = "MIDClusterizer"
)

func output(desc string) workflow.OutputSpec {
	return workflow.OutputSpec{Origin: Origin, Description: desc, Lifetime: workflow.LifetimeTimeframe}
}

func input(binding, desc string) workflow.InputSpec {
	return workflow.InputSpec{Binding: binding, Origin: Origin, Description: desc, Lifetime: workflow.LifetimeTimeframe}
}

type ClusterizerDevice struct {
	isMC        bool
	logger      logging.Logger
	clusterizer Clusterizer
	nROFs       int
}

func (d *ClusterizerDevice) Init(*workflow.InitContext) error {
	return nil
}

func (d *ClusterizerDevice) Run(pc *workflow.ProcessingContext) error {
	data, err := workflow.Get[[]ColumnData](pc.Inputs(), "mid_data")
	if err != nil {
		return err
	}
	rofs, err := workflow.Get[[]ROFRecord](pc.Inputs(), "mid_data_rof")
	if err != nil {
		return err
	}
	var labels dataformats.LabelSource
	if d.isMC {
		buf, err := workflow.Get[[]byte](pc.Inputs(), "mid_data_labels")
		if err != nil {
			return err
		}
		view, err := dataformats.NewConstMCTruthContainerView(buf)
		if err != nil {
			return fmt.Errorf("MID labels: %w", err)
		}
		labels = view
	}

	res, err := d.clusterizer.Process(data, rofs, labels)
	if err != nil {
		return err
	}
	d.nROFs += len(rofs)

	out := pc.Outputs()
	if err := out.Snapshot(output("CLUSTERS"), res.Clusters); err != nil {
		return err
	}
	if err := out.Snapshot(output("CLUSTERSROF"), res.ROFs); err != nil {
		return err
	}
	if d.isMC {
		if err := out.Snapshot(output("CLUSTERSLABELS"), res.Labels); err != nil {
			return err
		}
	}
	d.logger.Info(fmt.Sprintf("Sent %d clusters from %d column data", len(res.Clusters), len(data)), "mid-clusterizer")
	return nil
}

func (d *ClusterizerDevice) Stop() error {
	d.logger.Info(fmt.Sprintf("Clusterized %d readout frames", d.nROFs), "mid-clusterizer")
	return nil
}

// ClusterizerSpec declares the MID clusterizer device.
func ClusterizerSpec(isMC bool, logger logging.Logger) workflow.DataProcessorSpec {
	if logger == nil {
		logger = logging.Nop()
	}
	inputs := []workflow.InputSpec{
		input("mid_data", "DATA"),
		input("mid_data_rof", "DATAROF"),
	}
	outputs := []workflow.OutputSpec{
		output("CLUSTERS"),
		output("CLUSTERSROF"),
	}
	if isMC {
		inputs = append(inputs, input("mid_data_labels", "DATALABELS"))
		outputs = append(outputs, output("CLUSTERSLABELS"))
	}
	return workflow.DataProcessorSpec{
		Name:      ClusterizerDeviceName,
		Inputs:    inputs,
		Outputs:   outputs,
		Algorithm: workflow.AdaptFromTask(&ClusterizerDevice{isMC: isMC, logger: logger}),
	}
}
