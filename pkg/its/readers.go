package its

import (
	"fmt"

	"github.com/jmbenlloch/pixreco_go/pkg/dataformats"
	"github.com/jmbenlloch/pixreco_go/pkg/logging"
	"github.com/jmbenlloch/pixreco_go/pkg/store"
	"github.com/jmbenlloch/pixreco_go/pkg/workflow"
)

const (
	HitReaderDeviceName   = "its-hit-reader"
	DigitReaderDeviceName = "its-digit-reader"
)

type ReaderConfig struct {
	FileName string
	// EventsPerTF groups hit events into timeframes.
	EventsPerTF   int
	MaxTimeframes int
	Logger        logging.Logger
}

func (c ReaderConfig) logger() logging.Logger {
	if c.Logger == nil {
		return logging.Nop()
	}
	return c.Logger
}

func (c ReaderConfig) maxTimeframes() int {
	if c.MaxTimeframes <= 0 {
		return int(^uint(0) >> 1)
	}
	return c.MaxTimeframes
}

// HitReader publishes the simulated events of a hits file, EventsPerTF
// events per timeframe.
type HitReader struct {
	config ReaderConfig
	reader *store.HitsReader
	next   int
	nTF    int
}

func (r *HitReader) Init(ic *workflow.InitContext) error {
	if r.config.EventsPerTF <= 0 {
		return fmt.Errorf("%s: invalid number of events per timeframe: %d", ic.Name(), r.config.EventsPerTF)
	}
	var err error
	if r.reader, err = store.OpenHitsFile(r.config.FileName); err != nil {
		return err
	}
	r.config.logger().Info(fmt.Sprintf("Reading %d events from %s", r.reader.NEvents(), r.config.FileName), "its-hit-reader")
	return nil
}

func (r *HitReader) Run(pc *workflow.ProcessingContext) error {
	events, err := r.reader.ReadEvents(r.next, r.config.EventsPerTF)
	if err != nil {
		return err
	}
	r.next += len(events)
	r.nTF++
	points, records := flattenEvents(events)
	if err := pc.Outputs().Snapshot(output(DescHits), points); err != nil {
		return err
	}
	if err := pc.Outputs().Snapshot(output(DescHitEvents), records); err != nil {
		return err
	}
	if r.next >= r.reader.NEvents() || r.nTF >= r.config.maxTimeframes() {
		pc.EndOfStream()
	}
	return nil
}

func (r *HitReader) Stop() error {
	if r.reader == nil {
		return nil
	}
	return r.reader.Close()
}

func HitReaderSpec(config ReaderConfig) workflow.DataProcessorSpec {
	return workflow.DataProcessorSpec{
		Name: HitReaderDeviceName,
		Outputs: []workflow.OutputSpec{
			output(DescHits),
			output(DescHitEvents),
		},
		Algorithm: workflow.AdaptFromTask(&HitReader{config: config}),
	}
}

// DigitReader publishes the timeframes of a digits file.
type DigitReader struct {
	useMC  bool
	config ReaderConfig
	reader *store.DigitsReader
	next   int
}

func (r *DigitReader) Init(ic *workflow.InitContext) error {
	var err error
	if r.reader, err = store.OpenDigitsFile(r.config.FileName); err != nil {
		return err
	}
	r.config.logger().Info(fmt.Sprintf("Reading %d timeframes from %s", r.reader.NTimeframes(), r.config.FileName), "its-digit-reader")
	return nil
}

func (r *DigitReader) Run(pc *workflow.ProcessingContext) error {
	var tf store.DigitsTimeframe
	if r.next < r.reader.NTimeframes() {
		var err error
		if tf, err = r.reader.ReadTimeframe(r.next); err != nil {
			return fmt.Errorf("timeframe %d: %w", r.next, err)
		}
	}
	r.next++

	out := pc.Outputs()
	if err := out.Snapshot(output(DescDigits), tf.Digits); err != nil {
		return err
	}
	if err := out.Snapshot(output(DescDigitsROF), tf.ROFs); err != nil {
		return err
	}
	if r.useMC {
		if err := out.Snapshot(output(DescDigitsMCTR), flattenLabels(tf.Labels)); err != nil {
			return err
		}
		if err := out.Snapshot(output(DescDigitsMC2ROF), tf.MC2ROFs); err != nil {
			return err
		}
	}
	if r.next >= r.reader.NTimeframes() || r.next >= r.config.maxTimeframes() {
		pc.EndOfStream()
	}
	return nil
}

func (r *DigitReader) Stop() error {
	if r.reader == nil {
		return nil
	}
	return r.reader.Close()
}

func DigitReaderSpec(useMC bool, config ReaderConfig) workflow.DataProcessorSpec {
	outputs := []workflow.OutputSpec{
		output(DescDigits),
		output(DescDigitsROF),
	}
	if useMC {
		outputs = append(outputs, output(DescDigitsMCTR), output(DescDigitsMC2ROF))
	}
	return workflow.DataProcessorSpec{
		Name:      DigitReaderDeviceName,
		Outputs:   outputs,
		Algorithm: workflow.AdaptFromTask(&DigitReader{useMC: useMC, config: config}),
	}
}

// labelsFromView copies the labels of a flattened buffer.
func labelsFromView(buf []byte) (*dataformats.MCTruthContainer, error) {
	view, err := dataformats.NewConstMCTruthContainerView(buf)
	if err != nil {
		return nil, err
	}
	return view.Copy(), nil
}
