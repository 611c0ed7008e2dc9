package its

import (
	"fmt"

	"github.com/jmbenlloch/pixreco_go/pkg/dataformats"
	"github.com/jmbenlloch/pixreco_go/pkg/geometry"
	"github.com/jmbenlloch/pixreco_go/pkg/grp"
	"github.com/jmbenlloch/pixreco_go/pkg/logging"
	"github.com/jmbenlloch/pixreco_go/pkg/simulation"
	"github.com/jmbenlloch/pixreco_go/pkg/workflow"
)

const DigitizerDeviceName = "its-digitizer"

type DigitizerConfig struct {
	Geometry  geometry.Geometry
	Response  simulation.AlpideParams
	Readout   simulation.ReadoutParams
	Logger    logging.Logger
	Verbosity int
}

// DigitizerDPL digitises the hits of every timeframe and frames the
// digits in readout frames. The readout mode comes from the GRP.
type DigitizerDPL struct {
	config    DigitizerConfig
	logger    logging.Logger
	digitizer *simulation.Digitizer
	framer    *simulation.Framer
}

func NewDigitizerDPL(config DigitizerConfig) *DigitizerDPL {
	logger := config.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &DigitizerDPL{config: config, logger: logger}
}

func (d *DigitizerDPL) Init(ic *workflow.InitContext) error {
	if d.config.Geometry == nil {
		return fmt.Errorf("%s: no geometry set", ic.Name())
	}
	grpFile, err := ic.Options().String("grp-file")
	if err != nil {
		return err
	}
	g, err := grp.LoadFrom(grpFile)
	if err != nil {
		return fmt.Errorf("cannot retrieve GRP from the %s file: %w", grpFile, err)
	}
	readout := d.config.Readout
	readout.Continuous = g.IsDetContinuousReadOut(dataformats.ITS)

	d.digitizer = simulation.NewDigitizer(d.config.Geometry, d.config.Response, d.logger, d.config.Verbosity)
	if d.framer, err = simulation.NewFramer(readout); err != nil {
		return err
	}
	mode := "triggered"
	if readout.Continuous {
		mode = "continuous"
	}
	d.logger.Info(fmt.Sprintf("ITS digitizer: %d chips, %s readout", d.digitizer.NChips(), mode), "its-digitizer")
	return nil
}

func (d *DigitizerDPL) Run(pc *workflow.ProcessingContext) error {
	points, err := workflow.Get[[]simulation.Point](pc.Inputs(), "hits")
	if err != nil {
		return err
	}
	events, err := workflow.Get[[]HitEvent](pc.Inputs(), "events")
	if err != nil {
		return err
	}

	for _, ev := range events {
		first, last := int(ev.FirstEntry), int(ev.FirstEntry+ev.NEntries)
		if first < 0 || last > len(points) || first > last {
			return fmt.Errorf("event %d points [%d, %d) outside %d hits", ev.ID, first, last, len(points))
		}
		digits := d.digitizer.ProcessChips(points[first:last])
		d.framer.AddEvent(ev.ID, ev.Time, digits)
	}
	framed, err := d.framer.Flush()
	if err != nil {
		return err
	}
	if d.config.Verbosity > 0 {
		d.logger.Info(fmt.Sprintf("ITS digitizer: %d events, %d digits, in %d RO frames",
			len(events), len(framed.Digits), len(framed.ROFs)), "its-digitizer")
	}

	out := pc.Outputs()
	if err := out.Snapshot(output(DescDigits), framed.Digits); err != nil {
		return err
	}
	if err := out.Snapshot(output(DescDigitsROF), framed.ROFs); err != nil {
		return err
	}
	if err := out.Snapshot(output(DescDigitsMCTR), flattenLabels(framed.Labels)); err != nil {
		return err
	}
	return out.Snapshot(output(DescDigitsMC2ROF), framed.MC2ROFs)
}

// DigitizerSpec declares the its-digitizer device.
func DigitizerSpec(config DigitizerConfig) workflow.DataProcessorSpec {
	return workflow.DataProcessorSpec{
		Name: DigitizerDeviceName,
		Inputs: []workflow.InputSpec{
			input("hits", DescHits),
			input("events", DescHitEvents),
		},
		Outputs: []workflow.OutputSpec{
			output(DescDigits),
			output(DescDigitsROF),
			output(DescDigitsMCTR),
			output(DescDigitsMC2ROF),
		},
		Algorithm: workflow.AdaptFromTask(NewDigitizerDPL(config)),
		Options: []workflow.ConfigParamSpec{
			{Name: "grp-file", Type: workflow.VariantString, Default: "o2sim_grp.json", Help: "Name of the grp file"},
		},
	}
}
