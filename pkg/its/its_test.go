package its

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jmbenlloch/pixreco_go/pkg/clustering"
	"github.com/jmbenlloch/pixreco_go/pkg/dataformats"
	"github.com/jmbenlloch/pixreco_go/pkg/grp"
	"github.com/jmbenlloch/pixreco_go/pkg/logging"
	"github.com/jmbenlloch/pixreco_go/pkg/workflow"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// feeder publishes one map of payloads per timeframe.
type feeder struct {
	frames []map[string]any
	next   int
}

func (f *feeder) Init(*workflow.InitContext) error { return nil }

func (f *feeder) Run(pc *workflow.ProcessingContext) error {
	for desc, payload := range f.frames[f.next] {
		if err := pc.Outputs().Snapshot(output(desc), payload); err != nil {
			return err
		}
	}
	f.next++
	if f.next == len(f.frames) {
		pc.EndOfStream()
	}
	return nil
}

func feederSpec(descs []string, frames ...map[string]any) workflow.DataProcessorSpec {
	outputs := make([]workflow.OutputSpec, 0, len(descs))
	for _, desc := range descs {
		outputs = append(outputs, output(desc))
	}
	return workflow.DataProcessorSpec{
		Name:      "feeder",
		Outputs:   outputs,
		Algorithm: workflow.AdaptFromTask(&feeder{frames: frames}),
	}
}

// collector keeps every payload it receives, by binding.
type collector struct {
	mu     sync.Mutex
	inputs []workflow.InputSpec
	frames []map[string]any
}

func (c *collector) Init(*workflow.InitContext) error { return nil }

func (c *collector) Run(pc *workflow.ProcessingContext) error {
	frame := make(map[string]any)
	for _, in := range c.inputs {
		payload, err := workflow.Get[any](pc.Inputs(), in.Binding)
		if err != nil {
			return err
		}
		frame[in.Binding] = payload
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, frame)
	return nil
}

func collectorSpec(c *collector) workflow.DataProcessorSpec {
	return workflow.DataProcessorSpec{
		Name:      "collector",
		Inputs:    c.inputs,
		Algorithm: workflow.AdaptFromTask(c),
	}
}

func writeGRP(t *testing.T, continuous bool) string {
	t.Helper()
	g := grp.New(42)
	g.AddDetReadOut(dataformats.ITS, continuous)
	path := filepath.Join(t.TempDir(), "grp.json")
	require.NoError(t, g.Save(path))
	return path
}

func labelsBuffer(t *testing.T, labels ...dataformats.MCCompLabel) []byte {
	t.Helper()
	c := dataformats.NewMCTruthContainer()
	for i, l := range labels {
		require.NoError(t, c.AddElement(uint32(i), l))
	}
	return c.Flatten()
}

func clustererConfig(t *testing.T) ClustererConfig {
	params := clustering.DefaultClustererParam()
	params.DictFilePath = t.TempDir() + "/"
	return ClustererConfig{
		Params: params,
		Alpide: clustering.DefaultAlpideParam(),
		NChips: 8,
		Logger: logging.Nop(),
	}
}

func TestClustererSpecDeclaration(t *testing.T) {
	spec := ClustererSpec(false, ClustererConfig{})
	assert.Equal(t, "its-clusterer", spec.Name)
	assert.Len(t, spec.Inputs, 2)
	assert.Len(t, spec.Outputs, 3)

	spec = ClustererSpec(true, ClustererConfig{})
	require.Len(t, spec.Inputs, 4)
	assert.Equal(t, "labels", spec.Inputs[2].Binding)
	assert.Equal(t, DescDigitsMCTR, spec.Inputs[2].Description)
	assert.Equal(t, "MC2ROframes", spec.Inputs[3].Binding)
	require.Len(t, spec.Outputs, 5)
	assert.True(t, spec.HasOutput(output(DescClustersMCTR)))
	assert.True(t, spec.HasOutput(output(DescClustersMC2ROF)))

	names := make([]string, 0, len(spec.Options))
	for _, o := range spec.Options {
		names = append(names, o.Name)
	}
	assert.Equal(t, []string{"grp-file", "no-patterns", "nthreads"}, names)
}

func TestClustererDPLWithMC(t *testing.T) {
	digits := []dataformats.Digit{
		{ChipIndex: 1, Row: 4, Col: 4, Charge: 100},
		{ChipIndex: 0, Row: 10, Col: 10, Charge: 100},
		{ChipIndex: 0, Row: 11, Col: 10, Charge: 100},
	}
	rofs := []dataformats.ROFRecord{{ROFrame: 0, FirstEntry: 0, NEntries: 3}}
	mc2rofs := []dataformats.MC2ROFRecord{{EventRecordID: 0, ROFRecordID: 0, MinROF: 0, MaxROF: 0}}
	labels := labelsBuffer(t,
		dataformats.NewMCCompLabel(2, 0, 0),
		dataformats.NewMCCompLabel(1, 0, 0),
		dataformats.NewMCCompLabel(1, 0, 0),
	)

	sink := &collector{inputs: clusterConsumerInputs(true)}
	specs := []workflow.DataProcessorSpec{
		feederSpec([]string{DescDigits, DescDigitsROF, DescDigitsMCTR, DescDigitsMC2ROF}, map[string]any{
			DescDigits:       digits,
			DescDigitsROF:    rofs,
			DescDigitsMCTR:   labels,
			DescDigitsMC2ROF: mc2rofs,
		}),
		ClustererSpec(true, clustererConfig(t)),
		collectorSpec(sink),
	}
	runner := workflow.NewRunner(logging.Nop())
	runner.SetOption(ClustererDeviceName, "grp-file", writeGRP(t, true))
	runner.SetOption(ClustererDeviceName, "nthreads", "2")
	require.NoError(t, runner.Run(context.Background(), specs))

	require.Len(t, sink.frames, 1)
	frame := sink.frames[0]
	clusters := frame["compClusters"].([]dataformats.CompClusterExt)
	require.Len(t, clusters, 2)
	assert.Equal(t, dataformats.CompClusterExt{ChipID: 0, Row: 10, Col: 10, PatternID: dataformats.InvalidPatternID}, clusters[0])
	assert.Equal(t, uint16(1), clusters[1].ChipID)
	assert.NotEmpty(t, frame["patterns"].([]byte))

	outROFs := frame["ROframes"].([]dataformats.ROFRecord)
	require.Len(t, outROFs, 1)
	assert.Equal(t, int32(2), outROFs[0].NEntries)

	clusterLabels := frame["labels"].(*dataformats.MCTruthContainer)
	require.Equal(t, 2, clusterLabels.IndexedSize())
	assert.Equal(t, []dataformats.MCCompLabel{dataformats.NewMCCompLabel(1, 0, 0)}, clusterLabels.Labels(0))
	assert.Equal(t, []dataformats.MCCompLabel{dataformats.NewMCCompLabel(2, 0, 0)}, clusterLabels.Labels(1))
	assert.Equal(t, mc2rofs, frame["MC2ROframes"].([]dataformats.MC2ROFRecord))
}

func TestClustererDPLNoPatternsWithDictionary(t *testing.T) {
	config := clustererConfig(t)
	single := dataformats.NewClusterPattern(1, 1)
	single.Set(0, 0)
	dict := clustering.NewTopologyDictionary()
	dict.Build([]dataformats.ClusterPattern{single}, 0)
	require.NoError(t, dict.Save(filepath.Join(config.Params.DictFilePath, "ITSdictionary.bin")))

	digits := []dataformats.Digit{
		{ChipIndex: 0, Row: 1, Col: 1, Charge: 100},
		{ChipIndex: 0, Row: 1, Col: 2, Charge: 100},
		{ChipIndex: 0, Row: 5, Col: 5, Charge: 100},
	}
	rofs := []dataformats.ROFRecord{{FirstEntry: 0, NEntries: 3}}

	sink := &collector{inputs: clusterConsumerInputs(false)}
	specs := []workflow.DataProcessorSpec{
		feederSpec([]string{DescDigits, DescDigitsROF}, map[string]any{DescDigits: digits, DescDigitsROF: rofs}),
		ClustererSpec(false, config),
		collectorSpec(sink),
	}
	runner := workflow.NewRunner(logging.Nop())
	runner.SetOption(ClustererDeviceName, "grp-file", writeGRP(t, false))
	runner.SetOption(ClustererDeviceName, "no-patterns", "true")
	require.NoError(t, runner.Run(context.Background(), specs))

	require.Len(t, sink.frames, 1)
	clusters := sink.frames[0]["compClusters"].([]dataformats.CompClusterExt)
	require.Len(t, clusters, 2)
	assert.Equal(t, dataformats.InvalidPatternID, clusters[0].PatternID)
	id, ok := dict.Find(single)
	require.True(t, ok)
	assert.Equal(t, id, clusters[1].PatternID)
	assert.Empty(t, sink.frames[0]["patterns"].([]byte))
}

type staticNoise []dataformats.NoisyPixel

func (s staticNoise) NoisyPixels(det dataformats.DetID, run int) ([]dataformats.NoisyPixel, error) {
	return s, nil
}

func TestClustererDPLInit(t *testing.T) {
	config := clustererConfig(t)
	config.Noise = staticNoise{{ChipID: 0, Row: 1, Col: 1}, {ChipID: 3, Row: 2, Col: 2}}
	spec := ClustererSpec(false, config)

	task := spec.Algorithm.Task().(*ClustererDPL)
	sink := &collector{inputs: clusterConsumerInputs(false)}
	runner := workflow.NewRunner(logging.Nop())
	runner.SetOption(ClustererDeviceName, "grp-file", writeGRP(t, false))
	runner.SetOption(ClustererDeviceName, "nthreads", "0")
	specs := []workflow.DataProcessorSpec{
		feederSpec([]string{DescDigits, DescDigitsROF}, map[string]any{
			DescDigits:    []dataformats.Digit{{ChipIndex: 0, Row: 1, Col: 1}},
			DescDigitsROF: []dataformats.ROFRecord{{NEntries: 1}},
		}),
		spec,
		collectorSpec(sink),
	}
	require.NoError(t, runner.Run(context.Background(), specs))

	// the only digit sits on a noisy pixel
	require.Len(t, sink.frames, 1)
	assert.Empty(t, sink.frames[0]["compClusters"].([]dataformats.CompClusterExt))

	cl := task.Clusterer()
	assert.False(t, cl.IsContinuousReadOut())
	assert.Equal(t, 8, cl.NChips())
	assert.Equal(t, int64(250), cl.MaxBCSeparationToMask())
	assert.Equal(t, 1, cl.MaxRowColDiffToMask())
	assert.Nil(t, cl.Dictionary())
	assert.Equal(t, 1, task.nThreads)
}

func TestClustererDPLMissingGRP(t *testing.T) {
	specs := []workflow.DataProcessorSpec{
		feederSpec([]string{DescDigits, DescDigitsROF}, map[string]any{
			DescDigits:    []dataformats.Digit{},
			DescDigitsROF: []dataformats.ROFRecord{},
		}),
		ClustererSpec(false, clustererConfig(t)),
		collectorSpec(&collector{inputs: clusterConsumerInputs(false)}),
	}
	runner := workflow.NewRunner(logging.Nop())
	runner.SetOption(ClustererDeviceName, "grp-file", filepath.Join(t.TempDir(), "missing.json"))
	err := runner.Run(context.Background(), specs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot retrieve GRP")
}
