// Package its holds the ITS processing stages run by the workflow host:
// hit and digit readers, the digitizer, the clusterer and the file
// writers.
package its

import (
	"github.com/jmbenlloch/pixreco_go/pkg/dataformats"
	"github.com/jmbenlloch/pixreco_go/pkg/simulation"
	"github.com/jmbenlloch/pixreco_go/pkg/workflow"
)

const Origin = "ITS"

// Data descriptions exchanged between the ITS devices.
const (
	DescHits           = "HITS"
	DescHitEvents      = "HITSEVT"
	DescDigits         = "DIGITS"
	DescDigitsROF      = "DIGITSROF"
	DescDigitsMCTR     = "DIGITSMCTR"
	DescDigitsMC2ROF   = "DIGITSMC2ROF"
	DescCompClusters   = "COMPCLUSTERS"
	DescPatterns       = "PATTERNS"
	DescClustersROF    = "CLUSTERSROF"
	DescClustersMCTR   = "CLUSTERSMCTR"
	DescClustersMC2ROF = "CLUSTERSMC2ROF"
)

func output(desc string) workflow.OutputSpec {
	return workflow.OutputSpec{Origin: Origin, Description: desc, SubSpec: 0, Lifetime: workflow.LifetimeTimeframe}
}

func input(binding, desc string) workflow.InputSpec {
	return workflow.InputSpec{Binding: binding, Origin: Origin, Description: desc, SubSpec: 0, Lifetime: workflow.LifetimeTimeframe}
}

// HitEvent locates the points of one event in the HITS payload of a
// timeframe.
type HitEvent struct {
	ID         int32
	SourceID   int16
	Time       float64
	FirstEntry int32
	NEntries   int32
}

// flattenEvents concatenates the points of events.
func flattenEvents(events []simulation.Event) ([]simulation.Point, []HitEvent) {
	var points []simulation.Point
	records := make([]HitEvent, 0, len(events))
	for _, ev := range events {
		records = append(records, HitEvent{
			ID:         ev.ID,
			SourceID:   ev.SourceID,
			Time:       ev.Time,
			FirstEntry: int32(len(points)),
			NEntries:   int32(len(ev.Points)),
		})
		points = append(points, ev.Points...)
	}
	return points, records
}

// flattenLabels serialises labels, an empty buffer standing for none.
func flattenLabels(labels *dataformats.MCTruthContainer) []byte {
	if labels == nil {
		return dataformats.NewMCTruthContainer().Flatten()
	}
	return labels.Flatten()
}
