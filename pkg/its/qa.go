package its

import (
	"fmt"

	"github.com/jmbenlloch/pixreco_go/pkg/clustering"
	"github.com/jmbenlloch/pixreco_go/pkg/dataformats"
	"github.com/jmbenlloch/pixreco_go/pkg/qa"
	"github.com/jmbenlloch/pixreco_go/pkg/workflow"
)

const ClusterQADeviceName = "its-cluster-qa"

// ClusterQA fills cluster histograms. Rare patterns are decoded from the
// pattern stream, the others through the dictionary.
type ClusterQA struct {
	histos *qa.ClusterQA
	dict   *clustering.TopologyDictionary
}

func (q *ClusterQA) Init(*workflow.InitContext) error {
	return nil
}

func (q *ClusterQA) Run(pc *workflow.ProcessingContext) error {
	clusters, err := workflow.Get[[]dataformats.CompClusterExt](pc.Inputs(), "compClusters")
	if err != nil {
		return err
	}
	patterns, err := workflow.Get[[]byte](pc.Inputs(), "patterns")
	if err != nil {
		return err
	}
	rofs, err := workflow.Get[[]dataformats.ROFRecord](pc.Inputs(), "ROframes")
	if err != nil {
		return err
	}
	if err := q.histos.Fill(clusters, patterns, rofs, q.dict); err != nil {
		return fmt.Errorf("cluster QA: %w", err)
	}
	return nil
}

// ClusterQASpec declares a device filling histos. dict may be nil when
// every pattern is stored.
func ClusterQASpec(histos *qa.ClusterQA, dict *clustering.TopologyDictionary) workflow.DataProcessorSpec {
	return workflow.DataProcessorSpec{
		Name:      ClusterQADeviceName,
		Inputs:    clusterConsumerInputs(false),
		Algorithm: workflow.AdaptFromTask(&ClusterQA{histos: histos, dict: dict}),
	}
}
