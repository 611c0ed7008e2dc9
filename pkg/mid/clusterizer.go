package mid

import (
	"fmt"
	"slices"

	"github.com/jmbenlloch/pixreco_go/pkg/dataformats"
)

// Cluster is the crossing of a bending plane and a non bending plane
// pre-cluster, in strip units.
type Cluster struct {
	DeID     uint8
	ColumnID uint8
	FirstBP  int16
	LastBP   int16
	FirstNBP int16
	LastNBP  int16
}

// X is the centre along the non bending plane strips.
func (c Cluster) X() float64 {
	return 0.5 * float64(c.FirstNBP+c.LastNBP+1)
}

// Y is the centre along the bending plane strips.
func (c Cluster) Y() float64 {
	return 0.5 * float64(c.FirstBP+c.LastBP+1)
}

type ClusterizerResult struct {
	Clusters []Cluster
	ROFs     []ROFRecord
	// Labels is nil when no labels were given.
	Labels *dataformats.MCTruthContainer
}

// Clusterizer pairs the pre-clusters of both cathodes frame by frame. A
// bending plane pre-cluster without a partner spans the whole column in
// the non bending direction.
type Clusterizer struct {
	pre PreClusterizer
}

func (c *Clusterizer) Process(data []ColumnData, rofs []ROFRecord, labels dataformats.LabelSource) (ClusterizerResult, error) {
	var res ClusterizerResult
	if labels != nil {
		res.Labels = dataformats.NewMCTruthContainer()
	}
	for i, rof := range rofs {
		first, last := rof.EntriesRange()
		if first < 0 || last > len(data) || first > last {
			return ClusterizerResult{}, fmt.Errorf("frame %d entries [%d, %d) outside %d column data", i, first, last, len(data))
		}
		firstCluster := len(res.Clusters)
		preClusters := c.pre.Process(data[first:last])
		for _, bp := range preClusters {
			if bp.Cathode != BendingPlane {
				continue
			}
			paired := false
			for _, nbp := range preClusters {
				if nbp.Cathode != NonBendingPlane || nbp.DeID != bp.DeID {
					continue
				}
				if int(bp.ColumnID) < nbp.FirstColumn() || int(bp.ColumnID) > nbp.LastColumn() {
					continue
				}
				paired = true
				if err := c.add(&res, bp, nbp.FirstStrip, nbp.LastStrip, slices.Concat(bp.Sources, nbp.Sources), first, labels); err != nil {
					return ClusterizerResult{}, err
				}
			}
			if !paired {
				column := int(bp.ColumnID) * NStripsPerLine
				if err := c.add(&res, bp, column, column+NStripsPerLine-1, bp.Sources, first, labels); err != nil {
					return ClusterizerResult{}, err
				}
			}
		}
		res.ROFs = append(res.ROFs, ROFRecord{
			Interaction: rof.Interaction,
			EventType:   rof.EventType,
			FirstEntry:  int32(firstCluster),
			NEntries:    int32(len(res.Clusters) - firstCluster),
		})
	}
	return res, nil
}

func (c *Clusterizer) add(res *ClusterizerResult, bp PreCluster, firstNBP, lastNBP int, sources []int, offset int,
	labels dataformats.LabelSource) error {
	index := uint32(len(res.Clusters))
	res.Clusters = append(res.Clusters, Cluster{
		DeID:     bp.DeID,
		ColumnID: bp.ColumnID,
		FirstBP:  int16(bp.FirstStrip),
		LastBP:   int16(bp.LastStrip),
		FirstNBP: int16(firstNBP),
		LastNBP:  int16(lastNBP),
	})
	if labels == nil {
		return nil
	}
	var unique []dataformats.MCCompLabel
	for _, src := range sources {
		for _, l := range labels.Labels(offset + src) {
			if !containsLabel(unique, l) {
				unique = append(unique, l)
			}
		}
	}
	if len(unique) == 0 {
		return res.Labels.AddNoLabelIndex(index)
	}
	return res.Labels.AddElements(index, unique)
}

func containsLabel(labels []dataformats.MCCompLabel, l dataformats.MCCompLabel) bool {
	for _, existing := range labels {
		if existing == l {
			return true
		}
	}
	return false
}
