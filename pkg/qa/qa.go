// Package qa fills monitoring histograms of reconstructed clusters and
// draws them.
package qa

import (
	"fmt"
	"image/color"

	"go-hep.org/x/hep/hbook"
	"go-hep.org/x/hep/hplot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/jmbenlloch/pixreco_go/pkg/clustering"
	"github.com/jmbenlloch/pixreco_go/pkg/dataformats"
)

const (
	maxClusterSize    = 64
	maxClustersPerROF = 200
)

// ClusterQA accumulates cluster statistics over timeframes.
type ClusterQA struct {
	ClusterSize    *hbook.H1D
	PatternID      *hbook.H1D
	ClustersPerROF *hbook.H1D

	nClusters int
	nRare     int
	nROFs     int
}

// NewClusterQA books the histograms. nPatterns is the dictionary size;
// rare patterns go to the last pattern ID bin.
func NewClusterQA(nPatterns int) *ClusterQA {
	return &ClusterQA{
		ClusterSize:    hbook.NewH1D(maxClusterSize, 0.5, maxClusterSize+0.5),
		PatternID:      hbook.NewH1D(nPatterns+1, -0.5, float64(nPatterns)+0.5),
		ClustersPerROF: hbook.NewH1D(maxClustersPerROF/2, 0, maxClustersPerROF),
	}
}

// Fill adds one timeframe of clusters.
func (q *ClusterQA) Fill(clusters []dataformats.CompClusterExt, patterns []byte, rofs []dataformats.ROFRecord,
	dict *clustering.TopologyDictionary) error {
	decoded, err := clustering.DecodePatterns(clusters, patterns, dict)
	if err != nil {
		return fmt.Errorf("decoding cluster patterns: %w", err)
	}
	rareBin := q.PatternID.XMax() - 0.5
	for i, cl := range clusters {
		q.ClusterSize.Fill(float64(decoded[i].NPixels()), 1)
		if cl.PatternID == dataformats.InvalidPatternID {
			q.PatternID.Fill(rareBin, 1)
			q.nRare++
		} else {
			q.PatternID.Fill(float64(cl.PatternID), 1)
		}
	}
	for _, rof := range rofs {
		q.ClustersPerROF.Fill(float64(rof.NEntries), 1)
	}
	q.nClusters += len(clusters)
	q.nROFs += len(rofs)
	return nil
}

func (q *ClusterQA) NClusters() int { return q.nClusters }
func (q *ClusterQA) NRare() int     { return q.nRare }
func (q *ClusterQA) NROFs() int     { return q.nROFs }

// Summary is a one-line description for the logs.
func (q *ClusterQA) Summary() string {
	return fmt.Sprintf("%d clusters in %d ROFs, %d rare, mean size %.2f",
		q.nClusters, q.nROFs, q.nRare, q.ClusterSize.XMean())
}

// Plot draws the histograms one next to the other and saves them. The
// format follows the file extension (png, pdf, svg...).
func (q *ClusterQA) Plot(path string) error {
	tp := hplot.NewTiledPlot(draw.Tiles{Cols: 3, Rows: 1})
	panels := []struct {
		h      *hbook.H1D
		title  string
		xLabel string
	}{
		{q.ClusterSize, "Cluster size", "pixels"},
		{q.PatternID, "Pattern ID", "ID"},
		{q.ClustersPerROF, "Clusters per ROF", "clusters"},
	}
	for i, panel := range panels {
		p := tp.Plot(i, 0)
		p.Title.Text = panel.title
		p.Title.Padding = 2 * vg.Millimeter
		p.X.Label.Text = panel.xLabel
		p.Y.Label.Text = "entries"

		h := hplot.NewH1D(panel.h)
		h.LineStyle.Color = color.RGBA{B: 255, A: 255}
		p.Add(h)
	}
	if err := tp.Save(15*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("saving QA plot %s: %w", path, err)
	}
	return nil
}
