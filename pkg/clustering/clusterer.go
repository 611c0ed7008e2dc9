package clustering

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/jmbenlloch/pixreco_go/pkg/dataformats"
	"github.com/jmbenlloch/pixreco_go/pkg/logging"
)

var ErrChipOutOfRange = errors.New("chip ID outside the clusterer range")

// Clusterer groups 8-connected fired pixels into compact clusters.
type Clusterer struct {
	nChips                int
	continuous            bool
	maxBCSeparationToMask int64
	maxRowColDiffToMask   int
	dict                  *TopologyDictionary
	noise                 *NoiseMap
	logger                logging.Logger
}

func NewClusterer(logger logging.Logger) *Clusterer {
	return &Clusterer{logger: logger}
}

func (c *Clusterer) SetNChips(n int)                      { c.nChips = n }
func (c *Clusterer) NChips() int                          { return c.nChips }
func (c *Clusterer) SetContinuousReadOut(continuous bool) { c.continuous = continuous }
func (c *Clusterer) IsContinuousReadOut() bool            { return c.continuous }
func (c *Clusterer) SetMaxBCSeparationToMask(n int64)     { c.maxBCSeparationToMask = n }
func (c *Clusterer) MaxBCSeparationToMask() int64         { return c.maxBCSeparationToMask }
func (c *Clusterer) SetMaxRowColDiffToMask(n int)         { c.maxRowColDiffToMask = n }
func (c *Clusterer) MaxRowColDiffToMask() int             { return c.maxRowColDiffToMask }
func (c *Clusterer) SetDictionary(d *TopologyDictionary)  { c.dict = d }
func (c *Clusterer) Dictionary() *TopologyDictionary      { return c.dict }
func (c *Clusterer) SetNoiseMap(m *NoiseMap)              { c.noise = m }

func (c *Clusterer) LoadDictionary(path string) error {
	dict, err := LoadTopologyDictionary(path)
	if err != nil {
		return err
	}
	c.dict = dict
	return nil
}

func (c *Clusterer) Print() {
	dictSize := 0
	if c.dict != nil {
		dictSize = c.dict.Size()
	}
	message := fmt.Sprintf("Clusterer settings: %d chips, continuous readout: %v, "+
		"mask overflow pixels within %d BC and %d rows/cols, dictionary entries: %d, noisy pixels: %d",
		c.nChips, c.continuous, c.maxBCSeparationToMask, c.maxRowColDiffToMask, dictSize, c.noise.NMasked())
	c.logger.Info(message, "clusterer")
}

// ProcessOptions selects the optional products of Process.
type ProcessOptions struct {
	// Patterns stores the topology of clusters missing from the dictionary.
	Patterns bool
	// Labels propagates the digit labels when the reader has them.
	Labels bool
}

// Result holds the clusters of all frames in frame order. Labels is nil
// when no labels were produced.
type Result struct {
	Clusters []dataformats.CompClusterExt
	Patterns []byte
	ROFs     []dataformats.ROFRecord
	Labels   *dataformats.MCTruthContainer
}

type rofResult struct {
	clusters []dataformats.CompClusterExt
	patterns []byte
	labels   [][]dataformats.MCCompLabel
}

type chunkOptions struct {
	patterns bool
	labels   dataformats.LabelSource
}

// Process clusterizes every frame of the reader. Frames are split among
// nThreads workers; the result does not depend on the number of workers.
func (c *Clusterer) Process(nThreads int, reader *DigitPixelReader, opts ProcessOptions) (Result, error) {
	nThreads = max(1, nThreads)
	n := reader.NROFs()
	results := make([]rofResult, n)
	records := make([]dataformats.ROFRecord, n)

	chunkOpts := chunkOptions{patterns: opts.Patterns}
	if opts.Labels {
		chunkOpts.labels = reader.DigitsMCTruth()
	}

	if n > 0 {
		chunk := (n + nThreads - 1) / nThreads
		var g errgroup.Group
		for start := 0; start < n; start += chunk {
			end := min(start+chunk, n)
			g.Go(func() error {
				return c.processRange(reader, start, end, chunkOpts, records, results)
			})
		}
		if err := g.Wait(); err != nil {
			return Result{}, err
		}
	}

	out := Result{ROFs: make([]dataformats.ROFRecord, 0, n)}
	if chunkOpts.labels != nil {
		out.Labels = dataformats.NewMCTruthContainer()
	}
	for i, res := range results {
		out.ROFs = append(out.ROFs, dataformats.ROFRecord{
			BCData:     records[i].BCData,
			ROFrame:    records[i].ROFrame,
			FirstEntry: int32(len(out.Clusters)),
			NEntries:   int32(len(res.clusters)),
		})
		if out.Labels != nil {
			for j, labels := range res.labels {
				if err := out.Labels.AddElements(uint32(len(out.Clusters)+j), labels); err != nil {
					return Result{}, err
				}
			}
		}
		out.Clusters = append(out.Clusters, res.clusters...)
		out.Patterns = append(out.Patterns, res.patterns...)
	}
	return out, nil
}

func (c *Clusterer) processRange(reader *DigitPixelReader, start, end int, opts chunkOptions,
	records []dataformats.ROFRecord, results []rofResult) error {

	var prev []ChipPixelData
	var prevBC dataformats.InteractionRecord
	havePrev := false
	if start > 0 {
		rof, chips, err := reader.ReadROF(start - 1)
		if err != nil {
			return err
		}
		prev, prevBC, havePrev = chips, rof.BCData, true
	}

	for i := start; i < end; i++ {
		rof, chips, err := reader.ReadROF(i)
		if err != nil {
			return err
		}
		records[i] = rof

		maskOverflow := false
		if havePrev && c.maxBCSeparationToMask > 0 {
			diff := rof.BCData.DifferenceInBC(prevBC)
			maskOverflow = diff >= 0 && diff < c.maxBCSeparationToMask
		}

		var res rofResult
		p := 0
		for _, chip := range chips {
			if int(chip.ChipID) >= c.nChips {
				return fmt.Errorf("%w: chip %d in ROF %d, %d chips", ErrChipOutOfRange, chip.ChipID, i, c.nChips)
			}
			pixels := chip.Pixels
			if maskOverflow {
				for p < len(prev) && prev[p].ChipID < chip.ChipID {
					p++
				}
				if p < len(prev) && prev[p].ChipID == chip.ChipID {
					pixels = maskFired(pixels, prev[p].Pixels, c.maxRowColDiffToMask)
				}
			}
			pixels = c.maskNoisy(chip.ChipID, pixels)
			c.clusterize(chip.ChipID, pixels, opts, &res)
		}
		results[i] = res
		prev, prevBC, havePrev = chips, rof.BCData, true
	}
	return nil
}

type pixelPos struct {
	row uint16
	col uint16
}

// maskFired drops the pixels within tolerance rows and columns of a pixel
// fired in the previous frame.
func maskFired(pixels, previous []PixelData, tolerance int) []PixelData {
	if len(previous) == 0 {
		return pixels
	}
	tolerance = max(0, tolerance)
	fired := make(map[pixelPos]struct{}, len(previous))
	for _, px := range previous {
		fired[pixelPos{px.Row, px.Col}] = struct{}{}
	}
	kept := make([]PixelData, 0, len(pixels))
	for _, px := range pixels {
		if !firedAround(fired, int(px.Row), int(px.Col), tolerance) {
			kept = append(kept, px)
		}
	}
	return kept
}

// validPixel reports whether (row, col) is addressable by a pixelPos.
func validPixel(row, col int) bool {
	return row >= 0 && col >= 0 && row <= math.MaxUint16 && col <= math.MaxUint16
}

func firedAround(fired map[pixelPos]struct{}, row, col, tolerance int) bool {
	for r := row - tolerance; r <= row+tolerance; r++ {
		for c := col - tolerance; c <= col+tolerance; c++ {
			if !validPixel(r, c) {
				continue
			}
			if _, ok := fired[pixelPos{uint16(r), uint16(c)}]; ok {
				return true
			}
		}
	}
	return false
}

func (c *Clusterer) maskNoisy(chipID uint16, pixels []PixelData) []PixelData {
	if c.noise.NMasked() == 0 {
		return pixels
	}
	kept := make([]PixelData, 0, len(pixels))
	for _, px := range pixels {
		if !c.noise.IsMasked(chipID, px.Row, px.Col) {
			kept = append(kept, px)
		}
	}
	return kept
}

// clusterize groups the pixels of one chip. Clusters are emitted in the
// order of their first pixel.
func (c *Clusterer) clusterize(chipID uint16, pixels []PixelData, opts chunkOptions, res *rofResult) {
	index := make(map[pixelPos]int, len(pixels))
	for i, px := range pixels {
		index[pixelPos{px.Row, px.Col}] = i
	}
	used := make([]bool, len(pixels))

	var members []int
	for seed := range pixels {
		if used[seed] {
			continue
		}
		members = append(members[:0], seed)
		used[seed] = true
		for k := 0; k < len(members); k++ {
			px := pixels[members[k]]
			for dr := -1; dr <= 1; dr++ {
				for dc := -1; dc <= 1; dc++ {
					r, col := int(px.Row)+dr, int(px.Col)+dc
					if !validPixel(r, col) {
						continue
					}
					j, ok := index[pixelPos{uint16(r), uint16(col)}]
					if ok && !used[j] {
						used[j] = true
						members = append(members, j)
					}
				}
			}
		}
		c.emit(chipID, pixels, members, opts, res)
	}
}

// emit stores one cluster, split in tiles of at most MaxRowSpan x
// MaxColSpan pixels.
func (c *Clusterer) emit(chipID uint16, pixels []PixelData, members []int, opts chunkOptions, res *rofResult) {
	minRow, minCol := pixels[members[0]].Row, pixels[members[0]].Col
	maxRow, maxCol := minRow, minCol
	for _, m := range members[1:] {
		px := pixels[m]
		minRow, maxRow = min(minRow, px.Row), max(maxRow, px.Row)
		minCol, maxCol = min(minCol, px.Col), max(maxCol, px.Col)
	}

	if int(maxRow-minRow) < dataformats.MaxRowSpan && int(maxCol-minCol) < dataformats.MaxColSpan {
		c.emitTile(chipID, pixels, members, opts, res)
		return
	}
	var tile []int
	for r0 := int(minRow); r0 <= int(maxRow); r0 += dataformats.MaxRowSpan {
		for c0 := int(minCol); c0 <= int(maxCol); c0 += dataformats.MaxColSpan {
			tile = tile[:0]
			for _, m := range members {
				px := pixels[m]
				if int(px.Row) >= r0 && int(px.Row) < r0+dataformats.MaxRowSpan &&
					int(px.Col) >= c0 && int(px.Col) < c0+dataformats.MaxColSpan {
					tile = append(tile, m)
				}
			}
			if len(tile) > 0 {
				c.emitTile(chipID, pixels, tile, opts, res)
			}
		}
	}
}

func (c *Clusterer) emitTile(chipID uint16, pixels []PixelData, members []int, opts chunkOptions, res *rofResult) {
	minRow, minCol := pixels[members[0]].Row, pixels[members[0]].Col
	maxRow, maxCol := minRow, minCol
	for _, m := range members[1:] {
		px := pixels[m]
		minRow, maxRow = min(minRow, px.Row), max(maxRow, px.Row)
		minCol, maxCol = min(minCol, px.Col), max(maxCol, px.Col)
	}

	pattern := dataformats.NewClusterPattern(int(maxRow-minRow)+1, int(maxCol-minCol)+1)
	for _, m := range members {
		pattern.Set(int(pixels[m].Row-minRow), int(pixels[m].Col-minCol))
	}

	id := dataformats.InvalidPatternID
	if c.dict != nil {
		if found, ok := c.dict.Find(pattern); ok {
			id = found
		}
	}
	if id == dataformats.InvalidPatternID && opts.patterns {
		res.patterns = pattern.AppendTo(res.patterns)
	}
	res.clusters = append(res.clusters, dataformats.CompClusterExt{
		ChipID:    chipID,
		Row:       minRow,
		Col:       minCol,
		PatternID: id,
	})

	if opts.labels == nil {
		return
	}
	var labels []dataformats.MCCompLabel
	for _, m := range members {
		for _, l := range opts.labels.Labels(int(pixels[m].DigitID)) {
			if !containsLabel(labels, l) {
				labels = append(labels, l)
			}
		}
	}
	res.labels = append(res.labels, labels)
}

func containsLabel(labels []dataformats.MCCompLabel, l dataformats.MCCompLabel) bool {
	for _, x := range labels {
		if x == l {
			return true
		}
	}
	return false
}

// DecodePatterns returns the pattern of every cluster, reading the rare
// ones from the pattern stream in cluster order.
func DecodePatterns(clusters []dataformats.CompClusterExt, stream []byte, dict *TopologyDictionary) ([]dataformats.ClusterPattern, error) {
	patterns := make([]dataformats.ClusterPattern, 0, len(clusters))
	offset := 0
	for i, cl := range clusters {
		if cl.PatternID != dataformats.InvalidPatternID {
			if dict == nil {
				return nil, fmt.Errorf("cluster %d has pattern ID %d but no dictionary is set", i, cl.PatternID)
			}
			p, err := dict.Pattern(cl.PatternID)
			if err != nil {
				return nil, fmt.Errorf("cluster %d: %w", i, err)
			}
			patterns = append(patterns, p)
			continue
		}
		p, next, err := dataformats.ReadClusterPattern(stream, offset)
		if err != nil {
			return nil, fmt.Errorf("cluster %d: %w", i, err)
		}
		offset = next
		patterns = append(patterns, p)
	}
	return patterns, nil
}
