package mid

import (
	"cmp"
	"math/bits"
	"slices"
)

// PreCluster is a run of adjacent fired strips on one cathode. Bending
// plane strips are numbered line*16+strip inside a column; non bending
// plane strips column*16+strip inside a detection element.
type PreCluster struct {
	DeID       uint8
	Cathode    Cathode
	ColumnID   uint8
	FirstStrip int
	LastStrip  int
	// Sources are the indices of the column data that fired the strips.
	Sources []int
}

// FirstColumn and LastColumn return the columns covered by a non bending
// plane pre-cluster.
func (p PreCluster) FirstColumn() int {
	if p.Cathode == BendingPlane {
		return int(p.ColumnID)
	}
	return p.FirstStrip / NStripsPerLine
}

func (p PreCluster) LastColumn() int {
	if p.Cathode == BendingPlane {
		return int(p.ColumnID)
	}
	return p.LastStrip / NStripsPerLine
}

type columnKey struct {
	deID   uint8
	column uint8
}

// PreClusterizer merges the column data of a readout frame and groups the
// fired strips into pre-clusters.
type PreClusterizer struct{}

// Process returns the pre-clusters of data, sorted by detection element,
// cathode, column and first strip.
func (PreClusterizer) Process(data []ColumnData) []PreCluster {
	merged := make(map[columnKey]ColumnData)
	sources := make(map[columnKey][]int)
	for i, col := range data {
		if col.ColumnID >= NColumns {
			continue
		}
		key := columnKey{deID: col.DeID, column: col.ColumnID}
		acc := merged[key]
		acc.DeID, acc.ColumnID = col.DeID, col.ColumnID
		acc.PatternNBP |= col.PatternNBP
		for line := range acc.PatternsBP {
			acc.PatternsBP[line] |= col.PatternsBP[line]
		}
		merged[key] = acc
		sources[key] = append(sources[key], i)
	}

	var out []PreCluster
	nbp := make(map[uint8][NColumns]uint16)
	for key, col := range merged {
		for _, run := range runs(col.bendingPattern(), NLines*NStripsPerLine) {
			out = append(out, PreCluster{
				DeID:       key.deID,
				Cathode:    BendingPlane,
				ColumnID:   key.column,
				FirstStrip: run[0],
				LastStrip:  run[1],
				Sources:    slices.Clone(sources[key]),
			})
		}
		patterns := nbp[key.deID]
		patterns[key.column] = col.PatternNBP
		nbp[key.deID] = patterns
	}

	for deID, patterns := range nbp {
		var words [2]uint64
		for column, p := range patterns {
			bit := column * NStripsPerLine
			words[bit/64] |= uint64(p) << (bit % 64)
		}
		for _, run := range runs128(words) {
			pc := PreCluster{DeID: deID, Cathode: NonBendingPlane, FirstStrip: run[0], LastStrip: run[1]}
			pc.ColumnID = uint8(pc.FirstColumn())
			for column := pc.FirstColumn(); column <= pc.LastColumn(); column++ {
				pc.Sources = append(pc.Sources, sources[columnKey{deID: deID, column: uint8(column)}]...)
			}
			slices.Sort(pc.Sources)
			out = append(out, pc)
		}
	}

	slices.SortFunc(out, func(a, b PreCluster) int {
		return cmp.Or(
			cmp.Compare(a.DeID, b.DeID),
			cmp.Compare(a.Cathode, b.Cathode),
			cmp.Compare(a.ColumnID, b.ColumnID),
			cmp.Compare(a.FirstStrip, b.FirstStrip),
		)
	})
	return out
}

// runs returns the [first, last] bit indices of the runs of set bits of
// the low n bits of pattern.
func runs(pattern uint64, n int) [][2]int {
	if n < 64 {
		pattern &= 1<<n - 1
	}
	var out [][2]int
	offset := 0
	for pattern != 0 {
		skip := bits.TrailingZeros64(pattern)
		pattern >>= skip
		offset += skip
		length := bits.TrailingZeros64(^pattern)
		out = append(out, [2]int{offset, offset + length - 1})
		if length == 64 {
			break
		}
		pattern >>= length
		offset += length
	}
	return out
}

// runs128 is runs over a two word pattern, joining runs across the word
// boundary.
func runs128(words [2]uint64) [][2]int {
	low := runs(words[0], 64)
	high := runs(words[1], 64)
	for i := range high {
		high[i][0] += 64
		high[i][1] += 64
	}
	if len(low) > 0 && len(high) > 0 && low[len(low)-1][1] == 63 && high[0][0] == 64 {
		low[len(low)-1][1] = high[0][1]
		high = high[1:]
	}
	return append(low, high...)
}
