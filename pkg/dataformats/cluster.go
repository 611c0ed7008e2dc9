package dataformats

import (
	"errors"
	"fmt"
	"hash/fnv"
)

// InvalidPatternID marks a cluster whose topology is not in the dictionary;
// its pattern is then stored in the pattern stream.
const InvalidPatternID uint16 = 0xffff

// CompClusterExt is a compact cluster: anchor pixel (top-left corner of the
// bounding box), chip and topology ID.
type CompClusterExt struct {
	ChipID    uint16
	Row       uint16
	Col       uint16
	PatternID uint16
}

// Maximum bounding box of a single cluster pattern.
const (
	MaxRowSpan = 128
	MaxColSpan = 128
)

var ErrTruncatedPattern = errors.New("truncated cluster pattern stream")

// ClusterPattern is the pixel bitmap of a cluster bounding box, row major,
// most significant bit first.
type ClusterPattern struct {
	RowSpan uint8
	ColSpan uint8
	Bitmap  []byte
}

func NewClusterPattern(rowSpan, colSpan int) ClusterPattern {
	nBits := rowSpan * colSpan
	return ClusterPattern{
		RowSpan: uint8(rowSpan),
		ColSpan: uint8(colSpan),
		Bitmap:  make([]byte, (nBits+7)/8),
	}
}

func (p ClusterPattern) bit(row, col int) (int, byte) {
	idx := row*int(p.ColSpan) + col
	return idx / 8, byte(0x80 >> (idx % 8))
}

func (p ClusterPattern) Set(row, col int) {
	b, mask := p.bit(row, col)
	p.Bitmap[b] |= mask
}

func (p ClusterPattern) IsSet(row, col int) bool {
	if row < 0 || col < 0 || row >= int(p.RowSpan) || col >= int(p.ColSpan) {
		return false
	}
	b, mask := p.bit(row, col)
	return p.Bitmap[b]&mask != 0
}

func (p ClusterPattern) NPixels() int {
	n := 0
	for r := 0; r < int(p.RowSpan); r++ {
		for c := 0; c < int(p.ColSpan); c++ {
			if p.IsSet(r, c) {
				n++
			}
		}
	}
	return n
}

// COG returns the centre of gravity relative to the anchor, in pixels,
// taking the pixel centre at +0.5.
func (p ClusterPattern) COG() (float64, float64) {
	var sr, sc float64
	n := 0
	for r := 0; r < int(p.RowSpan); r++ {
		for c := 0; c < int(p.ColSpan); c++ {
			if p.IsSet(r, c) {
				sr += float64(r) + 0.5
				sc += float64(c) + 0.5
				n++
			}
		}
	}
	if n == 0 {
		return 0, 0
	}
	return sr / float64(n), sc / float64(n)
}

// Key is a comparable representation usable as a map key.
func (p ClusterPattern) Key() string {
	return string(p.AppendTo(nil))
}

func (p ClusterPattern) Hash() uint64 {
	h := fnv.New64a()
	h.Write(p.AppendTo(nil))
	return h.Sum64()
}

// AppendTo writes rowSpan, colSpan and the bitmap to buf.
func (p ClusterPattern) AppendTo(buf []byte) []byte {
	buf = append(buf, p.RowSpan, p.ColSpan)
	return append(buf, p.Bitmap...)
}

func (p ClusterPattern) String() string {
	s := fmt.Sprintf("pattern %dx%d\n", p.RowSpan, p.ColSpan)
	for r := 0; r < int(p.RowSpan); r++ {
		for c := 0; c < int(p.ColSpan); c++ {
			if p.IsSet(r, c) {
				s += "+"
			} else {
				s += " "
			}
		}
		s += "\n"
	}
	return s
}

// ReadClusterPattern decodes the pattern starting at offset in stream and
// returns the offset of the next one.
func ReadClusterPattern(stream []byte, offset int) (ClusterPattern, int, error) {
	if offset+2 > len(stream) {
		return ClusterPattern{}, offset, ErrTruncatedPattern
	}
	rowSpan, colSpan := int(stream[offset]), int(stream[offset+1])
	if rowSpan == 0 || colSpan == 0 {
		return ClusterPattern{}, offset, fmt.Errorf("invalid pattern span %dx%d at offset %d", rowSpan, colSpan, offset)
	}
	nBytes := (rowSpan*colSpan + 7) / 8
	end := offset + 2 + nBytes
	if end > len(stream) {
		return ClusterPattern{}, offset, ErrTruncatedPattern
	}
	p := ClusterPattern{
		RowSpan: uint8(rowSpan),
		ColSpan: uint8(colSpan),
		Bitmap:  append([]byte(nil), stream[offset+2:end]...),
	}
	return p, end, nil
}
