package dataformats

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrOutOfOrderLabel = errors.New("MC labels must be added in data index order")

// MCTruthHeaderElement points to the first label of a data index.
type MCTruthHeaderElement struct {
	Index uint32
}

// MCTruthContainer stores a variable number of labels per data index as
// one header per index plus a flat label array.
type MCTruthContainer struct {
	headers []MCTruthHeaderElement
	truth   []MCCompLabel
}

func NewMCTruthContainer() *MCTruthContainer {
	return &MCTruthContainer{}
}

// IndexedSize is the number of data indices known to the container.
func (c *MCTruthContainer) IndexedSize() int {
	return len(c.headers)
}

// NElements is the total number of labels.
func (c *MCTruthContainer) NElements() int {
	return len(c.truth)
}

func (c *MCTruthContainer) Clear() {
	c.headers = c.headers[:0]
	c.truth = c.truth[:0]
}

// AddElement attaches a label to dataIndex. Indices must be added in
// non decreasing order; skipped indices get no labels.
func (c *MCTruthContainer) AddElement(dataIndex uint32, label MCCompLabel) error {
	if err := c.ensureIndex(dataIndex); err != nil {
		return err
	}
	c.truth = append(c.truth, label)
	return nil
}

func (c *MCTruthContainer) AddElements(dataIndex uint32, labels []MCCompLabel) error {
	if err := c.ensureIndex(dataIndex); err != nil {
		return err
	}
	c.truth = append(c.truth, labels...)
	return nil
}

// AddNoLabelIndex registers dataIndex without labels.
func (c *MCTruthContainer) AddNoLabelIndex(dataIndex uint32) error {
	return c.ensureIndex(dataIndex)
}

func (c *MCTruthContainer) ensureIndex(dataIndex uint32) error {
	n := uint32(len(c.headers))
	switch {
	case n > 0 && dataIndex == n-1:
		return nil
	case dataIndex < n:
		return fmt.Errorf("%w: got %d after %d", ErrOutOfOrderLabel, dataIndex, n-1)
	}
	for i := n; i <= dataIndex; i++ {
		c.headers = append(c.headers, MCTruthHeaderElement{Index: uint32(len(c.truth))})
	}
	return nil
}

// Labels returns the labels of dataIndex. The slice aliases the container.
func (c *MCTruthContainer) Labels(dataIndex int) []MCCompLabel {
	if dataIndex < 0 || dataIndex >= len(c.headers) {
		return nil
	}
	first := c.headers[dataIndex].Index
	last := uint32(len(c.truth))
	if dataIndex+1 < len(c.headers) {
		last = c.headers[dataIndex+1].Index
	}
	return c.truth[first:last]
}

// MergeAtBack appends other, shifting its data indices after ours.
func (c *MCTruthContainer) MergeAtBack(other *MCTruthContainer) {
	offset := uint32(len(c.truth))
	for _, h := range other.headers {
		c.headers = append(c.headers, MCTruthHeaderElement{Index: h.Index + offset})
	}
	c.truth = append(c.truth, other.truth...)
}

const (
	truthHeaderBytes = 8
	labelBytes       = 12
)

// Flatten serialises the container into a little endian buffer:
// nHeaders, nLabels, header indices, then labels as
// (trackID int32, eventID int32, sourceID int16, fake uint8, pad uint8).
func (c *MCTruthContainer) Flatten() []byte {
	buf := make([]byte, truthHeaderBytes+4*len(c.headers)+labelBytes*len(c.truth))
	binary.LittleEndian.PutUint32(buf[0:], uint32(len(c.headers)))
	binary.LittleEndian.PutUint32(buf[4:], uint32(len(c.truth)))
	pos := truthHeaderBytes
	for _, h := range c.headers {
		binary.LittleEndian.PutUint32(buf[pos:], h.Index)
		pos += 4
	}
	for _, l := range c.truth {
		binary.LittleEndian.PutUint32(buf[pos:], uint32(l.TrackID))
		binary.LittleEndian.PutUint32(buf[pos+4:], uint32(l.EventID))
		binary.LittleEndian.PutUint16(buf[pos+8:], uint16(l.SourceID))
		if l.Fake {
			buf[pos+10] = 1
		}
		pos += labelBytes
	}
	return buf
}

// ConstMCTruthContainerView reads labels straight from a flattened buffer.
type ConstMCTruthContainerView struct {
	buf      []byte
	nHeaders int
	nLabels  int
}

// NewConstMCTruthContainerView validates buf. An empty buffer is a valid
// view without labels.
func NewConstMCTruthContainerView(buf []byte) (ConstMCTruthContainerView, error) {
	if len(buf) == 0 {
		return ConstMCTruthContainerView{}, nil
	}
	if len(buf) < truthHeaderBytes {
		return ConstMCTruthContainerView{}, fmt.Errorf("MC truth buffer too short: %d bytes", len(buf))
	}
	v := ConstMCTruthContainerView{
		buf:      buf,
		nHeaders: int(binary.LittleEndian.Uint32(buf[0:])),
		nLabels:  int(binary.LittleEndian.Uint32(buf[4:])),
	}
	expected := truthHeaderBytes + 4*v.nHeaders + labelBytes*v.nLabels
	if len(buf) != expected {
		return ConstMCTruthContainerView{}, fmt.Errorf("MC truth buffer size %d, expected %d", len(buf), expected)
	}
	prev := 0
	for i := 0; i < v.nHeaders; i++ {
		idx := v.headerIndex(i)
		if idx > v.nLabels || idx < prev {
			return ConstMCTruthContainerView{}, fmt.Errorf("corrupted MC truth header %d: index %d", i, idx)
		}
		prev = idx
	}
	return v, nil
}

func (v ConstMCTruthContainerView) IndexedSize() int {
	return v.nHeaders
}

func (v ConstMCTruthContainerView) NElements() int {
	return v.nLabels
}

func (v ConstMCTruthContainerView) headerIndex(i int) int {
	return int(binary.LittleEndian.Uint32(v.buf[truthHeaderBytes+4*i:]))
}

func (v ConstMCTruthContainerView) label(i int) MCCompLabel {
	pos := truthHeaderBytes + 4*v.nHeaders + labelBytes*i
	return MCCompLabel{
		TrackID:  int32(binary.LittleEndian.Uint32(v.buf[pos:])),
		EventID:  int32(binary.LittleEndian.Uint32(v.buf[pos+4:])),
		SourceID: int16(binary.LittleEndian.Uint16(v.buf[pos+8:])),
		Fake:     v.buf[pos+10] != 0,
	}
}

// Labels decodes the labels of dataIndex.
func (v ConstMCTruthContainerView) Labels(dataIndex int) []MCCompLabel {
	if dataIndex < 0 || dataIndex >= v.nHeaders {
		return nil
	}
	first := v.headerIndex(dataIndex)
	last := v.nLabels
	if dataIndex+1 < v.nHeaders {
		last = v.headerIndex(dataIndex + 1)
	}
	labels := make([]MCCompLabel, 0, last-first)
	for i := first; i < last; i++ {
		labels = append(labels, v.label(i))
	}
	return labels
}

// Copy expands the view into an owning container.
func (v ConstMCTruthContainerView) Copy() *MCTruthContainer {
	c := NewMCTruthContainer()
	for i := 0; i < v.nHeaders; i++ {
		c.headers = append(c.headers, MCTruthHeaderElement{Index: uint32(v.headerIndex(i))})
	}
	for i := 0; i < v.nLabels; i++ {
		c.truth = append(c.truth, v.label(i))
	}
	return c
}

// LabelSource is satisfied by both the container and its view.
type LabelSource interface {
	IndexedSize() int
	Labels(dataIndex int) []MCCompLabel
}

// Headers and Truth expose the raw arrays for persistence.
func (c *MCTruthContainer) Headers() []MCTruthHeaderElement {
	return c.headers
}

func (c *MCTruthContainer) Truth() []MCCompLabel {
	return c.truth
}

// MCTruthContainerFromParts rebuilds a container read back from storage.
func MCTruthContainerFromParts(headers []MCTruthHeaderElement, truth []MCCompLabel) (*MCTruthContainer, error) {
	for i, h := range headers {
		if int(h.Index) > len(truth) || (i > 0 && h.Index < headers[i-1].Index) {
			return nil, fmt.Errorf("corrupted MC truth header %d: index %d", i, h.Index)
		}
	}
	return &MCTruthContainer{headers: headers, truth: truth}, nil
}
