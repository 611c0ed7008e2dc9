package clustering

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/jmbenlloch/pixreco_go/pkg/dataformats"
)

var ErrReaderNotInitialized = errors.New("pixel reader not initialized")

// PixelData is a fired pixel with the index of its digit.
type PixelData struct {
	Row     uint16
	Col     uint16
	DigitID int32
}

// ChipPixelData holds the pixels of one chip in one readout frame, sorted
// by column then row.
type ChipPixelData struct {
	ChipID  uint16
	ROFrame int64
	BCData  dataformats.InteractionRecord
	Pixels  []PixelData
}

// DigitPixelReader serves digits frame by frame and chip by chip.
type DigitPixelReader struct {
	digits      []dataformats.Digit
	rofs        []dataformats.ROFRecord
	mc2rofs     []dataformats.MC2ROFRecord
	labels      dataformats.LabelSource
	initialized bool
	next        int
}

func (r *DigitPixelReader) SetDigits(digits []dataformats.Digit) {
	r.digits = digits
	r.initialized = false
}

func (r *DigitPixelReader) SetROFRecords(rofs []dataformats.ROFRecord) {
	r.rofs = rofs
	r.initialized = false
}

func (r *DigitPixelReader) SetMC2ROFRecords(mc2rofs []dataformats.MC2ROFRecord) {
	r.mc2rofs = mc2rofs
}

// SetDigitsMCTruth sets the digit labels, nil disables them.
func (r *DigitPixelReader) SetDigitsMCTruth(labels dataformats.LabelSource) {
	r.labels = labels
}

func (r *DigitPixelReader) DigitsMCTruth() dataformats.LabelSource {
	return r.labels
}

func (r *DigitPixelReader) MC2ROFRecords() []dataformats.MC2ROFRecord {
	return r.mc2rofs
}

// Init checks that every frame addresses existing digits and rewinds the
// reader.
func (r *DigitPixelReader) Init() error {
	for i, rof := range r.rofs {
		first, last := rof.EntriesRange()
		if first < 0 || rof.NEntries < 0 || last > len(r.digits) {
			return fmt.Errorf("ROF %d entries [%d, %d) outside %d digits", i, first, last, len(r.digits))
		}
	}
	r.initialized = true
	r.next = 0
	return nil
}

func (r *DigitPixelReader) NROFs() int {
	return len(r.rofs)
}

func (r *DigitPixelReader) NDigits() int {
	return len(r.digits)
}

// ReadROF returns the frame record and its chips, sorted by chip ID.
func (r *DigitPixelReader) ReadROF(i int) (dataformats.ROFRecord, []ChipPixelData, error) {
	if !r.initialized {
		return dataformats.ROFRecord{}, nil, ErrReaderNotInitialized
	}
	if i < 0 || i >= len(r.rofs) {
		return dataformats.ROFRecord{}, nil, fmt.Errorf("ROF %d outside %d frames", i, len(r.rofs))
	}
	rof := r.rofs[i]
	first, last := rof.EntriesRange()

	ids := make([]int32, 0, last-first)
	for id := first; id < last; id++ {
		ids = append(ids, int32(id))
	}
	slices.SortStableFunc(ids, func(a, b int32) int {
		da, db := r.digits[a], r.digits[b]
		return cmp.Or(
			cmp.Compare(da.ChipIndex, db.ChipIndex),
			cmp.Compare(da.Col, db.Col),
			cmp.Compare(da.Row, db.Row),
		)
	})

	var chips []ChipPixelData
	for _, id := range ids {
		d := r.digits[id]
		if len(chips) == 0 || chips[len(chips)-1].ChipID != d.ChipIndex {
			chips = append(chips, ChipPixelData{
				ChipID:  d.ChipIndex,
				ROFrame: rof.ROFrame,
				BCData:  rof.BCData,
			})
		}
		chip := &chips[len(chips)-1]
		chip.Pixels = append(chip.Pixels, PixelData{Row: d.Row, Col: d.Col, DigitID: id})
	}
	return rof, chips, nil
}

// Next returns the next frame, ok is false at the end.
func (r *DigitPixelReader) Next() (dataformats.ROFRecord, []ChipPixelData, bool, error) {
	if r.next >= len(r.rofs) {
		return dataformats.ROFRecord{}, nil, false, nil
	}
	rof, chips, err := r.ReadROF(r.next)
	if err != nil {
		return rof, nil, false, err
	}
	r.next++
	return rof, chips, true, nil
}
