package store

import (
	"errors"

	hdf5 "github.com/jmbenlloch/go-hdf5"

	"github.com/jmbenlloch/pixreco_go/pkg/dataformats"
)

const digitsGroupName = "Digits"

// DigitsTimeframe is the digitizer output of one timeframe. Labels and
// MC2ROFs are empty for real data.
type DigitsTimeframe struct {
	Digits  []dataformats.Digit
	ROFs    []dataformats.ROFRecord
	MC2ROFs []dataformats.MC2ROFRecord
	Labels  *dataformats.MCTruthContainer
}

type DigitsWriter struct {
	Filename    string
	file        *hdf5.File
	group       *hdf5.Group
	digitsTable *table[DigitHDF5]
	frames      frameTables
	params      *table[ParameterHDF5]
}

func NewDigitsWriter(filename string, compression int) (*DigitsWriter, error) {
	w := &DigitsWriter{Filename: filename}
	var err error
	if w.file, err = createFile(filename); err != nil {
		return nil, err
	}
	if w.group, err = createGroup(w.file, digitsGroupName); err != nil {
		return nil, w.abort(err)
	}
	if w.digitsTable, err = createTable[DigitHDF5](w.group, "digits", compression); err != nil {
		return nil, w.abort(err)
	}
	if w.frames, err = createFrameTables(w.group, compression); err != nil {
		return nil, w.abort(err)
	}
	return w, nil
}

func (w *DigitsWriter) abort(err error) error {
	return errors.Join(err, w.Close())
}

func (w *DigitsWriter) WriteTimeframe(tf DigitsTimeframe) error {
	row := TimeframeHDF5{
		timeframe: int32(w.frames.timeframes.rows),
		firstData: int64(w.digitsTable.rows),
		nData:     int64(len(tf.Digits)),
	}
	if err := w.digitsTable.append(digitsToHDF5(tf.Digits)); err != nil {
		return err
	}
	if err := w.frames.appendFrames(&row, tf.ROFs, tf.MC2ROFs, tf.Labels); err != nil {
		return err
	}
	return w.frames.timeframes.append([]TimeframeHDF5{row})
}

func (w *DigitsWriter) NTimeframes() int {
	return w.frames.nTimeframes()
}

func (w *DigitsWriter) Close() error {
	tables := append([]closer{w.params, w.digitsTable}, w.frames.closers()...)
	return closeAll(tables, []*hdf5.Group{w.group}, w.file)
}

type DigitsReader struct {
	Filename    string
	file        *hdf5.File
	group       *hdf5.Group
	digitsTable *table[DigitHDF5]
	frames      frameTables
}

func OpenDigitsFile(filename string) (*DigitsReader, error) {
	r := &DigitsReader{Filename: filename}
	var err error
	if r.file, err = openFile(filename); err != nil {
		return nil, err
	}
	if r.group, err = openGroup(r.file, digitsGroupName); err != nil {
		return nil, r.abort(err)
	}
	if r.digitsTable, err = openTable[DigitHDF5](r.group, "digits"); err != nil {
		return nil, r.abort(err)
	}
	if r.frames, err = openFrameTables(r.group); err != nil {
		return nil, r.abort(err)
	}
	return r, nil
}

func (r *DigitsReader) abort(err error) error {
	return errors.Join(err, r.Close())
}

func (r *DigitsReader) NTimeframes() int {
	return r.frames.nTimeframes()
}

func (r *DigitsReader) ReadTimeframe(i int) (DigitsTimeframe, error) {
	row, err := r.frames.timeframe(i)
	if err != nil {
		return DigitsTimeframe{}, err
	}
	digitRows, err := r.digitsTable.read(int(row.firstData), int(row.nData))
	if err != nil {
		return DigitsTimeframe{}, err
	}
	rofs, mc2rofs, labels, err := r.frames.readFrames(row)
	if err != nil {
		return DigitsTimeframe{}, err
	}
	return DigitsTimeframe{
		Digits:  digitsFromHDF5(digitRows),
		ROFs:    rofs,
		MC2ROFs: mc2rofs,
		Labels:  labels,
	}, nil
}

func (r *DigitsReader) Close() error {
	tables := append([]closer{r.digitsTable}, r.frames.closers()...)
	return closeAll(tables, []*hdf5.Group{r.group}, r.file)
}
