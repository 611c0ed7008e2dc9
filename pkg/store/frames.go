package store

import (
	"fmt"

	hdf5 "github.com/jmbenlloch/go-hdf5"

	"github.com/jmbenlloch/pixreco_go/pkg/dataformats"
)

// frameTables are the tables shared by digits and clusters files: readout
// frames, MC bookkeeping and the timeframe index.
type frameTables struct {
	rofs       *table[ROFHDF5]
	mc2rofs    *table[MC2ROFHDF5]
	labelIndex *table[LabelIndexHDF5]
	labels     *table[LabelHDF5]
	timeframes *table[TimeframeHDF5]
}

func createFrameTables(group *hdf5.Group, compression int) (frameTables, error) {
	var t frameTables
	var err error
	if t.rofs, err = createTable[ROFHDF5](group, "rofs", compression); err != nil {
		return t, err
	}
	if t.mc2rofs, err = createTable[MC2ROFHDF5](group, "mc2rofs", compression); err != nil {
		return t, err
	}
	if t.labelIndex, err = createTable[LabelIndexHDF5](group, "labelIndex", compression); err != nil {
		return t, err
	}
	if t.labels, err = createTable[LabelHDF5](group, "labels", compression); err != nil {
		return t, err
	}
	t.timeframes, err = createTable[TimeframeHDF5](group, "timeframes", compression)
	return t, err
}

func openFrameTables(group *hdf5.Group) (frameTables, error) {
	var t frameTables
	var err error
	if t.rofs, err = openTable[ROFHDF5](group, "rofs"); err != nil {
		return t, err
	}
	if t.mc2rofs, err = openTable[MC2ROFHDF5](group, "mc2rofs"); err != nil {
		return t, err
	}
	if t.labelIndex, err = openTable[LabelIndexHDF5](group, "labelIndex"); err != nil {
		return t, err
	}
	if t.labels, err = openTable[LabelHDF5](group, "labels"); err != nil {
		return t, err
	}
	t.timeframes, err = openTable[TimeframeHDF5](group, "timeframes")
	return t, err
}

func (t frameTables) closers() []closer {
	return []closer{t.rofs, t.mc2rofs, t.labelIndex, t.labels, t.timeframes}
}

// appendFrames writes the frame records and labels of one timeframe and
// fills the matching fields of the index row. Label header indices are
// relative to the timeframe.
func (t frameTables) appendFrames(row *TimeframeHDF5, rofs []dataformats.ROFRecord,
	mc2rofs []dataformats.MC2ROFRecord, labels *dataformats.MCTruthContainer) error {

	row.firstROF, row.nROFs = int64(t.rofs.rows), int64(len(rofs))
	if err := t.rofs.append(rofsToHDF5(rofs)); err != nil {
		return err
	}
	row.firstMC2ROF, row.nMC2ROFs = int64(t.mc2rofs.rows), int64(len(mc2rofs))
	if err := t.mc2rofs.append(mc2rofsToHDF5(mc2rofs)); err != nil {
		return err
	}
	row.firstHeader, row.firstLabel = int64(t.labelIndex.rows), int64(t.labels.rows)
	if labels == nil {
		return nil
	}
	headers, truth := labels.Headers(), labels.Truth()
	row.nHeaders, row.nLabels = int64(len(headers)), int64(len(truth))
	if err := t.labelIndex.append(headersToHDF5(headers)); err != nil {
		return err
	}
	return t.labels.append(labelsToHDF5(truth))
}

func (t frameTables) nTimeframes() int {
	return t.timeframes.rows
}

func (t frameTables) timeframe(i int) (TimeframeHDF5, error) {
	rows, err := t.timeframes.read(i, 1)
	if err != nil {
		return TimeframeHDF5{}, fmt.Errorf("timeframe %d: %w", i, err)
	}
	return rows[0], nil
}

// readFrames returns the records of a timeframe. Labels is nil when the
// timeframe was written without them.
func (t frameTables) readFrames(row TimeframeHDF5) ([]dataformats.ROFRecord, []dataformats.MC2ROFRecord, *dataformats.MCTruthContainer, error) {
	rofRows, err := t.rofs.read(int(row.firstROF), int(row.nROFs))
	if err != nil {
		return nil, nil, nil, err
	}
	mc2rofRows, err := t.mc2rofs.read(int(row.firstMC2ROF), int(row.nMC2ROFs))
	if err != nil {
		return nil, nil, nil, err
	}
	rofs, mc2rofs := rofsFromHDF5(rofRows), mc2rofsFromHDF5(mc2rofRows)
	if row.nHeaders == 0 {
		return rofs, mc2rofs, nil, nil
	}

	headerRows, err := t.labelIndex.read(int(row.firstHeader), int(row.nHeaders))
	if err != nil {
		return nil, nil, nil, err
	}
	labelRows, err := t.labels.read(int(row.firstLabel), int(row.nLabels))
	if err != nil {
		return nil, nil, nil, err
	}
	labels, err := dataformats.MCTruthContainerFromParts(headersFromHDF5(headerRows), labelsFromHDF5(labelRows))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("timeframe %d labels: %w", row.timeframe, err)
	}
	return rofs, mc2rofs, labels, nil
}
