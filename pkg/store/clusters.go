package store

import (
	"errors"

	hdf5 "github.com/jmbenlloch/go-hdf5"

	"github.com/jmbenlloch/pixreco_go/pkg/dataformats"
)

const clustersGroupName = "Clusters"

// ClustersTimeframe is the clusterer output of one timeframe.
type ClustersTimeframe struct {
	Clusters []dataformats.CompClusterExt
	Patterns []byte
	ROFs     []dataformats.ROFRecord
	MC2ROFs  []dataformats.MC2ROFRecord
	Labels   *dataformats.MCTruthContainer
}

type ClustersWriter struct {
	Filename      string
	file          *hdf5.File
	group         *hdf5.Group
	clustersTable *table[CompClusterHDF5]
	patternsTable *table[PatternByteHDF5]
	frames        frameTables
	params        *table[ParameterHDF5]
}

func NewClustersWriter(filename string, compression int) (*ClustersWriter, error) {
	w := &ClustersWriter{Filename: filename}
	var err error
	if w.file, err = createFile(filename); err != nil {
		return nil, err
	}
	if w.group, err = createGroup(w.file, clustersGroupName); err != nil {
		return nil, w.abort(err)
	}
	if w.clustersTable, err = createTable[CompClusterHDF5](w.group, "compclusters", compression); err != nil {
		return nil, w.abort(err)
	}
	if w.patternsTable, err = createTable[PatternByteHDF5](w.group, "patterns", compression); err != nil {
		return nil, w.abort(err)
	}
	if w.frames, err = createFrameTables(w.group, compression); err != nil {
		return nil, w.abort(err)
	}
	return w, nil
}

func (w *ClustersWriter) abort(err error) error {
	return errors.Join(err, w.Close())
}

func (w *ClustersWriter) WriteTimeframe(tf ClustersTimeframe) error {
	row := TimeframeHDF5{
		timeframe:    int32(w.frames.timeframes.rows),
		firstData:    int64(w.clustersTable.rows),
		nData:        int64(len(tf.Clusters)),
		firstPattern: int64(w.patternsTable.rows),
		nPatterns:    int64(len(tf.Patterns)),
	}
	if err := w.clustersTable.append(clustersToHDF5(tf.Clusters)); err != nil {
		return err
	}
	if err := w.patternsTable.append(patternsToHDF5(tf.Patterns)); err != nil {
		return err
	}
	if err := w.frames.appendFrames(&row, tf.ROFs, tf.MC2ROFs, tf.Labels); err != nil {
		return err
	}
	return w.frames.timeframes.append([]TimeframeHDF5{row})
}

func (w *ClustersWriter) NTimeframes() int {
	return w.frames.nTimeframes()
}

func (w *ClustersWriter) Close() error {
	tables := append([]closer{w.params, w.clustersTable, w.patternsTable}, w.frames.closers()...)
	return closeAll(tables, []*hdf5.Group{w.group}, w.file)
}

type ClustersReader struct {
	Filename      string
	file          *hdf5.File
	group         *hdf5.Group
	clustersTable *table[CompClusterHDF5]
	patternsTable *table[PatternByteHDF5]
	frames        frameTables
}

func OpenClustersFile(filename string) (*ClustersReader, error) {
	r := &ClustersReader{Filename: filename}
	var err error
	if r.file, err = openFile(filename); err != nil {
		return nil, err
	}
	if r.group, err = openGroup(r.file, clustersGroupName); err != nil {
		return nil, r.abort(err)
	}
	if r.clustersTable, err = openTable[CompClusterHDF5](r.group, "compclusters"); err != nil {
		return nil, r.abort(err)
	}
	if r.patternsTable, err = openTable[PatternByteHDF5](r.group, "patterns"); err != nil {
		return nil, r.abort(err)
	}
	if r.frames, err = openFrameTables(r.group); err != nil {
		return nil, r.abort(err)
	}
	return r, nil
}

func (r *ClustersReader) abort(err error) error {
	return errors.Join(err, r.Close())
}

func (r *ClustersReader) NTimeframes() int {
	return r.frames.nTimeframes()
}

func (r *ClustersReader) ReadTimeframe(i int) (ClustersTimeframe, error) {
	row, err := r.frames.timeframe(i)
	if err != nil {
		return ClustersTimeframe{}, err
	}
	clusterRows, err := r.clustersTable.read(int(row.firstData), int(row.nData))
	if err != nil {
		return ClustersTimeframe{}, err
	}
	patternRows, err := r.patternsTable.read(int(row.firstPattern), int(row.nPatterns))
	if err != nil {
		return ClustersTimeframe{}, err
	}
	rofs, mc2rofs, labels, err := r.frames.readFrames(row)
	if err != nil {
		return ClustersTimeframe{}, err
	}
	return ClustersTimeframe{
		Clusters: clustersFromHDF5(clusterRows),
		Patterns: patternsFromHDF5(patternRows),
		ROFs:     rofs,
		MC2ROFs:  mc2rofs,
		Labels:   labels,
	}, nil
}

func (r *ClustersReader) Close() error {
	tables := append([]closer{r.clustersTable, r.patternsTable}, r.frames.closers()...)
	return closeAll(tables, []*hdf5.Group{r.group}, r.file)
}
