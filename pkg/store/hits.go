package store

import (
	"errors"

	hdf5 "github.com/jmbenlloch/go-hdf5"

	"github.com/jmbenlloch/pixreco_go/pkg/simulation"
)

const hitsGroupName = "Hits"

// HitsWriter appends simulated events to /Hits/points and /Hits/events.
type HitsWriter struct {
	Filename    string
	file        *hdf5.File
	group       *hdf5.Group
	pointsTable *table[PointHDF5]
	eventsTable *table[EventHDF5]
}

func NewHitsWriter(filename string, compression int) (*HitsWriter, error) {
	w := &HitsWriter{Filename: filename}
	var err error
	if w.file, err = createFile(filename); err != nil {
		return nil, err
	}
	if w.group, err = createGroup(w.file, hitsGroupName); err != nil {
		return nil, w.abort(err)
	}
	if w.pointsTable, err = createTable[PointHDF5](w.group, "points", compression); err != nil {
		return nil, w.abort(err)
	}
	if w.eventsTable, err = createTable[EventHDF5](w.group, "events", compression); err != nil {
		return nil, w.abort(err)
	}
	return w, nil
}

func (w *HitsWriter) abort(err error) error {
	return errors.Join(err, w.Close())
}

func (w *HitsWriter) WriteEvent(ev simulation.Event) error {
	points := make([]PointHDF5, len(ev.Points))
	for i, p := range ev.Points {
		points[i] = pointToHDF5(p)
	}
	row := EventHDF5{
		event:      ev.ID,
		source:     ev.SourceID,
		time:       ev.Time,
		firstPoint: int64(w.pointsTable.rows),
		nPoints:    int32(len(points)),
	}
	if err := w.pointsTable.append(points); err != nil {
		return err
	}
	return w.eventsTable.append([]EventHDF5{row})
}

func (w *HitsWriter) NEvents() int {
	return w.eventsTable.rows
}

func (w *HitsWriter) Close() error {
	return closeAll([]closer{w.pointsTable, w.eventsTable}, []*hdf5.Group{w.group}, w.file)
}

// HitsReader reads the events of a hits file.
type HitsReader struct {
	Filename    string
	file        *hdf5.File
	group       *hdf5.Group
	pointsTable *table[PointHDF5]
	eventsTable *table[EventHDF5]
}

func OpenHitsFile(filename string) (*HitsReader, error) {
	r := &HitsReader{Filename: filename}
	var err error
	if r.file, err = openFile(filename); err != nil {
		return nil, err
	}
	if r.group, err = openGroup(r.file, hitsGroupName); err != nil {
		return nil, r.abort(err)
	}
	if r.pointsTable, err = openTable[PointHDF5](r.group, "points"); err != nil {
		return nil, r.abort(err)
	}
	if r.eventsTable, err = openTable[EventHDF5](r.group, "events"); err != nil {
		return nil, r.abort(err)
	}
	return r, nil
}

func (r *HitsReader) abort(err error) error {
	return errors.Join(err, r.Close())
}

func (r *HitsReader) NEvents() int {
	return r.eventsTable.rows
}

// ReadEvents returns up to n events starting at first.
func (r *HitsReader) ReadEvents(first, n int) ([]simulation.Event, error) {
	n = max(0, min(n, r.eventsTable.rows-first))
	rows, err := r.eventsTable.read(first, n)
	if err != nil {
		return nil, err
	}
	events := make([]simulation.Event, len(rows))
	for i, row := range rows {
		points, err := r.pointsTable.read(int(row.firstPoint), int(row.nPoints))
		if err != nil {
			return nil, err
		}
		ev := simulation.Event{ID: row.event, SourceID: row.source, Time: row.time}
		ev.Points = make([]simulation.Point, len(points))
		for j, p := range points {
			ev.Points[j] = pointFromHDF5(p)
		}
		events[i] = ev
	}
	return events, nil
}

func (r *HitsReader) Close() error {
	return closeAll([]closer{r.pointsTable, r.eventsTable}, []*hdf5.Group{r.group}, r.file)
}
