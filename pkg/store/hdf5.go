// Package store persists hits, digits and clusters in HDF5 files made of
// extendible, chunked and compressed tables.
package store

import (
	"errors"
	"fmt"

	hdf5 "github.com/jmbenlloch/go-hdf5"
)

const (
	chunkRows = 32768
	// STRLEN is the size of the fixed strings stored in tables.
	STRLEN = 32
)

// DefaultCompression is the deflate level of new tables.
const DefaultCompression = 4

func convertToHdf5String(s string) [STRLEN]byte {
	var byteArray [STRLEN]byte
	copy(byteArray[:], s)
	return byteArray
}

func convertFromHdf5String(b [STRLEN]byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}

func createFile(fname string) (*hdf5.File, error) {
	f, err := hdf5.CreateFile(fname, hdf5.F_ACC_TRUNC)
	if err != nil {
		return nil, &ErrOpenFile{Filename: fname, Err: err}
	}
	return f, nil
}

func openFile(fname string) (*hdf5.File, error) {
	f, err := hdf5.OpenFile(fname, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, &ErrOpenFile{Filename: fname, Err: err}
	}
	return f, nil
}

func createGroup(file *hdf5.File, groupName string) (*hdf5.Group, error) {
	g, err := file.CreateGroup(groupName)
	if err != nil {
		return nil, &ErrCreateGroup{GroupName: groupName, Err: err}
	}
	return g, nil
}

func openGroup(file *hdf5.File, groupName string) (*hdf5.Group, error) {
	g, err := file.OpenGroup(groupName)
	if err != nil {
		return nil, &ErrCreateGroup{GroupName: groupName, Err: err}
	}
	return g, nil
}

// table is an extendible one dimensional dataset of T rows.
type table[T any] struct {
	name string
	dset *hdf5.Dataset
	rows int
}

func createTable[T any](group *hdf5.Group, name string, compression int) (*table[T], error) {
	dims := []uint{0}
	unlimitedDims := -1 // H5S_UNLIMITED is -1L
	maxDims := []uint{uint(unlimitedDims)}
	fileSpace, err := hdf5.CreateSimpleDataspace(dims, maxDims)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	defer fileSpace.Close()

	plist, err := hdf5.NewPropList(hdf5.P_DATASET_CREATE)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	defer plist.Close()
	if err := plist.SetChunk([]uint{chunkRows}); err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	if compression > 0 {
		if err := plist.SetDeflate(compression); err != nil {
			return nil, &ErrCreateTable{TableName: name, Err: err}
		}
	}

	var row T
	dtype, err := hdf5.NewDatatypeFromValue(row)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	defer dtype.Close()

	dset, err := group.CreateDatasetWith(name, dtype, fileSpace, plist)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	return &table[T]{name: name, dset: dset}, nil
}

func openTable[T any](group *hdf5.Group, name string) (*table[T], error) {
	dset, err := group.OpenDataset(name)
	if err != nil {
		return nil, &ErrReadDataset{TableName: name, Err: err}
	}
	space := dset.Space()
	defer space.Close()
	dims, _, err := space.SimpleExtentDims()
	if err != nil {
		return nil, errors.Join(&ErrReadDataset{TableName: name, Err: err}, dset.Close())
	}
	rows := 0
	if len(dims) > 0 {
		rows = int(dims[0])
	}
	return &table[T]{name: name, dset: dset, rows: rows}, nil
}

// append extends the table with data.
func (t *table[T]) append(data []T) error {
	if len(data) == 0 {
		return nil
	}
	length := uint(len(data))
	dataspace, err := hdf5.CreateSimpleDataspace([]uint{length}, nil)
	if err != nil {
		return fmt.Errorf("table %s: %w", t.name, err)
	}
	defer dataspace.Close()

	rowsInFile := uint(t.rows)
	if err := t.dset.Resize([]uint{rowsInFile + length}); err != nil {
		return fmt.Errorf("table %s: resize: %w", t.name, err)
	}
	filespace := t.dset.Space()
	defer filespace.Close()

	if err := filespace.SelectHyperslab([]uint{rowsInFile}, nil, []uint{length}, nil); err != nil {
		return fmt.Errorf("table %s: %w", t.name, err)
	}
	if err := t.dset.WriteSubset(&data, dataspace, filespace); err != nil {
		return fmt.Errorf("table %s: write: %w", t.name, err)
	}
	t.rows += len(data)
	return nil
}

// read returns count rows starting at start.
func (t *table[T]) read(start, count int) ([]T, error) {
	if start < 0 || count < 0 || start+count > t.rows {
		return nil, &ErrReadDataset{TableName: t.name, Err: fmt.Errorf("rows [%d, %d) outside %d rows", start, start+count, t.rows)}
	}
	if count == 0 {
		return nil, nil
	}
	memspace, err := hdf5.CreateSimpleDataspace([]uint{uint(count)}, nil)
	if err != nil {
		return nil, &ErrReadDataset{TableName: t.name, Err: err}
	}
	defer memspace.Close()
	filespace := t.dset.Space()
	defer filespace.Close()
	if err := filespace.SelectHyperslab([]uint{uint(start)}, nil, []uint{uint(count)}, nil); err != nil {
		return nil, &ErrReadDataset{TableName: t.name, Err: err}
	}

	data := make([]T, count)
	if err := t.dset.ReadSubset(&data, memspace, filespace); err != nil {
		return nil, &ErrReadDataset{TableName: t.name, Err: err}
	}
	return data, nil
}

func (t *table[T]) readAll() ([]T, error) {
	return t.read(0, t.rows)
}

func (t *table[T]) close() error {
	if t == nil || t.dset == nil {
		return nil
	}
	if err := t.dset.Close(); err != nil {
		return fmt.Errorf("error closing table %s: %w", t.name, err)
	}
	return nil
}

type closer interface {
	close() error
}

// closeAll closes tables, groups and the file, in this order.
func closeAll(tables []closer, groups []*hdf5.Group, file *hdf5.File) error {
	var errs []error
	for _, t := range tables {
		if err := t.close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, g := range groups {
		if g == nil {
			continue
		}
		if err := g.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing group: %w", err))
		}
	}
	if file != nil {
		if err := file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing file: %w", err))
		}
	}
	return errors.Join(errs...)
}
