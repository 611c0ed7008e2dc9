package store

import (
	"reflect"
	"strings"

	hdf5 "github.com/jmbenlloch/go-hdf5"
)

const parametersTableName = "parameters"

// parameterEntries flattens the numeric and boolean fields of a struct
// into name/value rows. The name comes from the hdf5 tag, then the json
// tag, then the field name.
func parameterEntries(params any) []ParameterHDF5 {
	v := reflect.Indirect(reflect.ValueOf(params))
	if v.Kind() != reflect.Struct {
		return nil
	}
	t := v.Type()
	var entries []ParameterHDF5
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		paramName := f.Tag.Get("hdf5")
		if paramName == "" {
			paramName, _, _ = strings.Cut(f.Tag.Get("json"), ",")
		}
		if paramName == "" {
			paramName = f.Name
		}

		var value float64
		field := v.Field(i)
		switch field.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			value = float64(field.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			value = float64(field.Uint())
		case reflect.Float32, reflect.Float64:
			value = field.Float()
		case reflect.Bool:
			if field.Bool() {
				value = 1
			}
		default:
			continue
		}
		entries = append(entries, ParameterHDF5{name: convertToHdf5String(paramName), value: value})
	}
	return entries
}

func writeParameters(group *hdf5.Group, existing *table[ParameterHDF5], params any) (*table[ParameterHDF5], error) {
	if existing == nil {
		var err error
		if existing, err = createTable[ParameterHDF5](group, parametersTableName, 0); err != nil {
			return nil, err
		}
	}
	return existing, existing.append(parameterEntries(params))
}

func readParameters(group *hdf5.Group) (map[string]float64, error) {
	t, err := openTable[ParameterHDF5](group, parametersTableName)
	if err != nil {
		return nil, err
	}
	defer t.close()
	rows, err := t.readAll()
	if err != nil {
		return nil, err
	}
	params := make(map[string]float64, len(rows))
	for _, row := range rows {
		params[convertFromHdf5String(row.name)] = row.value
	}
	return params, nil
}

// WriteParameters records the numeric settings used to produce the file.
func (w *DigitsWriter) WriteParameters(params any) error {
	var err error
	w.params, err = writeParameters(w.group, w.params, params)
	return err
}

func (w *ClustersWriter) WriteParameters(params any) error {
	var err error
	w.params, err = writeParameters(w.group, w.params, params)
	return err
}

func (r *DigitsReader) Parameters() (map[string]float64, error) {
	return readParameters(r.group)
}

func (r *ClustersReader) Parameters() (map[string]float64, error) {
	return readParameters(r.group)
}
