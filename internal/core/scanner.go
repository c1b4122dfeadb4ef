package core

import (
	"database/sql"
	"fmt"
	"reflect"
	"sync"
)

// scanner handles reflection-based scanning of SQL rows into structs.
// Columns map to fields by exact name: the db:"" tag when present,
// otherwise the Go field name. A column without a field is an error.
type scanner struct {
	mu    sync.RWMutex
	cache map[reflect.Type]*structInfo
}

// structInfo contains cached metadata about a struct type.
type structInfo struct {
	fields map[string]*fieldInfo
}

// fieldInfo describes how to scan into a struct field.
type fieldInfo struct {
	index  []int  // field index path for embedded structs
	dbName string // column name from db:"" tag or field name
}

func newScanner() *scanner {
	return &scanner{
		cache: make(map[reflect.Type]*structInfo),
	}
}

// globalScanner is the global scanner instance.
var globalScanner = newScanner()

// getStructInfo returns cached struct metadata or builds it.
func (s *scanner) getStructInfo(typ reflect.Type) (*structInfo, error) {
	s.mu.RLock()
	info, ok := s.cache[typ]
	s.mu.RUnlock()

	if ok {
		return info, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if info, ok := s.cache[typ]; ok {
		return info, nil
	}

	info = &structInfo{fields: make(map[string]*fieldInfo)}
	if err := s.buildStructInfo(info, typ, nil); err != nil {
		return nil, err
	}

	s.cache[typ] = info
	return info, nil
}

// buildStructInfo collects the mapped fields of typ, flattening embedded structs.
// An outer field shadows an embedded one with the same column name.
func (s *scanner) buildStructInfo(info *structInfo, typ reflect.Type, index []int) error {
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}

	if typ.Kind() != reflect.Struct {
		return fmt.Errorf("scanner: expected struct, got %s", typ.Kind())
	}

	var embedded []reflect.StructField
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}

		fieldIndex := append(append([]int{}, index...), i)

		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			if _, tagged := field.Tag.Lookup("db"); !tagged {
				embedded = append(embedded, field)
				continue
			}
		}

		dbName := field.Name
		if tag, ok := field.Tag.Lookup("db"); ok {
			if tag == "-" {
				continue
			}
			dbName = tag
		}

		info.fields[dbName] = &fieldInfo{index: fieldIndex, dbName: dbName}
	}

	for _, field := range embedded {
		nested := &structInfo{fields: make(map[string]*fieldInfo)}
		if err := s.buildStructInfo(nested, field.Type, append(append([]int{}, index...), field.Index...)); err != nil {
			return err
		}
		for name, f := range nested.fields {
			if _, exists := info.fields[name]; !exists {
				info.fields[name] = f
			}
		}
	}

	return nil
}

// destinations returns scan targets for columns inside elem.
func (info *structInfo) destinations(elem reflect.Value, columns []string) ([]any, error) {
	dests := make([]any, len(columns))
	for i, col := range columns {
		f, ok := info.fields[col]
		if !ok {
			return nil, fmt.Errorf("%w: %q in %s", ErrUnmappedColumn, col, elem.Type())
		}
		fv := elem
		for _, idx := range f.index {
			fv = fv.Field(idx)
		}
		dests[i] = fv.Addr().Interface()
	}
	return dests, nil
}

// scanStruct scans the current row into dest, a pointer to struct.
func (s *scanner) scanStruct(rows *sql.Rows, dest any) error {
	destValue := reflect.ValueOf(dest)
	if destValue.Kind() != reflect.Ptr || destValue.IsNil() {
		return fmt.Errorf("scanner: dest must be pointer to struct, got %T", dest)
	}

	destValue = destValue.Elem()
	if destValue.Kind() != reflect.Struct {
		return fmt.Errorf("scanner: dest must be pointer to struct, got pointer to %s", destValue.Kind())
	}

	info, err := s.getStructInfo(destValue.Type())
	if err != nil {
		return err
	}

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("scanner: failed to get columns: %w", err)
	}

	dests, err := info.destinations(destValue, columns)
	if err != nil {
		return err
	}

	if err := rows.Scan(dests...); err != nil {
		return fmt.Errorf("scanner: scan failed: %w", err)
	}
	return nil
}

// structAppender prepares dest, a pointer to a slice of structs or struct
// pointers, and returns a function that scans the current row onto a new element.
func (s *scanner) structAppender(rows *sql.Rows, dest any) (func() error, error) {
	destValue := reflect.ValueOf(dest)
	if destValue.Kind() != reflect.Ptr || destValue.IsNil() {
		return nil, fmt.Errorf("scanner: dest must be pointer to slice, got %T", dest)
	}

	sliceValue := destValue.Elem()
	if sliceValue.Kind() != reflect.Slice {
		return nil, fmt.Errorf("scanner: dest must be pointer to slice, got pointer to %s", sliceValue.Kind())
	}

	elemType := sliceValue.Type().Elem()
	isPtr := elemType.Kind() == reflect.Ptr
	if isPtr {
		elemType = elemType.Elem()
	}

	if elemType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("scanner: slice element must be struct or *struct, got %s", elemType.Kind())
	}

	info, err := s.getStructInfo(elemType)
	if err != nil {
		return nil, err
	}

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("scanner: failed to get columns: %w", err)
	}

	// Reset so a reused destination does not keep rows from a previous call.
	sliceValue.Set(reflect.MakeSlice(sliceValue.Type(), 0, 0))

	return func() error {
		elemValue := reflect.New(elemType).Elem()
		dests, err := info.destinations(elemValue, columns)
		if err != nil {
			return err
		}
		if err := rows.Scan(dests...); err != nil {
			return fmt.Errorf("scanner: scan failed: %w", err)
		}
		if isPtr {
			sliceValue.Set(reflect.Append(sliceValue, elemValue.Addr()))
		} else {
			sliceValue.Set(reflect.Append(sliceValue, elemValue))
		}
		return nil
	}, nil
}

// scanValues scans the current row into positional values.
func scanValues(rows *sql.Rows, n int) ([]any, error) {
	values := make([]any, n)
	dests := make([]any, n)
	for i := range values {
		dests[i] = &values[i]
	}

	if err := rows.Scan(dests...); err != nil {
		return nil, fmt.Errorf("scanner: scan failed: %w", err)
	}
	for i, v := range values {
		values[i] = normalizeValue(v)
	}
	return values, nil
}

// scanMap scans the current row into a Row keyed by column name.
func scanMap(rows *sql.Rows, columns []string) (Row, error) {
	values, err := scanValues(rows, len(columns))
	if err != nil {
		return nil, err
	}
	row := make(Row, len(columns))
	for i, col := range columns {
		row[col] = values[i]
	}
	return row, nil
}

// normalizeValue converts driver byte slices to strings.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// resetSlice empties the slice dest points to. Other values are left alone.
func resetSlice(dest any) {
	v := reflect.ValueOf(dest)
	if v.Kind() == reflect.Ptr && !v.IsNil() && v.Elem().Kind() == reflect.Slice {
		v.Elem().Set(reflect.MakeSlice(v.Elem().Type(), 0, 0))
	}
}
