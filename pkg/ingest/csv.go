package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ColumnKind is the inferred storage type of a CSV column. Kinds form a
// promotion ladder: an all-empty column stays unknown, integers widen to
// floats, anything unparseable is a string.
type ColumnKind int

const (
	KindUnknown ColumnKind = iota
	KindInt64
	KindFloat64
	KindString
)

func (k ColumnKind) ClickHouseType() string {
	switch k {
	case KindInt64:
		return "Nullable(Int64)"
	case KindFloat64:
		return "Nullable(Float64)"
	default:
		return "Nullable(String)"
	}
}

// Column is one CSV column with its inferred kind, in header order.
type Column struct {
	Name string
	Kind ColumnKind
}

// InferSchema scans the whole CSV to type every column; a sample-based guess
// breaks on columns whose early rows are all empty. Returns the columns in
// header order and the data row count.
func InferSchema(r io.Reader) ([]Column, int, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, 0, fmt.Errorf("csv is empty")
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read csv header: %w", err)
	}

	cols := make([]Column, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, 0, fmt.Errorf("csv column %d has an empty name", i)
		}
		if strings.ContainsAny(name, "`\\\n") {
			return nil, 0, fmt.Errorf("csv column %q has unsupported characters", name)
		}
		cols[i] = Column{Name: name, Kind: KindUnknown}
	}

	rows := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read csv row %d: %w", rows+2, err)
		}
		rows++
		for i, cell := range rec {
			if cols[i].Kind == KindString {
				continue
			}
			cols[i].Kind = promote(cols[i].Kind, classify(cell))
		}
	}

	// Columns that never held a value load as strings.
	for i := range cols {
		if cols[i].Kind == KindUnknown {
			cols[i].Kind = KindString
		}
	}
	return cols, rows, nil
}

func classify(cell string) ColumnKind {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return KindUnknown
	}
	if _, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return KindInt64
	}
	if _, err := strconv.ParseFloat(cell, 64); err == nil {
		return KindFloat64
	}
	return KindString
}

func promote(a, b ColumnKind) ColumnKind {
	if b > a {
		return b
	}
	return a
}

// ParseValue converts one CSV cell into the batch value for its column
// kind. Empty cells become NULL; string cells are kept verbatim.
func ParseValue(kind ColumnKind, cell string) (any, error) {
	switch kind {
	case KindString:
		if cell == "" {
			return nil, nil
		}
		return cell, nil
	case KindInt64:
		cell = strings.TrimSpace(cell)
		if cell == "" {
			return nil, nil
		}
		v, err := strconv.ParseInt(cell, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %q as integer: %w", cell, err)
		}
		return v, nil
	case KindFloat64:
		cell = strings.TrimSpace(cell)
		if cell == "" {
			return nil, nil
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %q as float: %w", cell, err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("column kind %d cannot hold values", kind)
	}
}
