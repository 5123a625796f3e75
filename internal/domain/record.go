package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// FieldKind is the storage type of a payload field.
type FieldKind int

// Payload field kinds.
const (
	KindText FieldKind = iota
	KindInt
	KindBool
	KindDecimal
)

func (k FieldKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindDecimal:
		return "decimal"
	}
	return "unknown"
}

// Zero returns the value a missing field of this kind takes. Migrated and
// directly created records never carry nil payload values.
func (k FieldKind) Zero() any {
	switch k {
	case KindInt:
		return int64(0)
	case KindBool:
		return false
	case KindDecimal:
		return decimal.Zero
	default:
		return ""
	}
}

// Coerce converts a loosely typed value (JSON decoded, scanned, or copied
// from another stage) into this kind's Go type: string, int64, bool or
// decimal.Decimal. nil coerces to Zero.
func (k FieldKind) Coerce(v any) (any, error) {
	if v == nil {
		return k.Zero(), nil
	}
	switch k {
	case KindText:
		switch t := v.(type) {
		case string:
			return t, nil
		case decimal.Decimal:
			return t.String(), nil
		case json.Number:
			return t.String(), nil
		case int64, float64, bool:
			return fmt.Sprint(t), nil
		}
	case KindInt:
		switch t := v.(type) {
		case int64:
			return t, nil
		case int:
			return int64(t), nil
		case float64:
			if t == math.Trunc(t) {
				return int64(t), nil
			}
		case json.Number:
			if n, err := t.Int64(); err == nil {
				return n, nil
			}
		case string:
			if t == "" {
				return int64(0), nil
			}
			if n, err := strconv.ParseInt(t, 10, 64); err == nil {
				return n, nil
			}
		}
	case KindBool:
		switch t := v.(type) {
		case bool:
			return t, nil
		case int64:
			return t != 0, nil
		case float64:
			return t != 0, nil
		case string:
			if t == "" {
				return false, nil
			}
			if b, err := strconv.ParseBool(t); err == nil {
				return b, nil
			}
		}
	case KindDecimal:
		switch t := v.(type) {
		case decimal.Decimal:
			return t, nil
		case string:
			if t == "" {
				return decimal.Zero, nil
			}
			if d, err := decimal.NewFromString(t); err == nil {
				return d, nil
			}
		case json.Number:
			if d, err := decimal.NewFromString(t.String()); err == nil {
				return d, nil
			}
		case float64:
			return decimal.NewFromFloat(t), nil
		case int64:
			return decimal.NewFromInt(t), nil
		}
	}
	return nil, fmt.Errorf("%w: cannot use %v (%T) as %s", ErrInvalidField, v, v, k)
}

// Field describes one payload column of a stage table.
type Field struct {
	Name     string
	Kind     FieldKind
	Required bool
}

// Record is one row of a stage table.
type Record struct {
	ID         int64
	Stage      Stage
	Status     string
	Migrated   bool
	MigratedAt string
	SourceID   *int64
	Fields     map[string]any
	CreatedBy  int64
	UpdatedBy  int64
	CreatedAt  string
	UpdatedAt  string
}

// Text returns a text field, or "" when unset.
func (r *Record) Text(name string) string {
	s, _ := r.Fields[name].(string)
	return s
}

// Int returns an integer field, or 0 when unset.
func (r *Record) Int(name string) int64 {
	n, _ := r.Fields[name].(int64)
	return n
}

// Bool returns a boolean field, or false when unset.
func (r *Record) Bool(name string) bool {
	b, _ := r.Fields[name].(bool)
	return b
}

// Decimal returns a money field, or zero when unset.
func (r *Record) Decimal(name string) decimal.Decimal {
	d, ok := r.Fields[name].(decimal.Decimal)
	if !ok {
		return decimal.Zero
	}
	return d
}

// Patch is a partial update to a record. Nil Fields and empty Status leave
// the row unchanged.
type Patch struct {
	Fields map[string]any
	Status string
	Actor  int64
}

// ListOpts holds the parameters for listing stage records.
type ListOpts struct {
	Status string
	Limit  int
	After  int64
	// CancelledLimit bounds how many cancelled records ride along with a
	// default (unfiltered) listing. Zero hides them.
	CancelledLimit int
}

// RecordPage is a page of stage records.
type RecordPage struct {
	Results   []*Record
	Cancelled []*Record
	After     int64
	HasMore   bool
}
