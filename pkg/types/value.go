package types

import (
	"bytes"
	"fmt"
	"strings"
)

// DataType identifies the storage type of a column.
type DataType string

const (
	TypeBoolean   DataType = "boolean"
	TypeBigint    DataType = "bigint"
	TypeCounter   DataType = "counter"
	TypeText      DataType = "text"
	TypeBlob      DataType = "blob"
	TypeTimestamp DataType = "timestamp"
	TypeList      DataType = "list"
	TypeSet       DataType = "set"
	TypeMap       DataType = "map"
)

// IsCollection reports whether the type is a multi-valued collection.
func (t DataType) IsCollection() bool {
	return t == TypeList || t == TypeSet || t == TypeMap
}

// MapEntry is one key/value pair of a map value. Entries are kept in
// insertion order; duplicate keys are resolved last-write-wins on merge.
type MapEntry struct {
	Key   Value `json:"key"`
	Value Value `json:"value"`
}

// Value is a typed cell value. It is a closed tagged variant: exactly one
// of the payload fields is meaningful, selected by Type, unless IsNull is
// set. Values are immutable by convention; callers must not mutate the
// collection payloads of a Value they did not build.
type Value struct {
	Type   DataType   `json:"type"`
	IsNull bool       `json:"null,omitempty"`
	Int    int64      `json:"int,omitempty"`
	Text   string     `json:"text,omitempty"`
	Blob   []byte     `json:"blob,omitempty"`
	Bool   bool       `json:"bool,omitempty"`
	List   []Value    `json:"list,omitempty"`
	Map    []MapEntry `json:"map,omitempty"`
}

// Null returns the null value for the given type.
func Null(t DataType) Value { return Value{Type: t, IsNull: true} }

// NewBool returns a boolean value.
func NewBool(b bool) Value { return Value{Type: TypeBoolean, Bool: b} }

// NewBigint returns a bigint value.
func NewBigint(v int64) Value { return Value{Type: TypeBigint, Int: v} }

// NewCounter returns a counter delta value.
func NewCounter(delta int64) Value { return Value{Type: TypeCounter, Int: delta} }

// NewText returns a text value.
func NewText(s string) Value { return Value{Type: TypeText, Text: s} }

// NewBlob returns a blob value.
func NewBlob(b []byte) Value { return Value{Type: TypeBlob, Blob: b} }

// NewTimestamp returns a timestamp value (microseconds since epoch).
func NewTimestamp(micros int64) Value { return Value{Type: TypeTimestamp, Int: micros} }

// NewList returns a list value.
func NewList(elems ...Value) Value { return Value{Type: TypeList, List: elems} }

// NewSet returns a set value. Element uniqueness is enforced on merge,
// not on construction.
func NewSet(elems ...Value) Value { return Value{Type: TypeSet, List: elems} }

// NewMap returns a map value.
func NewMap(entries ...MapEntry) Value { return Value{Type: TypeMap, Map: entries} }

// Equal reports whether two values are equal. Nulls compare equal only to
// nulls of any type; a null never equals a non-null.
func (v Value) Equal(o Value) bool {
	if v.IsNull || o.IsNull {
		return v.IsNull == o.IsNull
	}
	if v.Type != o.Type {
		return false
	}
	switch v.Type {
	case TypeBoolean:
		return v.Bool == o.Bool
	case TypeBigint, TypeCounter, TypeTimestamp:
		return v.Int == o.Int
	case TypeText:
		return v.Text == o.Text
	case TypeBlob:
		return bytes.Equal(v.Blob, o.Blob)
	case TypeList, TypeSet:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(o.List[i]) {
				return false
			}
		}
		return true
	case TypeMap:
		if len(v.Map) != len(o.Map) {
			return false
		}
		for i := range v.Map {
			if !v.Map[i].Key.Equal(o.Map[i].Key) || !v.Map[i].Value.Equal(o.Map[i].Value) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Compare orders two values of the same scalar type. It returns a negative
// number, zero, or a positive number when v sorts before, equal to, or
// after o. Nulls sort before all non-nulls. Collection types and
// mismatched types are not orderable.
func (v Value) Compare(o Value) (int, error) {
	if v.IsNull || o.IsNull {
		switch {
		case v.IsNull && o.IsNull:
			return 0, nil
		case v.IsNull:
			return -1, nil
		default:
			return 1, nil
		}
	}
	if v.Type != o.Type {
		return 0, fmt.Errorf("types: cannot compare %s with %s", v.Type, o.Type)
	}
	switch v.Type {
	case TypeBoolean:
		return boolCompare(v.Bool, o.Bool), nil
	case TypeBigint, TypeCounter, TypeTimestamp:
		return intCompare(v.Int, o.Int), nil
	case TypeText:
		return strings.Compare(v.Text, o.Text), nil
	case TypeBlob:
		return bytes.Compare(v.Blob, o.Blob), nil
	default:
		return 0, fmt.Errorf("types: %s values are not orderable", v.Type)
	}
}

func boolCompare(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

func intCompare(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// String renders the value for logs and CLI output.
func (v Value) String() string {
	if v.IsNull {
		return "null"
	}
	switch v.Type {
	case TypeBoolean:
		return fmt.Sprintf("%t", v.Bool)
	case TypeBigint, TypeCounter, TypeTimestamp:
		return fmt.Sprintf("%d", v.Int)
	case TypeText:
		return v.Text
	case TypeBlob:
		return fmt.Sprintf("0x%x", v.Blob)
	case TypeList, TypeSet:
		parts := make([]string, len(v.List))
		for i, e := range v.List {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case TypeMap:
		parts := make([]string, len(v.Map))
		for i, e := range v.Map {
			parts[i] = e.Key.String() + ": " + e.Value.String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return "?"
	}
}

// TupleCompare orders two clustering tuples component-wise. Shorter
// tuples that are a prefix of longer ones sort first.
func TupleCompare(a, b []Value) (int, error) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		c, err := a[i].Compare(b[i])
		if err != nil {
			return 0, err
		}
		if c != 0 {
			return c, nil
		}
	}
	return intCompare(int64(len(a)), int64(len(b))), nil
}

// TupleEqual reports component-wise equality of two clustering tuples.
func TupleEqual(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
