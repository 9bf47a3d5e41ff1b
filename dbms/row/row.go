// Package row implements the on-disk wire format for a single tuple: a
// 9-byte header (transaction id, tombstone) followed by the column values
// encoded per a schema.
package row

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"
)

// HeaderLen is the size in bytes of the leading (txn_id, tombstone) header.
const HeaderLen = 9 // txn_id(8) + tombstone(1)

// ColumnType tags the kind of value a schema slot holds.
type ColumnType uint8

const (
	Int ColumnType = iota
	Text
	Bool
)

func (t ColumnType) String() string {
	switch t {
	case Int:
		return "Int"
	case Text:
		return "Text"
	case Bool:
		return "Bool"
	default:
		return fmt.Sprintf("ColumnType(%d)", uint8(t))
	}
}

// Schema is an ordered sequence of column types.
type Schema []ColumnType

// Value is a tagged union over the three scalar kinds a row column can hold.
// Exactly one of the Int, Text and Bool accessors below reports ok=true for
// any constructed Value.
type Value struct {
	kind ColumnType
	i    int64
	s    string
	b    bool
}

func IntValue(v int64) Value  { return Value{kind: Int, i: v} }
func TextValue(v string) Value { return Value{kind: Text, s: v} }
func BoolValue(v bool) Value  { return Value{kind: Bool, b: v} }

// Kind reports which column type this value was built as.
func (v Value) Kind() ColumnType { return v.kind }

// Int returns the wrapped integer; ok is false if Kind() != Int.
func (v Value) Int() (int64, bool) { return v.i, v.kind == Int }

// Text returns the wrapped string; ok is false if Kind() != Text.
func (v Value) Text() (string, bool) { return v.s, v.kind == Text }

// Bool returns the wrapped boolean; ok is false if Kind() != Bool.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == Bool }

func (v Value) String() string {
	switch v.kind {
	case Int:
		return fmt.Sprintf("Int(%d)", v.i)
	case Text:
		return fmt.Sprintf("Text(%q)", v.s)
	case Bool:
		return fmt.Sprintf("Bool(%t)", v.b)
	default:
		return "Value(?)"
	}
}

// Equal reports whether two values have the same kind and content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case Int:
		return v.i == o.i
	case Text:
		return v.s == o.s
	case Bool:
		return v.b == o.b
	default:
		return false
	}
}

var (
	// ErrSchemaMismatch is returned by Encode when the value count or kinds
	// don't match the schema.
	ErrSchemaMismatch = errors.New("row: schema mismatch")
	// ErrShortRow is returned by Decode when bytes is shorter than HeaderLen.
	ErrShortRow = errors.New("row: short row")
	// ErrBadUTF8 is returned by Decode when a Text field isn't valid UTF-8.
	ErrBadUTF8 = errors.New("row: invalid utf8")
	// ErrTruncatedField is returned by Decode when a field runs past the
	// end of the buffer.
	ErrTruncatedField = errors.New("row: truncated field")
)

// Encode serializes (txn_id, tombstone, values) against schema into the row
// wire format: a 9-byte header followed by each value encoded per its
// schema slot, in order.
func Encode(schema Schema, values []Value, txnID uint64, tombstone uint8) ([]byte, error) {
	if len(schema) != len(values) {
		return nil, fmt.Errorf("%w: schema has %d columns, got %d values", ErrSchemaMismatch, len(schema), len(values))
	}
	for i, ty := range schema {
		if values[i].kind != ty {
			return nil, fmt.Errorf("%w: column %d wants %s, got %s", ErrSchemaMismatch, i, ty, values[i].kind)
		}
	}

	buf := make([]byte, HeaderLen, HeaderLen+estimateBodyLen(schema, values))
	binary.LittleEndian.PutUint64(buf[0:8], txnID)
	buf[8] = tombstone

	for i, ty := range schema {
		v := values[i]
		switch ty {
		case Int:
			var tmp [8]byte
			binary.LittleEndian.PutUint64(tmp[:], uint64(v.i))
			buf = append(buf, tmp[:]...)
		case Text:
			b := []byte(v.s)
			var tmp [4]byte
			binary.LittleEndian.PutUint32(tmp[:], uint32(len(b)))
			buf = append(buf, tmp[:]...)
			buf = append(buf, b...)
		case Bool:
			if v.b {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
		}
	}
	return buf, nil
}

func estimateBodyLen(schema Schema, values []Value) int {
	n := 0
	for i, ty := range schema {
		switch ty {
		case Int:
			n += 8
		case Bool:
			n += 1
		case Text:
			n += 4 + len(values[i].s)
		}
	}
	return n
}

// Decode parses the row wire format against schema, returning the header
// fields and the decoded values in schema order.
func Decode(schema Schema, data []byte) (txnID uint64, tombstone uint8, values []Value, err error) {
	if len(data) < HeaderLen {
		return 0, 0, nil, fmt.Errorf("%w: have %d bytes, need at least %d", ErrShortRow, len(data), HeaderLen)
	}
	txnID = binary.LittleEndian.Uint64(data[0:8])
	tombstone = data[8]

	values = make([]Value, 0, len(schema))
	off := HeaderLen
	for i, ty := range schema {
		switch ty {
		case Int:
			if off+8 > len(data) {
				return 0, 0, nil, fmt.Errorf("%w: column %d (Int)", ErrTruncatedField, i)
			}
			v := int64(binary.LittleEndian.Uint64(data[off : off+8]))
			values = append(values, IntValue(v))
			off += 8
		case Text:
			if off+4 > len(data) {
				return 0, 0, nil, fmt.Errorf("%w: column %d (Text length)", ErrTruncatedField, i)
			}
			n := int(binary.LittleEndian.Uint32(data[off : off+4]))
			off += 4
			if off+n > len(data) {
				return 0, 0, nil, fmt.Errorf("%w: column %d (Text body)", ErrTruncatedField, i)
			}
			b := data[off : off+n]
			if !utf8.Valid(b) {
				return 0, 0, nil, fmt.Errorf("%w: column %d", ErrBadUTF8, i)
			}
			values = append(values, TextValue(string(b)))
			off += n
		case Bool:
			if off+1 > len(data) {
				return 0, 0, nil, fmt.Errorf("%w: column %d (Bool)", ErrTruncatedField, i)
			}
			values = append(values, BoolValue(data[off] != 0))
			off += 1
		}
	}
	return txnID, tombstone, values, nil
}
