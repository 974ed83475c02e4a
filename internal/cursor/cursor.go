// Package cursor defines the forward-only row cursor contract consumed by the
// projection engine, the primitive type system shared with the codec table,
// and adapters for database/sql result sets and in-memory data.
package cursor

import (
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type enumerates the primitive value kinds the engine can read and emit.
type Type uint8

const (
	Unknown Type = iota
	Bool
	Int8
	Int16
	Int32
	Int64
	Uint8
	Float32
	Float64
	Decimal
	Timestamp
	UUID
	String
	Char
)

var typeNames = [...]string{
	Unknown:   "unknown",
	Bool:      "bool",
	Int8:      "int8",
	Int16:     "int16",
	Int32:     "int32",
	Int64:     "int64",
	Uint8:     "uint8",
	Float32:   "float32",
	Float64:   "float64",
	Decimal:   "decimal",
	Timestamp: "timestamp",
	UUID:      "uuid",
	String:    "string",
	Char:      "char",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "unknown"
}

// Column describes one cursor column: its name and declared primitive type.
type Column struct {
	Name string
	Type Type
}

// Schema is the ordered column list of a cursor, indexed by ordinal.
type Schema []Column

// Ordinal returns the position of the named column, or -1 if absent.
func (s Schema) Ordinal(name string) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Fingerprint hashes the (name, type) pairs in ordinal order. Two cursors
// with equal fingerprints are plan-compatible.
func (s Schema) Fingerprint() uint64 {
	h := fnv.New64a()
	for _, c := range s {
		h.Write([]byte(c.Name))
		h.Write([]byte{0, byte(c.Type)})
	}
	return h.Sum64()
}

// Cursor is a forward-only, single-pass row source. The cursor stays at the
// current row until Advance returns true, at which point all columns of the
// next row become readable. Accessors must only be called for ordinals whose
// declared type matches; Value is the untyped escape hatch for the rest.
//
// Close releases the cursor and whatever connection backs it, and is safe to
// call more than once.
type Cursor interface {
	Schema() Schema
	Advance() bool
	Err() error
	Close() error

	IsNull(ordinal int) bool
	Bool(ordinal int) bool
	Int8(ordinal int) int8
	Int16(ordinal int) int16
	Int32(ordinal int) int32
	Int64(ordinal int) int64
	Uint8(ordinal int) uint8
	Float32(ordinal int) float32
	Float64(ordinal int) float64
	Decimal(ordinal int) decimal.Decimal
	Time(ordinal int) time.Time
	UUID(ordinal int) uuid.UUID
	String(ordinal int) string
	Char(ordinal int) rune
	Value(ordinal int) any
}
