// Package codec maintains the per-primitive-type read and write function
// pairs used by compiled plans. Readers pull one value from a cursor ordinal
// into a Slot; writers emit a Slot with the correct JSON kind. The table is
// immutable after process init and indexed by the primitive type tag, so
// dispatch on the hot path is a bounded array lookup with no boxing.
package codec

import (
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"

	"docrow.io/row-export-backend/internal/cursor"
)

// Slot holds one row-local primitive value between the read and emit phases.
// It is a tagged union: Kind selects the live field, Null marks a database
// NULL regardless of kind. Slots are overwritten each row.
type Slot struct {
	Kind cursor.Type
	Null bool

	B  bool
	I  int64
	U  uint64
	F  float64
	S  string
	T  time.Time
	D  decimal.Decimal
	ID uuid.UUID
	V  any
}

type (
	// ReadFunc reads the value at ordinal into dst. NULL columns set dst.Null.
	ReadFunc func(c cursor.Cursor, ordinal int, dst *Slot)
	// WriteFunc appends dst to the stream with the correct JSON kind.
	WriteFunc func(s *jsoniter.Stream, dst *Slot)
)

// Codec pairs the reader and writer for one primitive type.
type Codec struct {
	Read  ReadFunc
	Write WriteFunc
}

var table [cursor.Char + 1]Codec

func init() {
	table[cursor.Bool] = Codec{readBool, writeBool}
	table[cursor.Int8] = Codec{readInt8, writeInt}
	table[cursor.Int16] = Codec{readInt16, writeInt}
	table[cursor.Int32] = Codec{readInt32, writeInt}
	table[cursor.Int64] = Codec{readInt64, writeInt}
	table[cursor.Uint8] = Codec{readUint8, writeUint}
	table[cursor.Float32] = Codec{readFloat32, writeFloat32}
	table[cursor.Float64] = Codec{readFloat64, writeFloat64}
	table[cursor.Decimal] = Codec{readDecimal, writeDecimal}
	table[cursor.Timestamp] = Codec{readTime, writeTime}
	table[cursor.UUID] = Codec{readUUID, writeUUID}
	table[cursor.String] = Codec{readString, writeString}
	table[cursor.Char] = Codec{readChar, writeChar}
}

// ForType returns the codec for t. ok is false for Unknown and any type
// outside the table; callers fall back to Fallback.
func ForType(t cursor.Type) (Codec, bool) {
	if t == cursor.Unknown || int(t) >= len(table) {
		return Codec{}, false
	}
	c := table[t]
	return c, c.Read != nil
}

// Fallback returns the codec used when the cursor reports a type outside the
// primitive set. The reader stores the cursor's untyped value; the writer
// coerces through a string rendering when stringify is true, and emits JSON
// null otherwise.
func Fallback(stringify bool) Codec {
	if stringify {
		return Codec{readOpaque, writeOpaqueString}
	}
	return Codec{readOpaque, writeNull}
}

func null(c cursor.Cursor, ordinal int, dst *Slot, kind cursor.Type) bool {
	dst.Kind = kind
	if c.IsNull(ordinal) {
		dst.Null = true
		return true
	}
	dst.Null = false
	return false
}

func readBool(c cursor.Cursor, ordinal int, dst *Slot) {
	if !null(c, ordinal, dst, cursor.Bool) {
		dst.B = c.Bool(ordinal)
	}
}

func readInt8(c cursor.Cursor, ordinal int, dst *Slot) {
	if !null(c, ordinal, dst, cursor.Int8) {
		dst.I = int64(c.Int8(ordinal))
	}
}

func readInt16(c cursor.Cursor, ordinal int, dst *Slot) {
	if !null(c, ordinal, dst, cursor.Int16) {
		dst.I = int64(c.Int16(ordinal))
	}
}

func readInt32(c cursor.Cursor, ordinal int, dst *Slot) {
	if !null(c, ordinal, dst, cursor.Int32) {
		dst.I = int64(c.Int32(ordinal))
	}
}

func readInt64(c cursor.Cursor, ordinal int, dst *Slot) {
	if !null(c, ordinal, dst, cursor.Int64) {
		dst.I = c.Int64(ordinal)
	}
}

func readUint8(c cursor.Cursor, ordinal int, dst *Slot) {
	if !null(c, ordinal, dst, cursor.Uint8) {
		dst.U = uint64(c.Uint8(ordinal))
	}
}

func readFloat32(c cursor.Cursor, ordinal int, dst *Slot) {
	if !null(c, ordinal, dst, cursor.Float32) {
		dst.F = float64(c.Float32(ordinal))
	}
}

func readFloat64(c cursor.Cursor, ordinal int, dst *Slot) {
	if !null(c, ordinal, dst, cursor.Float64) {
		dst.F = c.Float64(ordinal)
	}
}

func readDecimal(c cursor.Cursor, ordinal int, dst *Slot) {
	if !null(c, ordinal, dst, cursor.Decimal) {
		dst.D = c.Decimal(ordinal)
	}
}

func readTime(c cursor.Cursor, ordinal int, dst *Slot) {
	if !null(c, ordinal, dst, cursor.Timestamp) {
		dst.T = c.Time(ordinal)
	}
}

func readUUID(c cursor.Cursor, ordinal int, dst *Slot) {
	if !null(c, ordinal, dst, cursor.UUID) {
		dst.ID = c.UUID(ordinal)
	}
}

func readString(c cursor.Cursor, ordinal int, dst *Slot) {
	if !null(c, ordinal, dst, cursor.String) {
		dst.S = c.String(ordinal)
	}
}

func readChar(c cursor.Cursor, ordinal int, dst *Slot) {
	if !null(c, ordinal, dst, cursor.Char) {
		dst.I = int64(c.Char(ordinal))
	}
}

func readOpaque(c cursor.Cursor, ordinal int, dst *Slot) {
	if !null(c, ordinal, dst, cursor.Unknown) {
		dst.V = c.Value(ordinal)
	}
}

func writeBool(s *jsoniter.Stream, dst *Slot) {
	if dst.Null {
		s.WriteNil()
		return
	}
	s.WriteBool(dst.B)
}

func writeInt(s *jsoniter.Stream, dst *Slot) {
	if dst.Null {
		s.WriteNil()
		return
	}
	s.WriteInt64(dst.I)
}

func writeUint(s *jsoniter.Stream, dst *Slot) {
	if dst.Null {
		s.WriteNil()
		return
	}
	s.WriteUint64(dst.U)
}

func writeFloat32(s *jsoniter.Stream, dst *Slot) {
	if dst.Null {
		s.WriteNil()
		return
	}
	s.WriteFloat32(float32(dst.F))
}

func writeFloat64(s *jsoniter.Stream, dst *Slot) {
	if dst.Null {
		s.WriteNil()
		return
	}
	s.WriteFloat64(dst.F)
}

func writeDecimal(s *jsoniter.Stream, dst *Slot) {
	if dst.Null {
		s.WriteNil()
		return
	}
	// decimal renders as a plain JSON number, not a quoted string.
	s.WriteRaw(dst.D.String())
}

func writeTime(s *jsoniter.Stream, dst *Slot) {
	if dst.Null {
		s.WriteNil()
		return
	}
	s.WriteString(dst.T.UTC().Format(time.RFC3339Nano))
}

func writeUUID(s *jsoniter.Stream, dst *Slot) {
	if dst.Null {
		s.WriteNil()
		return
	}
	s.WriteString(dst.ID.String())
}

func writeString(s *jsoniter.Stream, dst *Slot) {
	if dst.Null {
		s.WriteNil()
		return
	}
	s.WriteString(dst.S)
}

func writeChar(s *jsoniter.Stream, dst *Slot) {
	if dst.Null {
		s.WriteNil()
		return
	}
	s.WriteString(string(rune(dst.I)))
}

func writeOpaqueString(s *jsoniter.Stream, dst *Slot) {
	if dst.Null {
		s.WriteNil()
		return
	}
	s.WriteString(renderOpaque(dst.V))
}

func writeNull(s *jsoniter.Stream, dst *Slot) { s.WriteNil() }
