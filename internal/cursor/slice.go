package cursor

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// sliceCursor implements Cursor over a slice of rows. It is used by tests and
// small in-memory sources; each inner slice is one row in schema order.
type sliceCursor struct {
	schema Schema
	rows   [][]any
	pos    int
	closed bool
}

// FromData creates a Cursor over in-memory rows with an explicit schema.
func FromData(schema Schema, rows [][]any) Cursor {
	return &sliceCursor{schema: schema, rows: rows, pos: -1}
}

func (c *sliceCursor) Schema() Schema { return c.schema }

func (c *sliceCursor) Advance() bool {
	if c.closed || c.pos+1 >= len(c.rows) {
		return false
	}
	c.pos++
	return true
}

func (c *sliceCursor) Err() error   { return nil }
func (c *sliceCursor) Close() error { c.closed = true; return nil }

func (c *sliceCursor) cell(ordinal int) any { return c.rows[c.pos][ordinal] }

func (c *sliceCursor) IsNull(ordinal int) bool { return c.cell(ordinal) == nil }

func (c *sliceCursor) Bool(ordinal int) bool       { return coerceBool(c.cell(ordinal)) }
func (c *sliceCursor) Int8(ordinal int) int8       { return int8(coerceInt(c.cell(ordinal))) }
func (c *sliceCursor) Int16(ordinal int) int16     { return int16(coerceInt(c.cell(ordinal))) }
func (c *sliceCursor) Int32(ordinal int) int32     { return int32(coerceInt(c.cell(ordinal))) }
func (c *sliceCursor) Int64(ordinal int) int64     { return coerceInt(c.cell(ordinal)) }
func (c *sliceCursor) Uint8(ordinal int) uint8     { return uint8(coerceInt(c.cell(ordinal))) }
func (c *sliceCursor) Float32(ordinal int) float32 { return float32(coerceFloat(c.cell(ordinal))) }
func (c *sliceCursor) Float64(ordinal int) float64 { return coerceFloat(c.cell(ordinal)) }

func (c *sliceCursor) Decimal(ordinal int) decimal.Decimal {
	return coerceDecimal(c.cell(ordinal))
}

func (c *sliceCursor) Time(ordinal int) time.Time { return coerceTime(c.cell(ordinal)) }
func (c *sliceCursor) UUID(ordinal int) uuid.UUID { return coerceUUID(c.cell(ordinal)) }
func (c *sliceCursor) String(ordinal int) string  { return coerceString(c.cell(ordinal)) }
func (c *sliceCursor) Char(ordinal int) rune      { return coerceChar(c.cell(ordinal)) }
func (c *sliceCursor) Value(ordinal int) any      { return c.cell(ordinal) }
