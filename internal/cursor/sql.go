package cursor

import (
	"database/sql"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// sqlCursor adapts a *sql.Rows to the Cursor contract. The row is scanned
// into a reusable []any on each Advance; accessors coerce from there, so the
// per-row cost is one Scan plus pointer indirection.
type sqlCursor struct {
	rows    *sql.Rows
	schema  Schema
	current []any
	ptrs    []any
	err     error
	release []io.Closer
	closed  bool
}

// FromSQL wraps an open *sql.Rows. Extra closers (typically the owning
// *sql.Conn) are released together with the rows when Close is called.
func FromSQL(rows *sql.Rows, release ...io.Closer) (Cursor, error) {
	cts, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	schema := make(Schema, len(cts))
	for i, ct := range cts {
		schema[i] = Column{Name: ct.Name(), Type: typeFromSQL(ct)}
	}
	c := &sqlCursor{
		rows:    rows,
		schema:  schema,
		current: make([]any, len(cts)),
		ptrs:    make([]any, len(cts)),
		release: release,
	}
	for i := range c.current {
		c.ptrs[i] = &c.current[i]
	}
	return c, nil
}

// typeFromSQL maps a driver-reported database type name to the primitive set.
// Names vary per driver; the match is on the leading keyword so that
// "DECIMAL(18,2)" and "VARCHAR(255)" resolve the same as their bare forms.
func typeFromSQL(ct *sql.ColumnType) Type {
	name := strings.ToUpper(ct.DatabaseTypeName())
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = name[:i]
	}
	switch name {
	case "BOOL", "BOOLEAN", "BIT":
		return Bool
	case "TINYINT":
		return Int8
	case "SMALLINT", "INT2":
		return Int16
	case "INT", "INT4", "INTEGER", "MEDIUMINT", "SERIAL":
		return Int64
	case "BIGINT", "INT8":
		return Int64
	case "FLOAT", "REAL":
		return Float64
	case "DOUBLE", "DOUBLE PRECISION", "FLOAT8":
		return Float64
	case "DECIMAL", "NUMERIC", "MONEY":
		return Decimal
	case "DATE", "DATETIME", "TIMESTAMP", "TIMESTAMPTZ":
		return Timestamp
	case "UUID", "UNIQUEIDENTIFIER":
		return UUID
	case "CHAR":
		return Char
	case "TEXT", "VARCHAR", "NVARCHAR", "CLOB", "STRING", "CHARACTER VARYING":
		return String
	}
	return Unknown
}

func (c *sqlCursor) Schema() Schema { return c.schema }

func (c *sqlCursor) Advance() bool {
	if c.closed || c.err != nil {
		return false
	}
	if !c.rows.Next() {
		c.err = c.rows.Err()
		return false
	}
	if err := c.rows.Scan(c.ptrs...); err != nil {
		c.err = err
		return false
	}
	return true
}

func (c *sqlCursor) Err() error { return c.err }

func (c *sqlCursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.rows.Close()
	for _, r := range c.release {
		err = errors.Join(err, r.Close())
	}
	return err
}

func (c *sqlCursor) IsNull(ordinal int) bool { return c.current[ordinal] == nil }

func (c *sqlCursor) Bool(ordinal int) bool       { return coerceBool(c.current[ordinal]) }
func (c *sqlCursor) Int8(ordinal int) int8       { return int8(coerceInt(c.current[ordinal])) }
func (c *sqlCursor) Int16(ordinal int) int16     { return int16(coerceInt(c.current[ordinal])) }
func (c *sqlCursor) Int32(ordinal int) int32     { return int32(coerceInt(c.current[ordinal])) }
func (c *sqlCursor) Int64(ordinal int) int64     { return coerceInt(c.current[ordinal]) }
func (c *sqlCursor) Uint8(ordinal int) uint8     { return uint8(coerceInt(c.current[ordinal])) }
func (c *sqlCursor) Float32(ordinal int) float32 { return float32(coerceFloat(c.current[ordinal])) }
func (c *sqlCursor) Float64(ordinal int) float64 { return coerceFloat(c.current[ordinal]) }

func (c *sqlCursor) Decimal(ordinal int) decimal.Decimal {
	return coerceDecimal(c.current[ordinal])
}

func (c *sqlCursor) Time(ordinal int) time.Time { return coerceTime(c.current[ordinal]) }
func (c *sqlCursor) UUID(ordinal int) uuid.UUID { return coerceUUID(c.current[ordinal]) }
func (c *sqlCursor) String(ordinal int) string  { return coerceString(c.current[ordinal]) }
func (c *sqlCursor) Char(ordinal int) rune      { return coerceChar(c.current[ordinal]) }
func (c *sqlCursor) Value(ordinal int) any      { return c.current[ordinal] }
