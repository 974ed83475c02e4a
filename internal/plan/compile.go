package plan

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"docrow.io/row-export-backend/internal/codec"
	"docrow.io/row-export-backend/internal/cursor"
	"docrow.io/row-export-backend/internal/events"
	"docrow.io/row-export-backend/internal/shape"
)

// SchemaMismatchError reports a descriptor/schema disagreement in strict
// mode: a referenced column is absent or its type differs from the declared
// one. In non-strict mode the same conditions degrade to events.
type SchemaMismatchError struct {
	Shape  string
	Column string
	Reason string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch in shape %q, column %q: %s", e.Shape, e.Column, e.Reason)
}

// Options tune compilation behavior.
type Options struct {
	// Strict elevates column-not-found and type mismatches to errors.
	Strict bool
	// ArrayFallbackToString selects the fallback writer used for columns
	// outside the primitive set: string rendering when true, JSON null
	// otherwise.
	ArrayFallbackToString bool
	// CorrelationID is carried on every compile-time event.
	CorrelationID string
}

// compiler accumulates plan state during one descriptor walk.
type compiler struct {
	schema   cursor.Schema
	shapeID  string
	opts     Options
	sink     events.Sink
	ctx      context.Context
	reads    []readOp
	emits    []emitOp
	nextSlot int
	refs     map[int]int // ordinal -> reference count, for the shared-column warning
}

// Compile walks the descriptor in declaration order against the sample
// schema and freezes the two instruction sequences. It is pure and
// deterministic: the same (descriptor, schema) pair always produces an
// equivalent plan. Compile never runs during row execution; all schema
// events are emitted here, once.
func Compile(ctx context.Context, sh *shape.Shape, schema cursor.Schema, opts Options, sink events.Sink) (*Plan, error) {
	if err := sh.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = events.Nop{}
	}

	c := &compiler{
		schema:  schema,
		shapeID: sh.ID,
		opts:    opts,
		sink:    sink,
		ctx:     ctx,
		refs:    make(map[int]int),
	}

	// The root is a flattened object: the executor wraps each row with the
	// outer braces, so the walk starts with a bare member counter.
	members := 0
	if err := c.walk(sh.Children, &members); err != nil {
		return nil, err
	}

	// Sequential-access cursors require non-decreasing ordinal reads.
	sort.SliceStable(c.reads, func(i, j int) bool { return c.reads[i].ordinal < c.reads[j].ordinal })

	return newPlan(sh.ID, schema.Fingerprint(), c.reads, c.emits, c.nextSlot), nil
}

func (c *compiler) walk(nodes []shape.Node, members *int) error {
	for _, n := range nodes {
		switch n := n.(type) {
		case shape.Field:
			if err := c.field(n, members); err != nil {
				return err
			}
		case shape.Object:
			c.push(emitOp{kind: emitBeginObject, name: n.Name, more: *members > 0})
			*members++
			inner := 0
			if err := c.walk(n.Children, &inner); err != nil {
				return err
			}
			c.push(emitOp{kind: emitEndObject})
		case shape.Flattened:
			// No enclosing braces: children join the parent's member run.
			if err := c.walk(n.Children, members); err != nil {
				return err
			}
		case shape.ArrayPattern:
			if err := c.pattern(n, members); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *compiler) field(f shape.Field, members *int) error {
	ordinal := c.schema.Ordinal(f.Column)
	if ordinal < 0 {
		if c.opts.Strict {
			return &SchemaMismatchError{Shape: c.shapeID, Column: f.Column, Reason: "column not found"}
		}
		c.event(events.ColumnNotFound, f.Column, f.Type.String())
		return nil
	}

	cd, _, err := c.resolveCodec(ordinal, f.Type)
	if err != nil {
		return err
	}

	slot := c.nextSlot
	c.nextSlot++
	c.refs[ordinal]++
	c.reads = append(c.reads, readOp{slot: slot, ordinal: ordinal, read: cd.Read})
	c.push(emitOp{kind: emitField, name: f.Name, slot: slot, write: cd.Write, more: *members > 0})
	*members++
	return nil
}

func (c *compiler) pattern(p shape.ArrayPattern, members *int) error {
	// Matches are collected in schema order, which is ordinal order already.
	var matched []int
	for i, col := range c.schema {
		if strings.HasPrefix(col.Name, p.Prefix) {
			matched = append(matched, i)
		}
	}
	if len(matched) == 0 {
		c.event(events.EmptyArrayPattern, p.Prefix, "")
	}

	c.push(emitOp{kind: emitBeginArray, name: p.Name, more: *members > 0})
	*members++
	for i, ordinal := range matched {
		cd, _, err := c.resolveCodec(ordinal, cursor.Unknown)
		if err != nil {
			return err
		}
		if c.refs[ordinal] > 0 {
			// Shared with another descriptor reference; allowed, but warned.
			c.event(events.SharedColumn, c.schema[ordinal].Name, "")
		}
		slot := c.nextSlot
		c.nextSlot++
		c.refs[ordinal]++
		c.reads = append(c.reads, readOp{slot: slot, ordinal: ordinal, read: cd.Read})
		c.push(emitOp{kind: emitElement, slot: slot, write: cd.Write, more: i > 0})
	}
	c.push(emitOp{kind: emitEndArray})
	return nil
}

// resolveCodec picks the codec for an ordinal. The cursor's actual type wins
// over the declared one; a disagreement is recorded as type-coerced. Columns
// outside the primitive set take the fallback codec and are reported once.
func (c *compiler) resolveCodec(ordinal int, declared cursor.Type) (codec.Codec, cursor.Type, error) {
	actual := c.schema[ordinal].Type
	if declared != cursor.Unknown && declared != actual {
		if c.opts.Strict {
			return codec.Codec{}, actual, &SchemaMismatchError{
				Shape:  c.shapeID,
				Column: c.schema[ordinal].Name,
				Reason: fmt.Sprintf("declared %s, cursor reports %s", declared, actual),
			}
		}
		c.event(events.TypeCoerced, c.schema[ordinal].Name, actual.String())
	}

	cd, ok := codec.ForType(actual)
	if !ok {
		c.event(events.UnsupportedType, c.schema[ordinal].Name, actual.String())
		return codec.Fallback(c.opts.ArrayFallbackToString), actual, nil
	}
	return cd, actual, nil
}

func (c *compiler) push(op emitOp) { c.emits = append(c.emits, op) }

func (c *compiler) event(cat events.Category, column, typeName string) {
	c.sink.Emit(c.ctx, events.Event{
		Category:      cat,
		CorrelationID: c.opts.CorrelationID,
		Shape:         c.shapeID,
		Column:        column,
		TypeName:      typeName,
	})
}
