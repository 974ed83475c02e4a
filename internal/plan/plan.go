// Package plan compiles shape descriptors against a cursor schema into
// reusable serialization plans and executes them row by row. A plan is two
// parallel instruction sequences: reads ordered by ascending cursor ordinal,
// and emits in JSON output order. Compilation happens once per distinct
// (shape, schema) pair; execution performs no per-row allocation beyond the
// strings the cursor hands out.
package plan

import (
	"sync"

	"docrow.io/row-export-backend/internal/codec"
)

// emitKind discriminates emit instructions.
type emitKind uint8

const (
	emitBeginObject emitKind = iota
	emitEndObject
	emitBeginArray
	emitEndArray
	emitField
	emitElement
)

// readOp reads one value from a cursor ordinal into a slot.
type readOp struct {
	slot    int
	ordinal int
	read    codec.ReadFunc
}

// emitOp appends one piece of JSON output. more is precomputed at compile
// time: true when the instruction must be preceded by a comma, which removes
// all first-member bookkeeping from the hot path.
type emitOp struct {
	kind  emitKind
	name  string
	slot  int
	write codec.WriteFunc
	more  bool
}

// Plan is a frozen serialization plan. Plans are immutable after compilation
// and safe for concurrent use; each execution borrows a slot buffer from the
// plan's pool.
type Plan struct {
	ShapeID     string
	Fingerprint uint64

	reads     []readOp
	emits     []emitOp
	slotCount int

	buffers sync.Pool
}

// SlotCount reports the number of distinct primitive values read per row.
func (p *Plan) SlotCount() int { return p.slotCount }

// Reads exposes the (slot, ordinal) pairs of the read sequence in execution
// order. Used by tests asserting the sequential-access ordering guarantee.
func (p *Plan) Reads() [][2]int {
	out := make([][2]int, len(p.reads))
	for i, r := range p.reads {
		out[i] = [2]int{r.slot, r.ordinal}
	}
	return out
}

// Scratch borrows a slot buffer sized for this plan. Buffers are pooled so a
// steady stream of requests reuses a small fixed set.
func (p *Plan) Scratch() *[]codec.Slot {
	return p.buffers.Get().(*[]codec.Slot)
}

// Release returns a borrowed slot buffer to the pool.
func (p *Plan) Release(buf *[]codec.Slot) {
	p.buffers.Put(buf)
}

func newPlan(shapeID string, fingerprint uint64, reads []readOp, emits []emitOp, slots int) *Plan {
	p := &Plan{
		ShapeID:     shapeID,
		Fingerprint: fingerprint,
		reads:       reads,
		emits:       emits,
		slotCount:   slots,
	}
	p.buffers.New = func() any { b := make([]codec.Slot, slots); return &b }
	return p
}
