package plan

import (
	jsoniter "github.com/json-iterator/go"

	"docrow.io/row-export-backend/internal/codec"
	"docrow.io/row-export-backend/internal/cursor"
)

// EmitRow runs the plan against the cursor's current row: every slot is read
// exactly once in ascending ordinal order, then the emit sequence writes one
// JSON object. scratch must hold at least SlotCount slots and is overwritten.
//
// Commas are driven by the precomputed more flags, so the loop body is a
// bounded switch with no state beyond the stream's own buffer.
func EmitRow(p *Plan, cur cursor.Cursor, out *jsoniter.Stream, scratch []codec.Slot) {
	for i := range p.reads {
		r := &p.reads[i]
		r.read(cur, r.ordinal, &scratch[r.slot])
	}

	out.WriteObjectStart()
	for i := range p.emits {
		op := &p.emits[i]
		if op.more {
			out.WriteMore()
		}
		switch op.kind {
		case emitBeginObject:
			out.WriteObjectField(op.name)
			out.WriteObjectStart()
		case emitEndObject:
			out.WriteObjectEnd()
		case emitBeginArray:
			out.WriteObjectField(op.name)
			out.WriteArrayStart()
		case emitEndArray:
			out.WriteArrayEnd()
		case emitField:
			out.WriteObjectField(op.name)
			op.write(out, &scratch[op.slot])
		case emitElement:
			op.write(out, &scratch[op.slot])
		}
	}
	out.WriteObjectEnd()
}
