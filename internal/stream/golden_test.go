package stream

import (
	"bytes"
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"docrow.io/row-export-backend/internal/cursor"
	"docrow.io/row-export-backend/internal/shape"
)

// Golden bodies for the canonical projection scenarios: primitives with
// nulls, nested objects, flattening, and array patterns.
func TestStream_GoldenBodies(t *testing.T) {
	cases := []struct {
		name   string
		sh     *shape.Shape
		schema cursor.Schema
		rows   [][]any
	}{
		{
			name: "primitives",
			sh: shape.New("items",
				shape.Col("id", "Id", cursor.Int64),
				shape.Col("name", "Name", cursor.String),
				shape.Col("price", "Price", cursor.Decimal),
			),
			schema: cursor.Schema{
				{Name: "Id", Type: cursor.Int64},
				{Name: "Name", Type: cursor.String},
				{Name: "Price", Type: cursor.Decimal},
			},
			rows: [][]any{
				{int64(7), "Widget", decimal.RequireFromString("19.95")},
				{int64(8), nil, decimal.Zero},
			},
		},
		{
			name: "nested_object",
			sh: shape.New("orders",
				shape.Col("id", "Id", cursor.Int64),
				shape.Obj("customer",
					shape.Col("name", "CName", cursor.String),
					shape.Col("city", "CCity", cursor.String),
				),
			),
			schema: cursor.Schema{
				{Name: "Id", Type: cursor.Int64},
				{Name: "CName", Type: cursor.String},
				{Name: "CCity", Type: cursor.String},
			},
			rows: [][]any{{int64(1), "Ada", "Paris"}},
		},
		{
			name: "flattened",
			sh: shape.New("orders",
				shape.Col("id", "Id", cursor.Int64),
				shape.Flat(
					shape.Col("name", "CName", cursor.String),
					shape.Col("city", "CCity", cursor.String),
				),
			),
			schema: cursor.Schema{
				{Name: "Id", Type: cursor.Int64},
				{Name: "CName", Type: cursor.String},
				{Name: "CCity", Type: cursor.String},
			},
			rows: [][]any{{int64(1), "Ada", "Paris"}},
		},
		{
			name: "array_pattern",
			sh: shape.New("tagged",
				shape.Col("id", "Id", cursor.Int64),
				shape.Pattern("tags", "Tag_"),
			),
			schema: cursor.Schema{
				{Name: "Id", Type: cursor.Int64},
				{Name: "Tag_01", Type: cursor.String},
				{Name: "Tag_02", Type: cursor.String},
				{Name: "Tag_03", Type: cursor.String},
			},
			rows: [][]any{{int64(42), "red", nil, "blue"}},
		},
	}

	g := goldie.New(t)
	d := NewDriver(0, nil, testLogger())

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := compile(t, tc.sh, tc.schema)
			buf := new(bytes.Buffer)
			_, err := d.Stream(context.Background(), p, cursor.FromData(tc.schema, tc.rows), buf, "corr-golden")
			require.NoError(t, err)
			g.Assert(t, tc.name, buf.Bytes())
		})
	}
}
