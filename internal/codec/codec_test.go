package codec

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"docrow.io/row-export-backend/internal/cursor"
)

func render(t *testing.T, w WriteFunc, s *Slot) string {
	t.Helper()
	buf := new(bytes.Buffer)
	out := jsoniter.NewStream(jsoniter.ConfigCompatibleWithStandardLibrary, buf, 64)
	w(out, s)
	require.NoError(t, out.Flush())
	return buf.String()
}

func readOne(t *testing.T, typ cursor.Type, value any) Slot {
	t.Helper()
	cd, ok := ForType(typ)
	require.True(t, ok, "no codec for %s", typ)
	cur := cursor.FromData(cursor.Schema{{Name: "v", Type: typ}}, [][]any{{value}})
	require.True(t, cur.Advance())
	var slot Slot
	cd.Read(cur, 0, &slot)
	return slot
}

func TestCodecs_RoundTripJSONKinds(t *testing.T) {
	ts := time.Date(2024, 5, 4, 12, 30, 0, 0, time.UTC)
	id := uuid.MustParse("f47ac10b-58cc-4372-a567-0e02b2c3d479")
	price, err := decimal.NewFromString("19.95")
	require.NoError(t, err)

	cases := []struct {
		name  string
		typ   cursor.Type
		value any
		want  string
	}{
		{"bool true", cursor.Bool, true, "true"},
		{"bool false", cursor.Bool, false, "false"},
		{"int8", cursor.Int8, int8(-7), "-7"},
		{"int16", cursor.Int16, int16(1200), "1200"},
		{"int32", cursor.Int32, int32(-70000), "-70000"},
		{"int64", cursor.Int64, int64(1 << 40), "1099511627776"},
		{"uint8", cursor.Uint8, uint8(255), "255"},
		{"float32", cursor.Float32, float32(1.5), "1.5"},
		{"float64", cursor.Float64, 19.95, "19.95"},
		{"decimal", cursor.Decimal, price, "19.95"},
		{"decimal zero", cursor.Decimal, decimal.Zero, "0"},
		{"timestamp", cursor.Timestamp, ts, `"2024-05-04T12:30:00Z"`},
		{"uuid", cursor.UUID, id, `"f47ac10b-58cc-4372-a567-0e02b2c3d479"`},
		{"string", cursor.String, "Widget", `"Widget"`},
		{"string escaping", cursor.String, "a\"b\nc", `"a\"b\nc"`},
		{"char", cursor.Char, 'x', `"x"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cd, ok := ForType(tc.typ)
			require.True(t, ok)
			slot := readOne(t, tc.typ, tc.value)
			require.False(t, slot.Null)
			require.Equal(t, tc.want, render(t, cd.Write, &slot))
		})
	}
}

func TestCodecs_NullMarker(t *testing.T) {
	for typ := cursor.Bool; typ <= cursor.Char; typ++ {
		t.Run(typ.String(), func(t *testing.T) {
			cd, ok := ForType(typ)
			require.True(t, ok)
			slot := readOne(t, typ, nil)
			require.True(t, slot.Null)
			require.Equal(t, "null", render(t, cd.Write, &slot))
		})
	}
}

func TestForType_UnknownHasNoCodec(t *testing.T) {
	_, ok := ForType(cursor.Unknown)
	require.False(t, ok)
}

func TestFallback_Stringify(t *testing.T) {
	cd := Fallback(true)
	cur := cursor.FromData(cursor.Schema{{Name: "v", Type: cursor.Unknown}}, [][]any{{int64(42)}})
	require.True(t, cur.Advance())

	var slot Slot
	cd.Read(cur, 0, &slot)
	require.Equal(t, `"42"`, render(t, cd.Write, &slot))
}

func TestFallback_NullInsteadOfString(t *testing.T) {
	cd := Fallback(false)
	cur := cursor.FromData(cursor.Schema{{Name: "v", Type: cursor.Unknown}}, [][]any{{"opaque"}})
	require.True(t, cur.Advance())

	var slot Slot
	cd.Read(cur, 0, &slot)
	require.Equal(t, "null", render(t, cd.Write, &slot))
}

func TestFallback_NullValue(t *testing.T) {
	cd := Fallback(true)
	cur := cursor.FromData(cursor.Schema{{Name: "v", Type: cursor.Unknown}}, [][]any{{nil}})
	require.True(t, cur.Advance())

	var slot Slot
	cd.Read(cur, 0, &slot)
	require.True(t, slot.Null)
	require.Equal(t, "null", render(t, cd.Write, &slot))
}
