package codec

import (
	"fmt"
	"strconv"
	"time"
)

// renderOpaque converts a fallback slot value to its string form. This path
// only runs for columns outside the primitive set, which the compiler reports
// once per column; it never allocates on behalf of supported types.
func renderOpaque(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprintf("%v", v)
}
