// Package textfmt turns arbitrary row, batch and error payloads into bounded
// human-readable text for embedding in report lines. Every function here is
// total: a payload that cannot be encoded degrades to placeholder text.
package textfmt

import (
	"errors"
	"fmt"
	"reflect"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	jsoniter "github.com/json-iterator/go"
)

// DefaultLimit is the display width applied to payloads when callers do not
// configure one.
const DefaultLimit = 200

// MaxPreviewItems caps how many elements of a list payload are displayed.
const MaxPreviewItems = 3

const ellipsis = "…"

var api = jsoniter.ConfigCompatibleWithStandardLibrary

// Serialize renders v as JSON text. Encoding failures yield a placeholder.
func Serialize(v any) string {
	b, err := encode(v)
	if err != nil {
		return fmt.Sprintf("[unserializable payload: %v]", err)
	}
	return string(b)
}

// Size is the byte length of the JSON encoding of v, or 0 when v cannot be
// encoded.
func Size(v any) int64 {
	b, err := encode(v)
	if err != nil {
		return 0
	}
	return int64(len(b))
}

func encode(v any) (b []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			b, err = nil, fmt.Errorf("encoder panic: %v", r)
		}
	}()
	return api.Marshal(v)
}

// Preview shortens list payloads to MaxPreviewItems elements followed by a
// marker naming how many were left out. Other values are returned as-is.
func Preview(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return v
		}
	default:
		return v
	}
	n := rv.Len()
	if n <= MaxPreviewItems {
		return v
	}
	out := make([]any, 0, MaxPreviewItems+1)
	for i := 0; i < MaxPreviewItems; i++ {
		out = append(out, rv.Index(i).Interface())
	}
	return append(out, fmt.Sprintf("%s [+%d items]", ellipsis, n-MaxPreviewItems))
}

// Summarize is Serialize(Preview(v)) cut to limit characters.
func Summarize(v any, limit int) string {
	return Truncate(Serialize(Preview(v)), limit)
}

// Truncate cuts s to limit-1 characters plus an ellipsis when s is longer
// than limit characters. A non-positive limit disables truncation.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + ellipsis
}

// Inline renders a descriptive value for use inside a header.
func Inline(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case error:
		return x.Error()
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

var errUnknown = errors.New("unknown error")

// ErrorText describes err, tolerating nil.
func ErrorText(err error) string {
	if err == nil {
		err = errUnknown
	}
	return err.Error()
}

// Bytes humanizes a byte count using SI units ("7 B", "1.2 kB").
func Bytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

// Duration renders d at millisecond precision.
func Duration(d time.Duration) string {
	if d < time.Millisecond {
		return d.String()
	}
	return d.Round(time.Millisecond).String()
}
