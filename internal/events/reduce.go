// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package events

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/agentlens/internal/trace"
)

// maxDepth bounds recursion; deeper values are rendered as their type name.
const maxDepth = 32

// preservedKeys are underscore-prefixed or metadata keys kept when a
// trace.Mapping is reduced.
var preservedKeys = map[string]bool{
	"usage_metadata":    true,
	"response_metadata": true,
	"token_usage":       true,
	"_type":             true,
	"_name":             true,
}

// Reduce converts an event payload into a JSON-safe value: nil, a bool, a
// number, a string, []any or map[string]any. It never panics and never
// recurses past maxDepth, so cyclic values terminate.
func Reduce(v any) any {
	return reduce(v, 0)
}

func reduce(v any, depth int) (out any) {
	defer func() {
		if r := recover(); r != nil {
			out = typeName(v)
		}
	}()
	if depth > maxDepth {
		return typeName(v)
	}

	switch x := v.(type) {
	case nil:
		return nil
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return x
	case float32:
		return finite(float64(x))
	case float64:
		return finite(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case time.Duration:
		return x.String()

	case trace.Usage:
		return map[string]any{"usage_metadata": x.Map()}
	case *trace.Usage:
		if x == nil {
			return nil
		}
		return map[string]any{"usage_metadata": x.Map()}
	case trace.Message:
		if x.Usage != nil {
			return map[string]any{"usage_metadata": x.Usage.Map()}
		}
		if x.Parts != nil {
			return reduce(x.Parts, depth+1)
		}
		return x.Text
	case trace.Mapping:
		out := make(map[string]any, len(x))
		for k, val := range x {
			if strings.HasPrefix(k, "_") && !preservedKeys[k] {
				continue
			}
			out[k] = reduce(val, depth+1)
		}
		return out
	case trace.Opaque:
		r := reduce(x.Value, depth+1)
		if str, ok := r.(string); ok {
			return str
		}
		return fmt.Sprint(r)

	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = reduce(val, depth+1)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = val
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = reduce(val, depth+1)
		}
		return out
	case []string:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = val
		}
		return out
	case []map[string]any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = reduce(val, depth+1)
		}
		return out
	case []int:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = val
		}
		return out
	case []float64:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = finite(val)
		}
		return out

	case error:
		return x.Error()
	case fmt.Stringer:
		return x.String()
	default:
		return reduceValue(reflect.ValueOf(v), depth)
	}
}

// reduceValue walks containers the type switch does not name. Structs keep
// their exported fields, like encoding/json. Scalars of named types become
// their underlying value; anything else becomes its type name.
func reduceValue(rv reflect.Value, depth int) any {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return reduce(rv.Elem().Interface(), depth+1)
	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[mapKey(iter.Key())] = reduce(iter.Value().Interface(), depth+1)
		}
		return out
	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return string(rv.Bytes())
		}
		fallthrough
	case reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = reduce(rv.Index(i).Interface(), depth+1)
		}
		return out
	case reflect.Struct:
		t := rv.Type()
		out := make(map[string]any, t.NumField())
		for i := 0; i < t.NumField(); i++ {
			if f := t.Field(i); f.IsExported() {
				out[f.Name] = reduce(rv.Field(i).Interface(), depth+1)
			}
		}
		return out
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return finite(rv.Float())
	case reflect.Complex64, reflect.Complex128:
		return strconv.FormatComplex(rv.Complex(), 'g', -1, 128)
	default:
		return typeName(rv.Interface())
	}
}

// mapKey renders a map key as a string without walking it.
func mapKey(k reflect.Value) string {
	switch k.Kind() {
	case reflect.String:
		return k.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(k.Uint(), 10)
	case reflect.Bool:
		return strconv.FormatBool(k.Bool())
	default:
		return typeName(k.Interface())
	}
}

// finite returns f, or its string form when f is NaN or infinite.
func finite(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return f
}

// typeName renders v as "<T>" without looking inside it.
func typeName(v any) string {
	return fmt.Sprintf("<%T>", v)
}
