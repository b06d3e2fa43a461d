// Package casex converts record keys between the wire convention
// (snake_case) and the in-memory convention (camelCase).
//
// The transform is purely lexical and not schema-aware: "carId" becomes
// "car_id" and back, but a key such as "vin_2" does not round-trip
// ("vin_2" -> "vin_2" is left alone only because '2' is not a lowercase
// letter). Callers pick field names that survive the trip.
package casex

import (
	"strings"
	"unicode"
)

// SnakeKey converts a single camelCase key: every upper-case letter becomes
// '_' followed by its lower-case form.
func SnakeKey(key string) string {
	var b strings.Builder
	b.Grow(len(key) + 4)
	for _, r := range key {
		if r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CamelKey converts a single snake_case key: every '_' followed by a
// lower-case ASCII letter collapses into that letter upper-cased. Other
// underscores are kept.
func CamelKey(key string) string {
	if !strings.Contains(key, "_") {
		return key
	}
	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c == '_' && i+1 < len(key) && key[i+1] >= 'a' && key[i+1] <= 'z' {
			b.WriteByte(key[i+1] - 'a' + 'A')
			i++
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// ToRemoteKeys walks v recursively and returns a copy whose map keys are
// snake_case. Scalars and nil are returned untouched.
func ToRemoteKeys(v any) any {
	return convert(v, SnakeKey)
}

// ToLocalKeys is the inverse of ToRemoteKeys.
func ToLocalKeys(v any) any {
	return convert(v, CamelKey)
}

// RemoteMap and LocalMap are typed shortcuts for the common record case.
func RemoteMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return convertMap(m, SnakeKey)
}

func LocalMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return convertMap(m, CamelKey)
}

func convert(v any, key func(string) string) any {
	switch value := v.(type) {
	case map[string]any:
		if value == nil {
			return value
		}
		return convertMap(value, key)
	case []map[string]any:
		out := make([]map[string]any, len(value))
		for i, m := range value {
			if m != nil {
				out[i] = convertMap(m, key)
			}
		}
		return out
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = convert(item, key)
		}
		return out
	default:
		return v
	}
}

func convertMap(m map[string]any, key func(string) string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[key(k)] = convert(v, key)
	}
	return out
}
