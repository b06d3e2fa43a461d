// Package models defines the records, queue entries and table schema shared
// by the offline sync components.
package models

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	FieldID = "id"
	// FieldClientRef carries a per-create key on inserts so the server can
	// answer a replayed insert with the record it already created.
	FieldClientRef = "clientRef"

	// MarkerOffline flags a record written locally without remote confirmation.
	MarkerOffline = "_isOffline"
	// MarkerFromCache flags a value served from the local snapshot.
	MarkerFromCache = "_fromCache"

	tempPrefix    = "temp_"
	tempPrefixAlt = "temp-"
)

var ErrIncorrectField = errors.New("field must be name=value")

// Record is an opaque field map. Keys are camelCase in memory and
// snake_case on the wire.
type Record map[string]any

// ForInsert returns the payload for a remote insert: markers and a
// temporary id are dropped, the server assigns the real id.
func (r Record) ForInsert() Record {
	out := r.WithoutMarkers()
	if out == nil {
		out = Record{}
	}
	if IsTempID(out.ID()) {
		delete(out, FieldID)
	}
	return out
}

// ID returns the record id as a string, or "" if it is missing.
func (r Record) ID() string {
	return Str(r[FieldID])
}

func (r Record) IsOffline() bool {
	v, _ := r[MarkerOffline].(bool)
	return v
}

func (r Record) FromCache() bool {
	v, _ := r[MarkerFromCache].(bool)
	return v
}

// Clone returns a deep copy; nested maps and slices are not shared.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

// WithoutMarkers returns a copy without the local bookkeeping markers.
func (r Record) WithoutMarkers() Record {
	out := r.Clone()
	delete(out, MarkerOffline)
	delete(out, MarkerFromCache)
	return out
}

// Merge returns a copy of r with updates applied on top (shallow, last
// write wins per field).
func (r Record) Merge(updates Record) Record {
	out := r.Clone()
	if out == nil {
		out = Record{}
	}
	for k, v := range updates {
		out[k] = cloneValue(v)
	}
	return out
}

// TempID builds a temporary id for a record created while offline.
func TempID(now time.Time) string {
	return tempPrefix + strconv.FormatInt(now.UnixMilli(), 10)
}

// IsTempID reports whether id was assigned locally.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempPrefix) || strings.HasPrefix(id, tempPrefixAlt)
}

// Str renders an id-like value as a string. JSON numbers arrive as float64.
func Str(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case int:
		return strconv.Itoa(value)
	case int64:
		return strconv.FormatInt(value, 10)
	default:
		return ""
	}
}

// FieldsFromString parses "name=value" items into a Record. Values that look
// like integers, floats or booleans are typed accordingly.
func FieldsFromString(items []string) (Record, error) {
	rec := make(Record, len(items))
	for _, item := range items {
		name, value, ok := strings.Cut(item, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, ErrIncorrectField
		}
		rec[name] = parseScalar(strings.TrimSpace(value))
	}
	return rec, nil
}

func parseScalar(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return float64(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil && (s == "true" || s == "false") {
		return b
	}
	return s
}

func cloneValue(v any) any {
	switch value := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(value))
		for k, item := range value {
			out[k] = cloneValue(item)
		}
		return out
	case Record:
		return value.Clone()
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
