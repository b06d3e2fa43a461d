package models

import "time"

// Reserved keys managed by the store itself. They are never persisted in
// Data and are filled in from the columns on the way out.
const (
	FieldID        = "id"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
	// FieldClientRef is the client's key for an insert it may replay. It
	// lives in its own column and is never returned.
	FieldClientRef = "client_ref"
)

// Record is one row of the records table. Data is the record body with
// snake_case keys, as received from the client.
type Record struct {
	Table     string
	ID        string
	OwnerID   string
	ClientRef string
	Data      map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Wire renders the record the way clients see it: Data plus the id and
// timestamps.
func (r *Record) Wire() map[string]any {
	out := make(map[string]any, len(r.Data)+3)
	for k, v := range r.Data {
		out[k] = v
	}
	out[FieldID] = r.ID
	if !r.CreatedAt.IsZero() {
		out[FieldCreatedAt] = r.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	if !r.UpdatedAt.IsZero() {
		out[FieldUpdatedAt] = r.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	return out
}

// StripReserved returns a copy of data without the store-managed keys.
func StripReserved(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		switch k {
		case FieldID, FieldCreatedAt, FieldUpdatedAt, FieldClientRef:
			continue
		}
		out[k] = v
	}
	return out
}
