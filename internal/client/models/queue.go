package models

// Operation is the kind of write recorded in a queue entry.
type Operation string

const (
	OpCreate Operation = "CREATE"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
)

// QueueEntry is one pending mutation. For DELETE, Data only carries the id.
type QueueEntry struct {
	Operation Operation `json:"operation"`
	Data      Record    `json:"data"`
	Timestamp int64     `json:"timestamp"`
	ID        string    `json:"id"`
	Attempts  int       `json:"attempts,omitempty"`
	LastError string    `json:"lastError,omitempty"`
}

// RecordID is the id of the record the entry mutates.
func (e QueueEntry) RecordID() string {
	return e.Data.ID()
}

// SyncResult aggregates a queue replay.
type SyncResult struct {
	Synced int `json:"synced"`
	Errors int `json:"errors"`
	// Dropped counts entries discarded after exhausting their attempts.
	Dropped int `json:"dropped,omitempty"`
	// Deferred counts entries held back behind an earlier failure for the
	// same record.
	Deferred int `json:"deferred,omitempty"`
	// Remapped counts temporary ids replaced by server ids.
	Remapped int `json:"remapped,omitempty"`
}

func (r *SyncResult) Add(o SyncResult) {
	r.Synced += o.Synced
	r.Errors += o.Errors
	r.Dropped += o.Dropped
	r.Deferred += o.Deferred
	r.Remapped += o.Remapped
}
