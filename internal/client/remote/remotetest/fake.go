// Package remotetest provides an in-memory remote.Store for tests of the
// components that sit on top of the remote contract.
package remotetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/carledger/internal/client/models"
	"github.com/dmitrijs2005/carledger/internal/client/remote"
)

// Call records one request made to the fake.
type Call struct {
	Op    string
	Table string
	ID    string
	Data  models.Record
}

// ClientRefKey is the wire name of models.FieldClientRef.
const ClientRefKey = "client_ref"

// Store keeps records per table in insertion order. Set Offline to make
// every call fail with remote.ErrUnavailable, or FailFn to fail selected
// calls. Like the server, it answers an insert whose client_ref it has
// already seen with the record created the first time.
type Store struct {
	mu      sync.Mutex
	tables  map[string][]models.Record
	refs    map[string]string
	nextID  int
	offline bool
	calls   []Call

	// FailFn, when set, is consulted before every call; a non-nil result
	// is returned instead of performing the call.
	FailFn func(c Call) error
}

func New() *Store {
	return &Store{tables: make(map[string][]models.Record), refs: make(map[string]string)}
}

func (s *Store) SetOffline(offline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = offline
}

func (s *Store) SetFailFn(fn func(c Call) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FailFn = fn
}

// Seed puts records directly into a table, bypassing the call log.
func (s *Store) Seed(table string, records ...models.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.tables[table] = append(s.tables[table], r.Clone())
	}
}

// Records returns a copy of the table contents.
func (s *Store) Records(table string) []models.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Record, 0, len(s.tables[table]))
	for _, r := range s.tables[table] {
		out = append(out, r.Clone())
	}
	return out
}

func (s *Store) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// begin logs the call and returns the injected failure, if any. Caller
// holds the lock.
func (s *Store) begin(c Call) error {
	s.calls = append(s.calls, c)
	if s.offline {
		return remote.ErrUnavailable
	}
	if s.FailFn != nil {
		return s.FailFn(c)
	}
	return nil
}

func (s *Store) index(table, id string) int {
	for i, r := range s.tables[table] {
		if r.ID() == id {
			return i
		}
	}
	return -1
}

func (s *Store) Insert(_ context.Context, table string, data models.Record) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(Call{Op: "insert", Table: table, ID: data.ID(), Data: data.Clone()}); err != nil {
		return nil, err
	}

	rec := data.Clone()
	ref := models.Str(rec[ClientRefKey])
	delete(rec, ClientRefKey)
	if ref != "" {
		if id, ok := s.refs[table+"/"+ref]; ok {
			if i := s.index(table, id); i >= 0 {
				return s.tables[table][i].Clone(), nil
			}
		}
	}

	if rec.ID() == "" {
		s.nextID++
		rec[models.FieldID] = fmt.Sprintf("srv-%d", s.nextID)
	}
	if s.index(table, rec.ID()) >= 0 {
		return nil, fmt.Errorf("%w: duplicate id %s", remote.ErrRejected, rec.ID())
	}
	s.tables[table] = append(s.tables[table], rec)
	if ref != "" {
		s.refs[table+"/"+ref] = rec.ID()
	}
	return rec.Clone(), nil
}

func (s *Store) Get(_ context.Context, table, id string) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(Call{Op: "get", Table: table, ID: id}); err != nil {
		return nil, err
	}
	i := s.index(table, id)
	if i < 0 {
		return nil, remote.ErrNotFound
	}
	return s.tables[table][i].Clone(), nil
}

func (s *Store) ListByOwner(_ context.Context, table, ownerField, owner string) ([]models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(Call{Op: "list", Table: table, ID: owner}); err != nil {
		return nil, err
	}
	out := []models.Record{}
	for _, r := range s.tables[table] {
		if models.Str(r[ownerField]) == owner {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (s *Store) Update(_ context.Context, table, id string, patch models.Record) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(Call{Op: "update", Table: table, ID: id, Data: patch.Clone()}); err != nil {
		return nil, err
	}
	i := s.index(table, id)
	if i < 0 {
		return nil, remote.ErrNotFound
	}
	merged := s.tables[table][i].Merge(patch)
	merged[models.FieldID] = id
	s.tables[table][i] = merged
	return merged.Clone(), nil
}

func (s *Store) Delete(_ context.Context, table, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(Call{Op: "delete", Table: table, ID: id}); err != nil {
		return err
	}
	i := s.index(table, id)
	if i < 0 {
		return remote.ErrNotFound
	}
	s.tables[table] = append(s.tables[table][:i], s.tables[table][i+1:]...)
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offline {
		return remote.ErrUnavailable
	}
	return nil
}
