// Package services contains server-side business logic. RecordService
// guards the generic record store: it checks the table against the allowed
// set, enforces ownership against the authenticated user and assigns ids.
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/carledger/internal/common"
	"github.com/dmitrijs2005/carledger/internal/server/models"
	"github.com/dmitrijs2005/carledger/internal/server/repositories/records"
)

// DefaultOwnerField is the body key that names the owning user.
const DefaultOwnerField = "user_id"

var tempPrefixes = []string{"temp_", "temp-"}

type RecordService struct {
	repo       records.Repository
	tables     map[string]struct{}
	ownerField string
	newID      func() string
}

type Option func(*RecordService)

// WithIDs replaces the uuid generator.
func WithIDs(fn func() string) Option {
	return func(s *RecordService) { s.newID = fn }
}

func WithOwnerField(field string) Option {
	return func(s *RecordService) { s.ownerField = field }
}

// NewRecordService builds a service accepting the given tables only.
func NewRecordService(repo records.Repository, tables []string, opts ...Option) *RecordService {
	s := &RecordService{
		repo:       repo,
		tables:     make(map[string]struct{}, len(tables)),
		ownerField: DefaultOwnerField,
		newID:      uuid.NewString,
	}
	for _, t := range tables {
		s.tables[t] = struct{}{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RecordService) checkTable(table string) error {
	if _, ok := s.tables[table]; !ok {
		return fmt.Errorf("%w: %q", common.ErrUnknownTable, table)
	}
	return nil
}

func isTempID(id string) bool {
	for _, p := range tempPrefixes {
		if strings.HasPrefix(id, p) {
			return true
		}
	}
	return false
}

func ownerOf(data map[string]any, field string) (string, bool) {
	v, ok := data[field]
	if !ok || v == nil {
		return "", false
	}
	s, _ := v.(string)
	return s, true
}

// Insert stores data in table on behalf of userID. The owner field is set
// to userID when absent and must match it otherwise. A missing or
// client-local id is replaced with a fresh uuid. A repeated client_ref
// returns the record created by the first insert.
func (s *RecordService) Insert(ctx context.Context, userID, table string, data map[string]any) (map[string]any, error) {
	if err := s.checkTable(table); err != nil {
		return nil, err
	}
	if data == nil {
		data = map[string]any{}
	}

	body := models.StripReserved(data)
	if owner, ok := ownerOf(data, s.ownerField); ok && owner != userID {
		return nil, common.ErrForbidden
	}
	body[s.ownerField] = userID

	id, _ := data[models.FieldID].(string)
	if id == "" || isTempID(id) {
		id = s.newID()
	}

	ref, _ := data[models.FieldClientRef].(string)

	rec, err := s.repo.Insert(ctx, &models.Record{Table: table, ID: id, OwnerID: userID, ClientRef: ref, Data: body})
	if err != nil {
		return nil, err
	}
	return rec.Wire(), nil
}

// owned loads a record and checks that userID owns it.
func (s *RecordService) owned(ctx context.Context, userID, table, id string) (*models.Record, error) {
	if err := s.checkTable(table); err != nil {
		return nil, err
	}
	rec, err := s.repo.Get(ctx, table, id)
	if err != nil {
		return nil, err
	}
	if rec.OwnerID != userID {
		return nil, common.ErrForbidden
	}
	return rec, nil
}

func (s *RecordService) Get(ctx context.Context, userID, table, id string) (map[string]any, error) {
	rec, err := s.owned(ctx, userID, table, id)
	if err != nil {
		return nil, err
	}
	return rec.Wire(), nil
}

// ListByOwner lists owner's records. Users may only list their own, and
// only by the configured owner field.
func (s *RecordService) ListByOwner(ctx context.Context, userID, table, ownerField, owner string) ([]map[string]any, error) {
	if err := s.checkTable(table); err != nil {
		return nil, err
	}
	if ownerField != s.ownerField {
		return nil, fmt.Errorf("%w: owner field %q", common.ErrInvalidInput, ownerField)
	}
	if owner != userID {
		return nil, common.ErrForbidden
	}

	recs, err := s.repo.ListByOwner(ctx, table, owner)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, len(recs))
	for i, r := range recs {
		out[i] = r.Wire()
	}
	return out, nil
}

// Update merges patch into the record. Ownership cannot be transferred.
func (s *RecordService) Update(ctx context.Context, userID, table, id string, patch map[string]any) (map[string]any, error) {
	if _, err := s.owned(ctx, userID, table, id); err != nil {
		return nil, err
	}
	if owner, ok := ownerOf(patch, s.ownerField); ok && owner != userID {
		return nil, common.ErrForbidden
	}

	rec, err := s.repo.Update(ctx, table, id, models.StripReserved(patch))
	if err != nil {
		return nil, err
	}
	return rec.Wire(), nil
}

func (s *RecordService) Delete(ctx context.Context, userID, table, id string) error {
	if _, err := s.owned(ctx, userID, table, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, table, id)
}
