package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/carledger/internal/common"
	"github.com/dmitrijs2005/carledger/internal/dbx"
	"github.com/dmitrijs2005/carledger/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRecord reads owner_id, data, created_at, updated_at into a record
// whose table and id are already known.
func scanRecord(row scanner, table, id string) (*models.Record, error) {
	rec := &models.Record{Table: table, ID: id}
	var body []byte
	if err := row.Scan(&rec.OwnerID, &body, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, &rec.Data); err != nil {
		return nil, fmt.Errorf("decode record body: %w", err)
	}
	if rec.Data == nil {
		rec.Data = map[string]any{}
	}
	return rec, nil
}

// Insert stores rec. ON CONFLICT DO NOTHING turns a duplicate key into
// zero returned rows. When rec carries a client ref already used by the
// same owner, the earlier row is returned; any other duplicate is
// ErrAlreadyExists.
func (r *PostgresRepository) Insert(ctx context.Context, rec *models.Record) (*models.Record, error) {
	body, err := json.Marshal(models.StripReserved(rec.Data))
	if err != nil {
		return nil, fmt.Errorf("encode record body: %w", err)
	}

	query := `
		INSERT INTO records (table_name, id, owner_id, client_ref, data)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
		ON CONFLICT DO NOTHING
		RETURNING owner_id, data, created_at, updated_at
	`
	row := r.db.QueryRowContext(ctx, query, rec.Table, rec.ID, rec.OwnerID, rec.ClientRef, body)
	out, err := scanRecord(row, rec.Table, rec.ID)
	if errors.Is(err, sql.ErrNoRows) {
		if rec.ClientRef == "" {
			return nil, common.ErrAlreadyExists
		}
		return r.byClientRef(ctx, rec)
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) byClientRef(ctx context.Context, rec *models.Record) (*models.Record, error) {
	query := `
		SELECT id, owner_id, data, created_at, updated_at FROM records
		WHERE table_name = $1 AND owner_id = $2 AND client_ref = $3
	`
	var body []byte
	out := &models.Record{Table: rec.Table, ClientRef: rec.ClientRef}
	err := r.db.QueryRowContext(ctx, query, rec.Table, rec.OwnerID, rec.ClientRef).
		Scan(&out.ID, &out.OwnerID, &body, &out.CreatedAt, &out.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// The conflict was on the id, not on the ref.
		return nil, common.ErrAlreadyExists
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if err := json.Unmarshal(body, &out.Data); err != nil {
		return nil, fmt.Errorf("decode record body: %w", err)
	}
	if out.Data == nil {
		out.Data = map[string]any{}
	}
	return out, nil
}

func (r *PostgresRepository) Get(ctx context.Context, table, id string) (*models.Record, error) {
	query := `SELECT owner_id, data, created_at, updated_at FROM records WHERE table_name = $1 AND id = $2`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, table, id), table, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, table, ownerID string) ([]*models.Record, error) {
	query := `
		SELECT id, owner_id, data, created_at, updated_at FROM records
		WHERE table_name = $1 AND owner_id = $2
		ORDER BY created_at, id
	`
	rows, err := r.db.QueryContext(ctx, query, table, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	result := []*models.Record{}
	for rows.Next() {
		rec := &models.Record{Table: table}
		var body []byte
		if err := rows.Scan(&rec.ID, &rec.OwnerID, &body, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(body, &rec.Data); err != nil {
			return nil, fmt.Errorf("decode record body: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Update(ctx context.Context, table, id string, patch map[string]any) (*models.Record, error) {
	body, err := json.Marshal(models.StripReserved(patch))
	if err != nil {
		return nil, fmt.Errorf("encode patch: %w", err)
	}

	query := `
		UPDATE records SET data = data || $3::jsonb, updated_at = now()
		WHERE table_name = $1 AND id = $2
		RETURNING owner_id, data, created_at, updated_at
	`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, table, id, body), table, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, table, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE table_name = $1 AND id = $2`, table, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
