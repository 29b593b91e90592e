package templates

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/formdesk/formdesk/internal/platform/pdfform"
)

// PgRepository is the Postgres-backed Repository. Field lists are stored
// as a JSONB blob in the template row; the engine never queries inside it.
type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Create(ctx context.Context, t *Template) error {
	if t.Fields == nil {
		t.Fields = []pdfform.Field{}
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO pdf_templates (name, description, file_name, fields, active, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		t.Name, t.Description, t.FileName, t.Fields, t.Active, t.CreatedBy,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

func (r *PgRepository) GetByID(ctx context.Context, id int64) (*Template, error) {
	var t Template
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, description, file_name, fields, active, created_by, created_at
		FROM pdf_templates WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.Description, &t.FileName, &t.Fields, &t.Active, &t.CreatedBy, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select template %d: %w", id, err)
	}
	return &t, nil
}

func (r *PgRepository) List(ctx context.Context, includeInactive bool) ([]Summary, error) {
	query := `
		SELECT id, name, description, file_name, jsonb_array_length(fields), active, created_by, created_at
		FROM pdf_templates`
	if !includeInactive {
		query += ` WHERE active`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	summaries := []Summary{}
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.FileName,
			&s.FieldCount, &s.Active, &s.CreatedBy, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan template row: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

func (r *PgRepository) Update(ctx context.Context, id int64, p UpdateParams) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE pdf_templates
		SET name = COALESCE($2, name),
		    description = COALESCE($3, description),
		    active = COALESCE($4, active)
		WHERE id = $1`,
		id, p.Name, p.Description, p.Active)
	if err != nil {
		return false, fmt.Errorf("update template %d: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// SoftDelete is idempotent: deactivating an already-inactive template
// still reports success.
func (r *PgRepository) SoftDelete(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE pdf_templates SET active = false WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("soft delete template %d: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgRepository) SaveFields(ctx context.Context, id int64, fields []pdfform.Field) (bool, error) {
	if fields == nil {
		fields = []pdfform.Field{}
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE pdf_templates SET fields = $2 WHERE id = $1`, id, fields)
	if err != nil {
		return false, fmt.Errorf("save fields for template %d: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgRepository) GetFields(ctx context.Context, id int64) ([]pdfform.Field, error) {
	var fields []pdfform.Field
	err := r.pool.QueryRow(ctx,
		`SELECT fields FROM pdf_templates WHERE id = $1`, id).Scan(&fields)
	if errors.Is(err, pgx.ErrNoRows) {
		return []pdfform.Field{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select fields for template %d: %w", id, err)
	}
	if fields == nil {
		fields = []pdfform.Field{}
	}
	return fields, nil
}
