package templates

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/formdesk/formdesk/internal/platform/pdfform"
)

// SQLiteRepository is the SQLite-backed Repository, for single-node
// deployments without a Postgres instance. Field lists are stored as a
// JSON TEXT column.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func marshalFields(fields []pdfform.Field) (string, error) {
	if fields == nil {
		fields = []pdfform.Field{}
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("marshal fields: %w", err)
	}
	return string(b), nil
}

func unmarshalFields(blob string) ([]pdfform.Field, error) {
	if blob == "" {
		return []pdfform.Field{}, nil
	}
	var fields []pdfform.Field
	if err := json.Unmarshal([]byte(blob), &fields); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	if fields == nil {
		fields = []pdfform.Field{}
	}
	return fields, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, t *Template) error {
	blob, err := marshalFields(t.Fields)
	if err != nil {
		return err
	}
	if t.Fields == nil {
		t.Fields = []pdfform.Field{}
	}
	t.CreatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO pdf_templates (name, description, file_name, fields, active, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.Name, t.Description, t.FileName, blob, t.Active, t.CreatedBy, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	t.ID = id
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*Template, error) {
	var (
		t    Template
		blob string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, file_name, fields, active, created_by, created_at
		FROM pdf_templates WHERE id = ?`, id,
	).Scan(&t.ID, &t.Name, &t.Description, &t.FileName, &blob, &t.Active, &t.CreatedBy, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select template %d: %w", id, err)
	}
	if t.Fields, err = unmarshalFields(blob); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *SQLiteRepository) List(ctx context.Context, includeInactive bool) ([]Summary, error) {
	query := `
		SELECT id, name, description, file_name, fields, active, created_by, created_at
		FROM pdf_templates`
	if !includeInactive {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	summaries := []Summary{}
	for rows.Next() {
		var (
			s    Summary
			blob string
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.FileName,
			&blob, &s.Active, &s.CreatedBy, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan template row: %w", err)
		}
		fields, err := unmarshalFields(blob)
		if err != nil {
			return nil, err
		}
		s.FieldCount = len(fields)
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

func (r *SQLiteRepository) Update(ctx context.Context, id int64, p UpdateParams) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE pdf_templates
		SET name = COALESCE(?, name),
		    description = COALESCE(?, description),
		    active = COALESCE(?, active)
		WHERE id = ?`,
		p.Name, p.Description, p.Active, id)
	if err != nil {
		return false, fmt.Errorf("update template %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update template %d: %w", id, err)
	}
	return n > 0, nil
}

// SoftDelete is idempotent: deactivating an already-inactive template
// still reports success.
func (r *SQLiteRepository) SoftDelete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE pdf_templates SET active = 0 WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("soft delete template %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("soft delete template %d: %w", id, err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) SaveFields(ctx context.Context, id int64, fields []pdfform.Field) (bool, error) {
	blob, err := marshalFields(fields)
	if err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE pdf_templates SET fields = ? WHERE id = ?`, blob, id)
	if err != nil {
		return false, fmt.Errorf("save fields for template %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("save fields for template %d: %w", id, err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) GetFields(ctx context.Context, id int64) ([]pdfform.Field, error) {
	var blob string
	err := r.db.QueryRowContext(ctx,
		`SELECT fields FROM pdf_templates WHERE id = ?`, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return []pdfform.Field{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select fields for template %d: %w", id, err)
	}
	return unmarshalFields(blob)
}
