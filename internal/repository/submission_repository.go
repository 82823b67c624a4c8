package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SubmissionRow is a stored submission document.
type SubmissionRow struct {
	ID        string
	Doc       []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SubmissionRepo stores submission documents, one table per record kind.
type SubmissionRepo struct{ db *sql.DB }

func NewSubmissionRepo(db *sql.DB) *SubmissionRepo { return &SubmissionRepo{db: db} }

var kindTables = map[string]string{
	"general":  "submissions",
	"regional": "regional_submissions",
}

func tableFor(kind string) (string, error) {
	t, ok := kindTables[kind]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return t, nil
}

// Create inserts a new document under id.
func (r *SubmissionRepo) Create(ctx context.Context, kind, id string, doc []byte) (SubmissionRow, error) {
	table, err := tableFor(kind)
	if err != nil {
		return SubmissionRow{}, err
	}
	now := time.Now().UTC().Truncate(time.Second)
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO `+table+` (id, doc, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, doc, now, now)
	if err != nil {
		return SubmissionRow{}, err
	}
	return SubmissionRow{ID: id, Doc: doc, CreatedAt: now, UpdatedAt: now}, nil
}

// Get loads one document.
func (r *SubmissionRepo) Get(ctx context.Context, kind, id string) (SubmissionRow, error) {
	table, err := tableFor(kind)
	if err != nil {
		return SubmissionRow{}, err
	}
	var row SubmissionRow
	err = r.db.QueryRowContext(ctx,
		`SELECT id, doc, created_at, updated_at FROM `+table+` WHERE id = ?`, id).
		Scan(&row.ID, &row.Doc, &row.CreatedAt, &row.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SubmissionRow{}, ErrNotFound
	}
	if err != nil {
		return SubmissionRow{}, err
	}
	return row, nil
}

// UpdateDoc rewrites a document inside a transaction.  The row is locked
// while fn computes the new document; an error from fn aborts the update
// and is returned as is.
func (r *SubmissionRepo) UpdateDoc(ctx context.Context, kind, id string, fn func(doc []byte) ([]byte, error)) (SubmissionRow, error) {
	table, err := tableFor(kind)
	if err != nil {
		return SubmissionRow{}, err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return SubmissionRow{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var row SubmissionRow
	err = tx.QueryRowContext(ctx,
		`SELECT id, doc, created_at FROM `+table+` WHERE id = ? FOR UPDATE`, id).
		Scan(&row.ID, &row.Doc, &row.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SubmissionRow{}, ErrNotFound
	}
	if err != nil {
		return SubmissionRow{}, err
	}

	next, err := fn(row.Doc)
	if err != nil {
		return SubmissionRow{}, err
	}
	now := time.Now().UTC().Truncate(time.Second)
	if _, err := tx.ExecContext(ctx,
		`UPDATE `+table+` SET doc = ?, updated_at = ? WHERE id = ?`, next, now, id); err != nil {
		return SubmissionRow{}, err
	}
	if err := tx.Commit(); err != nil {
		return SubmissionRow{}, err
	}
	committed = true
	row.Doc = next
	row.UpdatedAt = now
	return row, nil
}
