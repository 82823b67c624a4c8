package records

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/iliyamo/screening-license/internal/model"
	"github.com/iliyamo/screening-license/internal/repository"
)

// DocStore is the storage the MySQL client sits on.  *repository.SubmissionRepo
// satisfies it.
type DocStore interface {
	Create(ctx context.Context, kind, id string, doc []byte) (repository.SubmissionRow, error)
	Get(ctx context.Context, kind, id string) (repository.SubmissionRow, error)
	UpdateDoc(ctx context.Context, kind, id string, fn func(doc []byte) ([]byte, error)) (repository.SubmissionRow, error)
}

// MySQL keeps each record as a JSON document.
type MySQL struct {
	store DocStore
}

func NewMySQL(store DocStore) *MySQL {
	if store == nil {
		panic("records.NewMySQL: nil store")
	}
	return &MySQL{store: store}
}

func (m *MySQL) Create(ctx context.Context, kind model.RecordKind, s model.Submission) (model.Record, error) {
	if !kind.Valid() {
		return model.Record{}, fmt.Errorf("%w: %q", repository.ErrUnknownKind, kind)
	}
	doc, err := json.Marshal(s)
	if err != nil {
		return model.Record{}, fmt.Errorf("encode submission: %w", err)
	}
	row, err := m.store.Create(ctx, string(kind), uuid.NewString(), doc)
	if err != nil {
		return model.Record{}, fmt.Errorf("create %s record: %w", kind, err)
	}
	return toRecord(kind, row)
}

func (m *MySQL) Get(ctx context.Context, kind model.RecordKind, id string) (model.Record, error) {
	if !kind.Valid() {
		return model.Record{}, fmt.Errorf("%w: %q", repository.ErrUnknownKind, kind)
	}
	row, err := m.store.Get(ctx, string(kind), id)
	if err != nil {
		return model.Record{}, err
	}
	return toRecord(kind, row)
}

// UpdateFilmScreenings swaps the film_screenings section of the stored
// document and leaves every other byte of it alone.
func (m *MySQL) UpdateFilmScreenings(ctx context.Context, kind model.RecordKind, id string, fs model.FilmScreenings) (model.Record, error) {
	if !kind.Valid() {
		return model.Record{}, fmt.Errorf("%w: %q", repository.ErrUnknownKind, kind)
	}
	next, err := json.Marshal(fs)
	if err != nil {
		return model.Record{}, fmt.Errorf("encode film_screenings: %w", err)
	}
	row, err := m.store.UpdateDoc(ctx, string(kind), id, func(doc []byte) ([]byte, error) {
		var old model.FilmScreenings
		if cur := gjson.GetBytes(doc, "film_screenings"); cur.Exists() {
			if err := json.Unmarshal([]byte(cur.Raw), &old); err != nil {
				return nil, fmt.Errorf("decode stored film_screenings: %w", err)
			}
		}
		if err := checkLocks(old, fs); err != nil {
			return nil, err
		}
		return sjson.SetRawBytes(doc, "film_screenings", next)
	})
	if err != nil {
		return model.Record{}, err
	}
	return toRecord(kind, row)
}

func toRecord(kind model.RecordKind, row repository.SubmissionRow) (model.Record, error) {
	rec := model.Record{ID: row.ID, Kind: kind}
	if err := json.Unmarshal(row.Doc, &rec.Submission); err != nil {
		return model.Record{}, fmt.Errorf("decode record %s: %w", row.ID, err)
	}
	if !row.CreatedAt.IsZero() {
		rec.CreatedAt = row.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !row.UpdatedAt.IsZero() {
		rec.UpdatedAt = row.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return rec, nil
}
