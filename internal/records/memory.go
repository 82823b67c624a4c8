package records

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/iliyamo/screening-license/internal/model"
	"github.com/iliyamo/screening-license/internal/repository"
)

// MemoryStore is an in-process DocStore.  Pair it with NewMySQL to exercise
// the document handling without a database.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[string]repository.SubmissionRow

	// Fail, when set, is returned by every call.
	Fail error
	// Creates counts Create calls; Updates counts UpdateDoc calls that
	// reached storage.
	Creates int
	Updates int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]repository.SubmissionRow)}
}

func memKey(kind, id string) string { return kind + "/" + id }

func (s *MemoryStore) Create(_ context.Context, kind, id string, doc []byte) (repository.SubmissionRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return repository.SubmissionRow{}, s.Fail
	}
	if kind != string(model.KindGeneral) && kind != string(model.KindRegional) {
		return repository.SubmissionRow{}, repository.ErrUnknownKind
	}
	s.Creates++
	now := time.Now().UTC()
	row := repository.SubmissionRow{ID: id, Doc: append([]byte(nil), doc...), CreatedAt: now, UpdatedAt: now}
	s.docs[memKey(kind, id)] = row
	return row, nil
}

func (s *MemoryStore) Get(_ context.Context, kind, id string) (repository.SubmissionRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return repository.SubmissionRow{}, s.Fail
	}
	row, ok := s.docs[memKey(kind, id)]
	if !ok {
		return repository.SubmissionRow{}, repository.ErrNotFound
	}
	return row, nil
}

func (s *MemoryStore) UpdateDoc(_ context.Context, kind, id string, fn func([]byte) ([]byte, error)) (repository.SubmissionRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return repository.SubmissionRow{}, s.Fail
	}
	row, ok := s.docs[memKey(kind, id)]
	if !ok {
		return repository.SubmissionRow{}, repository.ErrNotFound
	}
	next, err := fn(row.Doc)
	if err != nil {
		return repository.SubmissionRow{}, err
	}
	s.Updates++
	row.Doc = next
	row.UpdatedAt = time.Now().UTC()
	s.docs[memKey(kind, id)] = row
	return row, nil
}

// Seed stores rec as is, keeping its id.
func (s *MemoryStore) Seed(rec model.Record) error {
	doc, err := json.Marshal(rec.Submission)
	if err != nil {
		return err
	}
	if rec.ID == "" {
		return errors.New("records: seed without id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	s.docs[memKey(string(rec.Kind), rec.ID)] = repository.SubmissionRow{ID: rec.ID, Doc: doc, CreatedAt: now, UpdatedAt: now}
	return nil
}

// Raw returns the stored document bytes.
func (s *MemoryStore) Raw(kind model.RecordKind, id string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[memKey(string(kind), id)].Doc
}
