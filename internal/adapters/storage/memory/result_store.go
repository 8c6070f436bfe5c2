package memory

import (
	"context"
	"io"
	"sync"

	"github.com/PabloGalante/perception-lab/internal/domain"
	"github.com/PabloGalante/perception-lab/internal/resultcsv"
)

// ResultStore is an in-memory implementation of domain.ResultStore.
// It is NOT persistent and is only suitable for development and tests.
type ResultStore struct {
	mu      sync.RWMutex
	records []*domain.ResultRecord
	keys    map[domain.RecordKey]struct{}
	closed  bool
}

func NewResultStore() *ResultStore {
	return &ResultStore{
		keys: make(map[domain.RecordKey]struct{}),
	}
}

func (s *ResultStore) Append(ctx context.Context, rec *domain.ResultRecord) error {
	if rec == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrStoreClosed
	}
	s.appendLocked(rec)
	return nil
}

func (s *ResultStore) appendLocked(rec *domain.ResultRecord) {
	cp := *rec
	cp.Choices = append([]string(nil), rec.Choices...)
	s.records = append(s.records, &cp)
	s.keys[cp.Key()] = struct{}{}
}

func (s *ResultStore) Import(ctx context.Context, recs []*domain.ResultRecord) (*domain.ImportReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, domain.ErrStoreClosed
	}

	report := &domain.ImportReport{}
	for _, rec := range recs {
		if _, dup := s.keys[rec.Key()]; dup {
			report.Skipped++
			continue
		}
		s.appendLocked(rec)
		report.Imported++
	}
	return report, nil
}

// List returns copies of every record in insertion order.
func (s *ResultStore) List(ctx context.Context) ([]*domain.ResultRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.ResultRecord, 0, len(s.records))
	for _, rec := range s.records {
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

func (s *ResultStore) Export(ctx context.Context, w io.Writer) error {
	recs, err := s.List(ctx)
	if err != nil {
		return err
	}
	return resultcsv.WriteAll(w, recs, true)
}

func (s *ResultStore) Status(ctx context.Context) (*domain.StoreStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return &domain.StoreStatus{
		Exists:  true,
		Path:    "memory",
		Entries: len(s.records),
	}, nil
}

func (s *ResultStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
