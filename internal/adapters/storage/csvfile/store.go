// Package csvfile stores result records in a single append-only CSV file.
//
// The Store value is the only handle writers use: it owns the exclusive lock,
// makes sure the file exists before every write, and fsyncs each write before
// releasing the lock. Readers open the file independently.
package csvfile

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/PabloGalante/perception-lab/internal/domain"
	"github.com/PabloGalante/perception-lab/internal/observability"
	"github.com/PabloGalante/perception-lab/internal/resultcsv"
)

// Recoverer fetches the last known content of the results file from
// somewhere other than the local disk.
type Recoverer interface {
	Name() string
	Recover(ctx context.Context) ([]byte, error)
}

type Store struct {
	path       string
	legacy     []string
	recoverers []Recoverer

	mu     sync.Mutex
	closed bool
}

type Option func(*Store)

// WithLegacyPaths lists older file locations that are moved into place when
// the results file is missing.
func WithLegacyPaths(paths ...string) Option {
	return func(s *Store) {
		s.legacy = append(s.legacy, paths...)
	}
}

// WithRecoverers sets the recovery sources, tried in order.
func WithRecoverers(rs ...Recoverer) Option {
	return func(s *Store) {
		s.recoverers = append(s.recoverers, rs...)
	}
}

func NewStore(path string, opts ...Option) *Store {
	s := &Store{path: path}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Path() string {
	return s.path
}

// Open brings the file from ABSENT to present: migrated, recovered or created.
func (s *Store) Open(ctx context.Context) error {
	return s.withLock(ctx, func() error { return nil })
}

// withLock runs fn while holding the write lock, after making sure the file
// exists. The lock is released on every exit path.
func (s *Store) withLock(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrStoreClosed
	}
	if err := s.ensure(ctx); err != nil {
		return err
	}
	return fn()
}

// ensure must be called with mu held.
func (s *Store) ensure(ctx context.Context) error {
	log := observability.LoggerFromContext(ctx)

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrap(err, "creating results directory")
	}

	info, err := os.Stat(s.path)
	if err == nil {
		if info.Size() == 0 {
			return s.writeHeader()
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return errors.Wrap(err, "stat results file")
	}

	for _, legacy := range s.legacy {
		if legacy == s.path {
			continue
		}
		if _, err := os.Stat(legacy); err != nil {
			continue
		}
		if err := os.Rename(legacy, s.path); err != nil {
			log.Warn().Err(err).Str("from", legacy).Msg("legacy results migration failed")
			continue
		}
		log.Info().Str("from", legacy).Str("to", s.path).Msg("migrated legacy results file")
		return nil
	}

	for _, r := range s.recoverers {
		data, err := r.Recover(ctx)
		if err != nil {
			log.Info().Err(err).Str("source", r.Name()).Msg("results recovery unavailable")
			continue
		}
		if len(data) == 0 {
			continue
		}
		// later appends start on a fresh line
		if data[len(data)-1] != '\n' {
			data = append(data[:len(data):len(data)], '\n')
		}
		if err := writeFileSync(s.path, data); err != nil {
			return errors.Wrap(err, "writing recovered results")
		}
		log.Info().Str("source", r.Name()).Int("bytes", len(data)).Msg("recovered results file")
		return nil
	}

	if err := s.writeHeader(); err != nil {
		return err
	}
	log.Info().Str("path", s.path).Msg("created new results file")
	return nil
}

func (s *Store) writeHeader() error {
	return s.appendRows([][]string{resultcsv.Header})
}

// appendRows must be called with mu held.
func (s *Store) appendRows(rows [][]string) error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrap(err, "opening results file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return errors.Wrap(err, "writing results rows")
	}
	if err := f.Sync(); err != nil {
		return errors.Wrap(err, "syncing results file")
	}
	return nil
}

func (s *Store) Append(ctx context.Context, rec *domain.ResultRecord) error {
	return s.withLock(ctx, func() error {
		return s.appendRows([][]string{resultcsv.Encode(rec)})
	})
}

// Import appends the records whose key is not already present. Keys are
// checked and rows written under the same lock, so repeating an import adds
// nothing.
func (s *Store) Import(ctx context.Context, recs []*domain.ResultRecord) (*domain.ImportReport, error) {
	report := &domain.ImportReport{}
	err := s.withLock(ctx, func() error {
		existing, err := s.readAll()
		if err != nil {
			return err
		}
		keys := make(map[domain.RecordKey]struct{}, len(existing)+len(recs))
		for _, rec := range existing {
			keys[rec.Key()] = struct{}{}
		}

		var rows [][]string
		for _, rec := range recs {
			k := rec.Key()
			if _, dup := keys[k]; dup {
				report.Skipped++
				continue
			}
			keys[k] = struct{}{}
			rows = append(rows, resultcsv.Encode(rec))
			report.Imported++
		}
		if len(rows) == 0 {
			return nil
		}
		return s.appendRows(rows)
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (s *Store) readAll() ([]*domain.ResultRecord, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "opening results file")
	}
	defer f.Close()
	return resultcsv.ReadAll(f, ',')
}

// List reads every record without taking the write lock.
func (s *Store) List(ctx context.Context) ([]*domain.ResultRecord, error) {
	return s.readAll()
}

// Export copies the file verbatim. A missing file exports as a bare header.
func (s *Store) Export(ctx context.Context, w io.Writer) error {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return resultcsv.WriteAll(w, nil, true)
		}
		return errors.Wrap(err, "opening results file")
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return errors.Wrap(err, "copying results file")
}

// Snapshot returns the file content under the write lock, so it never ends
// in a partially written row. Backups push this instead of reading the file.
func (s *Store) Snapshot(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.Wrap(err, "reading results snapshot")
	}
	return data, nil
}

func (s *Store) Status(ctx context.Context) (*domain.StoreStatus, error) {
	abs, err := filepath.Abs(s.path)
	if err != nil {
		abs = s.path
	}
	st := &domain.StoreStatus{Path: abs}

	info, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return nil, errors.Wrap(err, "stat results file")
	}
	mod := info.ModTime()
	st.Exists = true
	st.SizeBytes = info.Size()
	st.LastModified = &mod

	f, err := os.Open(s.path)
	if err != nil {
		return nil, errors.Wrap(err, "opening results file")
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows := 0
	for {
		_, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "counting results rows")
		}
		rows++
	}
	if rows > 0 {
		st.Entries = rows - 1
	}
	return st, nil
}

// Close waits for an in-flight write and rejects later ones.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
