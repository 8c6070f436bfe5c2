// Package sqlite keeps result records in a SQLite database. It is the durable
// alternative to the CSV file for hosts with a persistent volume.
package sqlite

import (
	"context"
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/PabloGalante/perception-lab/internal/domain"
	"github.com/PabloGalante/perception-lab/internal/resultcsv"
)

type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the database at path and applies the schema.
func NewStore(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "creating sqlite directory")
		}
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_sync=FULL")
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// one connection serialises every writer
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			participant_id TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			trial_number INTEGER NOT NULL,
			block_type TEXT NOT NULL,
			stimulus TEXT NOT NULL,
			response TEXT NOT NULL,
			correct INTEGER NOT NULL,
			reaction_time REAL,
			text_color TEXT NOT NULL,
			background_color TEXT NOT NULL,
			is_word INTEGER NOT NULL,
			choices_presented TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_results_key ON results(session_id, trial_number, stimulus, timestamp);`,
		`CREATE INDEX IF NOT EXISTS idx_results_participant ON results(participant_id);`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}

const insertSQL = `INSERT INTO results(
	session_id, participant_id, timestamp, trial_number, block_type, stimulus, response,
	correct, reaction_time, text_color, background_color, is_word, choices_presented
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insert(ctx context.Context, ex execer, rec *domain.ResultRecord) error {
	// NULL keeps an absent reaction time apart from a measured 0
	rt := sql.NullFloat64{Float64: rec.ReactionTime, Valid: !rec.NoReactionTime}
	_, err := ex.ExecContext(ctx, insertSQL,
		string(rec.SessionID), string(rec.ParticipantID), rec.Timestamp, rec.TrialNumber,
		rec.BlockType, rec.Stimulus, rec.Response, rec.Correct, rt,
		rec.TextColor, rec.BackgroundColor, rec.IsWord, resultcsv.JoinChoices(rec.Choices),
	)
	return errors.Wrap(err, "insert result")
}

func (s *Store) Append(ctx context.Context, rec *domain.ResultRecord) error {
	return insert(ctx, s.db, rec)
}

// Import inserts records whose key is not present yet, in one transaction.
func (s *Store) Import(ctx context.Context, recs []*domain.ResultRecord) (*domain.ImportReport, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin import")
	}
	defer func() {
		_ = tx.Rollback() // ignored if committed
	}()

	report := &domain.ImportReport{}
	for _, rec := range recs {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM results WHERE session_id=? AND trial_number=? AND stimulus=? AND timestamp=? LIMIT 1`,
			string(rec.SessionID), rec.TrialNumber, rec.Stimulus, rec.Timestamp,
		).Scan(&exists)
		switch {
		case err == nil:
			report.Skipped++
			continue
		case !errors.Is(err, sql.ErrNoRows):
			return nil, errors.Wrap(err, "checking duplicate")
		}
		if err := insert(ctx, tx, rec); err != nil {
			return nil, err
		}
		report.Imported++
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "commit import")
	}
	return report, nil
}

func (s *Store) List(ctx context.Context) ([]*domain.ResultRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT session_id, participant_id, timestamp, trial_number,
		block_type, stimulus, response, correct, reaction_time, text_color, background_color,
		is_word, choices_presented FROM results ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "query results")
	}
	defer rows.Close()

	var out []*domain.ResultRecord
	for rows.Next() {
		var (
			rec     domain.ResultRecord
			choices string
			rt      sql.NullFloat64
		)
		if err := rows.Scan(&rec.SessionID, &rec.ParticipantID, &rec.Timestamp, &rec.TrialNumber,
			&rec.BlockType, &rec.Stimulus, &rec.Response, &rec.Correct, &rt,
			&rec.TextColor, &rec.BackgroundColor, &rec.IsWord, &choices); err != nil {
			return nil, errors.Wrap(err, "scan result")
		}
		rec.ReactionTime, rec.NoReactionTime = rt.Float64, !rt.Valid
		rec.Choices = resultcsv.SplitChoices(choices)
		out = append(out, &rec)
	}
	return out, errors.Wrap(rows.Err(), "iterate results")
}

func (s *Store) Export(ctx context.Context, w io.Writer) error {
	recs, err := s.List(ctx)
	if err != nil {
		return err
	}
	return resultcsv.WriteAll(w, recs, true)
}

func (s *Store) Status(ctx context.Context) (*domain.StoreStatus, error) {
	abs, err := filepath.Abs(s.path)
	if err != nil {
		abs = s.path
	}
	st := &domain.StoreStatus{Path: abs}
	if strings.HasPrefix(s.path, ":memory:") || strings.HasPrefix(s.path, "file::memory:") {
		st.Exists = true
	} else if info, err := os.Stat(s.path); err == nil {
		mod := info.ModTime()
		st.Exists = true
		st.SizeBytes = info.Size()
		st.LastModified = &mod
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM results`).Scan(&st.Entries); err != nil {
		return nil, errors.Wrap(err, "count results")
	}
	return st, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
