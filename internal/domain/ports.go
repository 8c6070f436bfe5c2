package domain

import (
	"context"
	"io"

	"github.com/pkg/errors"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExists   = errors.New("session already exists")
	ErrStoreClosed     = errors.New("result store closed")
)

// SessionStore defines session persistence.
type SessionStore interface {
	CreateSession(ctx context.Context, session *Session) error
	UpdateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id SessionID) (*Session, error)
	// DeleteSession removes a session. Deleting an unknown id is not an error.
	DeleteSession(ctx context.Context, id SessionID) error
	// ListRecentSessions returns up to limit sessions, newest first.
	ListRecentSessions(ctx context.Context, limit int) ([]*Session, error)
	Close() error
}

// ResultStore is the append-only home of result records.
// Writers are serialised by the implementation; List, Export and Status
// do not coordinate with writers.
type ResultStore interface {
	Append(ctx context.Context, rec *ResultRecord) error
	Import(ctx context.Context, recs []*ResultRecord) (*ImportReport, error)
	List(ctx context.Context) ([]*ResultRecord, error)
	Export(ctx context.Context, w io.Writer) error
	Status(ctx context.Context) (*StoreStatus, error)
	Close() error
}

// Backup is notified after records reach the result store.
// Implementations must not report failures to the caller.
type Backup interface {
	Trigger(ctx context.Context, message string)
}
