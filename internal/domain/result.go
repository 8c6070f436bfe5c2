package domain

import (
	"strconv"
	"time"
)

// ResultRecord is one row of the results file. Once written it is never mutated.
type ResultRecord struct {
	SessionID       SessionID
	ParticipantID   ParticipantID
	Timestamp       string // kept verbatim so imported rows round-trip unchanged
	TrialNumber     int
	BlockType       string
	Stimulus        string
	Response        string
	Correct         bool
	ReactionTime    float64 // milliseconds
	TextColor       string
	BackgroundColor string
	IsWord          bool
	Choices         []string

	// NoReactionTime marks imported rows whose reaction time was blank or
	// not a number. ReactionTime is then 0 and must not be averaged.
	NoReactionTime bool
}

// RecordKey identifies a record for duplicate detection during import.
type RecordKey struct {
	SessionID   string
	TrialNumber string
	Stimulus    string
	Timestamp   string
}

func (r *ResultRecord) Key() RecordKey {
	return RecordKey{
		SessionID:   string(r.SessionID),
		TrialNumber: strconv.Itoa(r.TrialNumber),
		Stimulus:    r.Stimulus,
		Timestamp:   r.Timestamp,
	}
}

// ImportReport summarises a bulk import.
type ImportReport struct {
	Imported int
	Skipped  int
}

// StoreStatus is raw introspection of the result store for the admin status endpoint.
type StoreStatus struct {
	Exists       bool
	Path         string
	SizeBytes    int64
	Entries      int
	LastModified *time.Time
}
