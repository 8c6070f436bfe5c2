package experiment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/PabloGalante/perception-lab/internal/domain"
	"github.com/PabloGalante/perception-lab/internal/observability"
	"github.com/PabloGalante/perception-lab/internal/stimuli"
)

const (
	choicesPerTrial = 4

	defaultTextColor       = "#000000"
	defaultBackgroundColor = "#ffffff"
	unknownSession         = domain.SessionID("unknown")
	anonymousParticipant   = domain.ParticipantID("anonymous")
)

// Recorder persists a finished trial.
type Recorder interface {
	Record(ctx context.Context, rec *domain.ResultRecord) error
}

type Service struct {
	sessions domain.SessionStore
	catalog  *stimuli.Catalog
	recorder Recorder
	now      func() time.Time
	newID    func() string
}

func NewService(sessions domain.SessionStore, catalog *stimuli.Catalog, recorder Recorder) *Service {
	return &Service{
		sessions: sessions,
		catalog:  catalog,
		recorder: recorder,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

type StartSessionOutput struct {
	Session *domain.Session
}

// StartSession creates a session with fresh session and participant ids.
func (s *Service) StartSession(ctx context.Context) (*StartSessionOutput, error) {
	now := s.now()

	session := &domain.Session{
		ID:            domain.SessionID(s.newID()),
		ParticipantID: domain.ParticipantID(s.newID()),
		CurrentBlock:  domain.BlockBW,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	log := observability.LoggerFromContext(ctx)
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		log.Error().Err(err).Msg("failed to create session")
		return nil, errors.Wrap(err, "creating session")
	}

	log.Info().
		Str("session_id", string(session.ID)).
		Str("participant_id", string(session.ParticipantID)).
		Msg("experiment started")

	return &StartSessionOutput{Session: session}, nil
}

type NextTrialInput struct {
	SessionID   domain.SessionID
	Block       string
	TrialNumber int
}

type NextTrialOutput struct {
	Trial *domain.Trial
}

// NextTrial draws a stimulus with colours for the block and a choice set.
// It fails with domain.ErrSessionNotFound when the session is unknown.
func (s *Service) NextTrial(ctx context.Context, in NextTrialInput) (*NextTrialOutput, error) {
	if in.SessionID == "" {
		return nil, domain.ErrSessionNotFound
	}
	session, err := s.sessions.GetSession(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}

	block := domain.ParseBlockType(in.Block)
	trialNumber := in.TrialNumber
	if trialNumber <= 0 {
		trialNumber = 1
	}

	stimulus := s.catalog.RandomStimulus()
	text, background, err := s.catalog.TrialColors(block)
	if err != nil {
		return nil, errors.Wrap(err, "choosing trial colours")
	}
	choices, err := s.catalog.Choices(stimulus, choicesPerTrial, block.UsesColorWords())
	if err != nil {
		return nil, errors.Wrap(err, "choosing distractors")
	}

	trial := &domain.Trial{
		Stimulus:        stimulus,
		TextColor:       text,
		BackgroundColor: background,
		Choices:         choices,
		DisplayTimeMS:   s.catalog.DisplayTimeMS(),
		IsWord:          s.catalog.IsWord(stimulus),
		Block:           block,
		TrialNumber:     trialNumber,
	}

	session.CurrentBlock = block
	session.CurrentTrial = trialNumber
	session.UpdatedAt = s.now()
	if err := s.sessions.UpdateSession(ctx, session); err != nil {
		return nil, errors.Wrap(err, "updating session")
	}

	observability.LoggerFromContext(ctx).Debug().
		Str("session_id", string(session.ID)).
		Str("block", string(block)).
		Int("trial", trialNumber).
		Str("text_color", text).
		Str("background_color", background).
		Msg("trial generated")

	return &NextTrialOutput{Trial: trial}, nil
}

// SubmitTrialInput carries a participant's answer. Zero values are accepted
// and replaced with placeholders; a trial is never rejected for its shape.
type SubmitTrialInput struct {
	SessionID domain.SessionID

	BlockType       string
	TrialNumber     int
	Stimulus        string
	Response        string
	Correct         bool
	ReactionTime    float64
	TextColor       string
	BackgroundColor string
	// IsWord is computed from the stimulus when nil.
	IsWord  *bool
	Choices []string
}

type SubmitTrialOutput struct {
	Record *domain.ResultRecord
}

func (s *Service) SubmitTrial(ctx context.Context, in SubmitTrialInput) (*SubmitTrialOutput, error) {
	sessionID, participantID := unknownSession, anonymousParticipant
	if in.SessionID != "" {
		if session, err := s.sessions.GetSession(ctx, in.SessionID); err == nil {
			sessionID, participantID = session.ID, session.ParticipantID
		} else if !errors.Is(err, domain.ErrSessionNotFound) {
			observability.LoggerFromContext(ctx).Warn().Err(err).Msg("session lookup failed, recording anonymously")
		}
	}

	isWord := s.catalog.IsWord(in.Stimulus)
	if in.IsWord != nil {
		isWord = *in.IsWord
	}

	rec := &domain.ResultRecord{
		SessionID:       sessionID,
		ParticipantID:   participantID,
		Timestamp:       s.now().Format(time.RFC3339Nano),
		TrialNumber:     in.TrialNumber,
		BlockType:       in.BlockType,
		Stimulus:        in.Stimulus,
		Response:        in.Response,
		Correct:         in.Correct,
		ReactionTime:    in.ReactionTime,
		TextColor:       orDefault(in.TextColor, defaultTextColor),
		BackgroundColor: orDefault(in.BackgroundColor, defaultBackgroundColor),
		IsWord:          isWord,
		Choices:         in.Choices,
	}

	if err := s.recorder.Record(ctx, rec); err != nil {
		return nil, err
	}
	return &SubmitTrialOutput{Record: rec}, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
