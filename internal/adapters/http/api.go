package httpadapter

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/PabloGalante/perception-lab/internal/app/experiment"
	"github.com/PabloGalante/perception-lab/internal/domain"
	"github.com/PabloGalante/perception-lab/internal/observability"
)

// maxJSONBody bounds participant request bodies.
const maxJSONBody = 1 << 20

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type startExperimentResponse struct {
	Success       bool   `json:"success"`
	SessionID     string `json:"session_id"`
	ParticipantID string `json:"participant_id"`
}

type trialResponse struct {
	Stimulus        string   `json:"stimulus"`
	TextColor       string   `json:"text_color"`
	BackgroundColor string   `json:"background_color"`
	Choices         []string `json:"choices"`
	DisplayTime     int      `json:"display_time"`
	IsWord          bool     `json:"is_word"`
}

type submitTrialResponse struct {
	Success bool `json:"success"`
	Correct bool `json:"correct"`
}

type saveResultResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type csvStatusResponse struct {
	FileExists   bool    `json:"file_exists"`
	FilePath     string  `json:"file_path"`
	FileSize     int64   `json:"file_size"`
	EntriesCount int     `json:"entries_count"`
	LastModified *string `json:"last_modified"`
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleStartExperiment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	out, err := s.experiment.StartSession(r.Context())
	if err != nil {
		internalError(w, err)
		return
	}

	s.setSessionCookie(w, out.Session.ID)
	writeJSON(w, http.StatusOK, startExperimentResponse{
		Success:       true,
		SessionID:     string(out.Session.ID),
		ParticipantID: string(out.Session.ParticipantID),
	})
}

func (s *Server) handleGetTrial(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	sessionID := sessionFromRequest(r)
	if sessionID == "" {
		badRequest(w, "session not initialised")
		return
	}

	body := decodeLenient(r)
	blockType := getString(body, "block_type")
	if blockType == "" {
		blockType = string(domain.BlockBW)
	}

	out, err := s.experiment.NextTrial(r.Context(), experiment.NextTrialInput{
		SessionID:   sessionID,
		Block:       blockType,
		TrialNumber: getInt(body, "trial_number"),
	})
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			badRequest(w, "session not initialised")
			return
		}
		observability.LoggerFromContext(r.Context()).Error().Err(err).Msg("trial generation failed")
		internalError(w, err)
		return
	}

	t := out.Trial
	writeJSON(w, http.StatusOK, trialResponse{
		Stimulus:        t.Stimulus,
		TextColor:       t.TextColor,
		BackgroundColor: t.BackgroundColor,
		Choices:         t.Choices,
		DisplayTime:     t.DisplayTimeMS,
		IsWord:          t.IsWord,
	})
}

// handleSubmitTrial records a trial sent right after the participant answered.
func (s *Server) handleSubmitTrial(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	body := decodeLenient(r)
	out, err := s.experiment.SubmitTrial(r.Context(), experiment.SubmitTrialInput{
		SessionID:       sessionFromRequest(r),
		BlockType:       getString(body, "block_type"),
		TrialNumber:     getInt(body, "trial_number"),
		Stimulus:        getString(body, "stimulus"),
		Response:        getString(body, "response"),
		Correct:         getBool(body, "correct"),
		ReactionTime:    getFloat(body, "reaction_time"),
		TextColor:       getString(body, "text_color"),
		BackgroundColor: getString(body, "background_color"),
		IsWord:          getBoolPtr(body, "is_word"),
		Choices:         getStrings(body, "choices"),
	})
	if err != nil {
		internalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, submitTrialResponse{
		Success: true,
		Correct: out.Record.Correct,
	})
}

// handleSaveResult records a trial from the end-of-experiment upload, which
// uses the client's camelCase field names.
func (s *Server) handleSaveResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	body := decodeLenient(r)
	block := getString(body, "block")
	if block == "" {
		block = "unknown"
	}

	_, err := s.experiment.SubmitTrial(r.Context(), experiment.SubmitTrialInput{
		SessionID:       sessionFromRequest(r),
		BlockType:       block,
		TrialNumber:     getInt(body, "trial"),
		Stimulus:        getString(body, "stimulus"),
		Response:        getString(body, "response"),
		Correct:         getBool(body, "correct"),
		ReactionTime:    getFloat(body, "reactionTime"),
		TextColor:       getString(body, "textColor"),
		BackgroundColor: getString(body, "backgroundColor"),
		Choices:         getStrings(body, "choices"),
	})
	if err != nil {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Msg("saving result failed")
		writeJSON(w, http.StatusInternalServerError, saveResultResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, saveResultResponse{
		Success: true,
		Message: "Données sauvegardées avec succès",
	})
}

func (s *Server) handleCSVStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	st, err := s.results.Status(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	resp := csvStatusResponse{
		FileExists:   st.Exists,
		FilePath:     st.Path,
		FileSize:     st.SizeBytes,
		EntriesCount: st.Entries,
	}
	if st.LastModified != nil {
		v := st.LastModified.Format(time.RFC3339)
		resp.LastModified = &v
	}
	writeJSON(w, http.StatusOK, resp)
}

// decodeLenient reads a JSON object body. Anything unreadable decodes as an
// empty object so that missing fields fall back to defaults.
func decodeLenient(r *http.Request) map[string]any {
	body := map[string]any{}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody))
	if err != nil || len(data) == 0 {
		return body
	}
	if err := json.Unmarshal(data, &body); err != nil {
		observability.LoggerFromContext(r.Context()).Warn().Err(err).Msg("ignoring malformed JSON body")
		return map[string]any{}
	}
	return body
}
