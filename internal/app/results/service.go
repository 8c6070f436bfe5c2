package results

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/PabloGalante/perception-lab/internal/domain"
	"github.com/PabloGalante/perception-lab/internal/observability"
	"github.com/PabloGalante/perception-lab/internal/resultcsv"
)

// sniffSize is how much of an upload is inspected to guess its delimiter.
const sniffSize = 4096

var blockNames = map[domain.BlockType]string{
	domain.BlockBW:        "Bloc 1: Noir/Blanc",
	domain.BlockColor:     "Bloc 2: Couleurs",
	domain.BlockColoredBG: "Bloc 3: Fonds colorés",
}

// Service holds the logic around the result store: recording with backup,
// dashboard aggregation, import and export.
type Service struct {
	store  domain.ResultStore
	backup domain.Backup
	now    func() time.Time
}

// NewService creates a results service. backup may be nil.
func NewService(store domain.ResultStore, backup domain.Backup) *Service {
	return &Service{
		store:  store,
		backup: backup,
		now:    time.Now,
	}
}

// Record appends rec and then requests a backup. The append is the
// success signal; backup failures never surface here.
func (s *Service) Record(ctx context.Context, rec *domain.ResultRecord) error {
	if err := s.store.Append(ctx, rec); err != nil {
		observability.LoggerFromContext(ctx).Error().Err(err).Msg("failed to append result")
		return errors.Wrap(err, "appending result")
	}

	observability.LoggerFromContext(ctx).Info().
		Str("participant_id", string(rec.ParticipantID)).
		Str("stimulus", rec.Stimulus).
		Bool("correct", rec.Correct).
		Msg("result saved")

	s.trigger(ctx, fmt.Sprintf("Add result trial=%d block=%s stimulus=%s",
		rec.TrialNumber, rec.BlockType, rec.Stimulus))
	return nil
}

func (s *Service) trigger(ctx context.Context, message string) {
	if s.backup != nil {
		s.backup.Trigger(ctx, message)
	}
}

// RecordDiagnostic writes a fixed test row, used to check the store is writable.
func (s *Service) RecordDiagnostic(ctx context.Context) (*domain.ResultRecord, error) {
	rec := &domain.ResultRecord{
		SessionID:       "test_session",
		ParticipantID:   "test_participant",
		Timestamp:       s.now().Format(time.RFC3339Nano),
		TrialNumber:     1,
		BlockType:       "test",
		Stimulus:        "test_word",
		Response:        "test_response",
		Correct:         true,
		ReactionTime:    500,
		TextColor:       "#000000",
		BackgroundColor: "#ffffff",
		IsWord:          true,
		Choices:         []string{"test_word", "choice2", "choice3", "choice4"},
	}
	if err := s.Record(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

type BlockStats struct {
	Block           domain.BlockType
	Name            string
	TotalTrials     int
	CorrectAnswers  int
	Accuracy        float64 // percent, one decimal
	AvgReactionTime float64 // milliseconds, rounded
}

type ParticipantSummary struct {
	ParticipantID   domain.ParticipantID
	SessionID       domain.SessionID
	FirstTimestamp  string
	TotalTrials     int
	CorrectTrials   int
	Accuracy        float64
	AvgReactionTime float64
	Trials          []*domain.ResultRecord
}

type Dashboard struct {
	Results      []*domain.ResultRecord
	Blocks       []BlockStats
	Participants []*ParticipantSummary
}

// Dashboard reads every record and aggregates them per block and per
// participant. Blocks without trials are omitted; participants are ordered by
// their first timestamp.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	recs, err := s.store.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing results")
	}
	return &Dashboard{
		Results:      recs,
		Blocks:       blockStatistics(recs),
		Participants: participantSummaries(recs),
	}, nil
}

func blockStatistics(recs []*domain.ResultRecord) []BlockStats {
	byBlock := make(map[domain.BlockType][]*domain.ResultRecord)
	for _, rec := range recs {
		bt := domain.BlockType(rec.BlockType)
		if _, known := blockNames[bt]; known {
			byBlock[bt] = append(byBlock[bt], rec)
		}
	}

	var out []BlockStats
	for _, bt := range domain.Blocks {
		rs := byBlock[bt]
		if len(rs) == 0 {
			continue
		}
		correct, rtMean := tally(rs)
		out = append(out, BlockStats{
			Block:           bt,
			Name:            blockNames[bt],
			TotalTrials:     len(rs),
			CorrectAnswers:  correct,
			Accuracy:        round1(100 * float64(correct) / float64(len(rs))),
			AvgReactionTime: rtMean,
		})
	}
	return out
}

func participantSummaries(recs []*domain.ResultRecord) []*ParticipantSummary {
	byID := make(map[domain.ParticipantID]*ParticipantSummary)
	var order []*ParticipantSummary
	for _, rec := range recs {
		p, ok := byID[rec.ParticipantID]
		if !ok {
			p = &ParticipantSummary{
				ParticipantID:  rec.ParticipantID,
				SessionID:      rec.SessionID,
				FirstTimestamp: rec.Timestamp,
			}
			byID[rec.ParticipantID] = p
			order = append(order, p)
		}
		p.Trials = append(p.Trials, rec)
	}

	for _, p := range order {
		correct, rtMean := tally(p.Trials)
		p.TotalTrials = len(p.Trials)
		p.CorrectTrials = correct
		p.Accuracy = round1(100 * float64(correct) / float64(p.TotalTrials))
		p.AvgReactionTime = rtMean
	}

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].FirstTimestamp < order[j].FirstTimestamp
	})
	return order
}

// tally counts correct answers and averages the reaction times that were
// recorded. The mean is rounded to whole milliseconds, 0 when none were.
func tally(recs []*domain.ResultRecord) (correct int, rtMean float64) {
	var (
		rtSum   float64
		rtCount int
	)
	for _, rec := range recs {
		if rec.Correct {
			correct++
		}
		if rec.NoReactionTime {
			continue
		}
		rtSum += rec.ReactionTime
		rtCount++
	}
	if rtCount == 0 {
		return correct, 0
	}
	return correct, math.Round(rtSum / float64(rtCount))
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

// Import reads a CSV upload, guessing its delimiter, and appends rows whose
// key is not yet stored. A backup is requested when rows were added.
func (s *Service) Import(ctx context.Context, r io.Reader) (*domain.ImportReport, error) {
	br := bufio.NewReaderSize(r, sniffSize)
	sample, err := br.Peek(sniffSize)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, errors.Wrap(err, "reading upload")
	}
	delimiter := resultcsv.SniffDelimiter(sample)

	recs, err := resultcsv.ReadAll(br, delimiter)
	if err != nil {
		return nil, errors.Wrap(err, "parsing upload")
	}

	report, err := s.store.Import(ctx, recs)
	if err != nil {
		return nil, errors.Wrap(err, "importing results")
	}

	observability.LoggerFromContext(ctx).Info().
		Int("imported", report.Imported).
		Int("skipped", report.Skipped).
		Str("delimiter", string(delimiter)).
		Msg("results imported")

	if report.Imported > 0 {
		s.trigger(ctx, fmt.Sprintf("Import %d results from CSV", report.Imported))
	}
	return report, nil
}

func (s *Service) Export(ctx context.Context, w io.Writer) error {
	return s.store.Export(ctx, w)
}

func (s *Service) Status(ctx context.Context) (*domain.StoreStatus, error) {
	return s.store.Status(ctx)
}

// ExportFilename is the attachment name offered for downloads.
func (s *Service) ExportFilename() string {
	return "experience_results_" + s.now().Format("20060102_150405") + ".csv"
}
