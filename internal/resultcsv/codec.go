// Package resultcsv converts result records to and from the fixed CSV layout
// of the results file.
package resultcsv

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/PabloGalante/perception-lab/internal/domain"
)

const (
	ColSessionID       = "session_id"
	ColParticipantID   = "participant_id"
	ColTimestamp       = "timestamp"
	ColTrialNumber     = "trial_number"
	ColBlockType       = "block_type"
	ColStimulus        = "stimulus"
	ColResponse        = "response"
	ColCorrect         = "correct"
	ColReactionTime    = "reaction_time"
	ColTextColor       = "text_color"
	ColBackgroundColor = "background_color"
	ColIsWord          = "is_word"
	ColChoices         = "choices_presented"

	// colChoicesAlias is accepted on import for files written by older clients.
	colChoicesAlias = "choices"

	choiceSeparator = "|"
)

// Header is the fixed column order of the results file.
var Header = []string{
	ColSessionID, ColParticipantID, ColTimestamp, ColTrialNumber, ColBlockType,
	ColStimulus, ColResponse, ColCorrect, ColReactionTime, ColTextColor,
	ColBackgroundColor, ColIsWord, ColChoices,
}

// JoinChoices encodes presented choices as one pipe-delimited field.
func JoinChoices(choices []string) string {
	return strings.Join(choices, choiceSeparator)
}

func SplitChoices(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, choiceSeparator)
}

// Encode renders rec in Header order.
func Encode(rec *domain.ResultRecord) []string {
	return []string{
		string(rec.SessionID),
		string(rec.ParticipantID),
		rec.Timestamp,
		strconv.Itoa(rec.TrialNumber),
		rec.BlockType,
		rec.Stimulus,
		rec.Response,
		strconv.FormatBool(rec.Correct),
		formatReactionTime(rec),
		rec.TextColor,
		rec.BackgroundColor,
		strconv.FormatBool(rec.IsWord),
		JoinChoices(rec.Choices),
	}
}

// FromMap builds a record from a header-keyed row. Missing or malformed
// values become zero values; it never fails.
func FromMap(row map[string]string) *domain.ResultRecord {
	choices, ok := row[ColChoices]
	if !ok {
		choices = row[colChoicesAlias]
	}
	rt, hasRT := ParseOptionalFloat(row[ColReactionTime])
	return &domain.ResultRecord{
		SessionID:       domain.SessionID(row[ColSessionID]),
		ParticipantID:   domain.ParticipantID(row[ColParticipantID]),
		Timestamp:       row[ColTimestamp],
		TrialNumber:     ParseInt(row[ColTrialNumber]),
		BlockType:       row[ColBlockType],
		Stimulus:        row[ColStimulus],
		Response:        row[ColResponse],
		Correct:         ParseBool(row[ColCorrect]),
		ReactionTime:    rt,
		NoReactionTime:  !hasRT,
		TextColor:       row[ColTextColor],
		BackgroundColor: row[ColBackgroundColor],
		IsWord:          ParseBool(row[ColIsWord]),
		Choices:         SplitChoices(choices),
	}
}

// ReadAll decodes every data row of r. The first row is the header; columns
// are matched by name so files with a different column order still load.
func ReadAll(r io.Reader, delimiter rune) ([]*domain.ResultRecord, error) {
	cr := csv.NewReader(r)
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading csv header")
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var out []*domain.ResultRecord
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, errors.Wrapf(err, "reading csv row %d", len(out)+2)
		}
		row := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(fields) {
				row[name] = fields[i]
			}
		}
		out = append(out, FromMap(row))
	}
	return out, nil
}

// WriteAll writes recs, preceded by Header when withHeader is set.
func WriteAll(w io.Writer, recs []*domain.ResultRecord, withHeader bool) error {
	cw := csv.NewWriter(w)
	if withHeader {
		if err := cw.Write(Header); err != nil {
			return errors.Wrap(err, "writing csv header")
		}
	}
	for _, rec := range recs {
		if err := cw.Write(Encode(rec)); err != nil {
			return errors.Wrap(err, "writing csv row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing csv")
}

func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "y", "t":
		return true
	default:
		return false
	}
}

func ParseInt(s string) int {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return int(f)
	}
	return 0
}

func ParseFloat(s string) float64 {
	f, _ := ParseOptionalFloat(s)
	return f
}

// ParseOptionalFloat reports false for blank, non-numeric and non-finite input.
func ParseOptionalFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func formatReactionTime(rec *domain.ResultRecord) string {
	if rec.NoReactionTime {
		return ""
	}
	return FormatFloat(rec.ReactionTime)
}

func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
