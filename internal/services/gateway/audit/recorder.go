package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/louisbranch/hs4gate/internal/platform/id"
)

// Recorder stamps entries and writes them to a Sink. A failed write is
// logged and never fails the caller. A nil Recorder or Sink is a no-op.
type Recorder struct {
	sink   Sink
	logger zerolog.Logger
	clock  func() time.Time
	newID  func() (string, error)
}

// NewRecorder builds a recorder over sink.
func NewRecorder(sink Sink, logger zerolog.Logger) *Recorder {
	return &Recorder{
		sink:   sink,
		logger: logger.With().Str("component", "audit").Logger(),
		clock:  time.Now,
		newID:  id.NewID,
	}
}

// Record writes entry and returns its id, or "" when nothing was stored.
func (r *Recorder) Record(ctx context.Context, entry Entry) string {
	if r == nil || r.sink == nil {
		return ""
	}
	if entry.ID == "" {
		value, err := r.newID()
		if err != nil {
			r.logger.Warn().Err(err).Str("tool", entry.Tool).Msg("generate audit id")
			return ""
		}
		entry.ID = value
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.clock().UTC()
	}
	stored, err := r.sink.Record(ctx, entry)
	if err != nil {
		r.logger.Warn().Err(err).
			Str("tool", entry.Tool).
			Str("result", string(entry.Result)).
			Msg("audit record failed")
		return ""
	}
	return stored.ID
}

// Query reads entries from the sink.
func (r *Recorder) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	if r == nil || r.sink == nil {
		return []Entry{}, nil
	}
	return r.sink.Query(ctx, filter)
}
