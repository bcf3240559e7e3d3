// Package changetoken stores prepared mutations for two-phase commit.
//
// Records live in memory and are mirrored to an optional append-only JSONL
// log. The log is a changelog: replaying it top to bottom, the last line for a
// token wins. Log writes are best-effort and never affect in-memory state.
package changetoken

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	apperrors "github.com/louisbranch/hs4gate/internal/platform/errors"
)

const (
	// DefaultTTL is how long a prepared change stays committable.
	DefaultTTL = 10 * time.Minute
	// DefaultMaxEntries bounds the number of live records.
	DefaultMaxEntries = 500
)

// Options configures a Store.
type Options struct {
	TTL        time.Duration
	MaxEntries int
	// LogPath enables the JSONL changelog when non-empty.
	LogPath string
	Logger  zerolog.Logger
	// Now overrides the clock.
	Now func() time.Time
	// NewToken overrides token generation.
	NewToken func() string
}

// Store is the prepared change ledger. It is safe for concurrent use.
type Store struct {
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	newToken   func() string
	logger     zerolog.Logger

	initGroup   singleflight.Group
	initialized bool

	mu      sync.Mutex
	records map[string]Record
	log     *writeQueue
}

// New builds a store. Call Init before serving requests to replay the log.
func New(opts Options) *Store {
	s := &Store{
		ttl:        opts.TTL,
		maxEntries: opts.MaxEntries,
		now:        opts.Now,
		newToken:   opts.NewToken,
		logger:     opts.Logger.With().Str("component", "changetoken").Logger(),
		records:    make(map[string]Record),
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	if s.maxEntries <= 0 {
		s.maxEntries = DefaultMaxEntries
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newToken == nil {
		s.newToken = uuid.NewString
	}
	if path := strings.TrimSpace(opts.LogPath); path != "" {
		s.log = newWriteQueue(path, s.logger)
	}
	return s
}

// Init replays the changelog once and purges expired records. Concurrent
// callers share one in-flight load. An unreadable log is logged and treated
// as holding only the lines read before the failure; only context
// cancellation is returned.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	done := s.initialized
	s.mu.Unlock()
	if done {
		return nil
	}

	_, err, _ := s.initGroup.Do("init", func() (any, error) {
		s.mu.Lock()
		if s.initialized {
			s.mu.Unlock()
			return nil, nil
		}
		s.mu.Unlock()

		var loaded map[string]Record
		if s.log != nil {
			records, err := readLog(ctx, s.log.path, s.logger)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				s.logger.Warn().Err(err).Int("loaded", len(records)).Msg("change token log unreadable; continuing with what was read")
			}
			loaded = records
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		for token, record := range loaded {
			if _, exists := s.records[token]; !exists {
				s.records[token] = record
			}
		}
		purged := s.purgeLocked()
		s.evictLocked()
		s.initialized = true
		s.logger.Debug().Int("loaded", len(loaded)).Int("purged", purged).Msg("change token store initialized")
		return nil, nil
	})
	return err
}

// Create stores a new prepared change and returns a copy of it.
func (s *Store) Create(ctx context.Context, toolName string, args, summary map[string]any, preparedAuditRef string) (Record, error) {
	toolName = strings.TrimSpace(toolName)
	if toolName == "" {
		return Record{}, apperrors.New(apperrors.CodeBadRequest, "toolName is required")
	}
	s.ensureInit(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	record := Record{
		Token:            s.newToken(),
		ToolName:         toolName,
		Args:             cloneMap(args),
		Summary:          cloneMap(summary),
		PreparedAuditRef: preparedAuditRef,
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.ttl),
	}
	if record.Args == nil {
		record.Args = map[string]any{}
	}
	if record.Summary == nil {
		record.Summary = map[string]any{}
	}
	s.records[record.Token] = record
	s.evictLocked()
	s.appendLocked(record)
	return record.clone(), nil
}

// Get returns the live record for token.
func (s *Store) Get(ctx context.Context, token string) (Record, bool) {
	s.ensureInit(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked()
	record, ok := s.records[token]
	if !ok {
		return Record{}, false
	}
	return record.clone(), true
}

// MarkCommitted stamps the commit time once. Repeated calls keep the first
// commit time and only replace a differing, non-empty commit audit ref.
func (s *Store) MarkCommitted(ctx context.Context, token, commitAuditRef string) (Record, bool) {
	s.ensureInit(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	record, ok := s.records[token]
	if !ok || record.expired(now) {
		return Record{}, false
	}

	changed := false
	if record.CommittedAt == nil {
		at := now
		record.CommittedAt = &at
		changed = true
	}
	if commitAuditRef != "" && commitAuditRef != record.CommitAuditRef {
		record.CommitAuditRef = commitAuditRef
		changed = true
	}
	if changed {
		s.records[token] = record
		s.appendLocked(record)
	}
	return record.clone(), true
}

// PurgeExpired drops every record whose expiry has passed.
func (s *Store) PurgeExpired(ctx context.Context) int {
	s.ensureInit(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.purgeLocked()
}

// List returns live records, newest first, capped at limit when positive.
func (s *Store) List(ctx context.Context, limit int) []Record {
	s.ensureInit(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked()

	out := make([]Record, 0, len(s.records))
	for _, record := range s.records {
		out = append(out, record)
	}
	slices.SortFunc(out, func(a, b Record) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.Token, a.Token)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i] = out[i].clone()
	}
	return out
}

// Flush waits until every log write queued so far has been attempted.
func (s *Store) Flush(ctx context.Context) error {
	if s.log == nil {
		return nil
	}
	return s.log.flush(ctx)
}

// Close drains the write queue and stops its worker.
func (s *Store) Close() {
	if s.log != nil {
		s.log.close()
	}
}

func (s *Store) ensureInit(ctx context.Context) {
	if err := s.Init(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("change token log replay failed")
	}
}

func (s *Store) purgeLocked() int {
	now := s.now()
	purged := 0
	for token, record := range s.records {
		if record.expired(now) {
			delete(s.records, token)
			purged++
		}
	}
	return purged
}

func (s *Store) evictLocked() {
	for len(s.records) > s.maxEntries {
		var oldest Record
		first := true
		for _, record := range s.records {
			if first || record.olderThan(oldest) {
				oldest = record
				first = false
			}
		}
		delete(s.records, oldest.Token)
		s.logger.Debug().Str("token", oldest.Token).Msg("evicted prepared change over capacity")
	}
}

func (s *Store) appendLocked(record Record) {
	if s.log == nil {
		return
	}
	s.log.enqueue(record.clone())
}
