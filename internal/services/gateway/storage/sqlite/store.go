package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/louisbranch/hs4gate/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/hs4gate/internal/services/gateway/audit"
	"github.com/louisbranch/hs4gate/internal/services/gateway/storage/sqlite/migrations"
)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store persists audit entries in SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ audit.Sink = (*Store)(nil)

// Open opens (creating if needed) the audit database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Record appends an entry.
func (s *Store) Record(ctx context.Context, entry audit.Entry) (audit.Entry, error) {
	if err := ctx.Err(); err != nil {
		return audit.Entry{}, err
	}
	if s == nil || s.sqlDB == nil {
		return audit.Entry{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(entry.ID) == "" {
		return audit.Entry{}, fmt.Errorf("audit id is required")
	}
	if strings.TrimSpace(entry.Tool) == "" {
		return audit.Entry{}, fmt.Errorf("tool is required")
	}
	if entry.Timestamp.IsZero() {
		return audit.Entry{}, fmt.Errorf("timestamp is required")
	}

	adminJSON, err := encodeJSON(entry.Admin)
	if err != nil {
		return audit.Entry{}, err
	}
	detailsJSON, err := encodeJSON(entry.Details)
	if err != nil {
		return audit.Entry{}, err
	}
	beforeJSON, err := encodeJSON(entry.Before)
	if err != nil {
		return audit.Entry{}, err
	}
	afterJSON, err := encodeJSON(entry.After)
	if err != nil {
		return audit.Entry{}, err
	}
	diffJSON, err := encodeJSON(entry.Diff)
	if err != nil {
		return audit.Entry{}, err
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO audit_entries (
	id, created_at, tool, action, result, dry_run, admin_json, details_json, before_json, after_json, diff_json
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		entry.ID,
		toMillis(entry.Timestamp),
		entry.Tool,
		entry.Action,
		string(entry.Result),
		entry.DryRun,
		adminJSON,
		detailsJSON,
		beforeJSON,
		afterJSON,
		diffJSON,
	)
	if err != nil {
		return audit.Entry{}, fmt.Errorf("put audit entry: %w", err)
	}
	return entry, nil
}

// Query lists matching entries, newest first.
func (s *Store) Query(ctx context.Context, filter audit.Filter) ([]audit.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	var (
		whereParts []string
		args       []any
	)
	if tool := strings.TrimSpace(filter.Tool); tool != "" {
		whereParts = append(whereParts, "tool = ?")
		args = append(args, tool)
	}
	if filter.Result != "" {
		whereParts = append(whereParts, "result = ?")
		args = append(args, string(filter.Result))
	}
	if !filter.Since.IsZero() {
		whereParts = append(whereParts, "created_at >= ?")
		args = append(args, toMillis(filter.Since))
	}
	where := ""
	if len(whereParts) > 0 {
		where = "WHERE " + strings.Join(whereParts, " AND ")
	}
	args = append(args, filter.EffectiveLimit())

	rows, err := s.sqlDB.QueryContext(ctx, fmt.Sprintf(`
SELECT id, created_at, tool, action, result, dry_run, admin_json, details_json, before_json, after_json, diff_json
FROM audit_entries
%s
ORDER BY created_at DESC, seq DESC
LIMIT ?
`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	entries := []audit.Entry{}
	for rows.Next() {
		var (
			entry                           audit.Entry
			createdAt                       int64
			result                          string
			adminRaw, detailsRaw, beforeRaw sql.NullString
			afterRaw, diffRaw               sql.NullString
		)
		if err := rows.Scan(&entry.ID, &createdAt, &entry.Tool, &entry.Action, &result, &entry.DryRun,
			&adminRaw, &detailsRaw, &beforeRaw, &afterRaw, &diffRaw); err != nil {
			return nil, fmt.Errorf("scan audit entry row: %w", err)
		}
		entry.Timestamp = fromMillis(createdAt)
		entry.Result = audit.Result(result)
		if err := decodeJSON(adminRaw, &entry.Admin); err != nil {
			return nil, err
		}
		if err := decodeJSON(detailsRaw, &entry.Details); err != nil {
			return nil, err
		}
		if err := decodeJSON(beforeRaw, &entry.Before); err != nil {
			return nil, err
		}
		if err := decodeJSON(afterRaw, &entry.After); err != nil {
			return nil, err
		}
		if err := decodeJSON(diffRaw, &entry.Diff); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entry rows: %w", err)
	}
	return entries, nil
}

func encodeJSON[T any](value T) (sql.NullString, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal audit field: %w", err)
	}
	if string(raw) == "null" {
		return sql.NullString{}, nil
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func decodeJSON(raw sql.NullString, target any) error {
	if !raw.Valid || strings.TrimSpace(raw.String) == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw.String), target); err != nil {
		return fmt.Errorf("unmarshal audit field: %w", err)
	}
	return nil
}
