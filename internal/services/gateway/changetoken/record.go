package changetoken

import "time"

// Record is a prepared mutation waiting for commit.
type Record struct {
	Token            string         `json:"token"`
	ToolName         string         `json:"toolName"`
	Args             map[string]any `json:"args"`
	Summary          map[string]any `json:"summary"`
	PreparedAuditRef string         `json:"preparedAuditRef,omitempty"`
	CommitAuditRef   string         `json:"commitAuditRef,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	ExpiresAt        time.Time      `json:"expiresAt"`
	CommittedAt      *time.Time     `json:"committedAt"`
}

// Committed reports whether the record has been committed.
func (r Record) Committed() bool {
	return r.CommittedAt != nil
}

func (r Record) expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// olderThan orders records by creation time, then token.
func (r Record) olderThan(other Record) bool {
	if !r.CreatedAt.Equal(other.CreatedAt) {
		return r.CreatedAt.Before(other.CreatedAt)
	}
	return r.Token < other.Token
}

func (r Record) clone() Record {
	out := r
	out.Args = cloneMap(r.Args)
	out.Summary = cloneMap(r.Summary)
	if r.CommittedAt != nil {
		at := *r.CommittedAt
		out.CommittedAt = &at
	}
	return out
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return cloneMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), typed...)
	case []int:
		return append([]int(nil), typed...)
	default:
		return v
	}
}
