// Package audit records the outcome of every pipeline decision.
package audit

import (
	"context"
	"strings"
	"time"
)

// Result tags an audit entry.
type Result string

const (
	ResultBlocked  Result = "blocked"
	ResultDryRun   Result = "dry_run"
	ResultPrepared Result = "prepared"
	ResultSuccess  Result = "success"
	ResultError    Result = "error"
)

// Admin is the change-control metadata of an admin-tier entry.
type Admin struct {
	Tier                string `json:"tier"`
	Domain              string `json:"domain,omitempty"`
	MaintenanceWindowID string `json:"maintenanceWindowId,omitempty"`
	ChangeTicketID      string `json:"changeTicketId,omitempty"`
	RiskLevel           string `json:"riskLevel,omitempty"`
}

// Entry is one audit record.
type Entry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Tool      string         `json:"tool"`
	Action    string         `json:"action,omitempty"`
	Result    Result         `json:"result"`
	DryRun    bool           `json:"dryRun"`
	Admin     *Admin         `json:"admin,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Before    map[string]any `json:"before,omitempty"`
	After     map[string]any `json:"after,omitempty"`
	Diff      []string       `json:"diff,omitempty"`
}

// Filter narrows Query. Zero fields match everything.
type Filter struct {
	Tool   string
	Result Result
	Since  time.Time
	Limit  int
}

// DefaultQueryLimit caps queries without an explicit limit.
const DefaultQueryLimit = 50

// Matches reports whether entry passes the filter's predicates.
func (f Filter) Matches(entry Entry) bool {
	if tool := strings.TrimSpace(f.Tool); tool != "" && entry.Tool != tool {
		return false
	}
	if f.Result != "" && entry.Result != f.Result {
		return false
	}
	if !f.Since.IsZero() && entry.Timestamp.Before(f.Since) {
		return false
	}
	return true
}

// EffectiveLimit returns the limit with the default applied.
func (f Filter) EffectiveLimit() int {
	if f.Limit <= 0 {
		return DefaultQueryLimit
	}
	return f.Limit
}

// Sink is append-only audit storage.
type Sink interface {
	Record(ctx context.Context, entry Entry) (Entry, error)
	// Query returns matching entries, newest first.
	Query(ctx context.Context, filter Filter) ([]Entry, error)
}
