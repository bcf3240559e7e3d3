// Package mutation is the guarded pipeline every mutating tool passes
// through: decode, evaluate policy, then deny, dry-run, prepare, or execute,
// auditing each outcome.
package mutation

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/louisbranch/hs4gate/internal/platform/errors"
	platformotel "github.com/louisbranch/hs4gate/internal/platform/otel"
	"github.com/louisbranch/hs4gate/internal/services/gateway/adminexec"
	"github.com/louisbranch/hs4gate/internal/services/gateway/audit"
	"github.com/louisbranch/hs4gate/internal/services/gateway/changetoken"
	"github.com/louisbranch/hs4gate/internal/services/gateway/devicewrite"
	"github.com/louisbranch/hs4gate/internal/services/gateway/normalize"
	"github.com/louisbranch/hs4gate/internal/services/gateway/policy"
)

// Mutation management tool names, used in guidance and audit entries.
const (
	ToolChangePrepare = "hs4_change_prepare"
	ToolChangeCommit  = "hs4_change_commit"
)

// DefaultSource tags status writes made through the gateway.
const DefaultSource = "hs4gate"

// Hub is the subset of the hub client the pipeline calls directly.
type Hub interface {
	RunEvent(ctx context.Context, id int) ([]byte, error)
	RunScriptCommand(ctx context.Context, command string) ([]byte, error)
	PluginFunction(ctx context.Context, plugin, function, instance string, params []string) ([]byte, error)
	CameraPan(ctx context.Context, id int, direction string) ([]byte, error)
	ListEvents(ctx context.Context) ([]normalize.Event, error)
}

// Options wires a Service.
type Options struct {
	Policy   *policy.Engine
	Tokens   *changetoken.Store
	Audit    *audit.Recorder
	Verifier *devicewrite.Verifier
	Router   *adminexec.Router
	Hub      Hub
	// RequireTwoPhaseAdmin rejects immediate execution of admin-tier tools.
	RequireTwoPhaseAdmin bool
	// Source tags set_status writes; DefaultSource when empty.
	Source string
	Logger zerolog.Logger
}

// Service runs the mutation pipeline.
type Service struct {
	policy               *policy.Engine
	tokens               *changetoken.Store
	audit                *audit.Recorder
	verifier             *devicewrite.Verifier
	router               *adminexec.Router
	hub                  Hub
	requireTwoPhaseAdmin bool
	source               string
	logger               zerolog.Logger
	tracer               trace.Tracer

	mu         sync.Mutex
	committing map[string]struct{}
}

// NewService builds the pipeline.
func NewService(opts Options) *Service {
	s := &Service{
		policy:               opts.Policy,
		tokens:               opts.Tokens,
		audit:                opts.Audit,
		verifier:             opts.Verifier,
		router:               opts.Router,
		hub:                  opts.Hub,
		requireTwoPhaseAdmin: opts.RequireTwoPhaseAdmin,
		source:               strings.TrimSpace(opts.Source),
		logger:               opts.Logger.With().Str("component", "mutation").Logger(),
		tracer:               platformotel.Tracer("mutation"),
		committing:           map[string]struct{}{},
	}
	if s.policy == nil {
		s.policy = policy.NewEngine(policy.Config{})
	}
	if s.source == "" {
		s.source = DefaultSource
	}
	return s
}

// Policy returns the engine's static configuration.
func (s *Service) Policy() policy.Config {
	return s.policy.Config()
}

// Execute runs a mutating tool immediately, or plans it when dry-run.
func (s *Service) Execute(ctx context.Context, tool string, args map[string]any) Envelope {
	ctx, span := s.startSpan(ctx, "mutation.execute", tool)
	defer span.End()

	p, err := s.build(tool, args)
	if err != nil {
		return s.fail(span, err)
	}
	decision := s.policy.Evaluate(p.request)
	if !decision.Allowed {
		return s.deny(ctx, span, p, decision, nil)
	}
	if decision.EffectiveDryRun {
		return s.dryRun(ctx, p, decision, nil)
	}
	if s.requiresTwoPhase(p) {
		return s.fail(span, apperrors.WithDetails(apperrors.CodeBadRequest,
			p.tool+" requires two-phase execution; call "+ToolChangePrepare+" then "+ToolChangeCommit,
			map[string]any{"tool": p.tool, "prepareTool": ToolChangePrepare, "commitTool": ToolChangeCommit}))
	}
	env, _ := s.run(ctx, span, p, decision, nil)
	return env
}

// Prepare validates a mutation and stores it behind a change token.
func (s *Service) Prepare(ctx context.Context, tool string, args map[string]any) Envelope {
	ctx, span := s.startSpan(ctx, "mutation.prepare", tool)
	defer span.End()

	if s.tokens == nil {
		return s.fail(span, apperrors.New(apperrors.CodeInternal, "change tokens are not configured"))
	}
	p, err := s.build(tool, args)
	if err != nil {
		return s.fail(span, err)
	}
	p.request.DryRun = false
	decision := s.policy.Evaluate(p.request)
	if !decision.Allowed {
		return s.deny(ctx, span, p, decision, map[string]any{"phase": "prepare"})
	}

	auditRef := s.audit.Record(ctx, s.entry(p, decision, audit.ResultPrepared, map[string]any{
		"phase":   "prepare",
		"summary": p.summary,
	}))
	stored := cloneArgs(args)
	delete(stored, "dryRun")
	record, err := s.tokens.Create(ctx, p.tool, stored, p.summary, auditRef)
	if err != nil {
		return s.fail(span, err)
	}
	span.SetAttributes(attribute.String("hs4gate.token", record.Token))
	return Success(map[string]any{
		"token":            record.Token,
		"toolName":         record.ToolName,
		"summary":          record.Summary,
		"createdAt":        record.CreatedAt,
		"expiresAt":        record.ExpiresAt,
		"preparedAuditRef": record.PreparedAuditRef,
		"policy":           decision,
		"next":             ToolChangeCommit,
	})
}

// Commit executes a prepared change once.
func (s *Service) Commit(ctx context.Context, token string) Envelope {
	ctx, span := s.startSpan(ctx, "mutation.commit", "")
	defer span.End()

	token = strings.TrimSpace(token)
	if token == "" {
		return s.fail(span, apperrors.New(apperrors.CodeBadRequest, "token is required"))
	}
	if s.tokens == nil {
		return s.fail(span, apperrors.New(apperrors.CodeInternal, "change tokens are not configured"))
	}
	if !s.beginCommit(token) {
		return s.fail(span, apperrors.WithDetails(apperrors.CodeBadRequest,
			"a commit for this token is already in progress", map[string]any{"token": token}))
	}
	defer s.endCommit(token)

	record, ok := s.tokens.Get(ctx, token)
	if !ok {
		return s.fail(span, apperrors.WithDetails(apperrors.CodeNotFound,
			"change token not found or expired", map[string]any{"token": token}))
	}
	span.SetAttributes(attribute.String("hs4gate.tool", record.ToolName))
	if record.Committed() {
		return s.fail(span, apperrors.WithDetails(apperrors.CodeBadRequest,
			"change token was already committed", map[string]any{
				"token":          token,
				"committedAt":    record.CommittedAt,
				"commitAuditRef": record.CommitAuditRef,
			}))
	}

	p, err := s.build(record.ToolName, record.Args)
	if err != nil {
		return s.fail(span, err)
	}
	p.request.DryRun = false
	extra := map[string]any{"phase": "commit", "token": token}
	if record.PreparedAuditRef != "" {
		extra["preparedAuditRef"] = record.PreparedAuditRef
	}
	decision := s.policy.Evaluate(p.request)
	if !decision.Allowed {
		return s.deny(ctx, span, p, decision, extra)
	}
	if decision.EffectiveDryRun {
		return s.dryRun(ctx, p, decision, extra)
	}

	env, auditRef := s.run(ctx, span, p, decision, extra)
	if !env.OK {
		return env
	}
	committed, ok := s.tokens.MarkCommitted(ctx, token, auditRef)
	if ok {
		env.Data["token"] = committed.Token
		env.Data["committedAt"] = committed.CommittedAt
	}
	return env
}

// ListPrepared returns the newest prepared changes.
func (s *Service) ListPrepared(ctx context.Context, limit int) Envelope {
	if s.tokens == nil {
		return Failure(apperrors.New(apperrors.CodeInternal, "change tokens are not configured"))
	}
	records := s.tokens.List(ctx, limit)
	for i := range records {
		records[i].Args = redact(records[i].Args)
	}
	return Success(map[string]any{"items": records, "count": len(records)})
}

// Evaluate previews the policy decision for a tool call without side effects.
func (s *Service) Evaluate(tool string, args map[string]any) Envelope {
	p, err := s.build(tool, args)
	if err != nil {
		return Failure(err)
	}
	decision := s.policy.Evaluate(p.request)
	return Success(map[string]any{
		"tool":             p.tool,
		"action":           p.action,
		"decision":         decision,
		"summary":          p.summary,
		"twoPhaseRequired": s.requiresTwoPhase(p),
	})
}

func (s *Service) requiresTwoPhase(p plan) bool {
	return s.requireTwoPhaseAdmin && p.request.Tier == policy.TierAdmin
}

func (s *Service) deny(ctx context.Context, span trace.Span, p plan, decision policy.Decision, extra map[string]any) Envelope {
	details := merge(extra, map[string]any{"reasons": decision.Reasons, "summary": p.summary})
	s.audit.Record(ctx, s.entry(p, decision, audit.ResultBlocked, details))
	s.logger.Info().Str("tool", p.tool).Strs("reasons", decision.Reasons).Msg("mutation denied")
	return s.fail(span, apperrors.WithDetails(apperrors.CodePolicyDeny, "mutation denied by policy", map[string]any{
		"reasons":  decision.Reasons,
		"decision": decision,
	}))
}

func (s *Service) dryRun(ctx context.Context, p plan, decision policy.Decision, extra map[string]any) Envelope {
	auditRef := s.audit.Record(ctx, s.entry(p, decision, audit.ResultDryRun, merge(extra, map[string]any{"summary": p.summary})))
	return Success(map[string]any{
		"dryRun":  true,
		"tool":    p.tool,
		"action":  p.action,
		"plan":    p.summary,
		"policy":  decision,
		"auditId": auditRef,
	})
}

// run executes p and audits the outcome. It returns the audit id.
func (s *Service) run(ctx context.Context, span trace.Span, p plan, decision policy.Decision, extra map[string]any) (Envelope, string) {
	out, err := p.execute(ctx)
	if err != nil {
		appErr := apperrors.Normalize(err)
		entry := s.entry(p, decision, audit.ResultError, merge(extra, map[string]any{
			"summary": p.summary,
			"code":    string(appErr.Code),
			"message": appErr.Error(),
		}))
		entry.Before, entry.After, entry.Diff = out.before, out.after, out.diff
		auditRef := s.audit.Record(ctx, entry)
		s.logger.Warn().Err(err).Str("tool", p.tool).Str("code", string(appErr.Code)).Msg("mutation failed")
		return s.fail(span, appErr), auditRef
	}

	entry := s.entry(p, decision, audit.ResultSuccess, merge(extra, map[string]any{"summary": p.summary}))
	entry.Before, entry.After, entry.Diff = out.before, out.after, out.diff
	auditRef := s.audit.Record(ctx, entry)

	data := out.data
	if data == nil {
		data = map[string]any{}
	}
	data["tool"] = p.tool
	data["action"] = p.action
	data["auditId"] = auditRef
	return Success(data), auditRef
}

func (s *Service) entry(p plan, decision policy.Decision, result audit.Result, details map[string]any) audit.Entry {
	entry := audit.Entry{
		Tool:    p.tool,
		Action:  p.action,
		Result:  result,
		DryRun:  decision.EffectiveDryRun,
		Details: details,
	}
	if n := decision.Normalized; n.Tier == policy.TierAdmin {
		entry.Admin = &audit.Admin{
			Tier:                string(n.Tier),
			Domain:              string(n.Domain),
			MaintenanceWindowID: n.MaintenanceWindowID,
			ChangeTicketID:      n.ChangeTicketID,
			RiskLevel:           n.RiskLevel,
		}
	}
	return entry
}

func (s *Service) startSpan(ctx context.Context, name, tool string) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, name)
	if tool != "" {
		span.SetAttributes(attribute.String("hs4gate.tool", tool))
	}
	return ctx, span
}

func (s *Service) fail(span trace.Span, err error) Envelope {
	env := Failure(err)
	span.SetStatus(codes.Error, string(env.Error.Code))
	return env
}

func (s *Service) beginCommit(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.committing[token]; busy {
		return false
	}
	s.committing[token] = struct{}{}
	return true
}

func (s *Service) endCommit(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.committing, token)
}

func merge(base, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func cloneArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out
}
