// Package adminexec routes privileged hub mutations through the direct JSON
// API or the hub-side script adapter.
//
// In auto mode a capability cache remembers which domain:action pairs the
// direct route rejected, so later calls go straight to the adapter.
package adminexec

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	apperrors "github.com/louisbranch/hs4gate/internal/platform/errors"
)

// Mode selects the routing strategy.
type Mode string

const (
	ModeAdapter Mode = "adapter"
	ModeDirect  Mode = "direct"
	ModeAuto    Mode = "auto"
)

// ParseMode validates a routing mode.
func ParseMode(raw string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(raw))); m {
	case ModeAdapter, ModeDirect, ModeAuto:
		return m, nil
	case "":
		return ModeAuto, nil
	default:
		return "", fmt.Errorf("unknown admin route mode %q", raw)
	}
}

// Snapshot captures state around an admin operation.
type Snapshot func(ctx context.Context) (map[string]any, error)

// Request is one admin mutation.
type Request struct {
	Domain       string
	Action       string
	Payload      Payload
	RollbackHint Rollback
	Before       Snapshot
	After        Snapshot
}

// Options configures a Router.
type Options struct {
	Mode          Mode
	Fallback      bool
	AdapterScript string
	Cache         *CapabilityCache
	Logger        zerolog.Logger
}

// Router executes admin mutations.
type Router struct {
	api           HubAPI
	mode          Mode
	fallback      bool
	adapterScript string
	cache         *CapabilityCache
	logger        zerolog.Logger
}

// NewRouter builds a router over api.
func NewRouter(api HubAPI, opts Options) *Router {
	r := &Router{
		api:           api,
		mode:          opts.Mode,
		fallback:      opts.Fallback,
		adapterScript: strings.TrimSpace(opts.AdapterScript),
		cache:         opts.Cache,
		logger:        opts.Logger.With().Str("component", "adminexec").Logger(),
	}
	if r.mode == "" {
		r.mode = ModeAuto
	}
	if r.adapterScript == "" {
		r.adapterScript = DefaultAdapterScript
	}
	if r.cache == nil {
		r.cache = NewCapabilityCache(0, nil)
	}
	return r
}

// Mode returns the configured routing mode.
func (r *Router) Mode() Mode {
	return r.mode
}

// Execute runs req, capturing before/after snapshots around dispatch.
func (r *Router) Execute(ctx context.Context, req Request) (Result, error) {
	req.Domain = strings.TrimSpace(req.Domain)
	req.Action = strings.TrimSpace(req.Action)
	if req.Domain == "" || req.Action == "" {
		return Result{}, apperrors.New(apperrors.CodeBadRequest, "admin domain and action are required")
	}

	before := r.snapshot(ctx, req, "before", req.Before)
	result, err := r.dispatch(ctx, req)
	if err != nil {
		return Result{}, err
	}
	after := r.snapshot(ctx, req, "after", req.After)

	if len(before) > 0 {
		result.Before = before
	}
	if len(after) > 0 {
		result.After = after
	}
	if before != nil || after != nil {
		if diff := Diff(before, after); len(diff) > 0 {
			result.Diff = diff
		}
	}
	return result, nil
}

func (r *Router) snapshot(ctx context.Context, req Request, phase string, hook Snapshot) map[string]any {
	if hook == nil {
		return nil
	}
	state, err := hook(ctx)
	if err != nil {
		r.logger.Warn().Err(err).
			Str("domain", req.Domain).
			Str("action", req.Action).
			Str("phase", phase).
			Msg("admin snapshot failed")
		return nil
	}
	return state
}

func (r *Router) dispatch(ctx context.Context, req Request) (Result, error) {
	switch r.mode {
	case ModeAdapter:
		return r.viaAdapter(ctx, req)
	case ModeDirect:
		return r.directThenFallback(ctx, req)
	default:
		if supported, ok := r.cache.Lookup(req.Domain, req.Action); ok && !supported {
			r.logger.Debug().Str("domain", req.Domain).Str("action", req.Action).Msg("cached unsupported, using adapter")
			return r.viaAdapter(ctx, req)
		}
		return r.directThenFallback(ctx, req)
	}
}

func (r *Router) directThenFallback(ctx context.Context, req Request) (Result, error) {
	result, err := r.viaDirect(ctx, req)
	switch {
	case err == nil:
		r.cache.Store(req.Domain, req.Action, true)
		return result, nil
	case !apperrors.IsCode(err, apperrors.CodeUnsupportedOnTarget):
		return Result{}, err
	}

	r.cache.Store(req.Domain, req.Action, false)
	if !r.fallback {
		return Result{}, err
	}
	r.logger.Info().
		Str("domain", req.Domain).
		Str("action", req.Action).
		Str("reason", err.Error()).
		Msg("direct route unsupported, falling back to adapter")

	result, adapterErr := r.viaAdapter(ctx, req)
	if adapterErr != nil {
		return Result{}, adapterErr
	}
	result.FallbackFrom = RouteDirect
	if result.Data == nil {
		result.Data = map[string]any{}
	}
	result.Data["fallback"] = map[string]any{
		"from":   string(RouteDirect),
		"to":     string(RouteAdapter),
		"reason": fallbackReasonUnsupported,
	}
	if len(result.Steps) > 0 {
		result.Steps[0].FallbackFrom = RouteDirect
	}
	return result, nil
}
