// Package mcp parses gateway configuration and runs the MCP server.
package mcp

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	platformcmd "github.com/louisbranch/hs4gate/internal/platform/cmd"
	"github.com/louisbranch/hs4gate/internal/platform/logging"
	"github.com/louisbranch/hs4gate/internal/services/gateway/adminexec"
	"github.com/louisbranch/hs4gate/internal/services/gateway/audit"
	"github.com/louisbranch/hs4gate/internal/services/gateway/changetoken"
	"github.com/louisbranch/hs4gate/internal/services/gateway/devicewrite"
	"github.com/louisbranch/hs4gate/internal/services/gateway/hs4"
	"github.com/louisbranch/hs4gate/internal/services/gateway/mutation"
	"github.com/louisbranch/hs4gate/internal/services/gateway/policy"
	"github.com/louisbranch/hs4gate/internal/services/gateway/storage/sqlite"
	mcpservice "github.com/louisbranch/hs4gate/internal/services/mcp/service"
)

// Run starts the MCP gateway and blocks until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Format: logging.Format(cfg.LogFormat)})
	if err != nil {
		return err
	}
	return platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceMCP, platformcmd.RunOptions{Logger: logger}, func(ctx context.Context) error {
		return run(ctx, cfg, logger)
	})
}

func run(ctx context.Context, cfg Config, logger zerolog.Logger) error {
	transport, err := mcpservice.ParseTransport(cfg.Transport)
	if err != nil {
		return err
	}
	gw, err := buildGateway(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer gw.close()

	return mcpservice.Run(ctx, mcpservice.Config{
		Transport:            transport,
		HTTPAddr:             cfg.HTTPAddr,
		AllowedHosts:         cfg.AllowedHosts,
		AuthToken:            cfg.AuthToken,
		JWTSecret:            cfg.JWTSecret,
		JWTAudience:          cfg.JWTAudience,
		RequireTwoPhaseAdmin: cfg.RequireTwoPhaseAdmin,
		AdminRouteMode:       string(gw.router.Mode()),
	}, mcpservice.Deps{
		Pipeline: gw.service,
		Audit:    gw.recorder,
		Logger:   logger,
	})
}

// gateway holds the wired pipeline and the resources it must release.
type gateway struct {
	service  *mutation.Service
	recorder *audit.Recorder
	router   *adminexec.Router
	closers  []func()
}

func (g *gateway) close() {
	for i := len(g.closers) - 1; i >= 0; i-- {
		g.closers[i]()
	}
}

// buildGateway wires the hub client, policy, change tokens, audit sink and
// routers into a mutation service.
func buildGateway(ctx context.Context, cfg Config, logger zerolog.Logger) (*gateway, error) {
	policyCfg, err := cfg.PolicyConfig()
	if err != nil {
		return nil, err
	}
	routeMode, err := adminexec.ParseMode(cfg.AdminRouteMode)
	if err != nil {
		return nil, err
	}
	verifyOpts := devicewrite.Options{
		Attempts: cfg.VerifyAttempts,
		Delay:    cfg.VerifyDelay,
		Logger:   logger,
	}

	client, err := hs4.New(hs4.Config{
		BaseURL:  cfg.HubURL,
		User:     cfg.HubUser,
		Password: cfg.HubPassword,
		Timeout:  cfg.HubTimeout,
	})
	if err != nil {
		return nil, err
	}

	gw := &gateway{}
	var sink audit.Sink
	if cfg.AuditDB != "" {
		store, err := sqlite.Open(ctx, cfg.AuditDB)
		if err != nil {
			return nil, fmt.Errorf("open audit store: %w", err)
		}
		gw.closers = append(gw.closers, func() {
			if err := store.Close(); err != nil {
				logger.Warn().Err(err).Msg("close audit store")
			}
		})
		sink = store
	} else {
		sink = audit.NewMemorySink(cfg.AuditMemoryCapacity)
	}
	gw.recorder = audit.NewRecorder(sink, logger)

	tokens := changetoken.New(changetoken.Options{
		TTL:        cfg.ChangeTokenTTL,
		MaxEntries: cfg.ChangeTokenMaxEntries,
		LogPath:    cfg.ChangeTokenLog,
		Logger:     logger,
	})
	if err := tokens.Init(ctx); err != nil {
		tokens.Close()
		gw.close()
		return nil, fmt.Errorf("load change tokens: %w", err)
	}
	gw.closers = append(gw.closers, tokens.Close)

	gw.router = adminexec.NewRouter(client, adminexec.Options{
		Mode:          routeMode,
		Fallback:      cfg.AdminFallback,
		AdapterScript: cfg.AdminAdapterScript,
		Cache:         adminexec.NewCapabilityCache(cfg.AdminCapabilityTTL, nil),
		Logger:        logger,
	})
	gw.service = mutation.NewService(mutation.Options{
		Policy:               policy.NewEngine(policyCfg),
		Tokens:               tokens,
		Audit:                gw.recorder,
		Verifier:             devicewrite.NewVerifier(client, verifyOpts),
		Router:               gw.router,
		Hub:                  client,
		RequireTwoPhaseAdmin: cfg.RequireTwoPhaseAdmin,
		Source:               cfg.StatusSource,
		Logger:               logger,
	})

	logger.Info().
		Str("hub", cfg.HubURL).
		Str("admin_route_mode", string(routeMode)).
		Bool("read_only", policyCfg.ReadOnly).
		Bool("default_dry_run", policyCfg.DefaultDryRun).
		Bool("two_phase_admin", cfg.RequireTwoPhaseAdmin).
		Bool("audit_persistent", cfg.AuditDB != "").
		Msg("gateway configured")
	return gw, nil
}
