package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/louisbranch/hs4gate/internal/platform/logging"
	"github.com/louisbranch/hs4gate/internal/services/mcp/domain"
)

const (
	// serverName identifies this MCP server to clients.
	serverName = "hs4gate"
	// serverVersion identifies the MCP server version.
	serverVersion = "0.1.0"
)

// TransportKind identifies the MCP transport implementation.
type TransportKind string

const (
	// TransportStdio uses standard input/output for MCP.
	TransportStdio TransportKind = "stdio"
	// TransportHTTP runs MCP over streamable HTTP.
	TransportHTTP TransportKind = "http"
)

// ParseTransport resolves a transport name; empty means stdio.
func ParseTransport(raw string) (TransportKind, error) {
	switch kind := TransportKind(strings.ToLower(strings.TrimSpace(raw))); kind {
	case "":
		return TransportStdio, nil
	case TransportStdio, TransportHTTP:
		return kind, nil
	default:
		return "", fmt.Errorf("transport %q is not supported", raw)
	}
}

// Config configures the MCP server.
type Config struct {
	Transport TransportKind
	// HTTPAddr is the HTTP listen address. Defaults to localhost:8081.
	HTTPAddr string
	// AllowedHosts extends the loopback-only Host/Origin allowlist.
	AllowedHosts []string
	// AuthToken, when set, is accepted as a static bearer token.
	AuthToken string
	// JWTSecret, when set, enables HS256 bearer JWTs.
	JWTSecret   string
	JWTAudience string

	// RequireTwoPhaseAdmin and AdminRouteMode are published by the policy
	// resource.
	RequireTwoPhaseAdmin bool
	AdminRouteMode       string
}

// Deps are the collaborators behind the registered tools.
type Deps struct {
	Pipeline domain.Pipeline
	Audit    domain.AuditReader
	Logger   zerolog.Logger
}

// Server hosts the MCP server.
type Server struct {
	mcpServer *mcp.Server
	logger    zerolog.Logger
}

// New creates an MCP server with every gateway tool and resource registered.
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Pipeline == nil {
		return nil, fmt.Errorf("mutation pipeline is required")
	}
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, &mcp.ServerOptions{
		CompletionHandler:  completionHandler,
		SubscribeHandler:   resourceSubscribeHandler,
		UnsubscribeHandler: resourceUnsubscribeHandler,
	})
	server := &Server{
		mcpServer: mcpServer,
		logger:    logging.WithComponent(deps.Logger, "mcp"),
	}

	settings := domain.ServerSettings{
		RequireTwoPhaseAdmin: cfg.RequireTwoPhaseAdmin,
		AdminRouteMode:       cfg.AdminRouteMode,
	}
	for _, module := range newMCPRegistrationModules(deps, settings) {
		if err := module.register(mcpServerRegistrationAdapter{server: mcpServer}); err != nil {
			return nil, fmt.Errorf("register MCP module %q: %w", module.name, err)
		}
	}
	return server, nil
}

// completionHandler answers completion requests with no suggestions.
func completionHandler(_ context.Context, _ *mcp.CompleteRequest) (*mcp.CompleteResult, error) {
	return &mcp.CompleteResult{
		Completion: mcp.CompletionResultDetails{
			Values: []string{},
		},
	}, nil
}

// resourceSubscribeHandler accepts resource subscriptions with a valid URI.
func resourceSubscribeHandler(_ context.Context, req *mcp.SubscribeRequest) error {
	if req == nil || req.Params == nil || strings.TrimSpace(req.Params.URI) == "" {
		return fmt.Errorf("resource uri is required")
	}
	return nil
}

// resourceUnsubscribeHandler accepts resource unsubscriptions with a valid URI.
func resourceUnsubscribeHandler(_ context.Context, req *mcp.UnsubscribeRequest) error {
	if req == nil || req.Params == nil || strings.TrimSpace(req.Params.URI) == "" {
		return fmt.Errorf("resource uri is required")
	}
	return nil
}

// Run builds the server and serves it on the configured transport until ctx
// ends.
func Run(ctx context.Context, cfg Config, deps Deps) error {
	if cfg.Transport == "" {
		cfg.Transport = TransportStdio
	}
	server, err := New(cfg, deps)
	if err != nil {
		return err
	}

	switch cfg.Transport {
	case TransportStdio:
		return server.Serve(ctx)
	case TransportHTTP:
		transport, err := NewHTTPTransport(server.mcpServer, cfg, deps.Logger)
		if err != nil {
			return err
		}
		return transport.Start(ctx)
	default:
		return fmt.Errorf("transport %q is not supported", cfg.Transport)
	}
}

// Serve runs the MCP server on stdio and blocks until it stops or the context ends.
func (s *Server) Serve(ctx context.Context) error {
	return s.serveWithTransport(ctx, &mcp.StdioTransport{})
}

// serveWithTransport runs the MCP server on transport. Context cancellation
// is a normal shutdown.
func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	s.logger.Info().Str("transport", fmt.Sprintf("%T", transport)).Msg("serving MCP")
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}
