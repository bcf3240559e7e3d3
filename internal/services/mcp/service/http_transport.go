package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/louisbranch/hs4gate/internal/platform/logging"
	"github.com/louisbranch/hs4gate/internal/platform/timeouts"
)

var listenTCP = net.Listen

// defaultHTTPAddr keeps the HTTP transport on loopback unless configured.
const defaultHTTPAddr = "localhost:8081"

// HTTPTransport serves MCP over streamable HTTP behind host and bearer
// checks.
type HTTPTransport struct {
	addr         string
	allowedHosts map[string]struct{}
	mcpHandler   http.Handler
	requestAuthz RequestAuthorizer
	httpServer   *http.Server
	logger       zerolog.Logger
}

// NewHTTPTransport creates an HTTP transport for server using the auth and
// host settings in cfg.
func NewHTTPTransport(server *mcp.Server, cfg Config, logger zerolog.Logger) (*HTTPTransport, error) {
	if server == nil {
		return nil, fmt.Errorf("MCP server is required")
	}
	addr := strings.TrimSpace(cfg.HTTPAddr)
	if addr == "" {
		addr = defaultHTTPAddr
	}
	authz, err := newRequestAuthorizer(cfg)
	if err != nil {
		return nil, err
	}
	return &HTTPTransport{
		addr:         addr,
		allowedHosts: parseAllowedHosts(cfg.AllowedHosts),
		mcpHandler: mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
			return server
		}, nil),
		requestAuthz: authz,
		logger:       logging.WithComponent(logger, "mcp_http"),
	}, nil
}

// Handler returns the routes served by the transport.
func (t *HTTPTransport) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", t.handleMCP)
	mux.HandleFunc("/mcp/health", t.handleHealth)
	return mux
}

func (t *HTTPTransport) handleMCP(w http.ResponseWriter, r *http.Request) {
	if err := t.validateLocalRequest(r); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	if !t.authorizeRequest(w, r) {
		return
	}
	t.mcpHandler.ServeHTTP(w, r)
}

// Start listens on the configured address and serves until ctx ends.
func (t *HTTPTransport) Start(ctx context.Context) error {
	t.httpServer = &http.Server{
		Addr:              t.addr,
		Handler:           t.Handler(),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	listener, err := listenTCP("tcp", t.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", t.addr, err)
	}
	t.logger.Info().Str("addr", listener.Addr().String()).Bool("auth", t.requestAuthz != nil).Msg("starting MCP HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := t.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		t.logger.Info().Msg("shutting down MCP HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := t.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown HTTP server: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("HTTP server error: %w", err)
	}
}
