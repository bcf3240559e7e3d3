package service

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// RequestAuthorizer admits or rejects an HTTP request.
type RequestAuthorizer interface {
	Authorize(*http.Request) error
}

var errMissingBearer = errors.New("authorization required")

// bearerAuthorizer accepts either the static token or an HS256 JWT signed
// with the shared secret. Either may be unset.
type bearerAuthorizer struct {
	apiToken  string
	jwtSecret []byte
	audience  string
}

// newRequestAuthorizer returns nil when no credential is configured.
func newRequestAuthorizer(cfg Config) (RequestAuthorizer, error) {
	token := strings.TrimSpace(cfg.AuthToken)
	secret := strings.TrimSpace(cfg.JWTSecret)
	if token == "" && secret == "" {
		return nil, nil
	}
	if secret != "" && len(secret) < 32 {
		return nil, fmt.Errorf("JWT secret must be at least 32 bytes")
	}
	authz := &bearerAuthorizer{apiToken: token, audience: strings.TrimSpace(cfg.JWTAudience)}
	if secret != "" {
		authz.jwtSecret = []byte(secret)
	}
	return authz, nil
}

func (a *bearerAuthorizer) Authorize(r *http.Request) error {
	token, ok := bearerToken(r)
	if !ok {
		return errMissingBearer
	}
	if a.apiToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(a.apiToken)) == 1 {
		return nil
	}
	if len(a.jwtSecret) == 0 {
		return errors.New("invalid access token")
	}
	return a.validateJWT(token)
}

func (a *bearerAuthorizer) validateJWT(raw string) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.jwtSecret, nil
	}, opts...)
	if err != nil {
		return fmt.Errorf("invalid access token: %w", err)
	}
	return nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return token, token != ""
}

// authorizeRequest writes a 401 and returns false when the request is not
// admitted. Without configured credentials every request is admitted.
func (t *HTTPTransport) authorizeRequest(w http.ResponseWriter, r *http.Request) bool {
	if t.requestAuthz == nil {
		return true
	}
	if err := t.requestAuthz.Authorize(r); err != nil {
		t.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("rejected MCP request")
		writeUnauthorized(w, err)
		return false
	}
	return true
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="hs4gate"`)
	message := "invalid access token"
	if errors.Is(err, errMissingBearer) {
		message = errMissingBearer.Error()
	}
	http.Error(w, message, http.StatusUnauthorized)
}

// validateLocalRequest checks Host and Origin against the allowed hosts to
// block DNS rebinding from browser pages.
func (t *HTTPTransport) validateLocalRequest(r *http.Request) error {
	if r == nil {
		return fmt.Errorf("invalid request")
	}
	if !t.isAllowedHostHeader(r.Host) {
		return fmt.Errorf("invalid host")
	}

	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return nil
	}
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("invalid origin")
	}
	if !t.isAllowedHostHeader(parsed.Host) {
		return fmt.Errorf("invalid origin")
	}
	return nil
}

// isAllowedHostHeader reports whether a Host/Origin header names loopback or
// a configured host.
func (t *HTTPTransport) isAllowedHostHeader(host string) bool {
	resolvedHost, ok := normalizeHost(host)
	if !ok {
		return false
	}
	if isLoopbackHost(resolvedHost) {
		return true
	}
	_, ok = t.allowedHosts[strings.ToLower(resolvedHost)]
	return ok
}

func isLoopbackHost(host string) bool {
	switch strings.ToLower(strings.TrimSpace(host)) {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}

func parseAllowedHosts(hosts []string) map[string]struct{} {
	result := make(map[string]struct{}, len(hosts))
	for _, entry := range hosts {
		trimmed := strings.TrimSpace(entry)
		if trimmed == "" {
			continue
		}
		result[strings.ToLower(trimmed)] = struct{}{}
	}
	return result
}

// normalizeHost extracts the hostname portion of a Host/Origin header.
func normalizeHost(host string) (string, bool) {
	host = strings.TrimSpace(host)
	if host == "" {
		return "", false
	}
	if strings.HasPrefix(host, "[") {
		if splitHost, _, err := net.SplitHostPort(host); err == nil {
			return splitHost, true
		}
		if strings.HasSuffix(host, "]") {
			return strings.TrimSuffix(strings.TrimPrefix(host, "["), "]"), true
		}
		return "", false
	}
	if strings.Count(host, ":") > 1 {
		return host, true
	}
	if strings.Contains(host, ":") {
		splitHost, _, err := net.SplitHostPort(host)
		if err != nil {
			return "", false
		}
		return splitHost, true
	}
	return host, true
}

// handleHealth handles GET /mcp/health.
func (t *HTTPTransport) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := t.validateLocalRequest(r); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		t.logger.Warn().Err(err).Msg("write health response")
	}
}
