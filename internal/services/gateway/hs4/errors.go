package hs4

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	apperrors "github.com/louisbranch/hs4gate/internal/platform/errors"
)

// unsupportedMarkers are hub phrases for requests a deployment does not
// implement. Only used when the status code carries no signal.
var unsupportedMarkers = []string{"unknown request", "not supported", "unsupported request"}

func classifyResponse(request string, status int, body []byte) error {
	details := map[string]any{"request": request, "status": status}
	snippet := truncate(strings.TrimSpace(string(body)), 256)

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperrors.WithDetails(apperrors.CodeAuth, fmt.Sprintf("hub rejected credentials for %s", request), details)
	case status == http.StatusBadRequest:
		details["body"] = snippet
		return apperrors.WithDetails(apperrors.CodeBadRequest, fmt.Sprintf("hub rejected %s arguments", request), details)
	case status == http.StatusNotFound:
		return apperrors.WithDetails(apperrors.CodeNotFound, fmt.Sprintf("hub %s target not found", request), details)
	case status == http.StatusNotImplemented:
		return apperrors.WithDetails(apperrors.CodeUnsupportedOnTarget, fmt.Sprintf("hub does not support %s", request), details)
	case status >= 500:
		details["body"] = snippet
		return apperrors.WithDetails(apperrors.CodeHS4, fmt.Sprintf("hub %s failed with status %d", request, status), details)
	case status < 200 || status >= 300:
		details["body"] = snippet
		return apperrors.WithDetails(apperrors.CodeHS4, fmt.Sprintf("hub %s returned status %d", request, status), details)
	}

	// 2xx bodies may still carry a logical error in their Response field or,
	// for older firmware, as plain text.
	message := snippet
	if gjson.ValidBytes(body) {
		response := gjson.GetBytes(body, "Response")
		if !response.Exists() {
			response = gjson.GetBytes(body, "response")
		}
		if response.Type != gjson.String {
			return nil
		}
		message = strings.TrimSpace(response.String())
	}

	switch {
	case isUnsupported(message):
		details["body"] = message
		return apperrors.WithDetails(apperrors.CodeUnsupportedOnTarget, fmt.Sprintf("hub does not support %s", request), details)
	case strings.HasPrefix(strings.ToLower(message), "error"):
		details["body"] = message
		return apperrors.WithDetails(apperrors.CodeHS4, fmt.Sprintf("hub %s failed: %s", request, message), details)
	}
	return nil
}

func isUnsupported(message string) bool {
	lower := strings.ToLower(message)
	for _, marker := range unsupportedMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
