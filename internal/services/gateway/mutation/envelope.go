package mutation

import (
	apperrors "github.com/louisbranch/hs4gate/internal/platform/errors"
)

// ErrorBody is the error half of an Envelope.
type ErrorBody struct {
	Code               apperrors.Code `json:"code"`
	Message            string         `json:"message"`
	Details            map[string]any `json:"details,omitempty"`
	Retryable          bool           `json:"retryable"`
	FixHint            string         `json:"fix_hint"`
	SuggestedNextCalls []string       `json:"suggested_next_calls"`
}

// Envelope is the uniform result of every pipeline entry point.
type Envelope struct {
	OK    bool           `json:"ok"`
	Data  map[string]any `json:"data,omitempty"`
	Error *ErrorBody     `json:"error,omitempty"`
}

// Success wraps data in an ok envelope.
func Success(data map[string]any) Envelope {
	if data == nil {
		data = map[string]any{}
	}
	return Envelope{OK: true, Data: data}
}

// Failure classifies err and attaches the static guidance for its code.
func Failure(err error) Envelope {
	appErr := apperrors.Normalize(err)
	if appErr == nil {
		appErr = apperrors.New(apperrors.CodeInternal, "failure without error")
	}
	g := apperrors.GuidanceFor(appErr.Code)
	return Envelope{
		Error: &ErrorBody{
			Code:               appErr.Code,
			Message:            appErr.Error(),
			Details:            appErr.Details,
			Retryable:          g.Retryable,
			FixHint:            g.FixHint,
			SuggestedNextCalls: g.SuggestedNextCalls,
		},
	}
}
