// Package httpserver contains HTTP handlers and middleware.
//
// It exposes the interview API: feedback scoring, interview sessions, the
// coaching endpoints and user history. Handlers translate HTTP to usecase
// calls and map domain errors onto the JSON error envelope.
package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/fairyhunter13/ai-mock-interview/internal/domain"
)

var (
	errUnsupportedMedia = errors.New("unsupported media type")
	errUnauthenticated  = errors.New("unauthenticated")
	errNotAcceptable    = errors.New("not acceptable")
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorStatus maps an error onto an HTTP status and envelope code. Order
// matters: specific errors wrap the generic sentinels.
func errorStatus(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	var quota *domain.QuotaExceededError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE"
	case errors.As(err, &quota):
		return http.StatusTooManyRequests, "QUOTA_EXCEEDED"
	case errors.Is(err, errUnsupportedMedia):
		return http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE"
	case errors.Is(err, errUnauthenticated):
		return http.StatusUnauthorized, "UNAUTHENTICATED"
	case errors.Is(err, errNotAcceptable):
		return http.StatusNotAcceptable, "NOT_ACCEPTABLE"
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "INVALID_ARGUMENT"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrSessionCompleted):
		return http.StatusConflict, "SESSION_COMPLETED"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "RATE_LIMITED"
	case errors.Is(err, domain.ErrTranscriptionUnavailable):
		return http.StatusServiceUnavailable, "TRANSCRIPTION_UNAVAILABLE"
	case errors.Is(err, domain.ErrModelResponseMalformed):
		return http.StatusBadGateway, "MODEL_RESPONSE_MALFORMED"
	case errors.Is(err, domain.ErrModelTimeout):
		return http.StatusGatewayTimeout, "MODEL_TIMEOUT"
	case errors.Is(err, domain.ErrUpstreamTimeout):
		return http.StatusServiceUnavailable, "UPSTREAM_TIMEOUT"
	case errors.Is(err, domain.ErrUpstreamRateLimit):
		return http.StatusServiceUnavailable, "UPSTREAM_RATE_LIMIT"
	case errors.Is(err, domain.ErrSchemaInvalid):
		return http.StatusServiceUnavailable, "SCHEMA_INVALID"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func writeError(w http.ResponseWriter, r *http.Request, err error, details interface{}) {
	code, codeStr := errorStatus(err)
	var quota *domain.QuotaExceededError
	if errors.As(err, &quota) && quota.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(quota.RetryAfter.Seconds()))))
	}
	msg := err.Error()
	if code >= http.StatusInternalServerError {
		LoggerFrom(r).Error("request failed", slog.String("code", codeStr), slog.Any("error", err))
		if code == http.StatusInternalServerError {
			msg = "internal error"
		}
	}
	writeJSON(w, code, errorEnvelope{Error: apiError{Code: codeStr, Message: msg, Details: details}})
}
