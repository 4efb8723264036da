package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/RBarbieri13/decant/internal/core"
)

// statusForKind maps a core.Kind to its HTTP status, per spec.md §7.
func statusForKind(kind core.Kind) int {
	switch kind {
	case core.KindURLRequired, core.KindURLEmpty, core.KindURLInvalid, core.KindURLInvalidProtocol,
		core.KindURLNoHostname, core.KindValidationFailed, core.KindExtractionFailed:
		return http.StatusBadRequest
	case core.KindUnauthorized, core.KindInvalidAPIKey:
		return http.StatusUnauthorized
	case core.KindSSRFBlocked, core.KindForbidden:
		return http.StatusForbidden
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindNetworkTimeout:
		return http.StatusRequestTimeout
	case core.KindContentTooLarge:
		return http.StatusRequestEntityTooLarge
	case core.KindRateLimitExceeded:
		return http.StatusTooManyRequests
	case core.KindConflict, core.KindDuplicateURL:
		return http.StatusConflict
	case core.KindFetchFailed:
		return http.StatusBadGateway
	case core.KindAPIKeyMissing, core.KindCircuitOpen:
		return http.StatusServiceUnavailable
	case core.KindInternal, core.KindDatabaseError, core.KindLLMEmptyResponse, core.KindLLMParseError, core.KindLLMSchemaError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// errorResponse is the shape every error reply takes (spec.md §6).
type errorResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code,omitempty"`
	Details    string `json:"details,omitempty"`
	RetryAfter string `json:"retryAfter,omitempty"`
	RequestID  string `json:"requestId,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// writeError renders err as a JSON error response, mapping its Kind to an
// HTTP status and redacting the message in production (spec.md §7).
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := core.KindOf(err)
	status := statusForKind(kind)

	message := err.Error()
	if s.Config.IsProduction() && status == http.StatusInternalServerError {
		message = "An internal error occurred"
	}

	resp := errorResponse{
		Error:     message,
		Code:      string(kind),
		RequestID: requestIDFrom(r),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if status == http.StatusTooManyRequests {
		resp.RetryAfter = "60"
		w.Header().Set("Retry-After", resp.RetryAfter)
	}

	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requestIDFrom(r *http.Request) string {
	return r.Header.Get("X-Request-Id")
}
