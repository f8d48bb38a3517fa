package httpexec

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"archie-core-marketplace-layer/internal/domain"
)

const maxDetailText = 2048

// KindForStatus maps a non-2xx HTTP status to an error kind
func KindForStatus(status int) domain.ErrorKind {
	switch {
	case status == http.StatusUnauthorized:
		return domain.ErrAuthenticationFailed
	case status == http.StatusForbidden:
		return domain.ErrAuthorizationFailed
	case status == http.StatusTooManyRequests:
		return domain.ErrRateLimitExceeded
	case status >= 500:
		return domain.ErrServerError
	default:
		return domain.ErrUnclassified
	}
}

// ClassifyResponse builds the error of a non-2xx response.
// The body is kept as structured detail when it is JSON and as raw text otherwise.
func ClassifyResponse(status int, body []byte) *domain.Error {
	kind := KindForStatus(status)

	var detail any
	message := ""
	if len(body) > 0 {
		var parsed any
		if err := json.Unmarshal(body, &parsed); err == nil {
			detail = parsed
			message = extractMessage(parsed)
		} else {
			text := strings.TrimSpace(string(body))
			if len(text) > maxDetailText {
				text = text[:maxDetailText]
			}
			detail = text
		}
	}
	if message == "" {
		message = http.StatusText(status)
	}

	e := domain.NewError(kind, fmt.Sprintf("HTTP %d: %s", status, message))
	e.Status = status
	e.Detail = detail
	return e
}

// TransportError builds the error of a request that never produced a response
func TransportError(err error) *domain.Error {
	return domain.NewError(domain.ErrException, err.Error())
}

// extractMessage looks for the usual error message keys of marketplace APIs
func extractMessage(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		for _, key := range []string{"message", "error_description", "error", "errors", "detail"} {
			if inner, ok := t[key]; ok {
				if msg := extractMessage(inner); msg != "" {
					return msg
				}
			}
		}
	case []any:
		if len(t) > 0 {
			return extractMessage(t[0])
		}
	}
	return ""
}
