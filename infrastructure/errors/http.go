// Package errors turns non-2xx HTTP responses from upstream APIs into typed errors.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 4 << 10

// HTTPError is a non-2xx response from an upstream API.
type HTTPError struct {
	StatusCode int
	Body       string
	Message    string
}

// Error keeps the "status NNN" prefix that the retry package keys on.
func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("status %d", e.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

// ParseHTTPError returns nil for 2xx responses and an *HTTPError otherwise.
// It understands {"error": "..."}, {"error": {"message": "..."}} and
// {"message": "..."} bodies, which covers Firecrawl, Resend and
// OpenAI-compatible gateways.
func ParseHTTPError(resp *http.Response) error {
	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if readErr != nil {
		return &HTTPError{StatusCode: resp.StatusCode, Message: "unreadable error body: " + readErr.Error()}
	}

	body := strings.TrimSpace(string(raw))
	return &HTTPError{StatusCode: resp.StatusCode, Body: body, Message: extractMessage(raw, body)}
}

func extractMessage(raw []byte, fallback string) string {
	var payload struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if json.Unmarshal(raw, &payload) != nil {
		return fallback
	}

	if len(payload.Error) > 0 {
		var s string
		if json.Unmarshal(payload.Error, &s) == nil && s != "" {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(payload.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
	}

	if payload.Message != "" {
		return payload.Message
	}
	return fallback
}

// StatusCode extracts the HTTP status from err, if it wraps an *HTTPError.
func StatusCode(err error) (int, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode, true
	}
	return 0, false
}
