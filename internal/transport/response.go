package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/felixgeelhaar/portal/internal/errors"
)

const (
	maxBodySize    = 1 << 20
	maxPlainErrLen = 200
)

// envelope is the optional {success, data} wrapper some backends use.
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// ErrorResponse covers the error body shapes the backends produce:
// {error, message}, {error: {code, message, details}} and {errors: {...}}.
type ErrorResponse struct {
	Error   json.RawMessage            `json:"error"`
	Message string                     `json:"message"`
	Errors  map[string]json.RawMessage `json:"errors"`
}

type nestedError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func decodeBody(target string, status int, data []byte, out any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	payload := trimmed
	if trimmed[0] == '{' {
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err == nil && env.Success != nil {
			if !*env.Success {
				msg := env.Message
				if msg == "" {
					msg = "backend reported failure"
				}
				return errors.New(errors.ErrCodeBackendFailure, errors.KindAuthenticationRejected, msg).
					WithStatus(status)
			}
			if len(env.Data) > 0 {
				payload = env.Data
			}
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return errors.NewMalformedResponseError(target, err).WithStatus(status)
	}
	return nil
}

// statusError maps a non-2xx response to the error taxonomy. preAuth marks
// requests that were establishing a session, where 401 and 403 mean the
// submitted credentials were refused.
func statusError(target string, status int, data []byte, preAuth bool) error {
	msg := ExtractMessage(data)
	generic := fmt.Sprintf("request failed with status %d", status)

	switch {
	case status == http.StatusUnauthorized && !preAuth:
		return errors.NewSessionExpiredError(target, status, msg)
	case status == http.StatusForbidden && !preAuth:
		if msg == "" {
			msg = "access denied"
		}
		return errors.New(errors.ErrCodeForbidden, errors.KindForbidden, msg).
			WithStatus(status).
			WithSuggestion("Your role does not permit this operation")
	case status == http.StatusUnauthorized, status == http.StatusForbidden,
		status == http.StatusBadRequest, status == http.StatusConflict,
		status == http.StatusUnprocessableEntity:
		if msg == "" {
			msg = generic
		}
		return errors.New(errors.ErrCodeCredentialsRejected, errors.KindAuthenticationRejected, msg).
			WithStatus(status)
	default:
		if msg == "" {
			msg = generic
		}
		return errors.New(errors.ErrCodeBackendFailure, errors.KindTransport, msg).
			WithStatus(status).
			WithSuggestion(fmt.Sprintf("%s returned status %d", target, status))
	}
}

// ExtractMessage returns the most specific human-readable message in an
// error body, or "" when there is none.
func ExtractMessage(data []byte) string {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return ""
	}

	var resp ErrorResponse
	if trimmed[0] == '{' && json.Unmarshal(trimmed, &resp) == nil {
		if resp.Message != "" {
			return resp.Message
		}
		if len(resp.Error) > 0 {
			var s string
			if json.Unmarshal(resp.Error, &s) == nil && s != "" {
				return s
			}
			var nested nestedError
			if json.Unmarshal(resp.Error, &nested) == nil && nested.Message != "" {
				return nested.Message
			}
		}
		if len(resp.Errors) > 0 {
			return joinFieldErrors(resp.Errors)
		}
		return ""
	}

	// plain text body
	return truncate(string(trimmed), maxPlainErrLen)
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func joinFieldErrors(fields map[string]json.RawMessage) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		var s string
		if json.Unmarshal(fields[k], &s) != nil {
			var list []string
			if json.Unmarshal(fields[k], &list) == nil {
				s = strings.Join(list, ", ")
			} else {
				s = string(fields[k])
			}
		}
		parts = append(parts, k+": "+s)
	}
	return strings.Join(parts, "; ")
}
