package chat

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// APIError captures non-2xx responses.
type APIError struct {
	StatusCode int
	// Type and Code come from the OpenAI error envelope when present.
	Type    string
	Code    string
	Message string
	RawBody []byte
}

func (e *APIError) Error() string {
	b := strings.Builder{}
	b.WriteString("chat: API error (status=")
	b.WriteString(strconv.Itoa(e.StatusCode))
	if e.Code != "" {
		b.WriteString(", code=")
		b.WriteString(e.Code)
	}
	b.WriteString(")")
	if m := strings.TrimSpace(e.Message); m != "" {
		b.WriteString(": ")
		b.WriteString(m)
	}

	return b.String()
}

// IsAuthError returns true if err is an APIError with HTTP status 401 or 403.
func IsAuthError(err error) bool {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.StatusCode == 401 || ae.StatusCode == 403
	}

	return false
}

// IsRateLimitError returns true if err is an APIError with HTTP status 429.
func IsRateLimitError(err error) bool {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.StatusCode == 429
	}

	return false
}

func buildAPIError(status int, body []byte) error {
	ae := &APIError{StatusCode: status, RawBody: body, Message: strings.TrimSpace(string(body))}

	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    any    `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		ae.Message = envelope.Error.Message
		ae.Type = envelope.Error.Type
		switch code := envelope.Error.Code.(type) {
		case string:
			ae.Code = code
		case float64:
			ae.Code = strconv.FormatFloat(code, 'f', -1, 64)
		}
	}

	return ae
}
