package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrBackendUnavailable is returned while the circuit breaker is open.
var ErrBackendUnavailable = errors.New("backend unavailable")

// ErrorCode is the closed set of backend failures the flows branch on.
type ErrorCode string

const (
	CodeEmailPendingVerification ErrorCode = "email_pending_verification"
	CodeUserAlreadyExists        ErrorCode = "user_already_exists"
	CodeNotFound                 ErrorCode = "not_found"
	CodeTokenExpired             ErrorCode = "token_expired"
	CodeUnknown                  ErrorCode = "unknown"
)

// The backend does not send error codes yet. Until it does, these exact
// messages are how the codes are recognised.
var legacyMessages = map[string]ErrorCode{
	"Email is pending verification":       CodeEmailPendingVerification,
	"User with this email already exists": CodeUserAlreadyExists,
	"Not found":                           CodeNotFound,
	"Token has been expired":              CodeTokenExpired,
}

var knownCodes = map[ErrorCode]struct{}{
	CodeEmailPendingVerification: {},
	CodeUserAlreadyExists:        {},
	CodeNotFound:                 {},
	CodeTokenExpired:             {},
}

// HTTPError is a non-2xx backend response.
type HTTPError struct {
	Message    string
	StatusCode int
	URL        string
	Body       string
	Code       ErrorCode
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %d: %s", e.URL, e.StatusCode, e.Message)
}

// CodeOf returns the ErrorCode of err, or CodeUnknown when err is not an
// *HTTPError.
func CodeOf(err error) ErrorCode {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return CodeUnknown
}

// MessageOf returns the user-facing message of err.
func MessageOf(err error) string {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Message
	}
	return err.Error()
}

func newHTTPError(resp *http.Response, body []byte) *HTTPError {
	text := string(body)
	e := &HTTPError{
		StatusCode: resp.StatusCode,
		URL:        resp.Request.URL.String(),
		Body:       text,
	}

	var explicit string
	if gjson.ValidBytes(body) && strings.TrimSpace(text) != "" {
		parsed := gjson.ParseBytes(body)
		e.Message = messageFrom(parsed.Get("message"))
		explicit = parsed.Get("errorCode").String()
		if explicit == "" {
			explicit = parsed.Get("code").String()
		}
	} else if t := strings.TrimSpace(text); t != "" {
		e.Message = t
	}
	if e.Message == "" {
		e.Message = statusText(resp)
	}

	e.Code = resolveCode(ErrorCode(explicit), e.Message)
	return e
}

// messageFrom accepts both a string message and the array of messages
// validation failures come back with.
func messageFrom(v gjson.Result) string {
	if v.IsArray() {
		parts := make([]string, 0)
		for _, m := range v.Array() {
			if s := m.String(); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	}
	if v.Type == gjson.String {
		return v.String()
	}
	return ""
}

func resolveCode(explicit ErrorCode, message string) ErrorCode {
	if _, ok := knownCodes[explicit]; ok {
		return explicit
	}
	if c, ok := legacyMessages[message]; ok {
		return c
	}
	return CodeUnknown
}

func statusText(resp *http.Response) string {
	if t := http.StatusText(resp.StatusCode); t != "" {
		return t
	}
	return resp.Status
}
