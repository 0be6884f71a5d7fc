package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ResponseError is the raw failure handed to error interceptors: either a
// transport error (StatusCode 0, Err set) or a non-2xx response.
type ResponseError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
	Err        error
}

func (e *ResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, strings.TrimSpace(string(e.Body)))
}

func (e *ResponseError) Unwrap() error {
	return e.Err
}

// Error is the normalized failure returned to callers when no error
// interceptor handled the call.
type Error struct {
	StatusCode int
	Message    string
	cause      error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// PipelineIntegrityError reports an interceptor that broke its contract:
// a request or response interceptor returning nil without an error, or an
// error interceptor returning nil instead of an error.
type PipelineIntegrityError struct {
	Stage string
	Index int
	Err   error
}

func (e *PipelineIntegrityError) Error() string {
	if e.Stage == "error" {
		return fmt.Sprintf("pipeline integrity: error interceptor %d did not return an error", e.Index)
	}
	return fmt.Sprintf("pipeline integrity: %s interceptor %d returned nil", e.Stage, e.Index)
}

func (e *PipelineIntegrityError) Unwrap() error {
	return e.Err
}

// errorPayload covers both {"message": ...} and {"error": ...} bodies
type errorPayload struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// formatError builds the default *Error for an unhandled failure
func formatError(err error) error {
	var respErr *ResponseError
	if !errors.As(err, &respErr) {
		return &Error{Message: "Error: Unknown", cause: err}
	}

	message := "Error: Unknown"
	if respErr.StatusCode != 0 {
		message = fmt.Sprintf("Error: %d", respErr.StatusCode)
	}

	if len(respErr.Body) > 0 {
		var payload errorPayload
		if jsonErr := json.Unmarshal(respErr.Body, &payload); jsonErr == nil {
			switch {
			case payload.Message != "":
				message = payload.Message
			case payload.Error != "":
				message = payload.Error
			}
		}
	}

	return &Error{StatusCode: respErr.StatusCode, Message: message, cause: err}
}

// StatusCode returns the HTTP status carried by err, or 0 when there is none
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.StatusCode != 0 {
		return apiErr.StatusCode
	}
	var respErr *ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode
	}
	return 0
}

// IsUnauthorized reports whether err comes from an HTTP 401 response
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}
