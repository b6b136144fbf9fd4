// Copyright (c) 2025 The pgquery Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Ready states mirror the browser XHR states the server contract was designed around.
const (
	// ReadyStateUnsent means no response was received (network failure, refused connection).
	ReadyStateUnsent = 0
	// ReadyStateDone means a complete HTTP response was received.
	ReadyStateDone = 4
)

// ErrorBody is the JSON error payload returned by the backend on non-2xx responses.
type ErrorBody struct {
	Success  int    `json:"success"`
	ErrorMsg string `json:"errormsg"`
	Info     string `json:"info"`
}

// HTTPError describes a failed backend call.
type HTTPError struct {
	// ReadyState is ReadyStateUnsent when the request never produced a response.
	ReadyState int
	// Status is the HTTP status code, zero when ReadyState is ReadyStateUnsent.
	Status int
	// ErrorMsg is the generic message: transport error text or the raw body.
	ErrorMsg string
	// Response holds the decoded JSON error body, nil when the body was not JSON.
	Response *ErrorBody
	// Err is the underlying transport error, if any.
	Err error
}

func (e *HTTPError) Error() string {
	if e.ReadyState == ReadyStateUnsent {
		if e.Err != nil {
			return fmt.Sprintf("request failed: %v", e.Err)
		}
		return "request failed: no response"
	}
	return fmt.Sprintf("request failed: %d %s", e.Status, e.Message())
}

func (e *HTTPError) Unwrap() error { return e.Err }

// Message returns the most specific message available, preferring the JSON errormsg.
func (e *HTTPError) Message() string {
	if e.Response != nil && e.Response.ErrorMsg != "" {
		return e.Response.ErrorMsg
	}
	return e.ErrorMsg
}

// Info returns the info marker of the error body, or "".
func (e *HTTPError) Info() string {
	if e.Response == nil {
		return ""
	}
	return e.Response.Info
}

// AsHTTPError extracts an *HTTPError from err's chain.
func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}

// transportError builds the error for requests that produced no response.
func transportError(err error) *HTTPError {
	return &HTTPError{ReadyState: ReadyStateUnsent, ErrorMsg: err.Error(), Err: err}
}

// responseError builds the error for a non-2xx response, decoding the body when it is JSON.
func responseError(resp *http.Response) *HTTPError {
	b, _ := io.ReadAll(resp.Body)
	he := &HTTPError{
		ReadyState: ReadyStateDone,
		Status:     resp.StatusCode,
		ErrorMsg:   strings.TrimSpace(string(b)),
	}
	if he.ErrorMsg == "" {
		he.ErrorMsg = http.StatusText(resp.StatusCode)
	}

	var body ErrorBody
	if len(b) > 0 && json.Unmarshal(b, &body) == nil {
		he.Response = &body
	}
	return he
}
