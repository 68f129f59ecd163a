// Package upstream decodes HR API responses into a tagged result.
//
// The HR API answers either with an envelope {success, message, data} or with
// a bare JSON value. Decode folds both shapes, plus HTTP status, into a Result
// that is exactly one of Success(data) or Failure{StatusCode, Message}.
package upstream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxBody caps how much of a response is read for decoding
const maxBody = 8 << 20

// Failure is an application-level upstream error
type Failure struct {
	StatusCode int
	Message    string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("upstream error (status %d): %s", f.StatusCode, f.Message)
}

// Result is either a Success carrying data or a Failure
type Result[T any] struct {
	data    T
	failure *Failure
}

// Success wraps data as a successful result
func Success[T any](data T) Result[T] {
	return Result[T]{data: data}
}

// Fail builds a failed result
func Fail[T any](statusCode int, message string) Result[T] {
	return Result[T]{failure: &Failure{StatusCode: statusCode, Message: message}}
}

// OK reports whether r is a Success
func (r Result[T]) OK() bool {
	return r.failure == nil
}

// Data returns the payload and whether r is a Success
func (r Result[T]) Data() (T, bool) {
	return r.data, r.failure == nil
}

// Failure returns the failure and whether r is a Failure
func (r Result[T]) Failure() (*Failure, bool) {
	return r.failure, r.failure != nil
}

// Unwrap converts r to Go's (value, error) form
func (r Result[T]) Unwrap() (T, error) {
	if r.failure != nil {
		var zero T
		return zero, r.failure
	}
	return r.data, nil
}

type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

// Decode reads resp into a Result. It returns an error only when a 2xx body
// cannot be decoded into T; every application-level error is a Failure.
func Decode[T any](resp *http.Response) (Result[T], error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return Result[T]{}, fmt.Errorf("failed to read response: %w", err)
	}
	body = bytes.TrimSpace(body)

	var env envelope
	isEnvelope := false
	if len(body) > 0 && body[0] == '{' {
		// A bare object that happens to carry success:true, such as the
		// portal's own {url, success} reply, is data, not an envelope
		if err := json.Unmarshal(body, &env); err == nil && env.Success != nil {
			isEnvelope = !*env.Success || env.Data != nil
		}
	}

	status := resp.StatusCode
	if status < 200 || status > 299 {
		return Fail[T](status, failureMessage(status, env, body)), nil
	}

	if isEnvelope {
		if !*env.Success {
			return Fail[T](status, failureMessage(status, env, nil)), nil
		}
		return decodeData[T](env.Data)
	}

	return decodeData[T](body)
}

func decodeData[T any](raw []byte) (Result[T], error) {
	var data T
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Success(data), nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return Result[T]{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return Success(data), nil
}

func failureMessage(status int, env envelope, body []byte) string {
	switch {
	case env.Message != "":
		return env.Message
	case env.Error != "":
		return env.Error
	}

	// Non-envelope bodies may still carry message/error
	var loose struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if len(body) > 0 && json.Unmarshal(body, &loose) == nil {
		if loose.Message != "" {
			return loose.Message
		}
		if loose.Error != "" {
			return loose.Error
		}
	}

	if text := strings.TrimSpace(string(body)); text != "" && len(text) <= 512 && !json.Valid(body) {
		return text
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "request failed"
}
