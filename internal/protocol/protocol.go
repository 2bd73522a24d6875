// Package protocol defines the JSON messages exchanged with the daemon over
// its socket. Requests are {method, params, id}; every request is answered by
// exactly one {result, id} or {error, id} object followed by a line feed.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Method names
const (
	MethodSubmit   = "submit"
	MethodListJobs = "list-jobs"
	MethodStatus   = "status"
)

// Error codes
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeFileNotFound   = -32004
)

// Job status values
const (
	JobPending = "pending"
	JobRunning = "running"
)

// Request is a method call sent to the daemon.
type Request struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
	ID     json.RawMessage `json:"id,omitempty"`
}

// Response answers exactly one Request. ID echoes the request id and is null
// when the request could not be read.
type Response struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
	ID     json.RawMessage `json:"id"`
}

// Error is a failed method call.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("%s (code %d): %v", e.Message, e.Code, e.Data)
	}
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

// IsCode reports whether err is a protocol error with the given code.
func IsCode(err error, code int) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Code == code
}

// SubmitParams are the parameters of a submit call.
type SubmitParams struct {
	Filename      string `json:"filename"`
	MaxVariations int    `json:"maxVariations,omitempty"`
	MaxVisits     int    `json:"maxVisits,omitempty"`
}

// UnmarshalJSON accepts a bare filename, a one-element array holding the
// filename, or an object.
func (p *SubmitParams) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case strings.HasPrefix(trimmed, `"`):
		*p = SubmitParams{}
		return json.Unmarshal(data, &p.Filename)
	case strings.HasPrefix(trimmed, "["):
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		if len(list) != 1 {
			return fmt.Errorf("submit takes one filename, got %d", len(list))
		}
		*p = SubmitParams{Filename: list[0]}
		return nil
	default:
		type plain SubmitParams
		var v plain
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*p = SubmitParams(v)
		return nil
	}
}

// Job is one entry of a list-jobs result.
type Job struct {
	Filename      string    `json:"filename"`
	MaxVariations int       `json:"maxVariations"`
	MaxVisits     int       `json:"maxVisits"`
	Status        string    `json:"status"`
	SubmittedAt   time.Time `json:"submittedAt"`
}

// Status is the result of a status call.
type Status struct {
	Engine string `json:"engine"`
	PID    int    `json:"pid,omitempty"`
	Jobs   int    `json:"jobs"`
	Listen string `json:"listen"`
}

// NewRequest creates a request, encoding params when non-nil.
func NewRequest(method string, params any, id string) (*Request, error) {
	req := &Request{Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encode %s params: %w", method, err)
		}
		req.Params = raw
	}
	if id != "" {
		raw, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		req.ID = raw
	}
	return req, nil
}

// NewResultResponse creates a successful response carrying result.
func NewResultResponse(id json.RawMessage, result any) (*Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return &Response{Result: raw, ID: id}, nil
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id json.RawMessage, code int, message string, data any) *Response {
	return &Response{
		Error: &Error{Code: code, Message: message, Data: data},
		ID:    id,
	}
}
