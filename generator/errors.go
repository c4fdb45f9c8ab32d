package generator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorKind classifies a failed model call so the workflow can pick a policy per kind.
type ErrorKind int8

const (
	ErrorKindUnknown ErrorKind = iota
	ErrorKindTransient
	ErrorKindRateLimit
	ErrorKindAuth
	ErrorKindBadRequest
	ErrorKindEmptyResponse
	ErrorKindMalformedOutput
	ErrorKindCanceled
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindTransient:
		return "transient"
	case ErrorKindRateLimit:
		return "rate_limit"
	case ErrorKindAuth:
		return "auth"
	case ErrorKindBadRequest:
		return "bad_request"
	case ErrorKindEmptyResponse:
		return "empty_response"
	case ErrorKindMalformedOutput:
		return "malformed_output"
	case ErrorKindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// LLMError is a classified provider failure.
type LLMError struct {
	Err        error
	Message    string
	Kind       ErrorKind
	StatusCode int
}

func (e *LLMError) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("llm error (%s): %s: %v", e.Kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("llm error (%s): %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("llm error (%s): %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("llm error (%s): status %d", e.Kind, e.StatusCode)
	}
}

func (e *LLMError) Unwrap() error { return e.Err }

func newLLMError(kind ErrorKind, cause error, msg string) *LLMError {
	return &LLMError{Kind: kind, Err: cause, Message: msg}
}

// AgentError wraps a failure from one of the three agents.
type AgentError struct {
	Agent string
	Kind  ErrorKind
	Err   error
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", e.Agent, e.Kind, e.Err)
}

func (e *AgentError) Unwrap() error { return e.Err }

func agentError(agent string, err error) error {
	if err == nil {
		return nil
	}
	return &AgentError{Agent: agent, Kind: KindOf(err), Err: err}
}

// KindOf returns the classification carried by err, classifying it on the fly when
// it did not come from a provider client.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrorKindUnknown
	}
	var agentErr *AgentError
	if errors.As(err, &agentErr) {
		return agentErr.Kind
	}
	var llmErr *LLMError
	if errors.As(err, &llmErr) {
		return llmErr.Kind
	}
	return classify(err, 0).Kind
}

// classify maps an arbitrary transport error (and an optional HTTP status) to an LLMError.
func classify(err error, status int) *LLMError {
	if errors.Is(err, context.Canceled) {
		return newLLMError(ErrorKindCanceled, err, "request canceled")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newLLMError(ErrorKindTransient, err, "request timeout")
	}

	switch {
	case status == 401 || status == 403:
		return &LLMError{Kind: ErrorKindAuth, Err: err, StatusCode: status, Message: "authentication failed - check API key"}
	case status == 429:
		return &LLMError{Kind: ErrorKindRateLimit, Err: err, StatusCode: status, Message: "rate limit exceeded"}
	case status == 400 || status == 404 || status == 413 || status == 422:
		return &LLMError{Kind: ErrorKindBadRequest, Err: err, StatusCode: status, Message: "request rejected"}
	case status >= 500:
		return &LLMError{Kind: ErrorKindTransient, Err: err, StatusCode: status, Message: "server error"}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return newLLMError(ErrorKindTransient, err, "network error")
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "timeout"),
		strings.Contains(lower, "connection"),
		strings.Contains(lower, "eof"),
		strings.Contains(lower, "reset"):
		return newLLMError(ErrorKindTransient, err, "network or connection error")
	case strings.Contains(lower, "rate limit"), strings.Contains(lower, "quota"):
		return newLLMError(ErrorKindRateLimit, err, "rate limiting detected")
	case strings.Contains(lower, "unauthorized"), strings.Contains(lower, "api key"):
		return newLLMError(ErrorKindAuth, err, "authentication error")
	}
	return newLLMError(ErrorKindUnknown, err, "unclassified error")
}
