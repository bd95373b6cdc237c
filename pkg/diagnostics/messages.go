package diagnostics

import (
	"time"

	"github.com/queryplus/queryplus/pkg/lint"
)

// Message types of the worker protocol.
const (
	TypeLint       = "lint"
	TypeLintResult = "lint-result"
)

// Request asks a worker to lint SQL.
type Request struct {
	Type           string   `json:"type"`
	SQL            string   `json:"sql"`
	RequestID      string   `json:"requestId"`
	DataExtensions []string `json:"dataExtensions,omitempty"`
	CursorPosition *int     `json:"cursorPosition,omitempty"`
}

// Response carries the worker diagnostics for one request.
type Response struct {
	Type        string            `json:"type"`
	RequestID   string            `json:"requestId"`
	Diagnostics []lint.Diagnostic `json:"diagnostics"`
	// Duration is the worker-reported processing time.
	Duration time.Duration `json:"duration"`
}

// Transport delivers requests to a worker and its responses back. Responses
// may arrive in any order, or never.
type Transport interface {
	Post(req Request) error
	Responses() <-chan Response
}
