package lint

import (
	"fmt"
	"strings"
	"sync"

	"github.com/queryplus/queryplus/pkg/sqlcontext"
)

// Severity indicates the importance of a diagnostic.
type Severity int

// Severity levels for diagnostics.
const (
	// SeverityError marks SQL that cannot be saved or run.
	SeverityError Severity = iota
	// SeverityWarning marks SQL that runs but is likely wrong.
	SeverityWarning
	// SeverityPrereq marks a missing prerequisite, such as a FROM clause,
	// that the user is expected to add next.
	SeverityPrereq
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityPrereq:
		return "prereq"
	default:
		return "unknown"
	}
}

// ParseSeverity parses "error", "warning" or "prereq".
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return SeverityError, nil
	case "warning", "warn":
		return SeverityWarning, nil
	case "prereq":
		return SeverityPrereq, nil
	default:
		return 0, fmt.Errorf("unknown severity %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Phase selects when a rule runs.
type Phase int

const (
	PhaseSync Phase = iota
	PhaseWorker
)

func (p Phase) String() string {
	if p == PhaseWorker {
		return "worker"
	}
	return "sync"
}

// Diagnostic is a lint finding over the byte range [StartIndex, EndIndex).
type Diagnostic struct {
	RuleID     string   `json:"ruleId,omitempty"`
	Message    string   `json:"message"`
	Severity   Severity `json:"severity"`
	StartIndex int      `json:"startIndex"`
	EndIndex   int      `json:"endIndex"`
}

// Key is the identity of a diagnostic. Two diagnostics with equal keys are
// duplicates even when reported by different rules.
type Key struct {
	Message    string
	Severity   Severity
	StartIndex int
	EndIndex   int
}

// Key returns the identity of d.
func (d Diagnostic) Key() Key {
	return Key{Message: d.Message, Severity: d.Severity, StartIndex: d.StartIndex, EndIndex: d.EndIndex}
}

// RuleDef is a data-driven rule definition.
// Rules are stateless; all context comes through the Input.
type RuleDef struct {
	ID          string    // Unique identifier, e.g. "QP001"
	Name        string    // Dotted name, e.g. "statement.select_only"
	Group       string    // Category, e.g. "statement"
	Description string    // Human-readable description
	Severity    Severity  // Default severity
	Phase       Phase     // When the rule runs
	Check       CheckFunc // The check function
}

// CheckFunc analyzes the input and returns diagnostics.
type CheckFunc func(in *Input) []Diagnostic

// Input is the SQL under analysis plus the context a worker request carries.
// Derived views are computed once and shared by all rules.
type Input struct {
	SQL string
	// DataExtensions lists the known data extension names. Empty means unknown.
	DataExtensions []string

	tokensOnce sync.Once
	tokens     []Token
	refsOnce   sync.Once
	refs       []sqlcontext.TableReference
}

// NewInput creates an Input for sql.
func NewInput(sql string, dataExtensions []string) *Input {
	return &Input{SQL: sql, DataExtensions: dataExtensions}
}

// Tokens returns the significant tokens of the SQL.
func (in *Input) Tokens() []Token {
	in.tokensOnce.Do(func() { in.tokens = Tokenize(in.SQL) })
	return in.tokens
}

// References returns the FROM and JOIN table references of the SQL.
func (in *Input) References() []sqlcontext.TableReference {
	in.refsOnce.Do(func() { in.refs = sqlcontext.References(in.SQL) })
	return in.refs
}
