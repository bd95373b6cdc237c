package lsp

import (
	"github.com/queryplus/queryplus/pkg/diagnostics"
	"github.com/queryplus/queryplus/pkg/lint"
)

// diagnosticSource names Query++ in the editor's problem list.
const diagnosticSource = "queryplus"

// publishSnapshot publishes the merged diagnostics of a pipeline update and
// the worker progress.
func (s *Server) publishSnapshot(uri string, snap diagnostics.Snapshot) {
	params := &PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: toLSPDiagnostics(snap.SQL, snap.Diagnostics),
	}
	if doc := s.documents.Get(uri); doc != nil && doc.Content == snap.SQL {
		version := doc.Version
		params.Version = &version
	}
	s.sendNotification("textDocument/publishDiagnostics", params)

	s.sendNotification(MethodAsyncLinting, &AsyncLintingParams{
		URI:                uri,
		IsLinting:          snap.IsAsyncLinting,
		LastLintDurationMs: snap.LastLintDuration.Milliseconds(),
	})
}

// toLSPDiagnostics maps byte ranges of text onto line/character ranges.
// Ranges computed against older text are clamped to the current text.
func toLSPDiagnostics(text string, diags []lint.Diagnostic) []Diagnostic {
	lines := computeLineOffsets(text)
	out := make([]Diagnostic, 0, len(diags))
	for _, d := range diags {
		out = append(out, Diagnostic{
			Range: Range{
				Start: positionAt(lines, len(text), d.StartIndex),
				End:   positionAt(lines, len(text), d.EndIndex),
			},
			Severity: toLSPSeverity(d.Severity),
			Code:     d.RuleID,
			Source:   diagnosticSource,
			Message:  d.Message,
		})
	}
	return out
}

func toLSPSeverity(sev lint.Severity) DiagnosticSeverity {
	switch sev {
	case lint.SeverityError:
		return DiagnosticSeverityError
	case lint.SeverityWarning:
		return DiagnosticSeverityWarning
	case lint.SeverityPrereq:
		return DiagnosticSeverityInformation
	default:
		return DiagnosticSeverityHint
	}
}
