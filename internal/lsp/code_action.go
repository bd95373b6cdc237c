package lsp

import (
	"context"
	"encoding/json"
)

// handleCodeAction handles the textDocument/codeAction request.
func (s *Server) handleCodeAction(msg *JSONRPCMessage) error {
	var params CodeActionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidParams, Message: err.Error()})
		return err
	}

	actions := s.getCodeActions(context.Background(), params)
	if actions == nil {
		actions = []CodeAction{}
	}
	s.sendResponse(msg.ID, actions, nil)
	return nil
}

// getCodeActions offers the inline suggestion at the start of the range as an
// edit, for clients that cannot render ghost text.
func (s *Server) getCodeActions(ctx context.Context, params CodeActionParams) []CodeAction {
	if len(params.Context.Only) > 0 && !wantsKind(params.Context.Only, CodeActionKindRefactor) {
		return nil
	}

	result := s.getInlineSuggestion(ctx, InlineSuggestionParams{
		TextDocumentPositionParams: TextDocumentPositionParams{
			TextDocument: params.TextDocument,
			Position:     params.Range.Start,
		},
	})
	if result == nil {
		return nil
	}

	return []CodeAction{{
		Title: "Insert " + result.Text,
		Kind:  CodeActionKindRefactor,
		Edit: &WorkspaceEdit{
			Changes: map[string][]TextEdit{
				params.TextDocument.URI: {{
					Range:   Range{Start: result.Position, End: result.Position},
					NewText: result.Text,
				}},
			},
		},
	}}
}

func wantsKind(only []CodeActionKind, kind CodeActionKind) bool {
	for _, k := range only {
		if k == kind {
			return true
		}
	}
	return false
}
