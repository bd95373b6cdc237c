package lsp

import (
	"context"

	"github.com/queryplus/queryplus/pkg/inline"
)

// getInlineSuggestion evaluates the inline rules at the requested position.
// It returns nil when there is nothing to show, or when the document changed
// while the rules ran.
func (s *Server) getInlineSuggestion(ctx context.Context, params InlineSuggestionParams) *InlineSuggestionResult {
	doc := s.documents.Get(params.TextDocument.URI)
	if doc == nil || s.engine == nil {
		return nil
	}
	if params.Version != nil && *params.Version != doc.Version {
		return nil
	}

	offset := doc.PositionToOffset(params.Position)
	suggestion := s.engine.Evaluate(ctx, inline.Request{SQL: doc.Content, Cursor: offset})
	if suggestion == nil {
		return nil
	}

	// Discard the result if the text changed meanwhile.
	if current := s.documents.Get(params.TextDocument.URI); current == nil || current.Version != doc.Version || current.Content != doc.Content {
		return nil
	}

	return &InlineSuggestionResult{
		Text:     suggestion.Text,
		Priority: suggestion.Priority,
		Position: doc.OffsetToPosition(offset),
	}
}
