package lsp

import (
	"context"
	"fmt"
	"strings"

	"github.com/queryplus/queryplus/pkg/autocomplete"
	"github.com/queryplus/queryplus/pkg/metadata"
)

// getCompletions returns completion items for the given position:
// fields after "alias.", data extensions after FROM or JOIN, keywords otherwise.
func (s *Server) getCompletions(ctx context.Context, params CompletionParams) []CompletionItem {
	doc := s.documents.Get(params.TextDocument.URI)
	if doc == nil {
		return nil
	}
	offset := doc.PositionToOffset(params.Position)

	s.cacheMu.RLock()
	src := autocomplete.Source{
		DataExtensions:  s.dataExtensions,
		SharedFolderIDs: s.sharedFolders,
		Fields:          s.loadFields,
	}
	s.cacheMu.RUnlock()

	res, err := autocomplete.Complete(ctx, doc.Content, offset, src)
	if err != nil {
		s.logger.Debug("field completion fetch abandoned", "error", err)
		return nil
	}

	editRange := Range{Start: doc.OffsetToPosition(res.Start), End: doc.OffsetToPosition(res.End)}
	typed := doc.Content[res.Start:res.End]
	items := make([]CompletionItem, 0, len(res.Suggestions))
	for i, sg := range res.Suggestions {
		item := CompletionItem{Label: sg.Label, Detail: sg.Detail}
		switch sg.Kind {
		case autocomplete.KindDataExtension:
			item.Kind = CompletionItemKindClass
			item.SortText = fmt.Sprintf("%04d", i)
			item.FilterText = typed
			item.TextEdit = &TextEdit{Range: editRange, NewText: sg.InsertText}
		case autocomplete.KindField:
			item.Kind = CompletionItemKindField
			item.SortText = fmt.Sprintf("1%04d", i)
			if sg.IsPrimaryKey {
				item.SortText = fmt.Sprintf("0%04d", i)
			}
			item.FilterText = sg.InsertText
			item.TextEdit = &TextEdit{Range: editRange, NewText: sg.InsertText}
		default:
			item.Kind = CompletionItemKindKeyword
		}
		items = append(items, item)
	}
	return items
}

// loadFields fetches through the shared Fetcher so a newer completion
// request cancels an older one still loading.
func (s *Server) loadFields(ctx context.Context, name string) ([]metadata.Field, error) {
	if s.fieldLoader == nil {
		return nil, nil
	}
	fetched, err := s.fieldLoader.Fetch(ctx, name)
	if err != nil {
		return nil, err
	}
	return fetched[strings.ToLower(name)], nil
}
