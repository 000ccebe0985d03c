package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lectern-app/lectern/internal/doc"
	"github.com/lectern-app/lectern/internal/store"
)

// openDocumentJob resolves ref (a local path or URL) into a document.
// Errors travel inside the payload so the input stage can report them.
func openDocumentJob(ref string) jobRunner {
	return func(ctx context.Context) (tea.Msg, error) {
		d, err := doc.Open(ctx, ref)
		if err != nil {
			return documentOpenedMsg{err: err}, err
		}
		return documentOpenedMsg{doc: d}, nil
	}
}

// loadStateJob pulls persisted highlights and the last session for a
// document in one pass.
func loadStateJob(st *store.Store, docID string) jobRunner {
	return func(ctx context.Context) (tea.Msg, error) {
		highlights, err := st.LoadHighlights(ctx, docID)
		if err != nil {
			return stateLoadedMsg{err: err}, err
		}
		session, ok, err := st.LoadSession(ctx, docID)
		if err != nil {
			return stateLoadedMsg{err: err}, err
		}
		return stateLoadedMsg{highlights: highlights, session: session, hasSession: ok}, nil
	}
}
