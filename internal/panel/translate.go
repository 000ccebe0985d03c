package panel

import (
	"context"
	"log"

	"github.com/lectern-app/lectern/internal/ai"
)

// TranslationCache persists paragraph translations across sessions. The
// store package satisfies it.
type TranslationCache interface {
	LoadTranslation(ctx context.Context, docID, paragraphID string) (string, bool, error)
	SaveTranslation(ctx context.Context, docID, paragraphID, body string) error
	DeleteTranslation(ctx context.Context, docID, paragraphID string) error
}

// Translator wires the manager to the model client and cache for one
// document. Zero value fields are tolerated: no cache means every fetch
// goes to the model.
type Translator struct {
	Client   ai.Client
	Cache    TranslationCache
	DocID    string
	DocTitle string
}

// Populate fills a panel's translation, blocking until the fetch
// completes; callers run it off the update loop. force bypasses and
// invalidates the cache. A failure lands as inline text in the panel —
// it stays open and a retry re-runs the fetch — and never touches any
// other panel.
func (m *Manager) Populate(ctx context.Context, tr Translator, panelID string, force bool) {
	m.mu.Lock()
	p, ok := m.getLocked(panelID)
	if !ok {
		m.mu.Unlock()
		return
	}
	paragraphID, original := p.ParagraphID, p.Original
	p.Loading = true
	p.ErrText = ""
	m.mu.Unlock()

	translation, err := fetch(ctx, tr, paragraphID, original, force)

	m.mu.Lock()
	defer m.mu.Unlock()
	// The panel may have been closed while the fetch was in flight.
	p, ok = m.getLocked(panelID)
	if !ok {
		return
	}
	p.Loading = false
	if err != nil {
		log.Printf("[panel] translation for %s: %v", panelID, err)
		p.ErrText = err.Error()
		return
	}
	p.Translation = translation
}

func fetch(ctx context.Context, tr Translator, paragraphID, original string, force bool) (string, error) {
	cached := tr.Cache != nil && paragraphID != ""
	if cached && !force {
		if body, ok, err := tr.Cache.LoadTranslation(ctx, tr.DocID, paragraphID); err == nil && ok {
			return body, nil
		}
	}
	if cached && force {
		if err := tr.Cache.DeleteTranslation(ctx, tr.DocID, paragraphID); err != nil {
			log.Printf("[panel] cache invalidation for %s: %v", paragraphID, err)
		}
	}

	var body string
	var err error
	if paragraphID != "" {
		body, err = tr.Client.TranslateParagraph(ctx, tr.DocTitle, original)
	} else {
		body, err = tr.Client.TranslateFreeText(ctx, original)
	}
	if err != nil {
		return "", err
	}
	if cached {
		if err := tr.Cache.SaveTranslation(ctx, tr.DocID, paragraphID, body); err != nil {
			log.Printf("[panel] cache save for %s: %v", paragraphID, err)
		}
	}
	return body, nil
}
