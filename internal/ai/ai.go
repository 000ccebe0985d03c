// Package ai talks to the local model that backs the translation panels.
package ai

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	defaultOllamaModel = "ministral-3:latest"
	// Context clipping guard: paragraphs are short, but free-text requests can
	// carry whole sections. Cap well below the model window.
	maxTranslateChars = 60_000
)

const defaultHTTPTimeout = 3 * time.Minute

// ErrTranslationFailed wraps any provider-side failure. Panels render the
// wrapped message inline instead of closing.
var ErrTranslationFailed = errors.New("ai: translation failed")

// Config describes how to build a translation client.
type Config struct {
	Model      string
	Endpoint   string
	Language   string
	HTTPClient *http.Client
}

// Client produces translations for docked panels.
type Client interface {
	// TranslateParagraph translates one paragraph of the open document.
	TranslateParagraph(ctx context.Context, docTitle, text string) (string, error)
	// TranslateFreeText translates an arbitrary selection.
	TranslateFreeText(ctx context.Context, text string) (string, error)
	Name() string
}

// NewFromEnv inspects CLI arguments & environment variables to build a client.
func NewFromEnv(cfg Config) (Client, error) {
	host := cfg.Endpoint
	if host == "" {
		if env := os.Getenv("OLLAMA_HOST"); env != "" {
			host = strings.TrimRight(env, "/")
		} else {
			host = "http://localhost:11434"
		}
	}
	model := cfg.Model
	if model == "" {
		if env := os.Getenv("OLLAMA_MODEL"); env != "" {
			model = env
		} else {
			model = defaultOllamaModel
		}
	}
	lang := cfg.Language
	if lang == "" {
		if env := os.Getenv("LECTERN_LANG"); env != "" {
			lang = env
		} else {
			lang = "English"
		}
	}
	return &ollamaClient{
		host:     host,
		model:    model,
		language: lang,
		client:   pickHTTPClient(cfg.HTTPClient),
	}, nil
}

func pickHTTPClient(custom *http.Client) *http.Client {
	if custom != nil {
		return custom
	}
	// Allow longer-running generations and rely on the caller's context for cancellation.
	return &http.Client{Timeout: defaultHTTPTimeout}
}
