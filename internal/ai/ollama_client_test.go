package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOllamaClientTranslateParagraph(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		var payload struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
			Stream bool   `json:"stream"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("failed to decode payload: %v", err)
		}
		if payload.Model != "qwen3-vl:8b" {
			t.Fatalf("expected model qwen3-vl:8b, got %s", payload.Model)
		}
		if !strings.Contains(payload.Prompt, "Paper title: Attention Is All You Need") {
			t.Fatalf("prompt missing title: %s", payload.Prompt)
		}
		if !strings.Contains(payload.Prompt, "into German") {
			t.Fatalf("prompt missing target language: %s", payload.Prompt)
		}
		if payload.Stream {
			t.Fatal("expected streaming to be disabled")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"response":"Der Aufmerksamkeitsmechanismus ...","done":true}`))
	}))
	defer server.Close()

	client := &ollamaClient{
		host:     server.URL,
		model:    "qwen3-vl:8b",
		language: "German",
		client:   server.Client(),
	}

	result, err := client.TranslateParagraph(context.Background(), "Attention Is All You Need", "The attention mechanism ...")
	if err != nil {
		t.Fatalf("translate failed: %v", err)
	}
	if result != "Der Aufmerksamkeitsmechanismus ..." {
		t.Fatalf("unexpected result: %s", result)
	}
}

func TestOllamaClientErrorWrapsSentinel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := &ollamaClient{
		host:     server.URL,
		model:    "missing",
		language: "English",
		client:   server.Client(),
	}

	_, err := client.TranslateFreeText(context.Background(), "some text")
	if err == nil {
		t.Fatal("expected error from 404 response")
	}
	if !errors.Is(err, ErrTranslationFailed) {
		t.Fatalf("error should wrap ErrTranslationFailed, got %v", err)
	}
}

func TestTranslateParagraphRejectsEmpty(t *testing.T) {
	client := &ollamaClient{host: "http://unused", model: "m", language: "English", client: http.DefaultClient}
	if _, err := client.TranslateParagraph(context.Background(), "Title", "   "); !errors.Is(err, ErrTranslationFailed) {
		t.Fatalf("expected ErrTranslationFailed for empty paragraph, got %v", err)
	}
}
