package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type ollamaClient struct {
	host     string
	model    string
	language string
	client   *http.Client
}

func (c *ollamaClient) Name() string {
	return fmt.Sprintf("Ollama (%s)", c.model)
}

func (c *ollamaClient) TranslateParagraph(ctx context.Context, docTitle, text string) (string, error) {
	clipped := clipText(text, maxTranslateChars)
	if clipped == "" {
		return "", fmt.Errorf("%w: paragraph text empty", ErrTranslationFailed)
	}
	prompt := buildParagraphPrompt(c.language, docTitle, clipped)
	out, err := c.generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranslationFailed, err)
	}
	return out, nil
}

func (c *ollamaClient) TranslateFreeText(ctx context.Context, text string) (string, error) {
	clipped := clipText(text, maxTranslateChars)
	if clipped == "" {
		return "", fmt.Errorf("%w: selection empty", ErrTranslationFailed)
	}
	prompt := buildFreeTextPrompt(c.language, clipped)
	out, err := c.generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranslationFailed, err)
	}
	return out, nil
}

func (c *ollamaClient) generate(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/generate", bytes.NewReader(buf))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("ollama API error: %s (%s)", resp.Status, string(body))
	}

	var parsed struct {
		Response string `json:"response"`
		Done     bool   `json:"done"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}
	if parsed.Response == "" {
		return "", fmt.Errorf("ollama returned an empty response")
	}
	return strings.TrimSpace(parsed.Response), nil
}

func clipText(text string, limit int) string {
	text = strings.TrimSpace(text)
	if limit <= 0 || len(text) <= limit {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

func buildParagraphPrompt(language, docTitle, text string) string {
	if docTitle == "" {
		docTitle = "the paper"
	}
	return "You are an expert scientific translator. " +
		"Translate the paragraph below into " + language + ".\n" +
		"Preserve inline math, citations and technical terms; output only the translation.\n\n" +
		"Paper title: " + docTitle + "\n\n" +
		"Paragraph:\n" + text
}

func buildFreeTextPrompt(language, text string) string {
	return "You are an expert scientific translator. " +
		"Translate the passage below into " + language + ".\n" +
		"Output only the translation.\n\n" +
		"Passage:\n" + text
}
