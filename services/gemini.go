package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"

	"smartplanr/config"
)

// maxResponseBytes caps how much of a generation reply is read.
const maxResponseBytes = 4 << 20

// TextGenerator turns a prompt into text using the named model.
type TextGenerator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// GeminiClient calls the generateContent endpoint of the Gemini API.
type GeminiClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	logger     *log.Logger
}

func NewGeminiClient(cfg config.GeminiConfig, logger *log.Logger) *GeminiClient {
	return &GeminiClient{
		BaseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		APIKey:     cfg.APIKey,
		HTTPClient: &http.Client{Timeout: cfg.Timeout.Duration},
		logger:     logger,
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text *string `json:"text,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate sends prompt to model and returns the first candidate's first text part.
// An error payload carrying a message is returned as *GenerationError; any
// other reply that is not a success wraps ErrMalformedResponse.
func (g *GeminiClient) Generate(ctx context.Context, model, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: &prompt}}}},
	})
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		g.BaseURL, url.PathEscape(model), url.QueryEscape(g.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling %s: %w", model, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("reading %s response: %w", model, err)
	}
	g.logger.Debug("generation response", "model", model, "status", resp.StatusCode, "bytes", len(raw))

	return extractText(model, resp.StatusCode, raw)
}

func extractText(model string, statusCode int, raw []byte) (string, error) {
	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w (model %s, status %d)", ErrMalformedResponse, model, statusCode)
	}
	if statusCode >= 200 && statusCode < 300 && len(out.Candidates) > 0 {
		if parts := out.Candidates[0].Content.Parts; len(parts) > 0 && parts[0].Text != nil {
			return *parts[0].Text, nil
		}
	}
	if out.Error != nil && out.Error.Message != "" {
		return "", &GenerationError{Model: model, StatusCode: statusCode, Message: out.Error.Message}
	}
	return "", fmt.Errorf("%w (model %s, status %d)", ErrMalformedResponse, model, statusCode)
}
