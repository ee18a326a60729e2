package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/benam/api/internal/config"
)

// HTTPSynthesizer calls an OpenAI-compatible /audio/speech endpoint.
type HTTPSynthesizer struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	voice      string
}

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// NewHTTPSynthesizer creates a new HTTP speech client
func NewHTTPSynthesizer(cfg *config.SpeechConfig) *HTTPSynthesizer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60
	}
	return &HTTPSynthesizer{
		httpClient: &http.Client{
			Timeout: time.Duration(timeout) * time.Second,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		voice:   cfg.Voice,
	}
}

// Synthesize posts text and streams the MP3 response into outPath.
func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text, outPath string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("no text to synthesize")
	}

	bodyBytes, err := json.Marshal(speechRequest{
		Model:          s.model,
		Input:          text,
		Voice:          s.voice,
		ResponseFormat: "mp3",
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/audio/speech", bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("speech service error (status %d): %s", resp.StatusCode, string(respBody))
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	n, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write audio: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("speech service returned empty audio")
	}
	return nil
}

// IsConfigured returns true if the client has valid configuration
func (s *HTTPSynthesizer) IsConfigured() bool {
	return s.baseURL != "" && s.apiKey != ""
}
