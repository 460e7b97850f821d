package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// healthCheckTimeout bounds the Ollama tags round trip.
const healthCheckTimeout = 5 * time.Second

// OllamaHealth checks a local Ollama server.
type OllamaHealth struct {
	host   string
	model  string
	client *http.Client
}

// NewOllamaHealth creates a checker for host (e.g. "http://localhost:11434").
func NewOllamaHealth(host, model string) *OllamaHealth {
	return &OllamaHealth{
		host:   strings.TrimRight(host, "/"),
		model:  model,
		client: &http.Client{Timeout: healthCheckTimeout},
	}
}

// Check reports whether Ollama is reachable and the configured model is
// pulled.
func (h *OllamaHealth) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.host+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("building health request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable at %s: %w", h.host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("decoding ollama tags: %w", err)
	}

	for _, m := range tags.Models {
		if strings.Contains(m.Name, h.model) {
			return nil
		}
	}
	return fmt.Errorf("model %q not found, run: ollama pull %s", h.model, h.model)
}
