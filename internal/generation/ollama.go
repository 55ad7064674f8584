package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// OllamaModel calls the /api/generate endpoint of an Ollama server.
type OllamaModel struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewOllamaModel(baseURL, model string, client *http.Client) *OllamaModel {
	if client == nil {
		client = http.DefaultClient
	}
	return &OllamaModel{baseURL: strings.TrimRight(baseURL, "/"), model: model, client: client}
}

func (m *OllamaModel) Source() Source { return SourceOllama }

type ollamaRequest struct {
	Model  string             `json:"model"`
	Prompt string             `json:"prompt"`
	Stream bool               `json:"stream"`
	Format *jsonschema.Schema `json:"format,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

func (m *OllamaModel) Generate(ctx context.Context, prompt string, schema *jsonschema.Schema) (string, error) {
	body, err := json.Marshal(ollamaRequest{Model: m.model, Prompt: prompt, Stream: false, Format: schema})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "ollama request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ollama returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Wrap(err, "decode ollama response")
	}
	return out.Response, nil
}
