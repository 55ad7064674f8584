package generation

import (
	"context"
	"net/http"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"short-drama-service/internal/config"
)

// TextModel is a prompt-in, text-out language model backend.
type TextModel interface {
	Source() Source
	// Generate returns the model's raw text. A non-nil schema asks for JSON output
	// that validates against it.
	Generate(ctx context.Context, prompt string, schema *jsonschema.Schema) (string, error)
}

// NewTextModel builds the backend selected by LLM_PROVIDER, or nil when text
// generation should run in mock mode.
func NewTextModel(cfg *config.Config, httpClient *http.Client) TextModel {
	if !cfg.LLMConfigured() {
		return nil
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		opts := []option.RequestOption{option.WithHTTPClient(httpClient), option.WithMaxRetries(0)}
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.OpenAIBaseURL))
		}
		// local OpenAI-compatible servers ignore the key but the client wants one
		apiKey := cfg.OpenAIAPIKey
		if apiKey == "" {
			apiKey = "unused"
		}
		opts = append(opts, option.WithAPIKey(apiKey))
		return NewOpenAIModel(openai.NewClient(opts...), cfg.OllamaModel)
	default:
		return NewOllamaModel(cfg.OllamaURL, cfg.OllamaModel, httpClient)
	}
}
