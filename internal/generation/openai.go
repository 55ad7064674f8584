package generation

import (
	"context"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go/v3"
	"github.com/pkg/errors"
)

// OpenAIModel talks to any OpenAI-compatible chat completions endpoint.
type OpenAIModel struct {
	client openai.Client
	model  string
}

func NewOpenAIModel(client openai.Client, model string) *OpenAIModel {
	return &OpenAIModel{client: client, model: model}
}

func (m *OpenAIModel) Source() Source { return SourceOpenAI }

func (m *OpenAIModel) Generate(ctx context.Context, prompt string, schema *jsonschema.Schema) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: openai.ChatModel(m.model),
	}
	if schema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        "structured_response",
					Description: openai.String("Structured data response"),
					Schema:      schema,
					Strict:      openai.Bool(true),
				},
			},
		}
	}

	completion, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", errors.Wrap(err, "chat completion")
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("no choices in chat completion")
	}
	return completion.Choices[0].Message.Content, nil
}
