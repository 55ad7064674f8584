package generation

import "github.com/invopop/jsonschema"

// schemaFor reflects a closed, inline JSON schema for T, suitable for
// structured output on both Ollama and OpenAI-compatible servers.
func schemaFor[T any]() *jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}
