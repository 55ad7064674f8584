package generation

import (
	_ "embed"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed fallback.yaml
var fallbackYAML []byte

// Catalog holds the canned content served in mock and fallback mode.
type Catalog struct {
	Outlines    []Outline                    `yaml:"outlines"`
	Script      string                       `yaml:"script"`
	Suggestions map[string]map[string]string `yaml:"suggestions"`
}

// LoadCatalog parses the embedded fallback catalog.
func LoadCatalog() (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(fallbackYAML, &c); err != nil {
		return nil, errors.Wrap(err, "parse fallback catalog")
	}
	if len(c.Outlines) == 0 || c.Script == "" || c.Suggestions[SuggestScene] == nil {
		return nil, errors.New("fallback catalog is incomplete")
	}
	return &c, nil
}

// OutlinesFor returns the canned outlines with the theme prefixed to each description.
func (c *Catalog) OutlinesFor(theme string) []Outline {
	out := make([]Outline, len(c.Outlines))
	for i, o := range c.Outlines {
		o.Description = theme + " - " + o.Description
		out[i] = o
	}
	return out
}

// Suggestion returns the canned suggestion for kind. Unknown kinds get the scene shape.
func (c *Catalog) Suggestion(kind string) map[string]interface{} {
	fields, ok := c.Suggestions[kind]
	if !ok {
		fields = c.Suggestions[SuggestScene]
	}
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
