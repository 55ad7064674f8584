package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// Suggestion kinds accepted by Suggest.
const (
	SuggestProject   = "project"
	SuggestScene     = "scene"
	SuggestCharacter = "character"
)

// Outline is one story direction offered for a theme.
type Outline struct {
	ID          string `json:"id" yaml:"id" jsonschema_description:"Sequence number of the outline, starting at 1"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Genre       string `json:"genre" yaml:"genre"`
}

type outlineSet struct {
	Outlines []Outline `json:"outlines" jsonschema_description:"Exactly three distinct story outlines"`
}

type projectSuggestion struct {
	Name        string `json:"name" jsonschema_description:"項目名稱"`
	Description string `json:"description" jsonschema_description:"項目描述"`
}

type sceneSuggestion struct {
	Description          string `json:"description" jsonschema_description:"場景描述"`
	CharacterDescription string `json:"characterDescription" jsonschema_description:"角色描述"`
	CameraMovement       string `json:"cameraMovement" jsonschema_description:"鏡頭運動"`
	Dialogue             string `json:"dialogue" jsonschema_description:"對話"`
	BackgroundMusic      string `json:"backgroundMusic" jsonschema_description:"背景音樂"`
	EmotionTag           string `json:"emotionTag" jsonschema_description:"情緒標籤"`
}

type characterSuggestion struct {
	Name        string `json:"name" jsonschema_description:"角色名稱"`
	Description string `json:"description" jsonschema_description:"角色描述"`
	Role        string `json:"role" jsonschema:"enum=protagonist,enum=supporting"`
}

var (
	outlineSetSchema          = schemaFor[outlineSet]()
	projectSuggestionSchema   = schemaFor[projectSuggestion]()
	sceneSuggestionSchema     = schemaFor[sceneSuggestion]()
	characterSuggestionSchema = schemaFor[characterSuggestion]()
)

// Outlines asks the text model for three story outlines for theme.
func (s *Service) Outlines(ctx context.Context, theme string) Result[[]Outline] {
	start := time.Now()
	if s.text == nil {
		return observed(s, "outlines", start, mocked(s.catalog.OutlinesFor(theme), "no text model configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeouts.Outlines)
	defer cancel()

	raw, err := s.text.Generate(ctx, outlinesPrompt(theme), outlineSetSchema)
	if err == nil {
		var outlines []Outline
		if outlines, err = parseOutlines(raw); err == nil {
			return observed(s, "outlines", start, fromUpstream(outlines, s.text.Source()))
		}
	}
	log.Printf("[LLM] Outline generation failed, using fallback: %v", err)
	return observed(s, "outlines", start, fellBack(s.catalog.OutlinesFor(theme), err))
}

// Script expands an outline into a short stage-play script.
func (s *Service) Script(ctx context.Context, outline Outline) Result[string] {
	start := time.Now()
	if s.text == nil {
		return observed(s, "script", start, mocked(s.catalog.Script, "no text model configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeouts.Script)
	defer cancel()

	raw, err := s.text.Generate(ctx, scriptPrompt(outline), nil)
	if err == nil && strings.TrimSpace(raw) == "" {
		err = errors.New("model returned an empty script")
	}
	if err != nil {
		log.Printf("[LLM] Script generation failed, using fallback: %v", err)
		return observed(s, "script", start, fellBack(s.catalog.Script, err))
	}
	return observed(s, "script", start, fromUpstream(raw, s.text.Source()))
}

// Suggest proposes field values for a project, scene or character. Unknown
// kinds are treated as scenes.
func (s *Service) Suggest(ctx context.Context, kind string, input map[string]interface{}) Result[map[string]interface{}] {
	start := time.Now()
	switch kind {
	case SuggestProject, SuggestScene, SuggestCharacter:
	default:
		kind = SuggestScene
	}
	if s.text == nil {
		return observed(s, "suggest", start, mocked(s.catalog.Suggestion(kind), "no text model configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeouts.Suggest)
	defer cancel()

	var (
		out map[string]interface{}
		err error
	)
	switch kind {
	case SuggestProject:
		out, err = suggestAs(ctx, s.text, suggestPrompt(kind, input), projectSuggestionSchema,
			func(v projectSuggestion) bool { return v.Name != "" || v.Description != "" })
	case SuggestCharacter:
		out, err = suggestAs(ctx, s.text, suggestPrompt(kind, input), characterSuggestionSchema,
			func(v characterSuggestion) bool { return v.Name != "" || v.Description != "" })
	default:
		out, err = suggestAs(ctx, s.text, suggestPrompt(kind, input), sceneSuggestionSchema,
			func(v sceneSuggestion) bool { return v.Description != "" || v.Dialogue != "" })
	}
	if err != nil {
		log.Printf("[LLM] %s suggestion failed, using fallback: %v", kind, err)
		return observed(s, "suggest", start, fellBack(s.catalog.Suggestion(kind), err))
	}
	return observed(s, "suggest", start, fromUpstream(out, s.text.Source()))
}

// SuggestFields adapts Suggest to callers that only need the fields, such as the queue.
func (s *Service) SuggestFields(ctx context.Context, kind string, input map[string]interface{}) (map[string]interface{}, error) {
	res := s.Suggest(ctx, kind, input)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return res.Value, nil
}

// suggestAs runs a structured generation and returns the decoded value as a field map.
func suggestAs[T any](ctx context.Context, text TextModel, prompt string, schema *jsonschema.Schema, valid func(T) bool) (map[string]interface{}, error) {
	raw, err := text.Generate(ctx, prompt, schema)
	if err != nil {
		return nil, err
	}

	var v T
	if err := json.Unmarshal([]byte(extractJSON(raw)), &v); err != nil {
		return nil, errors.Wrap(err, "parse suggestion")
	}
	if !valid(v) {
		return nil, errors.New("model returned an empty suggestion")
	}

	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func outlinesPrompt(theme string) string {
	return fmt.Sprintf(`You are a creative story writer. Generate 3 creative story outlines based on the theme: "%s".

Return ONLY a JSON object with this exact format (no other text):
{"outlines": [{"id": "1", "title": "Title", "description": "Description", "genre": "Genre"}]}

Make each outline creative and different. Write in Traditional Chinese.`, theme)
}

func scriptPrompt(o Outline) string {
	return fmt.Sprintf(`Write a short drama script (about 3 scenes) based on this outline: "%s - %s"

Format the script as a stage play with:
- Scene headers like 【第一幕】場景：場所
- Character names before dialogue
- Action descriptions in brackets [動作描述]
- Keep it concise but engaging

Write in Traditional Chinese.`, o.Title, o.Description)
}

func suggestPrompt(kind string, input map[string]interface{}) string {
	switch kind {
	case SuggestProject:
		theme, _ := input["theme"].(string)
		return fmt.Sprintf(`根據以下主題生成項目建議：%s。返回JSON格式：{"name": "項目名稱", "description": "項目描述"}`, theme)
	case SuggestCharacter:
		return fmt.Sprintf(`根據以下上下文生成角色建議：%s。返回JSON格式：{"name": "角色名稱", "description": "角色描述", "role": "protagonist/supporting"}`, compactJSON(input))
	default:
		return fmt.Sprintf(`根據以下場景上下文生成場景建議：%s。返回JSON格式：{"description": "場景描述", "characterDescription": "角色描述", "cameraMovement": "鏡頭運動", "dialogue": "對話", "backgroundMusic": "背景音樂", "emotionTag": "情緒標籤"}`, compactJSON(input))
	}
}

func compactJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

const outlineCount = 3

// parseOutlines accepts either {"outlines": [...]} or a bare array. Outlines
// without a title are dropped and extras beyond outlineCount are cut.
func parseOutlines(raw string) ([]Outline, error) {
	text := extractJSON(raw)

	var outlines []Outline
	var set outlineSet
	if err := json.Unmarshal([]byte(text), &set); err == nil && len(set.Outlines) > 0 {
		outlines = set.Outlines
	} else if err := json.Unmarshal([]byte(text), &outlines); err != nil {
		return nil, errors.Wrap(err, "parse outlines")
	}

	valid := outlines[:0]
	for _, o := range outlines {
		if strings.TrimSpace(o.Title) == "" {
			continue
		}
		valid = append(valid, o)
	}
	if len(valid) < outlineCount {
		return nil, errors.Errorf("model returned %d usable outlines, want %d", len(valid), outlineCount)
	}
	valid = valid[:outlineCount]
	for i := range valid {
		if valid[i].ID == "" {
			valid[i].ID = fmt.Sprint(i + 1)
		}
	}
	return valid, nil
}

// extractJSON strips markdown fences and prose around the first JSON value in s.
func extractJSON(s string) string {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return s[start:]
	}
	return s[start : end+1]
}
