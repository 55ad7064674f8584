package generation

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"

	"short-drama-service/internal/config"
)

type fakeText struct {
	reply  string
	err    error
	delay  time.Duration
	mu     sync.Mutex
	prompt string
	schema *jsonschema.Schema
}

func (f *fakeText) Source() Source { return SourceOllama }

func (f *fakeText) Generate(ctx context.Context, prompt string, schema *jsonschema.Schema) (string, error) {
	f.mu.Lock()
	f.prompt, f.schema = prompt, schema
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingObserver) ObserveGeneration(kind string, source Source, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, kind+":"+string(source))
}

func newTestService(t *testing.T, opts Options) *Service {
	t.Helper()
	s, err := NewService(opts)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	s.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return s
}

// closedURL returns an address nothing is listening on.
func closedURL(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	l.Close()
	return "http://" + addr
}

func TestLoadCatalog(t *testing.T) {
	c, err := LoadCatalog()
	if err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}
	outlines := c.OutlinesFor("愛情")
	if len(outlines) != 3 {
		t.Fatalf("len(OutlinesFor) = %d, want 3", len(outlines))
	}
	if !strings.HasPrefix(outlines[0].Description, "愛情 - ") {
		t.Errorf("Description = %q, want theme prefix", outlines[0].Description)
	}
	if strings.HasPrefix(c.Outlines[0].Description, "愛情") {
		t.Error("OutlinesFor modified the catalog")
	}
	if got := c.Suggestion("unknown"); got["description"] == nil {
		t.Errorf("Suggestion(unknown) = %v, want scene shape", got)
	}
	if got := c.Suggestion(SuggestProject); got["name"] == nil {
		t.Errorf("Suggestion(project) = %v, want name", got)
	}
}

func TestOutlines(t *testing.T) {
	t.Run("mock without a model", func(t *testing.T) {
		obs := &recordingObserver{}
		s := newTestService(t, Options{Observer: obs})
		res := s.Outlines(context.Background(), "友情")
		if res.Source != SourceMock || res.Upstream() {
			t.Errorf("Source = %s, want mock", res.Source)
		}
		if len(res.Value) != 3 || res.Value[0].Title != "命運的相遇" {
			t.Errorf("Value = %+v", res.Value)
		}
		if len(obs.calls) != 1 || obs.calls[0] != "outlines:mock" {
			t.Errorf("observer calls = %v", obs.calls)
		}
	})

	t.Run("model output wrapped in prose", func(t *testing.T) {
		text := &fakeText{reply: "Sure!\n```json\n{\"outlines\":[" +
			`{"title":"A","description":"d","genre":"g"},{"title":""},{"title":"B"},{"title":"C"},{"title":"D"}` +
			"]}\n```"}
		s := newTestService(t, Options{Text: text})
		res := s.Outlines(context.Background(), "友情")
		if res.Source != SourceOllama {
			t.Fatalf("Source = %s (%s), want ollama", res.Source, res.Reason)
		}
		if len(res.Value) != 3 || res.Value[0].ID != "1" || res.Value[0].Title != "A" || res.Value[2].Title != "C" {
			t.Errorf("Value = %+v, want the first three titled outlines", res.Value)
		}
		if text.schema == nil || !strings.Contains(text.prompt, "友情") {
			t.Error("prompt or schema not passed to the model")
		}
	})

	t.Run("bare array", func(t *testing.T) {
		s := newTestService(t, Options{Text: &fakeText{reply: `[{"id":"7","title":"B"},{"title":"C"},{"title":"D"}]`}})
		res := s.Outlines(context.Background(), "x")
		if !res.Upstream() || res.Value[0].ID != "7" || res.Value[1].ID != "2" {
			t.Errorf("res = %+v", res)
		}
	})

	t.Run("too few outlines fall back", func(t *testing.T) {
		s := newTestService(t, Options{Text: &fakeText{reply: `{"outlines":[{"title":"A"},{"title":"B"}]}`}})
		res := s.Outlines(context.Background(), "x")
		if res.Source != SourceFallback || len(res.Value) != 3 {
			t.Errorf("res = %+v, want fallback with three outlines", res)
		}
	})

	t.Run("garbage falls back", func(t *testing.T) {
		s := newTestService(t, Options{Text: &fakeText{reply: "no json here"}})
		res := s.Outlines(context.Background(), "x")
		if res.Source != SourceFallback || res.Reason == "" {
			t.Errorf("res = %+v, want fallback with reason", res)
		}
		if len(res.Value) != 3 {
			t.Errorf("len(Value) = %d, want 3", len(res.Value))
		}
	})

	t.Run("timeout falls back", func(t *testing.T) {
		s := newTestService(t, Options{
			Text:     &fakeText{delay: time.Second},
			Timeouts: Timeouts{Outlines: 20 * time.Millisecond},
		})
		res := s.Outlines(context.Background(), "x")
		if res.Source != SourceFallback {
			t.Errorf("Source = %s, want fallback", res.Source)
		}
	})
}

func TestScript(t *testing.T) {
	s := newTestService(t, Options{Text: &fakeText{reply: "   "}})
	res := s.Script(context.Background(), Outline{Title: "T", Description: "D"})
	if res.Source != SourceFallback || !strings.Contains(res.Value, "【第一幕】") {
		t.Errorf("empty script: res = %+v", res)
	}

	text := &fakeText{reply: "【1幕】場景：公園"}
	s = newTestService(t, Options{Text: text})
	res = s.Script(context.Background(), Outline{Title: "T", Description: "D"})
	if !res.Upstream() || res.Value != "【1幕】場景：公園" {
		t.Errorf("res = %+v", res)
	}
	if text.schema != nil || !strings.Contains(text.prompt, "T - D") {
		t.Errorf("prompt = %q", text.prompt)
	}
}

func TestSuggest(t *testing.T) {
	t.Run("unknown kind is a scene", func(t *testing.T) {
		s := newTestService(t, Options{})
		res := s.Suggest(context.Background(), "weather", nil)
		if _, ok := res.Value["cameraMovement"]; !ok {
			t.Errorf("Value = %v, want scene fields", res.Value)
		}
	})

	t.Run("character from model", func(t *testing.T) {
		text := &fakeText{reply: `{"name":"小明","description":"學生","role":"protagonist"}`}
		s := newTestService(t, Options{Text: text})
		res := s.Suggest(context.Background(), SuggestCharacter, map[string]interface{}{"project": "p"})
		if !res.Upstream() || res.Value["name"] != "小明" || res.Value["role"] != "protagonist" {
			t.Errorf("res = %+v", res)
		}
	})

	t.Run("empty suggestion falls back", func(t *testing.T) {
		s := newTestService(t, Options{Text: &fakeText{reply: `{}`}})
		res := s.Suggest(context.Background(), SuggestProject, map[string]interface{}{"theme": "x"})
		if res.Source != SourceFallback || res.Value["name"] == nil {
			t.Errorf("res = %+v", res)
		}
	})

	t.Run("model error falls back", func(t *testing.T) {
		s := newTestService(t, Options{Text: &fakeText{err: errors.New("boom")}})
		fields, err := s.SuggestFields(context.Background(), SuggestScene, nil)
		if err != nil || fields["description"] == nil {
			t.Errorf("SuggestFields() = %v, %v", fields, err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		s := newTestService(t, Options{Text: &fakeText{delay: time.Second}})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := s.SuggestFields(ctx, SuggestScene, nil); err == nil {
			t.Error("SuggestFields() error = nil on cancelled context")
		}
	})
}

func TestParseScenes(t *testing.T) {
	t.Run("two headers", func(t *testing.T) {
		scenes := ParseScenes("【1幕】場景：咖啡廳\n對白\n【2幕】場景：街道 \n更多")
		if len(scenes) != 2 {
			t.Fatalf("len = %d, want 2", len(scenes))
		}
		if scenes[0].Description != "咖啡廳" || scenes[1].Description != "街道" {
			t.Errorf("descriptions = %q, %q", scenes[0].Description, scenes[1].Description)
		}
		for i, sc := range scenes {
			if sc.Order != i+1 || sc.Duration < 5 || sc.Duration > 9 {
				t.Errorf("scene %d = %+v", i, sc)
			}
			if sc.CameraMovement != cameraMovements[i] || sc.EmotionTag != emotionTags[i] {
				t.Errorf("scene %d options = %s/%s", i, sc.CameraMovement, sc.EmotionTag)
			}
		}
		if scenes[0].ID == scenes[1].ID {
			t.Error("scene ids are not unique")
		}
	})

	t.Run("chinese numerals", func(t *testing.T) {
		c, _ := LoadCatalog()
		scenes := ParseScenes(c.Script)
		if len(scenes) < 2 || scenes[0].Description != "咖啡廳" {
			t.Errorf("scenes = %+v", scenes)
		}
	})

	t.Run("options cycle", func(t *testing.T) {
		var b strings.Builder
		for i := 0; i < 7; i++ {
			b.WriteString("【1幕】場景：x\n")
		}
		scenes := ParseScenes(b.String())
		if scenes[5].CameraMovement != cameraMovements[0] || scenes[6].BackgroundMusic != backgroundMusics[1] {
			t.Errorf("options did not cycle: %+v", scenes[5:])
		}
	})

	t.Run("no headers", func(t *testing.T) {
		scenes := ParseScenes("just some prose")
		if len(scenes) != 1 {
			t.Fatalf("len = %d, want 1", len(scenes))
		}
		sc := scenes[0]
		if sc.Description != "場景 1" || sc.Duration != 5 || sc.EmotionTag != "平靜" {
			t.Errorf("default scene = %+v", sc)
		}
	})

	t.Run("header on separate line is not a scene", func(t *testing.T) {
		if scenes := ParseScenes("【1幕】\n場景：x"); scenes[0].Description != "場景 1" {
			t.Errorf("scenes = %+v", scenes)
		}
	})
}

func TestImage(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		s := newTestService(t, Options{})
		res := s.Image(context.Background(), ImageRequest{Prompt: "cat"})
		if res.Source != SourceMock {
			t.Errorf("Source = %s, want mock", res.Source)
		}
		job := res.Value
		if job.ImageURL != "/api/generate/image/mock-1700000000000.png" {
			t.Errorf("ImageURL = %q", job.ImageURL)
		}
		if job.Settings != (ImageSettings{Width: 512, Height: 768, Steps: 20, CFG: 8}) {
			t.Errorf("Settings = %+v", job.Settings)
		}
		if job.Seed < 0 || job.Seed >= 1<<32 {
			t.Errorf("Seed = %d out of range", job.Seed)
		}
	})

	t.Run("unreachable falls back", func(t *testing.T) {
		s := newTestService(t, Options{ComfyUIURL: closedURL(t)})
		seed := int64(42)
		res := s.Image(context.Background(), ImageRequest{Prompt: "cat", Seed: &seed})
		if res.Source != SourceFallback || res.Value.Seed != 42 {
			t.Errorf("res = %+v", res)
		}
		if res.Value.Message != "ComfyUI not available, using mock response" {
			t.Errorf("Message = %q", res.Value.Message)
		}
	})

	t.Run("submits workflow", func(t *testing.T) {
		var graph map[string]comfyNode
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/system_stats":
				w.Write([]byte(`{"system":{}}`))
			case "/prompt":
				var body struct {
					Prompt map[string]comfyNode `json:"prompt"`
				}
				json.NewDecoder(r.Body).Decode(&body)
				graph = body.Prompt
				w.Write([]byte(`{"prompt_id":"abc"}`))
			default:
				http.NotFound(w, r)
			}
		}))
		defer srv.Close()

		s := newTestService(t, Options{ComfyUIURL: srv.URL + "/"})
		res := s.Image(context.Background(), ImageRequest{Prompt: "cat", Width: 256})
		if res.Source != SourceComfyUI || res.Value.PromptID != "abc" {
			t.Fatalf("res = %+v", res)
		}
		if res.Value.Settings.Width != 256 {
			t.Errorf("Width = %d, want 256", res.Value.Settings.Width)
		}
		if graph["4"].Inputs["ckpt_name"] != defaultCheckpoint {
			t.Errorf("checkpoint = %v", graph["4"].Inputs["ckpt_name"])
		}
		if graph["7"].Inputs["text"] != defaultNegativePrompt {
			t.Errorf("negative prompt = %v", graph["7"].Inputs["text"])
		}
		if graph["8"].ClassType != "VAEDecode" || graph["9"].ClassType != "SaveImage" {
			t.Errorf("graph is missing decode or save nodes: %+v", graph)
		}
	})

	t.Run("rejected submission falls back", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/prompt" {
				http.Error(w, "bad graph", http.StatusBadRequest)
				return
			}
			w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		s := newTestService(t, Options{ComfyUIURL: srv.URL})
		if res := s.Image(context.Background(), ImageRequest{Prompt: "cat"}); res.Source != SourceFallback {
			t.Errorf("Source = %s, want fallback", res.Source)
		}
	})
}

func TestImageStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"devices":[]}`))
	}))
	defer srv.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer broken.Close()

	tests := []struct {
		name   string
		url    string
		status string
	}{
		{"not configured", "", "unavailable"},
		{"ready", srv.URL, "ready"},
		{"bad status", broken.URL, "error"},
		{"unreachable", closedURL(t), "unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestService(t, Options{ComfyUIURL: tt.url})
			got := s.ImageStatus(context.Background())
			if got.Status != tt.status {
				t.Errorf("Status = %q, want %q", got.Status, tt.status)
			}
			if got.Available != (tt.status == "ready") {
				t.Errorf("Available = %v", got.Available)
			}
		})
	}
}

func TestVideo(t *testing.T) {
	t.Run("mock", func(t *testing.T) {
		s := newTestService(t, Options{})
		res := s.Video(context.Background(), VideoRequest{Images: []string{"a", "b"}, Duration: 3})
		job := res.Value
		if res.Source != SourceMock || job.VideoID != "video_1700000000000" {
			t.Errorf("res = %+v", res)
		}
		if job.EstimatedTime != 6 || job.Settings.FrameCount != 2 || job.Settings.Model != "ltx-video-0.9.5" {
			t.Errorf("job = %+v", job)
		}
		if job.Settings.FPS != 24 || job.Note == "" {
			t.Errorf("job = %+v", job)
		}
	})

	t.Run("upstream", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/generate" {
				http.NotFound(w, r)
				return
			}
			w.Write([]byte(`{"video_id":"v1"}`))
		}))
		defer srv.Close()

		s := newTestService(t, Options{LTXVideoURL: srv.URL})
		res := s.Video(context.Background(), VideoRequest{Images: []string{"a"}})
		if res.Source != SourceLTXVideo || res.Value.VideoID != "v1" {
			t.Errorf("res = %+v", res)
		}
	})

	t.Run("missing id falls back", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		s := newTestService(t, Options{LTXVideoURL: srv.URL})
		if res := s.Video(context.Background(), VideoRequest{Images: []string{"a"}}); res.Source != SourceFallback {
			t.Errorf("Source = %s, want fallback", res.Source)
		}
	})
}

func TestVideoStatus(t *testing.T) {
	s := newTestService(t, Options{})
	got := s.VideoStatus(context.Background())
	if !got.MockMode || got.Configuration["required"] != "LTX_VIDEO_URL environment variable" {
		t.Errorf("VideoStatus() = %+v", got)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	s = newTestService(t, Options{LTXVideoURL: srv.URL})
	if got := s.VideoStatus(context.Background()); !got.Available || string(got.Stats) != `{"ok":true}` {
		t.Errorf("VideoStatus() = %+v", got)
	}
}

func TestOllamaModel(t *testing.T) {
	var got ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"response":"hello","done":true}`))
	}))
	defer srv.Close()

	m := NewOllamaModel(srv.URL, "llama3.2", nil)
	out, err := m.Generate(context.Background(), "hi", nil)
	if err != nil || out != "hello" {
		t.Fatalf("Generate() = %q, %v", out, err)
	}
	if got.Model != "llama3.2" || got.Stream || got.Prompt != "hi" {
		t.Errorf("request = %+v", got)
	}

	down := NewOllamaModel(closedURL(t), "llama3.2", nil)
	if _, err := down.Generate(context.Background(), "hi", nil); err == nil {
		t.Error("Generate() error = nil for unreachable server")
	}
}

func TestOpenAIModel(t *testing.T) {
	var got struct {
		Model          string          `json:"model"`
		ResponseFormat json.RawMessage `json:"response_format"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"m",` +
			`"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"hello"}}]}`))
	}))
	defer srv.Close()

	m := NewTextModel(&config.Config{
		LLMProvider:   config.ProviderOpenAI,
		OpenAIBaseURL: srv.URL + "/v1/",
		OllamaModel:   "glm-4.7-flash",
	}, nil)
	if m == nil || m.Source() != SourceOpenAI {
		t.Fatalf("NewTextModel() = %T, want OpenAI backend", m)
	}

	out, err := m.Generate(context.Background(), "hi", outlineSetSchema)
	if err != nil || out != "hello" {
		t.Fatalf("Generate() = %q, %v", out, err)
	}
	if got.Model != "glm-4.7-flash" {
		t.Errorf("model = %q", got.Model)
	}
	if !strings.Contains(string(got.ResponseFormat), "json_schema") {
		t.Errorf("response_format = %s, want json_schema", got.ResponseFormat)
	}

	if NewTextModel(&config.Config{LLMProvider: config.ProviderOpenAI, UseMockAI: true, OpenAIAPIKey: "k"}, nil) != nil {
		t.Error("NewTextModel() returned a backend in mock mode")
	}
}
