package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"

	"short-drama-service/internal/assets"
	"short-drama-service/internal/auth"
	"short-drama-service/internal/generation"
	"short-drama-service/internal/metrics"
	"short-drama-service/internal/queue"
	"short-drama-service/internal/repository"
	"short-drama-service/internal/services"
)

type testEnv struct {
	app      *fiber.App
	registry *queue.Registry
}

func newTestApp(t *testing.T, genOpts generation.Options) *testEnv {
	t.Helper()

	store := repository.NewMemoryStore()
	tokens := auth.NewTokenService("test-secret")
	uploads := t.TempDir()
	assetStore, err := assets.NewLocalStore(uploads, "/uploads")
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}
	gen, err := generation.NewService(genOpts)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	registry := queue.NewRegistry()

	app := NewRouter(Deps{
		Tokens:         tokens,
		Users:          services.NewUserService(store, tokens),
		Projects:       services.NewProjectService(store),
		Characters:     services.NewCharacterService(store, assetStore),
		Notifications:  services.NewNotificationService(services.NewMemoryPreferences(), services.LogMailer{}, nil),
		Generation:     gen,
		Queue:          registry,
		Metrics:        metrics.NewMetricsWith(prometheus.NewRegistry()),
		Health:         store.Ping,
		AllowedOrigins: "*",
		UploadDir:      uploads,
	})
	return &testEnv{app: app, registry: registry}
}

// do sends a JSON request and decodes the JSON response into a map.
func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.send(t, req)
}

func (e *testEnv) send(t *testing.T, req *http.Request) (int, map[string]interface{}) {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test(%s %s) error = %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	out := map[string]interface{}{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %s %s response %q: %v", req.Method, req.URL.Path, raw, err)
		}
	}
	return resp.StatusCode, out
}

func (e *testEnv) register(t *testing.T, name, email string) string {
	t.Helper()
	status, body := e.do(t, "POST", "/api/auth/register", "", fiber.Map{"name": name, "email": email, "password": "secret1"})
	if status != fiber.StatusCreated {
		t.Fatalf("register status = %d, body = %v", status, body)
	}
	return body["token"].(string)
}

func field(body map[string]interface{}, path ...string) interface{} {
	var cur interface{} = body
	for _, p := range path {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur = m[p]
	}
	return cur
}

func TestAuthRoutes(t *testing.T) {
	env := newTestApp(t, generation.Options{})
	token := env.register(t, "Ann", "ann@example.com")

	status, body := env.do(t, "POST", "/api/auth/register", "", fiber.Map{"name": "Ann", "email": "ann@example.com", "password": "secret1"})
	if status != fiber.StatusBadRequest || body["error"] != "Email already registered" {
		t.Errorf("duplicate register = %d %v", status, body)
	}

	status, body = env.do(t, "POST", "/api/auth/register", "", fiber.Map{"name": "B", "email": "b@example.com", "password": "123"})
	if status != fiber.StatusBadRequest || body["error"] != "Password must be at least 6 characters" {
		t.Errorf("short password = %d %v", status, body)
	}

	status, body = env.do(t, "POST", "/api/auth/login", "", fiber.Map{"email": "ann@example.com", "password": "wrong!"})
	if status != fiber.StatusUnauthorized {
		t.Errorf("bad login = %d %v", status, body)
	}

	status, body = env.do(t, "POST", "/api/auth/login", "", fiber.Map{"email": "ANN@example.com", "password": "secret1"})
	if status != fiber.StatusOK || body["token"] == "" {
		t.Errorf("login = %d %v", status, body)
	}
	if _, leaked := body["user"].(map[string]interface{})["password"]; leaked {
		t.Error("login response exposes the password hash")
	}

	status, body = env.do(t, "GET", "/api/auth/me", token, nil)
	if status != fiber.StatusOK || field(body, "user", "email") != "ann@example.com" {
		t.Errorf("me = %d %v", status, body)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestApp(t, generation.Options{})
	for _, route := range [][2]string{
		{"GET", "/api/projects"},
		{"GET", "/api/characters"},
		{"POST", "/api/ai/suggest"},
		{"POST", "/api/creative/generate-scenes"},
		{"POST", "/api/generate/image"},
		{"GET", "/api/queue"},
		{"PUT", "/api/notify"},
	} {
		status, body := env.do(t, route[0], route[1], "", nil)
		if status != fiber.StatusUnauthorized || body["error"] != "Unauthorized" {
			t.Errorf("%s %s without token = %d %v", route[0], route[1], status, body)
		}
	}
	if status, _ := env.do(t, "GET", "/api/projects", "garbage", nil); status != fiber.StatusUnauthorized {
		t.Errorf("bad token status = %d", status)
	}
}

func TestProjectRoutes(t *testing.T) {
	env := newTestApp(t, generation.Options{})
	owner := env.register(t, "Ann", "ann@example.com")
	intruder := env.register(t, "Bob", "bob@example.com")

	status, body := env.do(t, "POST", "/api/projects", owner, fiber.Map{})
	if status != fiber.StatusCreated {
		t.Fatalf("create = %d %v", status, body)
	}
	if field(body, "project", "name") != "新項目" || field(body, "project", "status") != "draft" {
		t.Errorf("defaults = %v", body)
	}
	id := field(body, "project", "id").(string)

	status, body = env.do(t, "POST", "/api/projects", owner, fiber.Map{"status": "archived"})
	if status != fiber.StatusBadRequest || body["error"] != "Invalid status" {
		t.Errorf("invalid status = %d %v", status, body)
	}

	for i := 0; i < 2; i++ {
		status, body = env.do(t, "POST", "/api/projects/"+id+"/scenes", owner, fiber.Map{"description": "s", "orderNum": 99})
		if status != fiber.StatusCreated || field(body, "scene", "orderNum") != float64(i+1) {
			t.Errorf("create scene %d = %d %v", i, status, body)
		}
	}
	sceneID := field(body, "scene", "id").(string)

	status, body = env.do(t, "GET", "/api/projects/"+id, owner, nil)
	if status != fiber.StatusOK || len(body["scenes"].([]interface{})) != 2 {
		t.Errorf("get = %d %v", status, body)
	}

	status, body = env.do(t, "PUT", "/api/projects/"+id, owner, fiber.Map{"name": "Renamed"})
	if status != fiber.StatusOK || field(body, "project", "name") != "Renamed" {
		t.Errorf("update = %d %v", status, body)
	}

	status, body = env.do(t, "PUT", "/api/projects/"+id+"/scenes/"+sceneID, owner, fiber.Map{"dialogue": "hi"})
	if status != fiber.StatusOK || field(body, "scene", "dialogue") != "hi" {
		t.Errorf("update scene = %d %v", status, body)
	}

	t.Run("other users see not found", func(t *testing.T) {
		for _, route := range [][2]string{
			{"GET", "/api/projects/" + id},
			{"PUT", "/api/projects/" + id},
			{"DELETE", "/api/projects/" + id},
			{"GET", "/api/projects/" + id + "/scenes"},
			{"GET", "/api/projects/" + id + "/export"},
			{"DELETE", "/api/projects/" + id + "/scenes/" + sceneID},
		} {
			status, _ := env.do(t, route[0], route[1], intruder, fiber.Map{})
			if status != fiber.StatusNotFound {
				t.Errorf("%s %s as intruder = %d, want 404", route[0], route[1], status)
			}
		}
		for _, method := range []string{"GET", "PUT", "DELETE"} {
			status, body := env.do(t, method, "/api/projects/"+id+"/scenes/"+sceneID, intruder, fiber.Map{})
			if status != fiber.StatusNotFound || body["error"] != "Project not found" {
				t.Errorf("%s scene as intruder = %d %v, want Project not found", method, status, body)
			}
		}
		_, body := env.do(t, "GET", "/api/projects", intruder, nil)
		if len(body["projects"].([]interface{})) != 0 {
			t.Errorf("intruder lists %v", body["projects"])
		}
	})

	t.Run("export", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/projects/"+id+"/export", nil)
		req.Header.Set("Authorization", "Bearer "+owner)
		resp, err := env.app.Test(req, -1)
		if err != nil {
			t.Fatalf("export error = %v", err)
		}
		defer resp.Body.Close()
		raw, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != fiber.StatusOK || resp.Header.Get("Content-Type") != "application/zip" {
			t.Fatalf("export = %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
		}
		if !bytes.HasPrefix(raw, []byte("PK")) {
			t.Error("export body is not a zip archive")
		}
		if !strings.Contains(resp.Header.Get("Content-Disposition"), "project-"+id+".zip") {
			t.Errorf("Content-Disposition = %q", resp.Header.Get("Content-Disposition"))
		}
	})

	status, _ = env.do(t, "DELETE", "/api/projects/"+id+"/scenes/"+sceneID, owner, nil)
	if status != fiber.StatusOK {
		t.Errorf("delete scene = %d", status)
	}
	status, body = env.do(t, "GET", "/api/projects/"+id+"/scenes/"+sceneID, owner, nil)
	if status != fiber.StatusNotFound || body["error"] != "Scene not found" {
		t.Errorf("get deleted scene = %d %v", status, body)
	}

	status, body = env.do(t, "DELETE", "/api/projects/"+id, owner, nil)
	if status != fiber.StatusOK || body["success"] != true {
		t.Errorf("delete = %d %v", status, body)
	}
	status, body = env.do(t, "GET", "/api/projects/"+id, owner, nil)
	if status != fiber.StatusNotFound || body["error"] != "Project not found" {
		t.Errorf("get deleted = %d %v", status, body)
	}
}

func TestCharacterRoutes(t *testing.T) {
	env := newTestApp(t, generation.Options{})
	token := env.register(t, "Ann", "ann@example.com")

	status, body := env.do(t, "POST", "/api/characters", token, fiber.Map{"description": "hero"})
	if status != fiber.StatusCreated || field(body, "character", "name") != "新角色" || field(body, "character", "role") != "supporting" {
		t.Fatalf("create = %d %v", status, body)
	}
	id := field(body, "character", "id").(string)

	status, body = env.do(t, "PUT", "/api/characters/"+id, token, fiber.Map{"role": "villain"})
	if status != fiber.StatusBadRequest || body["error"] != "Invalid role" {
		t.Errorf("invalid role = %d %v", status, body)
	}

	upload := func(filename string) (int, map[string]interface{}) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, _ := mw.CreateFormFile("file", filename)
		fw.Write([]byte("\x89PNG fake image"))
		mw.Close()

		req := httptest.NewRequest("POST", "/api/characters/"+id+"/image", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		return env.send(t, req)
	}

	status, body = upload("face.png")
	if status != fiber.StatusOK {
		t.Fatalf("upload = %d %v", status, body)
	}
	url, _ := field(body, "character", "imageUrl").(string)
	if !strings.HasPrefix(url, "/uploads/characters/"+id+"/") {
		t.Errorf("imageUrl = %q", url)
	}

	resp, err := env.app.Test(httptest.NewRequest("GET", url, nil))
	if err != nil || resp.StatusCode != fiber.StatusOK {
		t.Errorf("serving upload = %v, %v", resp, err)
	}

	status, body = upload("face.gif")
	if status != fiber.StatusBadRequest {
		t.Errorf("gif upload = %d %v", status, body)
	}
}

func TestCreativeRoutes(t *testing.T) {
	env := newTestApp(t, generation.Options{})
	token := env.register(t, "Ann", "ann@example.com")

	status, body := env.do(t, "POST", "/api/creative/generate-outlines", "", fiber.Map{})
	if status != fiber.StatusBadRequest || body["error"] != "Theme is required" {
		t.Errorf("missing theme = %d %v", status, body)
	}

	status, body = env.do(t, "POST", "/api/creative/generate-outlines", "", fiber.Map{"theme": "愛情"})
	if status != fiber.StatusOK || body["source"] != "mock" || len(body["outlines"].([]interface{})) != 3 {
		t.Errorf("outlines = %d %v", status, body)
	}

	status, body = env.do(t, "POST", "/api/creative/generate-script", "", fiber.Map{"outline": fiber.Map{}})
	if status != fiber.StatusBadRequest || body["error"] != "Outline is required" {
		t.Errorf("missing outline = %d %v", status, body)
	}

	status, body = env.do(t, "POST", "/api/creative/generate-script", "", fiber.Map{"outline": fiber.Map{"title": "T", "description": "D"}})
	if status != fiber.StatusOK || !strings.Contains(body["script"].(string), "場景") {
		t.Errorf("script = %d %v", status, body)
	}

	status, body = env.do(t, "POST", "/api/creative/generate-scenes", token, fiber.Map{"script": "【1幕】場景： 咖啡廳 \n【2幕】場景：街道"})
	if status != fiber.StatusOK {
		t.Fatalf("scenes = %d %v", status, body)
	}
	scenes := body["scenes"].([]interface{})
	if len(scenes) != 2 {
		t.Fatalf("len(scenes) = %d, want 2", len(scenes))
	}
	first := scenes[0].(map[string]interface{})
	if first["order"] != float64(1) || first["description"] != "咖啡廳" {
		t.Errorf("first scene = %v", first)
	}

	status, body = env.do(t, "POST", "/api/ai/suggest", token, fiber.Map{"type": "scene"})
	if status != fiber.StatusBadRequest || body["error"] != "Missing type or context" {
		t.Errorf("missing context = %d %v", status, body)
	}
	status, body = env.do(t, "POST", "/api/ai/suggest", token, fiber.Map{"type": "character", "context": fiber.Map{}})
	if status != fiber.StatusOK || field(body, "suggestion", "role") != "protagonist" {
		t.Errorf("suggest = %d %v", status, body)
	}
}

func TestMediaRoutesNeverFailWhenUpstreamIsDown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	closed := "http://" + l.Addr().String()
	l.Close()

	env := newTestApp(t, generation.Options{ComfyUIURL: closed, LTXVideoURL: closed})
	token := env.register(t, "Ann", "ann@example.com")

	status, body := env.do(t, "POST", "/api/generate/image", token, fiber.Map{})
	if status != fiber.StatusBadRequest || body["error"] != "Missing prompt" {
		t.Errorf("missing prompt = %d %v", status, body)
	}

	status, body = env.do(t, "POST", "/api/generate/image", token, fiber.Map{"prompt": "a cat"})
	if status != fiber.StatusOK || body["mock"] != true || body["success"] != true || body["source"] != "fallback" {
		t.Errorf("image = %d %v", status, body)
	}
	if !strings.HasPrefix(body["imageUrl"].(string), "/api/generate/image/mock-") {
		t.Errorf("imageUrl = %v", body["imageUrl"])
	}

	status, body = env.do(t, "POST", "/api/generate/video", token, fiber.Map{"images": []string{}})
	if status != fiber.StatusBadRequest || body["error"] != "Missing images - provide at least one image frame" {
		t.Errorf("missing images = %d %v", status, body)
	}

	status, body = env.do(t, "POST", "/api/generate/video", token, fiber.Map{"images": []string{"a.png"}})
	if status != fiber.StatusOK || body["mock"] != true || !strings.HasPrefix(body["videoId"].(string), "video_") {
		t.Errorf("video = %d %v", status, body)
	}

	status, body = env.do(t, "GET", "/api/generate/image", "", nil)
	if status != fiber.StatusOK || body["available"] != false || body["status"] != "unavailable" {
		t.Errorf("image status = %d %v", status, body)
	}
}

func TestQueueRoutes(t *testing.T) {
	env := newTestApp(t, generation.Options{})
	token := env.register(t, "Ann", "ann@example.com")

	status, body := env.do(t, "POST", "/api/queue", token, fiber.Map{"context": fiber.Map{}})
	if status != fiber.StatusBadRequest || body["error"] != "Missing type" {
		t.Errorf("missing type = %d %v", status, body)
	}

	status, body = env.do(t, "POST", "/api/queue", token, fiber.Map{"type": "scene", "context": fiber.Map{"projectId": "p"}})
	if status != fiber.StatusOK || field(body, "task", "status") != "pending" || field(body, "task", "progress") != float64(0) {
		t.Fatalf("enqueue = %d %v", status, body)
	}
	id := field(body, "task", "id").(string)

	_, body = env.do(t, "GET", "/api/queue", token, nil)
	if tasks := body["queue"].([]interface{}); len(tasks) != 1 {
		t.Errorf("queue = %v", tasks)
	}

	status, body = env.do(t, "DELETE", "/api/queue", token, nil)
	if status != fiber.StatusBadRequest || body["error"] != "Missing task id" {
		t.Errorf("missing id = %d %v", status, body)
	}
	status, body = env.do(t, "DELETE", "/api/queue?id=nope", token, nil)
	if status != fiber.StatusNotFound || body["error"] != "Task not found" {
		t.Errorf("unknown id = %d %v", status, body)
	}

	status, _ = env.do(t, "DELETE", "/api/queue?id="+id, token, nil)
	if status != fiber.StatusOK {
		t.Errorf("cancel = %d", status)
	}

	// a task that is already processing cannot be cancelled
	task := env.registry.Enqueue("scene", "u", nil)
	sweeper := queue.NewSweeper(env.registry, queue.CannedResolver{}, queue.Options{})
	sweeper.Sweep(t.Context())
	status, body = env.do(t, "DELETE", "/api/queue?id="+task.ID, token, nil)
	if status != fiber.StatusBadRequest || body["error"] != "Cannot cancel task that is not pending" {
		t.Errorf("cancel completed = %d %v", status, body)
	}
}

func TestNotifyRoutes(t *testing.T) {
	env := newTestApp(t, generation.Options{})
	token := env.register(t, "Ann", "ann@example.com")

	status, body := env.do(t, "POST", "/api/notify", token, fiber.Map{"type": "generation_complete", "taskId": "t1"})
	if status != fiber.StatusOK || body["message"] != "No email configured" {
		t.Errorf("notify without email = %d %v", status, body)
	}

	status, body = env.do(t, "PUT", "/api/notify", token, fiber.Map{})
	if status != fiber.StatusBadRequest || body["error"] != "Missing email" {
		t.Errorf("missing email = %d %v", status, body)
	}

	status, body = env.do(t, "PUT", "/api/notify", token, fiber.Map{"email": "ann@example.com"})
	if status != fiber.StatusOK || body["message"] != "Email preference updated" {
		t.Errorf("set email = %d %v", status, body)
	}

	status, body = env.do(t, "POST", "/api/notify", token, fiber.Map{"type": "generation_failed", "taskId": "t1"})
	if status != fiber.StatusOK || body["message"] != "Notification sent" || body["success"] != true {
		t.Errorf("notify = %d %v", status, body)
	}

	status, body = env.do(t, "POST", "/api/notify", token, fiber.Map{"type": "generation_complete"})
	if status != fiber.StatusBadRequest || body["error"] != "Missing required fields" {
		t.Errorf("missing task id = %d %v", status, body)
	}
}

func TestInfrastructureRoutes(t *testing.T) {
	env := newTestApp(t, generation.Options{})
	env.app.Get("/explode", func(c *fiber.Ctx) error { panic("boom") })

	status, body := env.do(t, "GET", "/health", "", nil)
	if status != fiber.StatusOK || body["status"] != "ok" {
		t.Errorf("health = %d %v", status, body)
	}

	status, body = env.do(t, "GET", "/explode", "", nil)
	if status != fiber.StatusInternalServerError || body["error"] != "Internal server error" {
		t.Errorf("panic = %d %v", status, body)
	}

	status, body = env.do(t, "GET", "/api/nothing-here", "", nil)
	if status != fiber.StatusNotFound || body["error"] == nil {
		t.Errorf("unknown route = %d %v", status, body)
	}

	resp, err := env.app.Test(httptest.NewRequest("GET", "/metrics", nil))
	if err != nil {
		t.Fatalf("metrics error = %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), "http_requests_total") {
		t.Error("/metrics does not expose request counters")
	}
}
