package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	defaultCheckpoint     = "sd15_v1.4.safetensors"
	defaultNegativePrompt = "bad quality, low resolution, blurry, distorted"
	defaultImageWidth     = 512
	defaultImageHeight    = 768
	defaultImageSteps     = 20
	defaultImageCFG       = 8
)

// ImageRequest describes a text-to-image job. Zero values take the defaults.
type ImageRequest struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negativePrompt"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Steps          int     `json:"steps"`
	CFG            float64 `json:"cfg"`
	Seed           *int64  `json:"seed"`
	Model          string  `json:"model"`
}

type ImageSettings struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Steps  int     `json:"steps"`
	CFG    float64 `json:"cfg"`
}

// ImageJob is an accepted image job. PromptID is set when ComfyUI took the
// job; ImageURL is a placeholder set in mock mode.
type ImageJob struct {
	PromptID string        `json:"promptId,omitempty"`
	ImageURL string        `json:"imageUrl,omitempty"`
	Message  string        `json:"message"`
	Prompt   string        `json:"prompt"`
	Seed     int64         `json:"seed"`
	Settings ImageSettings `json:"settings"`
}

// ServiceStatus is the liveness report of a media backend.
type ServiceStatus struct {
	Available     bool              `json:"available"`
	Status        string            `json:"status"`
	Service       string            `json:"service,omitempty"`
	Message       string            `json:"message,omitempty"`
	Stats         json.RawMessage   `json:"stats,omitempty" swaggertype:"object"`
	MockMode      bool              `json:"mockMode,omitempty"`
	Configuration map[string]string `json:"configuration,omitempty"`
}

func (r ImageRequest) settings() ImageSettings {
	s := ImageSettings{Width: r.Width, Height: r.Height, Steps: r.Steps, CFG: r.CFG}
	if s.Width <= 0 {
		s.Width = defaultImageWidth
	}
	if s.Height <= 0 {
		s.Height = defaultImageHeight
	}
	if s.Steps <= 0 {
		s.Steps = defaultImageSteps
	}
	if s.CFG <= 0 {
		s.CFG = defaultImageCFG
	}
	return s
}

// Image submits a job to ComfyUI after a liveness probe. Any failure yields a
// mock job instead of an error.
func (s *Service) Image(ctx context.Context, req ImageRequest) Result[ImageJob] {
	start := time.Now()
	settings := req.settings()
	seed := s.seed()
	if req.Seed != nil {
		seed = *req.Seed
	}

	if s.comfyURL == "" {
		log.Printf("[IMAGE MOCK] Generating image for prompt: %s", req.Prompt)
		return observed(s, "image", start, mocked(s.mockImage(req.Prompt, seed, settings), "COMFYUI_URL not configured"))
	}

	if _, err := s.probe(ctx, s.comfyURL+"/system_stats", s.timeouts.ImageProbe); err != nil {
		log.Printf("[IMAGE] ComfyUI not available, using mock: %v", err)
		return observed(s, "image", start, fellBack(s.mockImage(req.Prompt, seed, settings), err))
	}

	checkpoint := req.Model
	if checkpoint == "" {
		checkpoint = s.checkpoint
	}
	negative := req.NegativePrompt
	if strings.TrimSpace(negative) == "" {
		negative = defaultNegativePrompt
	}

	promptID, err := s.submitImage(ctx, BuildImageGraph(req.Prompt, negative, checkpoint, seed, settings))
	if err != nil {
		log.Printf("[IMAGE] ComfyUI submission failed, using mock: %v", err)
		return observed(s, "image", start, fellBack(s.mockImage(req.Prompt, seed, settings), err))
	}

	log.Printf("[IMAGE] Submitted prompt to ComfyUI: %s", promptID)
	return observed(s, "image", start, fromUpstream(ImageJob{
		PromptID: promptID,
		Message:  "Image generation started",
		Prompt:   req.Prompt,
		Seed:     seed,
		Settings: settings,
	}, SourceComfyUI))
}

func (s *Service) mockImage(prompt string, seed int64, settings ImageSettings) ImageJob {
	return ImageJob{
		ImageURL: fmt.Sprintf("/api/generate/image/mock-%d.png", s.now().UnixMilli()),
		Message:  "ComfyUI not available, using mock response",
		Prompt:   prompt,
		Seed:     seed,
		Settings: settings,
	}
}

type comfyNode struct {
	Inputs    map[string]interface{} `json:"inputs"`
	ClassType string                 `json:"class_type"`
}

// BuildImageGraph returns the ComfyUI text-to-image workflow: checkpoint loader,
// positive and negative text encoders, empty latent, sampler, VAE decode and save.
func BuildImageGraph(prompt, negative, checkpoint string, seed int64, settings ImageSettings) map[string]comfyNode {
	return map[string]comfyNode{
		"4": {ClassType: "CheckpointLoaderSimple", Inputs: map[string]interface{}{
			"ckpt_name": checkpoint,
		}},
		"6": {ClassType: "CLIPTextEncode", Inputs: map[string]interface{}{
			"text": prompt,
			"clip": []interface{}{"4", 1},
		}},
		"7": {ClassType: "CLIPTextEncode", Inputs: map[string]interface{}{
			"text": negative,
			"clip": []interface{}{"4", 1},
		}},
		"5": {ClassType: "EmptyLatentImage", Inputs: map[string]interface{}{
			"width":      settings.Width,
			"height":     settings.Height,
			"batch_size": 1,
		}},
		"3": {ClassType: "KSampler", Inputs: map[string]interface{}{
			"seed":         seed,
			"steps":        settings.Steps,
			"cfg":          settings.CFG,
			"sampler_name": "euler",
			"scheduler":    "normal",
			"denoise":      1,
			"model":        []interface{}{"4", 0},
			"positive":     []interface{}{"6", 0},
			"negative":     []interface{}{"7", 0},
			"latent_image": []interface{}{"5", 0},
		}},
		"8": {ClassType: "VAEDecode", Inputs: map[string]interface{}{
			"samples": []interface{}{"3", 0},
			"vae":     []interface{}{"4", 2},
		}},
		"9": {ClassType: "SaveImage", Inputs: map[string]interface{}{
			"filename_prefix": "short-drama",
			"images":          []interface{}{"8", 0},
		}},
	}
}

func (s *Service) submitImage(ctx context.Context, graph map[string]comfyNode) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeouts.ImageSubmit)
	defer cancel()

	var out struct {
		PromptID string `json:"prompt_id"`
	}
	if err := s.postJSON(ctx, s.comfyURL+"/prompt", map[string]interface{}{"prompt": graph}, &out); err != nil {
		return "", err
	}
	if out.PromptID == "" {
		return "", errors.New("ComfyUI response has no prompt_id")
	}
	return out.PromptID, nil
}

// ImageStatus reports whether ComfyUI answers its stats endpoint.
func (s *Service) ImageStatus(ctx context.Context) ServiceStatus {
	if s.comfyURL == "" {
		return ServiceStatus{Status: "unavailable", Message: "ComfyUI not configured", MockMode: true}
	}
	stats, err := s.probe(ctx, s.comfyURL+"/system_stats", s.timeouts.ImageProbe)
	switch {
	case err == nil:
		return ServiceStatus{Available: true, Status: "ready", Service: "comfyui", Stats: stats}
	case errors.Is(err, errBadStatus):
		return ServiceStatus{Status: "error", Message: "ComfyUI not responding"}
	default:
		return ServiceStatus{Status: "unavailable", Message: "ComfyUI not accessible"}
	}
}

var errBadStatus = errors.New("unexpected status")

// probe GETs url and returns the body when it answers 2xx with JSON.
func (s *Service) probe(ctx context.Context, url string, timeout time.Duration) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Wrapf(errBadStatus, "%s returned %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, nil
	}
	return body, nil
}

func (s *Service) postJSON(ctx context.Context, url string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Wrapf(errBadStatus, "%s returned %d: %s", url, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return errors.Wrap(json.NewDecoder(resp.Body).Decode(out), "decode response")
}
