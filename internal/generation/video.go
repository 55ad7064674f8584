package generation

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/pkg/errors"
)

const (
	defaultVideoDuration = 5
	defaultVideoFPS      = 24
	defaultVideoModel    = "ltx-video-0.9.5"
)

// VideoRequest builds a clip from one or more image frames.
type VideoRequest struct {
	Prompt   string   `json:"prompt"`
	Images   []string `json:"images"`
	Duration int      `json:"duration"`
	FPS      int      `json:"fps"`
	Width    int      `json:"width"`
	Height   int      `json:"height"`
	Model    string   `json:"model"`
}

type VideoSettings struct {
	Duration   int    `json:"duration"`
	FPS        int    `json:"fps"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	FrameCount int    `json:"frameCount"`
	Model      string `json:"model"`
}

type VideoJob struct {
	VideoID       string        `json:"videoId"`
	Message       string        `json:"message"`
	EstimatedTime int           `json:"estimatedTime,omitempty"`
	Settings      VideoSettings `json:"settings"`
	Note          string        `json:"note,omitempty"`
}

func (r VideoRequest) settings() VideoSettings {
	s := VideoSettings{
		Duration:   r.Duration,
		FPS:        r.FPS,
		Width:      r.Width,
		Height:     r.Height,
		FrameCount: len(r.Images),
		Model:      r.Model,
	}
	if s.Duration <= 0 {
		s.Duration = defaultVideoDuration
	}
	if s.FPS <= 0 {
		s.FPS = defaultVideoFPS
	}
	if s.Width <= 0 {
		s.Width = defaultImageWidth
	}
	if s.Height <= 0 {
		s.Height = defaultImageHeight
	}
	if s.Model == "" {
		s.Model = defaultVideoModel
	}
	return s
}

// Video submits a job to LTX-Video, or returns a mock job when the service is
// not configured or fails.
func (s *Service) Video(ctx context.Context, req VideoRequest) Result[VideoJob] {
	start := time.Now()
	settings := req.settings()

	if s.ltxURL == "" {
		log.Printf("[VIDEO MOCK] Generating video from %d images", len(req.Images))
		return observed(s, "video", start, mocked(s.mockVideo(settings), "LTX_VIDEO_URL not configured"))
	}

	videoID, err := s.submitVideo(ctx, req, settings)
	if err != nil {
		log.Printf("[VIDEO] LTX-Video API error, falling back to mock: %v", err)
		return observed(s, "video", start, fellBack(s.mockVideo(settings), err))
	}
	return observed(s, "video", start, fromUpstream(VideoJob{
		VideoID:  videoID,
		Message:  "Video generation started",
		Settings: settings,
	}, SourceLTXVideo))
}

func (s *Service) submitVideo(ctx context.Context, req VideoRequest, settings VideoSettings) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeouts.Video)
	defer cancel()

	body := map[string]interface{}{
		"prompt":   req.Prompt,
		"images":   req.Images,
		"duration": settings.Duration,
		"fps":      settings.FPS,
		"width":    settings.Width,
		"height":   settings.Height,
		"model":    req.Model,
	}
	var out struct {
		VideoID string `json:"video_id"`
	}
	if err := s.postJSON(ctx, s.ltxURL+"/generate", body, &out); err != nil {
		return "", err
	}
	if out.VideoID == "" {
		return "", errors.New("LTX-Video response has no video_id")
	}
	return out.VideoID, nil
}

func (s *Service) mockVideo(settings VideoSettings) VideoJob {
	return VideoJob{
		VideoID:       fmt.Sprintf("video_%d", s.now().UnixMilli()),
		Message:       "Video generation started (mock mode)",
		EstimatedTime: settings.Duration * 2,
		Settings:      settings,
		Note:          "LTX-Video not available. Install and configure LTX_VIDEO_URL for real generation.",
	}
}

// VideoStatus reports whether LTX-Video answers its health endpoint.
func (s *Service) VideoStatus(ctx context.Context) ServiceStatus {
	if s.ltxURL == "" {
		return ServiceStatus{
			Status:   "unavailable",
			Message:  "LTX-Video not configured",
			MockMode: true,
			Configuration: map[string]string{
				"required": "LTX_VIDEO_URL environment variable",
				"optional": "COMFYUI_URL for image generation",
			},
		}
	}
	stats, err := s.probe(ctx, s.ltxURL+"/health", s.timeouts.VideoProbe)
	switch {
	case err == nil:
		return ServiceStatus{Available: true, Status: "ready", Service: "ltx-video", Stats: stats}
	case errors.Is(err, errBadStatus):
		return ServiceStatus{Status: "error", Message: "LTX-Video not responding correctly"}
	default:
		return ServiceStatus{Status: "unavailable", Message: "LTX-Video not accessible"}
	}
}
