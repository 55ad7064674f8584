// Package generation proxies text, image and video generation to external AI
// backends and falls back to canned content whenever a backend is missing or fails.
package generation

import (
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"short-drama-service/internal/config"
)

// Timeouts bounds each outbound call.
type Timeouts struct {
	Outlines    time.Duration
	Script      time.Duration
	Suggest     time.Duration
	ImageProbe  time.Duration
	ImageSubmit time.Duration
	Video       time.Duration
	VideoProbe  time.Duration
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		Outlines:    30 * time.Second,
		Script:      60 * time.Second,
		Suggest:     30 * time.Second,
		ImageProbe:  5 * time.Second,
		ImageSubmit: 30 * time.Second,
		Video:       60 * time.Second,
		VideoProbe:  5 * time.Second,
	}
}

type Options struct {
	// Text is nil when text generation runs in mock mode.
	Text TextModel

	ComfyUIURL  string
	Checkpoint  string
	LTXVideoURL string

	HTTPClient *http.Client
	Observer   Observer
	Timeouts   Timeouts
}

// Service is the generation proxy used by the HTTP handlers and the queue.
type Service struct {
	text       TextModel
	catalog    *Catalog
	http       *http.Client
	comfyURL   string
	checkpoint string
	ltxURL     string
	observer   Observer
	timeouts   Timeouts

	now  func() time.Time
	seed func() int64
}

func NewService(opts Options) (*Service, error) {
	catalog, err := LoadCatalog()
	if err != nil {
		return nil, err
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	checkpoint := opts.Checkpoint
	if checkpoint == "" {
		checkpoint = defaultCheckpoint
	}

	return &Service{
		text:       opts.Text,
		catalog:    catalog,
		http:       client,
		comfyURL:   strings.TrimRight(opts.ComfyUIURL, "/"),
		checkpoint: checkpoint,
		ltxURL:     strings.TrimRight(opts.LTXVideoURL, "/"),
		observer:   observer,
		timeouts:   withDefaults(opts.Timeouts),
		now:        time.Now,
		seed:       randomSeed,
	}, nil
}

// NewServiceFromConfig wires the backends named in cfg. With USE_MOCK_AI every
// backend runs in mock mode.
func NewServiceFromConfig(cfg *config.Config, observer Observer) (*Service, error) {
	client := &http.Client{}
	opts := Options{
		Text:       NewTextModel(cfg, client),
		Checkpoint: cfg.ComfyUICheckpoint,
		HTTPClient: client,
		Observer:   observer,
	}
	if !cfg.UseMockAI {
		opts.ComfyUIURL = cfg.ComfyUIURL
		opts.LTXVideoURL = cfg.LTXVideoURL
	}

	svc, err := NewService(opts)
	if err != nil {
		return nil, errors.Wrap(err, "create generation service")
	}
	return svc, nil
}

func withDefaults(t Timeouts) Timeouts {
	d := DefaultTimeouts()
	pick := func(v, def time.Duration) time.Duration {
		if v > 0 {
			return v
		}
		return def
	}
	return Timeouts{
		Outlines:    pick(t.Outlines, d.Outlines),
		Script:      pick(t.Script, d.Script),
		Suggest:     pick(t.Suggest, d.Suggest),
		ImageProbe:  pick(t.ImageProbe, d.ImageProbe),
		ImageSubmit: pick(t.ImageSubmit, d.ImageSubmit),
		Video:       pick(t.Video, d.Video),
		VideoProbe:  pick(t.VideoProbe, d.VideoProbe),
	}
}

// randomSeed draws uniformly from the unsigned 32-bit range.
func randomSeed() int64 {
	return rand.Int64N(1 << 32)
}

func observed[T any](s *Service, kind string, start time.Time, r Result[T]) Result[T] {
	s.observer.ObserveGeneration(kind, r.Source, time.Since(start))
	return r
}
