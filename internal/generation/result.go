package generation

import "time"

// Source names the branch that produced a generation result.
type Source string

const (
	SourceOllama   Source = "ollama"
	SourceOpenAI   Source = "openai"
	SourceComfyUI  Source = "comfyui"
	SourceLTXVideo Source = "ltx-video"
	// SourceMock means no upstream was configured, so none was called.
	SourceMock Source = "mock"
	// SourceFallback means the upstream was called and failed.
	SourceFallback Source = "fallback"
)

// Result carries a generated value together with where it came from. Reason
// explains a mock or fallback result and is empty for upstream ones.
type Result[T any] struct {
	Value  T
	Source Source
	Reason string
}

// Upstream reports whether the value came from a real generation backend.
func (r Result[T]) Upstream() bool {
	return r.Source != SourceMock && r.Source != SourceFallback
}

func fromUpstream[T any](v T, src Source) Result[T] {
	return Result[T]{Value: v, Source: src}
}

func mocked[T any](v T, reason string) Result[T] {
	return Result[T]{Value: v, Source: SourceMock, Reason: reason}
}

func fellBack[T any](v T, reason error) Result[T] {
	return Result[T]{Value: v, Source: SourceFallback, Reason: reason.Error()}
}

// Observer is told about every generation call and the branch it took.
type Observer interface {
	ObserveGeneration(kind string, source Source, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveGeneration(string, Source, time.Duration) {}
