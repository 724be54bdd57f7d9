package resilience

import (
	"context"

	"github.com/MrWong99/vadseg/pkg/export/transcribe"
)

// EngineFallback is a [transcribe.Engine] that tries several engines in order,
// each behind its own circuit breaker.
type EngineFallback struct {
	group *FallbackGroup[transcribe.Engine]
}

var _ transcribe.Engine = (*EngineFallback)(nil)

// NewEngineFallback creates an [EngineFallback] with primary as the
// preferred engine.
func NewEngineFallback(primary transcribe.Engine, primaryName string, cfg FallbackConfig) *EngineFallback {
	return &EngineFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an engine tried after the ones already added.
func (f *EngineFallback) AddFallback(name string, e transcribe.Engine) {
	f.group.AddFallback(name, e)
}

// Engines returns the engine names in the order they are tried.
func (f *EngineFallback) Engines() []string { return f.group.Names() }

// Active returns the engine that transcribed the last segment.
func (f *EngineFallback) Active() string { return f.group.Served() }

// Transcribe runs samples through the first healthy engine. It gives up
// when ctx, the segment's export deadline, ends.
func (f *EngineFallback) Transcribe(ctx context.Context, samples []float32) (string, error) {
	return ExecuteWithResult(ctx, f.group, func(ctx context.Context, e transcribe.Engine) (string, error) {
		return e.Transcribe(ctx, samples)
	})
}
