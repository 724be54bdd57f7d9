package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/MrWong99/vadseg/pkg/capture"
	"github.com/MrWong99/vadseg/pkg/provider/vad"
	"github.com/MrWong99/vadseg/pkg/segment"
)

// ErrNotRegistered is returned by Create* methods when no factory has been
// registered under the requested name.
var ErrNotRegistered = errors.New("config: backend not registered")

// VADFactory builds a classifier from the configuration.
type VADFactory func(cfg *Config) (vad.Classifier, error)

// CaptureFactory builds an audio source from the configuration.
type CaptureFactory func(cfg *Config) (capture.Source, error)

// ExportFactory builds a segment exporter from the configuration.
type ExportFactory func(cfg *Config) (segment.Exporter, error)

// Registry maps backend names to their constructor functions. It is safe
// for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	vad     map[string]VADFactory
	capture map[string]CaptureFactory
	export  map[string]ExportFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		vad:     make(map[string]VADFactory),
		capture: make(map[string]CaptureFactory),
		export:  make(map[string]ExportFactory),
	}
}

// RegisterVAD registers a VAD backend factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterVAD(name string, factory VADFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vad[name] = factory
}

// RegisterCapture registers a capture source factory under name.
func (r *Registry) RegisterCapture(name string, factory CaptureFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capture[name] = factory
}

// RegisterExporter registers an exporter factory under name.
func (r *Registry) RegisterExporter(name string, factory ExportFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.export[name] = factory
}

// CreateVAD instantiates the classifier registered under cfg.VAD.Backend.
// Returns [ErrNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateVAD(cfg *Config) (vad.Classifier, error) {
	r.mu.RLock()
	factory, ok := r.vad[cfg.VAD.Backend]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: vad/%q", ErrNotRegistered, cfg.VAD.Backend)
	}
	return factory(cfg)
}

// CreateCapture instantiates the source registered under cfg.Capture.Backend.
func (r *Registry) CreateCapture(cfg *Config) (capture.Source, error) {
	r.mu.RLock()
	factory, ok := r.capture[cfg.Capture.Backend]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: capture/%q", ErrNotRegistered, cfg.Capture.Backend)
	}
	return factory(cfg)
}

// CreateExporter instantiates the exporter registered under name.
func (r *Registry) CreateExporter(name string, cfg *Config) (segment.Exporter, error) {
	r.mu.RLock()
	factory, ok := r.export[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: export/%q", ErrNotRegistered, name)
	}
	return factory(cfg)
}

// Names returns the sorted registered names for kind ("vad", "capture" or
// "export").
func (r *Registry) Names(kind string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch kind {
	case "vad":
		return slices.Sorted(maps.Keys(r.vad))
	case "capture":
		return slices.Sorted(maps.Keys(r.capture))
	case "export":
		return slices.Sorted(maps.Keys(r.export))
	}
	return nil
}
