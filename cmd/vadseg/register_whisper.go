//go:build whisper

package main

import (
	"github.com/MrWong99/vadseg/internal/config"
	"github.com/MrWong99/vadseg/internal/observe"
	"github.com/MrWong99/vadseg/pkg/export/transcribe"
	"github.com/MrWong99/vadseg/pkg/segment"
)

func init() {
	nativeEngine = func(modelPath, language string) (transcribeCloser, error) {
		n, err := transcribe.NewNative(modelPath, language)
		if err != nil {
			return nil, err
		}
		return n, nil
	}
	optional = append(optional, func(reg *config.Registry, _ *observe.Metrics) {
		reg.RegisterExporter("whisper", func(cfg *config.Config) (segment.Exporter, error) {
			tc := cfg.Export.Transcribe
			native, err := transcribe.NewNative(tc.ModelPath, tc.Language)
			if err != nil {
				return nil, err
			}
			e, err := transcribe.New(native, nil)
			if err != nil {
				_ = native.Close()
				return nil, err
			}
			return closingExporter{Exporter: e, closer: native}, nil
		})
	})
}
