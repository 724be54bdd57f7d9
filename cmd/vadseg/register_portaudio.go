//go:build portaudio

package main

import (
	"time"

	"github.com/MrWong99/vadseg/internal/config"
	"github.com/MrWong99/vadseg/internal/observe"
	"github.com/MrWong99/vadseg/pkg/capture"
	"github.com/MrWong99/vadseg/pkg/capture/portaudio"
)

func init() {
	deviceLister = portaudio.Devices
	optional = append(optional, func(reg *config.Registry, m *observe.Metrics) {
		reg.RegisterCapture("portaudio", func(cfg *config.Config) (capture.Source, error) {
			src, err := portaudio.Open(portaudio.Config{
				Device:     cfg.Capture.Device,
				SampleRate: cfg.Capture.SampleRate,
				Buffer:     time.Duration(cfg.Capture.BufferMs) * time.Millisecond,
			}, portaudio.WithOverrunFunc(overrunRecorder(m)))
			if err != nil {
				return nil, err
			}
			return src, nil
		})
	})
}
