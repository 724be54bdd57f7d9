//go:build cgo

package main

import (
	"github.com/MrWong99/vadseg/internal/config"
	"github.com/MrWong99/vadseg/internal/observe"
	"github.com/MrWong99/vadseg/pkg/provider/vad"
	"github.com/MrWong99/vadseg/pkg/provider/vad/webrtc"
)

func init() {
	optional = append(optional, func(reg *config.Registry, _ *observe.Metrics) {
		reg.RegisterVAD("webrtc", func(cfg *config.Config) (vad.Classifier, error) {
			c, err := webrtc.New(cfg.VADParams())
			if err != nil {
				return nil, err
			}
			return vad.NewFrameAdapter(c), nil
		})
	})
}
