//go:build cgo

package main

import (
	"github.com/MrWong99/vadseg/internal/config"
	"github.com/MrWong99/vadseg/internal/observe"
	"github.com/MrWong99/vadseg/pkg/provider/vad"
	"github.com/MrWong99/vadseg/pkg/provider/vad/silero"
)

func init() {
	optional = append(optional, func(reg *config.Registry, _ *observe.Metrics) {
		reg.RegisterVAD("silero", func(cfg *config.Config) (vad.Classifier, error) {
			d, err := silero.New(cfg.VADParams())
			if err != nil {
				return nil, err
			}
			return vad.NewRangeAdapter(d), nil
		})
	})
}
