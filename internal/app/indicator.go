package app

import (
	"log/slog"
	"time"

	"github.com/MrWong99/vadseg/pkg/segment"
)

// indicator logs when speech starts and ends.
type indicator struct {
	segment.NopObserver
	since time.Time
}

func newIndicator() *indicator { return &indicator{} }

func (i *indicator) Transition(from, to segment.State, at time.Time) {
	switch to {
	case segment.Speaking:
		i.since = at
		slog.Info("speaking")
	case segment.Idle:
		if from == segment.Speaking {
			slog.Info("idle", "spoke_for", at.Sub(i.since))
		}
	}
}
