package segment

import (
	"github.com/MrWong99/vadseg/pkg/audio"
	"github.com/MrWong99/vadseg/pkg/provider/vad"
)

// DefaultEnergyFloor is the RMS level below which evidence is ignored.
const DefaultEnergyFloor = 0.01

// Gate confirms backend evidence with signal energy.
type Gate struct {
	// Floor is the minimum chunk RMS for evidence to count.
	Floor float64

	// PerRange additionally requires at least one evidence range whose own
	// RMS reaches Floor. This applies the floor at the granularity the
	// backend reported (per frame for frame classifiers) instead of only
	// over the whole chunk.
	PerRange bool
}

// DefaultGate returns a chunk-level gate with [DefaultEnergyFloor].
func DefaultGate() Gate {
	return Gate{Floor: DefaultEnergyFloor}
}

// Allow reports whether ev counts as speech for chunk: the backend must
// report speech and the chunk RMS must reach the floor. An empty chunk is
// never speech.
func (g Gate) Allow(chunk audio.Chunk, ev vad.Evidence) bool {
	if !ev.HasSpeech || chunk.Empty() {
		return false
	}
	if audio.RMS(chunk.Samples) < g.Floor {
		return false
	}
	if !g.PerRange {
		return true
	}
	n := chunk.Len()
	for _, r := range ev.Ranges {
		start, end := max(r.Start, 0), min(r.End, n)
		if end <= start {
			continue
		}
		if audio.RMS(chunk.Samples[start:end]) >= g.Floor {
			return true
		}
	}
	return false
}
