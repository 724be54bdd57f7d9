package segment

import "time"

// Observer receives session events. Methods are called synchronously from
// the ticking goroutine and must not block.
type Observer interface {
	// Transition is called when the state changes.
	Transition(from, to State, at time.Time)

	// Classified is called after every backend call with its latency and
	// error, and consecutive is the number of failures in a row (0 on
	// success).
	Classified(d time.Duration, err error, consecutive int)

	// Exported is called after a segment was handed to the exporter.
	Exported(seg Segment, d time.Duration, err error)

	// Discarded is called when a span shorter than the minimum was dropped.
	Discarded(samples int)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) Transition(State, State, time.Time)     {}
func (NopObserver) Classified(time.Duration, error, int)   {}
func (NopObserver) Exported(Segment, time.Duration, error) {}
func (NopObserver) Discarded(int)                          {}

// Observers fans events out to every non-nil observer in order.
func Observers(obs ...Observer) Observer {
	var list multiObserver
	for _, o := range obs {
		if o != nil {
			list = append(list, o)
		}
	}
	return list
}

type multiObserver []Observer

func (m multiObserver) Transition(from, to State, at time.Time) {
	for _, o := range m {
		o.Transition(from, to, at)
	}
}

func (m multiObserver) Classified(d time.Duration, err error, consecutive int) {
	for _, o := range m {
		o.Classified(d, err, consecutive)
	}
}

func (m multiObserver) Exported(seg Segment, d time.Duration, err error) {
	for _, o := range m {
		o.Exported(seg, d, err)
	}
}

func (m multiObserver) Discarded(samples int) {
	for _, o := range m {
		o.Discarded(samples)
	}
}
