package vad

import "math"

// RangeParams configures [SpeechTimestamps].
type RangeParams struct {
	// SampleRate of the original audio. 8000, 16000 and multiples of 16000
	// are supported; multiples of 16000 are decimated to 16000.
	SampleRate int

	// Threshold is the probability at or above which a window is speech.
	Threshold float64

	// NegThreshold is the probability below which an active range starts to
	// close. A negative value selects max(Threshold-0.15, 0.01).
	NegThreshold float64

	// MinSpeechMs drops ranges that are not longer than this.
	MinSpeechMs int

	// MaxSpeechS force-splits ranges longer than this. Zero or negative
	// disables splitting.
	MaxSpeechS float64

	// MinSilenceMs is how long probabilities must stay below NegThreshold
	// before a range is closed.
	MinSilenceMs int

	// PadMs widens each range on both sides.
	PadMs int
}

// RangeParamsFrom extracts the range parameters from cfg.
func RangeParamsFrom(cfg Config) RangeParams {
	return RangeParams{
		SampleRate:   cfg.SampleRate,
		Threshold:    cfg.Threshold,
		NegThreshold: cfg.NegThreshold,
		MinSpeechMs:  cfg.MinSpeechMs,
		MaxSpeechS:   cfg.MaxSpeechS,
		MinSilenceMs: cfg.MinSilenceMs,
		PadMs:        cfg.PadMs,
	}
}

// EffectiveNegThreshold resolves the negative threshold: the configured value
// when it is ≥ 0, otherwise max(Threshold-0.15, 0.01).
func (p RangeParams) EffectiveNegThreshold() float64 {
	if p.NegThreshold >= 0 {
		return p.NegThreshold
	}
	return math.Max(p.Threshold-0.15, 0.01)
}

// Windowing returns the model window size in samples, the decimation step
// applied to the input and the sample rate the model runs at.
func Windowing(sampleRate int) (window, step, modelRate int) {
	step = 1
	modelRate = sampleRate
	if sampleRate > 16000 && sampleRate%16000 == 0 {
		step = sampleRate / 16000
		modelRate = 16000
	}
	window = 256
	if modelRate == 16000 {
		window = 512
	}
	return window, step, modelRate
}

// SpeechTimestamps turns per-window speech probabilities into speech ranges.
// probs[i] is the probability of window i of the (decimated) model input;
// length is the number of samples of the original audio. Returned ranges are
// in original-rate sample offsets and never exceed length.
func SpeechTimestamps(probs []float32, length int, p RangeParams) []Range {
	window, step, sr := Windowing(p.SampleRate)
	modelLen := length / step

	threshold := float32(p.Threshold)
	neg := float32(p.EffectiveNegThreshold())
	minSpeech := sr * p.MinSpeechMs / 1000
	minSilence := sr * p.MinSilenceMs / 1000
	minSilenceAtMax := sr * 98 / 1000
	pad := sr * p.PadMs / 1000
	maxSpeech := math.Inf(1)
	if p.MaxSpeechS > 0 {
		maxSpeech = float64(sr)*p.MaxSpeechS - float64(window) - float64(2*pad)
	}

	var (
		speeches  []Range
		current   Range
		triggered bool
		tempEnd   int
		prevEnd   int
		nextStart int
	)
	resetMarks := func() { prevEnd, nextStart, tempEnd = 0, 0, 0 }

	for i, prob := range probs {
		pos := i * window

		if prob >= threshold && tempEnd > 0 {
			tempEnd = 0
			if nextStart < prevEnd {
				nextStart = pos
			}
		}

		if prob >= threshold && !triggered {
			triggered = true
			current = Range{Start: pos}
			continue
		}

		if triggered && float64(pos-current.Start) > maxSpeech {
			if prevEnd > 0 {
				current.End = prevEnd
				speeches = append(speeches, current)
				if nextStart < prevEnd {
					triggered = false
				} else {
					current = Range{Start: nextStart}
				}
				resetMarks()
			} else {
				current.End = pos
				speeches = append(speeches, current)
				triggered = false
				resetMarks()
				continue
			}
		}

		if prob < neg && triggered {
			if tempEnd == 0 {
				tempEnd = pos
			}
			if pos-tempEnd > minSilenceAtMax {
				prevEnd = tempEnd
			}
			if pos-tempEnd < minSilence {
				continue
			}
			current.End = tempEnd
			if current.End-current.Start > minSpeech {
				speeches = append(speeches, current)
			}
			triggered = false
			resetMarks()
		}
	}

	if triggered && modelLen-current.Start > minSpeech {
		current.End = modelLen
		speeches = append(speeches, current)
	}

	for i := range speeches {
		if i == 0 {
			speeches[i].Start = max(0, speeches[i].Start-pad)
		}
		if i < len(speeches)-1 {
			silence := speeches[i+1].Start - speeches[i].End
			if silence < 2*pad {
				speeches[i].End += silence / 2
				speeches[i+1].Start = max(0, speeches[i+1].Start-silence/2)
			} else {
				speeches[i].End = min(modelLen, speeches[i].End+pad)
				speeches[i+1].Start = max(0, speeches[i+1].Start-pad)
			}
		} else {
			speeches[i].End = min(modelLen, speeches[i].End+pad)
		}
	}

	if step > 1 {
		for i := range speeches {
			speeches[i].Start *= step
			speeches[i].End = min(speeches[i].End*step, length)
		}
	}
	return speeches
}
