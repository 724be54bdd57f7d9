package audio

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resampler converts mono float32 audio between sample rates. It keeps
// filter state across calls so consecutive chunks of one stream are joined
// without discontinuities. Create one per stream; not safe for concurrent
// use.
type Resampler struct {
	from, to int
	r        resampling.Resampler
	in       []float64
}

// NewResampler creates a resampler from srcRate to dstRate. When the rates
// are equal the resampler is a pass-through.
func NewResampler(srcRate, dstRate int) (*Resampler, error) {
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("audio: invalid resample rates %d -> %d", srcRate, dstRate)
	}
	rs := &Resampler{from: srcRate, to: dstRate}
	if srcRate == dstRate {
		return rs, nil
	}
	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(srcRate),
		OutputRate: float64(dstRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("audio: create resampler %d -> %d: %w", srcRate, dstRate, err)
	}
	rs.r = r
	return rs, nil
}

// Passthrough reports whether the source and destination rates match.
func (rs *Resampler) Passthrough() bool { return rs.r == nil }

// Process resamples samples. The output length is approximately
// len(samples) × dstRate / srcRate; the filter may hold back a few samples
// until the next call.
func (rs *Resampler) Process(samples []float32) ([]float32, error) {
	if rs.r == nil || len(samples) == 0 {
		return samples, nil
	}
	if cap(rs.in) < len(samples) {
		rs.in = make([]float64, len(samples))
	}
	in := rs.in[:len(samples)]
	for i, s := range samples {
		in[i] = float64(s)
	}
	out, err := rs.r.Process(in)
	if err != nil {
		return nil, fmt.Errorf("audio: resample %d -> %d: %w", rs.from, rs.to, err)
	}
	res := make([]float32, len(out))
	for i, v := range out {
		res[i] = float32(v)
	}
	return res, nil
}
