package audio

import (
	"encoding/binary"
	"math"
)

// Quantize converts a normalised sample to a signed 16-bit value:
// clamp(round(s × 32767), -32768, 32767). Rounding is half away from zero.
// NaN quantises to silence.
func Quantize(s float32) int16 {
	if s != s {
		return 0
	}
	v := math.Round(float64(s) * 32767)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// QuantizeInto quantises every sample of src into dst, which must be at least
// len(src) long. It returns dst[:len(src)].
func QuantizeInto(dst []int, src []float32) []int {
	dst = dst[:len(src)]
	for i, s := range src {
		dst[i] = int(Quantize(s))
	}
	return dst
}

// Int16ToFloat32 normalises a signed 16-bit sample to [-1, 1).
func Int16ToFloat32(v int16) float32 {
	return float32(v) / 32768
}

// PCM16ToFloat32 decodes little-endian signed 16-bit PCM into normalised
// float32 samples. A trailing odd byte is ignored.
func PCM16ToFloat32(pcm []byte) []float32 {
	out := make([]float32, len(pcm)/2)
	for i := range out {
		out[i] = Int16ToFloat32(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	return out
}

// Float32ToPCM16 quantises samples with [Quantize] and encodes them as
// little-endian signed 16-bit PCM.
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(Quantize(s)))
	}
	return out
}

// AppendPCM16 is like [Float32ToPCM16] but appends to dst, reusing its
// capacity.
func AppendPCM16(dst []byte, samples []float32) []byte {
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(Quantize(s)))
	}
	return dst
}

// Downmix averages interleaved multi-channel samples into mono. With
// channels ≤ 1 the input is returned unchanged. Trailing samples that do not
// form a whole frame are dropped.
func Downmix(interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		return interleaved
	}
	frames := len(interleaved) / channels
	out := make([]float32, frames)
	for i := range frames {
		var sum float32
		for c := range channels {
			sum += interleaved[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}
