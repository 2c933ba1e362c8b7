package audio

import (
	"encoding/binary"
	"math"
)

func float64ToInt16(sample float64) int16 {
	if sample > 1.0 {
		return math.MaxInt16
	}
	if sample < -1.0 {
		return math.MinInt16
	}
	return int16(math.Round(sample * math.MaxInt16))
}

// Float64SliceToPCM16 converts normalized [-1, 1] samples to little-endian
// 16-bit PCM bytes, clamping out-of-range values.
func Float64SliceToPCM16(samples []float64) []byte {
	if len(samples) == 0 {
		return nil
	}
	pcm := make([]byte, len(samples)*2)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(float64ToInt16(sample)))
	}
	return pcm
}

// Int16SliceToBytes converts int16 samples to little-endian bytes.
func Int16SliceToBytes(samples []int16) []byte {
	if len(samples) == 0 {
		return nil
	}
	out := make([]byte, len(samples)*2)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(sample))
	}
	return out
}
