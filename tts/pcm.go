package tts

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Float32Size is the width of one raw float32 sample.
const Float32Size = 4

// DecodeFloat32LE reads little-endian float32 samples. The input must be a
// whole number of samples.
func DecodeFloat32LE(b []byte) ([]float32, error) {
	if len(b)%Float32Size != 0 {
		return nil, fmt.Errorf("%d bytes is not a whole number of float32 samples", len(b))
	}
	out := make([]float32, len(b)/Float32Size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*Float32Size:]))
	}
	return out, nil
}

// EncodeFloat32LE writes samples as little-endian float32.
func EncodeFloat32LE(samples []float32) []byte {
	out := make([]byte, len(samples)*Float32Size)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*Float32Size:], math.Float32bits(s))
	}
	return out
}
