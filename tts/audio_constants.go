package tts

import "time"

// Audio format constants shared by the device, the store and export.
const (
	// SampleRate is the rate audio is exported and played at, in Hz.
	SampleRate = 44100
	// Channels is the number of audio channels (1 = mono)
	Channels = 1
	// BitDepth is the bit depth of exported samples.
	BitDepth = 16
	// BytesPerSample is the number of bytes per sample
	BytesPerSample = BitDepth / 8

	// ExportFilename is the default name of the exported recording.
	ExportFilename = "audio.wav"

	// MaxVolume is the highest output gain. Mixed samples that leave
	// [-1, 1] are clipped.
	MaxVolume = 2.0
)

// Pipeline constants.
const (
	// MinChars is the length at which the segmenter flushes its buffer.
	MinChars = 100
	// MaxChars is the hard per-segment character cap.
	MaxChars = 1000

	// MinQuality and MaxQuality bound the synthesizer's refinement steps.
	MinQuality     = 1
	MaxQuality     = 50
	DefaultQuality = 5

	// MinTextLength is the shortest input accepted for generation.
	MinTextLength = 10

	// SegmentGap is the silence appended after every segment but the last.
	SegmentGap = 500 * time.Millisecond

	// StartupLead delays the first scheduled chunk after a run starts.
	StartupLead = 100 * time.Millisecond

	// RefreshInterval is the playback position polling cadence.
	RefreshInterval = 50 * time.Millisecond
)

// GapSamples returns the number of silence samples inserted between segments
// at the given rate, rounded to the nearest sample.
func GapSamples(sampleRate int) int {
	return int(SegmentGap.Seconds()*float64(sampleRate) + 0.5)
}
