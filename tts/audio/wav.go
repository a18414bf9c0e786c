package audio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/dgnsrekt/tonic/tts"
)

// WriteWAV encodes the store's audio as 16-bit mono PCM at sampleRate.
func (s *Store) WriteWAV(w io.WriteSeeker, sampleRate int) error {
	if s.Len() == 0 {
		return tts.ErrNothingToExport
	}
	if sampleRate <= 0 {
		return fmt.Errorf("%w: %d", tts.ErrInvalidSampleRate, sampleRate)
	}
	return EncodeWAV(w, s.Concat(sampleRate), sampleRate)
}

// ExportWAV writes the store to path. A directory path gets the default
// export filename appended.
func (s *Store) ExportWAV(path string) (string, error) {
	if path == "" {
		path = tts.ExportFilename
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, tts.ExportFilename)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}

	if err := s.WriteWAV(f, tts.SampleRate); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}

// EncodeWAV writes float samples in [-1, 1] as a 16-bit mono WAV file.
func EncodeWAV(w io.WriteSeeker, samples []float32, sampleRate int) error {
	buffer := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: tts.Channels, SampleRate: sampleRate},
		Data:           make([]int, len(samples)),
		SourceBitDepth: tts.BitDepth,
	}
	for i, v := range samples {
		buffer.Data[i] = int(FloatToInt16(v))
	}

	enc := wav.NewEncoder(w, sampleRate, tts.BitDepth, tts.Channels, 1)
	if err := enc.Write(buffer); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}

// FloatToInt16 converts a float sample to 16-bit PCM, clipping out of range
// values.
func FloatToInt16(v float32) int16 {
	switch {
	case v > 1:
		v = 1
	case v < -1:
		v = -1
	}
	return int16(v * 32767)
}
