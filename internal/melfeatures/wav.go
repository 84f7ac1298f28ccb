package melfeatures

import (
	"fmt"
	"io"

	"github.com/go-audio/wav"
)

// LoadWAV decodes a 16-bit PCM WAV file into mono float32 samples in
// [-1, 1]; resampling is not attempted — the file must already be at
// SampleRate. The driver's real input is audio features, not raw files;
// this loader only serves the CLI demo and tests.
func LoadWAV(r io.Reader) ([]float32, error) {
	dec := wav.NewDecoder(r)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("melfeatures: decode wav: %w", err)
	}
	if buf.Format.SampleRate != SampleRate {
		return nil, fmt.Errorf("melfeatures: wav sample rate is %d, want %d", buf.Format.SampleRate, SampleRate)
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}
	frameCount := len(buf.Data) / channels
	out := make([]float32, frameCount)
	maxVal := float32(int(1) << uint(buf.SourceBitDepth-1))
	if maxVal == 0 {
		maxVal = 32768
	}

	for i := 0; i < frameCount; i++ {
		var sum int
		for c := 0; c < channels; c++ {
			sum += buf.Data[i*channels+c]
		}
		out[i] = float32(sum) / float32(channels) / maxVal
	}
	return out, nil
}
