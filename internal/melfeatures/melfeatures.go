// Package melfeatures computes the log-mel spectrogram features a Whisper
// encoder expects from 16kHz mono PCM audio. Feature extraction is a
// separate, external concern from the driver itself; this package is the
// surrounding CLI's way of getting audio into the driver's input shape,
// using Whisper's own constants (80 mel bins, 400-point FFT, 160-sample
// hop).
package melfeatures

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// SampleRate is the sample rate Whisper's feature extractor assumes.
	SampleRate = 16000
	// NMels is the number of mel filterbank channels Whisper's encoder expects.
	NMels = 80
	// NFFT is the FFT size (25ms at 16kHz).
	NFFT = 400
	// HopLength is the frame stride (10ms at 16kHz).
	HopLength = 160
	// MaxFrames is the fixed frame count Whisper pads/truncates each 30s
	// chunk to before encoding.
	MaxFrames = 3000
)

// Extractor computes Whisper-shaped log-mel features from PCM samples: a
// Hann-window + FFT + triangular-mel-filterbank pipeline, with centered
// frames (librosa's default, which Whisper's reference preprocessor also
// uses).
type Extractor struct {
	melFilters [][]float64
	window     []float64
	fft        *fourier.FFT
}

// NewExtractor builds an Extractor for Whisper's fixed feature geometry.
func NewExtractor() *Extractor {
	return &Extractor{
		melFilters: melFilterbank(NFFT, NMels, SampleRate),
		window:     hannWindow(NFFT),
		fft:        fourier.NewFFT(NFFT),
	}
}

// Compute returns the log-mel spectrogram as [frames][NMels], one row per
// 10ms hop, centered per-frame the way librosa (and Whisper's own
// preprocessor) windows audio.
func (e *Extractor) Compute(samples []float32) [][]float32 {
	numFrames := len(samples)/HopLength + 1
	out := make([][]float32, numFrames)

	frameData := make([]float64, NFFT)
	for frame := 0; frame < numFrames; frame++ {
		frameStart := frame*HopLength - NFFT/2
		for i := range frameData {
			frameData[i] = 0
		}
		for i := 0; i < NFFT; i++ {
			idx := frameStart + i
			if idx >= 0 && idx < len(samples) {
				frameData[i] = float64(samples[idx]) * e.window[i]
			}
		}

		coeffs := e.fft.Coefficients(nil, frameData)
		powerSpec := make([]float64, NFFT/2+1)
		for i := range powerSpec {
			re, im := real(coeffs[i]), imag(coeffs[i])
			powerSpec[i] = re*re + im*im
		}

		row := make([]float32, NMels)
		for m := 0; m < NMels; m++ {
			var sum float64
			for k, p := range powerSpec {
				sum += p * e.melFilters[m][k]
			}
			if sum < 1e-9 {
				sum = 1e-9
			}
			row[m] = float32(math.Log(sum))
		}
		out[frame] = row
	}
	return out
}

// PadOrTrim fits frames to exactly MaxFrames rows, zero-padding short clips
// and truncating long ones, mirroring Whisper's fixed 30-second chunking.
func PadOrTrim(frames [][]float32) [][]float32 {
	out := make([][]float32, MaxFrames)
	for i := 0; i < MaxFrames; i++ {
		if i < len(frames) {
			out[i] = frames[i]
		} else {
			out[i] = make([]float32, NMels)
		}
	}
	return out
}

// Flatten lays [MaxFrames][NMels] out as a single row-major []float32 of
// shape [NMels, MaxFrames], the channels-first axis order Whisper's
// encoder ONNX graph expects.
func Flatten(frames [][]float32) []float32 {
	out := make([]float32, NMels*len(frames))
	for t, row := range frames {
		for m, v := range row {
			out[m*len(frames)+t] = v
		}
	}
	return out
}

func melFilterbank(nFFT, nMels, sampleRate int) [][]float64 {
	hzToMel := func(hz float64) float64 { return 2595.0 * math.Log10(1.0+hz/700.0) }
	melToHz := func(mel float64) float64 { return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0) }

	numBins := nFFT/2 + 1
	fMax := float64(sampleRate) / 2.0

	allFreqs := make([]float64, numBins)
	for i := range allFreqs {
		allFreqs[i] = float64(i) * fMax / float64(numBins-1)
	}

	mMin, mMax := hzToMel(0), hzToMel(fMax)
	fPts := make([]float64, nMels+2)
	for i := range fPts {
		fPts[i] = melToHz(mMin + float64(i)*(mMax-mMin)/float64(nMels+1))
	}
	fDiff := make([]float64, nMels+1)
	for i := range fDiff {
		fDiff[i] = fPts[i+1] - fPts[i]
	}

	filters := make([][]float64, nMels)
	for m := range filters {
		filters[m] = make([]float64, numBins)
		for k, freq := range allFreqs {
			lower := (freq - fPts[m]) / fDiff[m]
			upper := (fPts[m+2] - freq) / fDiff[m+1]
			val := math.Min(lower, upper)
			if val < 0 {
				val = 0
			}
			filters[m][k] = val
		}
	}
	return filters
}

func hannWindow(size int) []float64 {
	window := make([]float64, size)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
	}
	return window
}
