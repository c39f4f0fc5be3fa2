package audio

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
)

const (
	// FFTSize is the STFT window length in samples
	FFTSize = 2048
	// HopLength is the STFT hop in samples
	HopLength = 512
)

// spectrogram holds per-frame power spectra, frames x (FFTSize/2+1)
type spectrogram struct {
	power      [][]float64
	sampleRate int
	nFFT       int
	hop        int
}

// stft computes a centered, zero-padded, Hann-windowed power spectrogram
func stft(samples []float32, sampleRate, nFFT, hop int) *spectrogram {
	sg := &spectrogram{sampleRate: sampleRate, nFFT: nFFT, hop: hop}
	if len(samples) == 0 {
		return sg
	}

	pad := nFFT / 2
	padded := make([]float64, len(samples)+2*pad)
	for i, s := range samples {
		padded[pad+i] = float64(s)
	}

	ones := make([]float64, nFFT)
	for i := range ones {
		ones[i] = 1
	}
	hann := window.Hann(ones)

	fft := fourier.NewFFT(nFFT)
	frames := 1 + (len(padded)-nFFT)/hop
	sg.power = make([][]float64, frames)

	seq := make([]float64, nFFT)
	coeffs := make([]complex128, nFFT/2+1)
	for t := 0; t < frames; t++ {
		offset := t * hop
		for i := 0; i < nFFT; i++ {
			seq[i] = padded[offset+i] * hann[i]
		}
		coeffs = fft.Coefficients(coeffs, seq)

		row := make([]float64, len(coeffs))
		for k, c := range coeffs {
			re, im := real(c), imag(c)
			row[k] = re*re + im*im
		}
		sg.power[t] = row
	}
	return sg
}

// frames returns the number of STFT frames
func (s *spectrogram) frames() int {
	return len(s.power)
}

// frameTime converts a frame index to seconds
func (s *spectrogram) frameTime(frame int) float64 {
	return float64(frame*s.hop) / float64(s.sampleRate)
}

// secondsToFrames converts a duration to a whole number of frames, at least 1
func (s *spectrogram) secondsToFrames(seconds float64) int {
	n := int(seconds * float64(s.sampleRate) / float64(s.hop))
	if n < 1 {
		n = 1
	}
	return n
}

// binFrequency returns the center frequency of FFT bin k
func (s *spectrogram) binFrequency(k int) float64 {
	return float64(k) * float64(s.sampleRate) / float64(s.nFFT)
}

// decibels converts the power spectrogram to dB relative to ref (power units),
// with powers clamped below at amin and values floored at max-topDB
func (s *spectrogram) decibels(ref, amin, topDB float64) [][]float64 {
	refDB := 10 * math.Log10(math.Max(amin, ref))
	peak := math.Inf(-1)

	db := make([][]float64, len(s.power))
	for t, row := range s.power {
		out := make([]float64, len(row))
		for k, p := range row {
			out[k] = 10*math.Log10(math.Max(amin, p)) - refDB
			if out[k] > peak {
				peak = out[k]
			}
		}
		db[t] = out
	}

	if topDB > 0 {
		floor := peak - topDB
		for _, row := range db {
			for k := range row {
				if row[k] < floor {
					row[k] = floor
				}
			}
		}
	}
	return db
}

// maxPower returns the largest power value in the spectrogram
func (s *spectrogram) maxPower() float64 {
	var peak float64
	for _, row := range s.power {
		if m := floats.Max(row); m > peak {
			peak = m
		}
	}
	return peak
}
