package audio

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	// dB conversion parameters
	aminPower = 1e-10
	topDB     = 80.0

	// peak picking windows, in seconds
	peakWindow = 0.1
	peakWait   = 0.1
)

// onsetStrength returns the spectral-flux onset envelope normalised to [0,1].
// Frame t holds the mean positive log-power increase over frame t-1.
func onsetStrength(sg *spectrogram) []float64 {
	n := sg.frames()
	env := make([]float64, n)
	if n < 2 {
		return env
	}

	db := sg.decibels(1.0, aminPower, topDB)
	for t := 1; t < n; t++ {
		var flux float64
		for k := range db[t] {
			if d := db[t][k] - db[t-1][k]; d > 0 {
				flux += d
			}
		}
		env[t] = flux / float64(len(db[t]))
	}

	lo, hi := floats.Min(env), floats.Max(env)
	if hi-lo <= 0 {
		for i := range env {
			env[i] = 0
		}
		return env
	}
	for i := range env {
		env[i] = (env[i] - lo) / (hi - lo)
	}
	return env
}

// pickPeaks returns the frames of env that are a local maximum over
// [n-preMax, n+postMax) and exceed the local mean over [n-preAvg, n+postAvg)
// by delta, at least wait frames after the previous peak.
func pickPeaks(env []float64, preMax, postMax, preAvg, postAvg int, delta float64, wait int) []int {
	var peaks []int
	last := -wait - 1

	for n := range env {
		maxLo, maxHi := clampRange(n-preMax, n+postMax, len(env))
		if env[n] != floats.Max(env[maxLo:maxHi]) {
			continue
		}

		avgLo, avgHi := clampRange(n-preAvg, n+postAvg, len(env))
		if env[n] < stat.Mean(env[avgLo:avgHi], nil)+delta {
			continue
		}

		if n-last > wait {
			peaks = append(peaks, n)
			last = n
		}
	}
	return peaks
}

func clampRange(lo, hi, n int) (int, int) {
	if lo < 0 {
		lo = 0
	}
	if hi > n {
		hi = n
	}
	return lo, hi
}

// DetectOnsets returns onset times in seconds. threshold is the amount by
// which a peak must exceed its local mean in the normalised envelope.
func DetectOnsets(samples []float32, sampleRate int, threshold float64) []float64 {
	if len(samples) == 0 || sampleRate <= 0 {
		return nil
	}

	sg := stft(samples, sampleRate, FFTSize, HopLength)
	env := onsetStrength(sg)

	w := sg.secondsToFrames(peakWindow)
	peaks := pickPeaks(env, w, w+1, w, w+1, threshold, sg.secondsToFrames(peakWait))

	onsets := make([]float64, len(peaks))
	for i, frame := range peaks {
		onsets[i] = sg.frameTime(frame)
	}
	return onsets
}
