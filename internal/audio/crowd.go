package audio

import (
	"gonum.org/v1/gonum/stat"
)

// frequency bands in Hz
var (
	lowBand  = [2]float64{20, 200}
	midBand  = [2]float64{200, 2000}
	highBand = [2]float64{2000, 20000}
)

// emptyBandDB is reported for a band with no FFT bins, the dB floor
const emptyBandDB = -topDB

// CrowdOptions configures crowd reaction analysis
type CrowdOptions struct {
	WindowSize      float64 // seconds
	MidThresholdDB  float64
	HighThresholdDB float64
}

// DefaultCrowdOptions returns the standard thresholds: mid above -30 dB or
// high above -40 dB, in one-second windows
func DefaultCrowdOptions() CrowdOptions {
	return CrowdOptions{
		WindowSize:      1.0,
		MidThresholdDB:  -30,
		HighThresholdDB: -40,
	}
}

// AnalyzeCrowdReaction returns windows of windowSize seconds whose band
// energies suggest crowd noise, using the default thresholds
func AnalyzeCrowdReaction(samples []float32, sampleRate int, windowSize float64) []CrowdWindow {
	opts := DefaultCrowdOptions()
	opts.WindowSize = windowSize
	return AnalyzeCrowdReactionWith(samples, sampleRate, opts)
}

// AnalyzeCrowdReactionWith is AnalyzeCrowdReaction with explicit thresholds
func AnalyzeCrowdReactionWith(samples []float32, sampleRate int, opts CrowdOptions) []CrowdWindow {
	if len(samples) == 0 || sampleRate <= 0 || opts.WindowSize <= 0 {
		return nil
	}

	sg := stft(samples, sampleRate, FFTSize, HopLength)
	n := sg.frames()
	// magnitude dB relative to the loudest bin
	db := sg.decibels(sg.maxPower(), aminPower, topDB)

	low := bandBins(sg, lowBand)
	mid := bandBins(sg, midBand)
	high := bandBins(sg, highBand)

	windowFrames := int(opts.WindowSize * float64(sampleRate) / float64(sg.hop))
	if windowFrames < 1 {
		windowFrames = 1
	}

	var windows []CrowdWindow
	for i := 0; i+windowFrames < n; i += windowFrames {
		frames := db[i : i+windowFrames]
		w := CrowdWindow{
			Interval: Interval{Start: sg.frameTime(i), End: sg.frameTime(i + windowFrames)},
			LowDB:    bandMean(frames, low),
			MidDB:    bandMean(frames, mid),
			HighDB:   bandMean(frames, high),
		}
		if w.MidDB > opts.MidThresholdDB || w.HighDB > opts.HighThresholdDB {
			windows = append(windows, w)
		}
	}
	return windows
}

// bandBins returns the FFT bin range [lo, hi) whose frequencies fall in band
func bandBins(sg *spectrogram, band [2]float64) [2]int {
	bins := sg.nFFT/2 + 1
	lo, hi := bins, bins
	for k := 0; k < bins; k++ {
		f := sg.binFrequency(k)
		if f >= band[0] && lo == bins {
			lo = k
		}
		if f > band[1] {
			hi = k
			break
		}
	}
	if hi < lo {
		hi = lo
	}
	return [2]int{lo, hi}
}

// bandMean averages dB values over all frames and the bins in r
func bandMean(frames [][]float64, r [2]int) float64 {
	if r[1] <= r[0] {
		return emptyBandDB
	}
	values := make([]float64, 0, len(frames)*(r[1]-r[0]))
	for _, row := range frames {
		values = append(values, row[r[0]:r[1]]...)
	}
	return stat.Mean(values, nil)
}
