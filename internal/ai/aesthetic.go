package ai

import (
	"image"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Aesthetics holds simple visual quality measures of a frame, each in [0,1]
type Aesthetics struct {
	Colorfulness float64 `json:"colorfulness"`
	Contrast     float64 `json:"contrast"`
	Brightness   float64 `json:"brightness"`
	Score        float64 `json:"score"`
}

// ScoreAesthetics rates a frame for use as a thumbnail
func ScoreAesthetics(img image.Image) Aesthetics {
	bounds := img.Bounds()
	pixels := float64(bounds.Dx() * bounds.Dy())
	if pixels == 0 {
		return Aesthetics{}
	}

	var rSum, gSum, bSum float64
	lums := make([]float64, 0, int(pixels))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			rf, gf, bf := float64(r>>8), float64(g>>8), float64(b>>8)
			rSum += rf
			gSum += gf
			bSum += bf

			lums = append(lums, 0.299*rf+0.587*gf+0.114*bf)
		}
	}

	rMean, gMean, bMean := rSum/pixels, gSum/pixels, bSum/pixels
	// Higher RGB variance = more colorful
	variance := math.Abs(rMean-gMean) + math.Abs(gMean-bMean) + math.Abs(bMean-rMean)
	colorfulness := math.Min(1.0, variance/255.0)

	mean, stdDev := stat.PopMeanStdDev(lums, nil)
	// typical stddev 0-60
	contrast := math.Min(1.0, stdDev/60.0)

	// Prefer moderate brightness, optimal around 128
	brightness := 1.0 - math.Min(1.0, math.Abs(mean-128.0)/128.0)

	score := 0.4*colorfulness + 0.3*contrast + 0.3*brightness
	return Aesthetics{
		Colorfulness: colorfulness,
		Contrast:     contrast,
		Brightness:   brightness,
		Score:        math.Max(0, math.Min(1, score)),
	}
}
