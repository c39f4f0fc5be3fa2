package overlays

import (
	"image"
	"image/color"
	"testing"
)

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.RGBA
		wantErr bool
	}{
		{"#00FF00", color.RGBA{G: 255, A: 255}, false},
		{"ff8000", color.RGBA{R: 255, G: 128, A: 255}, false},
		{"#11223344", color.RGBA{R: 0x11, G: 0x22, B: 0x33, A: 0x44}, false},
		{"#abc", color.RGBA{}, true},
		{"#GGGGGG", color.RGBA{}, true},
	}
	for _, tt := range tests {
		got, err := ParseHexColor(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseHexColor(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseHexColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDrawBox(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 50, 50))
	red := color.RGBA{R: 255, A: 255}
	DrawBox(img, image.Rect(10, 10, 30, 30), red, 2)

	if img.RGBAAt(10, 10) != red || img.RGBAAt(29, 29) != red || img.RGBAAt(11, 20) != red {
		t.Error("expected outline pixels to be red")
	}
	if img.RGBAAt(20, 20) != (color.RGBA{}) {
		t.Error("box interior should be untouched")
	}
	if img.RGBAAt(5, 5) != (color.RGBA{}) {
		t.Error("pixels outside the box should be untouched")
	}
}

func TestDrawBoxClipsToImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	// partly outside, must not panic
	DrawBox(img, image.Rect(-5, -5, 15, 15), color.RGBA{B: 255, A: 255}, 3)
	if img.RGBAAt(13, 10).B != 255 {
		t.Error("visible right edge should be drawn")
	}
}

func TestDrawLabel(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 60))
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	black := color.RGBA{A: 255}

	r := DrawLabel(img, image.Pt(5, 5), "happy (0.92)", white, black, 2)
	size := TextSize("happy (0.92)", 1)
	if r.Dx() != (size.X+4)*2 || r.Dy() != (size.Y+4)*2 {
		t.Errorf("label rect %v does not match scaled text size %v", r, size)
	}

	foundText := false
	for y := r.Min.Y; y < r.Max.Y && y < 60; y++ {
		for x := r.Min.X; x < r.Max.X && x < 200; x++ {
			if img.RGBAAt(x, y) == white {
				foundText = true
			}
		}
	}
	if !foundText {
		t.Error("expected text pixels inside the label")
	}
	if img.RGBAAt(5, 5) != black {
		t.Errorf("label background = %v, want black", img.RGBAAt(5, 5))
	}
}

func TestAnnotatePlacesLabelInsideAtTopEdge(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	style := DefaultStyle()
	// no room above the box
	Annotate(img, image.Rect(10, 2, 60, 60), "person", style.BoxColor, style)
	if img.RGBAAt(12, 4) == (color.RGBA{}) {
		t.Error("expected label drawn inside the box")
	}
}

func TestRegistry(t *testing.T) {
	fallback := color.RGBA{R: 1, G: 2, B: 3, A: 255}
	r := EmotionRegistry(fallback)

	if r.Get("HAPPY") != (color.RGBA{G: 255, A: 255}) {
		t.Errorf("unexpected happy color %v", r.Get("happy"))
	}
	if r.Get("confused") != fallback {
		t.Error("unknown label should use fallback")
	}
	names := r.List()
	if len(names) != 5 || names[0] != "angry" {
		t.Errorf("List() = %v", names)
	}
}
