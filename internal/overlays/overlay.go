package overlays

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Style controls how annotations are drawn onto frames
type Style struct {
	BoxColor   color.RGBA
	BadgeColor color.RGBA
	TextColor  color.RGBA
	LabelBG    color.RGBA
	Thickness  int
	TextScale  int
}

// DefaultStyle returns green boxes and badges with white text
func DefaultStyle() Style {
	return Style{
		BoxColor:   color.RGBA{R: 0, G: 255, B: 0, A: 255},
		BadgeColor: color.RGBA{R: 0, G: 255, B: 0, A: 255},
		TextColor:  color.RGBA{R: 255, G: 255, B: 255, A: 255},
		LabelBG:    color.RGBA{R: 0, G: 0, B: 0, A: 160},
		Thickness:  2,
		TextScale:  1,
	}
}

// ParseHexColor parses "#RRGGBB" or "#RRGGBBAA"
func ParseHexColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 && len(hex) != 8 {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	if len(hex) == 6 {
		v = v<<8 | 0xff
	}
	return color.RGBA{
		R: uint8(v >> 24),
		G: uint8(v >> 16),
		B: uint8(v >> 8),
		A: uint8(v),
	}, nil
}

// DrawBox strokes the outline of r with the given thickness, clipped to img
func DrawBox(img *image.RGBA, r image.Rectangle, c color.RGBA, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	r = r.Canon()
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness), // top
		image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y), // bottom
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y), // left
		image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y), // right
	}
	for _, e := range edges {
		draw.Draw(img, e.Intersect(img.Bounds()), src, image.Point{}, draw.Over)
	}
}

// TextSize returns the pixel size of text rendered at scale
func TextSize(text string, scale int) image.Point {
	if scale < 1 {
		scale = 1
	}
	face := basicfont.Face7x13
	w := font.MeasureString(face, text).Ceil()
	h := face.Metrics().Height.Ceil()
	return image.Pt(w*scale, h*scale)
}

// DrawLabel renders text with its top-left corner at pt over a filled background
func DrawLabel(img *image.RGBA, pt image.Point, text string, fg, bg color.RGBA, scale int) image.Rectangle {
	if scale < 1 {
		scale = 1
	}
	const pad = 2
	size := TextSize(text, 1)

	// render unscaled, then blow up with nearest-neighbour
	label := image.NewRGBA(image.Rect(0, 0, size.X+2*pad, size.Y+2*pad))
	draw.Draw(label, label.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	d := &font.Drawer{
		Dst:  label,
		Src:  image.NewUniform(fg),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(pad, pad+basicfont.Face7x13.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)

	dst := image.Rect(pt.X, pt.Y, pt.X+label.Bounds().Dx()*scale, pt.Y+label.Bounds().Dy()*scale)
	clipped := dst.Intersect(img.Bounds())
	for y := clipped.Min.Y; y < clipped.Max.Y; y++ {
		for x := clipped.Min.X; x < clipped.Max.X; x++ {
			c := label.RGBAAt((x-dst.Min.X)/scale, (y-dst.Min.Y)/scale)
			blend(img, x, y, c)
		}
	}
	return dst
}

// DrawBadge draws a status badge in the top-left corner
func DrawBadge(img *image.RGBA, text string, style Style) image.Rectangle {
	return DrawLabel(img, image.Pt(10, 10), text, style.BadgeColor, style.LabelBG, style.TextScale)
}

// Annotate draws a box with a label above it, or inside when there is no room
func Annotate(img *image.RGBA, r image.Rectangle, label string, c color.RGBA, style Style) {
	DrawBox(img, r, c, style.Thickness)
	if label == "" {
		return
	}
	size := TextSize(label, style.TextScale)
	y := r.Min.Y - size.Y - 4
	if y < 0 {
		y = r.Min.Y
	}
	DrawLabel(img, image.Pt(r.Min.X, y), label, c, style.LabelBG, style.TextScale)
}

func blend(img *image.RGBA, x, y int, c color.RGBA) {
	if c.A == 0xff {
		img.SetRGBA(x, y, c)
		return
	}
	dst := img.RGBAAt(x, y)
	a := uint32(c.A)
	mix := func(s, d uint8) uint8 {
		// c is premultiplied
		return uint8(uint32(s) + uint32(d)*(255-a)/255)
	}
	img.SetRGBA(x, y, color.RGBA{
		R: mix(c.R, dst.R),
		G: mix(c.G, dst.G),
		B: mix(c.B, dst.B),
		A: uint8(a + uint32(dst.A)*(255-a)/255),
	})
}

// Registry maps labels (emotions, object classes) to annotation colors
type Registry struct {
	colors   map[string]color.RGBA
	fallback color.RGBA
}

// NewRegistry creates a registry whose unknown labels use fallback
func NewRegistry(fallback color.RGBA) *Registry {
	return &Registry{
		colors:   make(map[string]color.RGBA),
		fallback: fallback,
	}
}

// Register assigns a color to a label
func (r *Registry) Register(name string, c color.RGBA) {
	r.colors[strings.ToLower(name)] = c
}

// Get returns the color for a label
func (r *Registry) Get(name string) color.RGBA {
	if c, ok := r.colors[strings.ToLower(name)]; ok {
		return c
	}
	return r.fallback
}

// List returns all registered labels in sorted order
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.colors))
	for name := range r.colors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Emotion labels with preset colors
var (
	Happy    = "happy"
	Surprise = "surprise"
	Neutral  = "neutral"
	Sad      = "sad"
	Angry    = "angry"
)

// EmotionRegistry returns the preset emotion palette
func EmotionRegistry(fallback color.RGBA) *Registry {
	r := NewRegistry(fallback)
	r.Register(Happy, color.RGBA{R: 0, G: 255, B: 0, A: 255})
	r.Register(Surprise, color.RGBA{R: 255, G: 215, B: 0, A: 255})
	r.Register(Neutral, color.RGBA{R: 200, G: 200, B: 200, A: 255})
	r.Register(Sad, color.RGBA{R: 30, G: 144, B: 255, A: 255})
	r.Register(Angry, color.RGBA{R: 255, G: 40, B: 40, A: 255})
	return r
}
