package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"
)

// FilterBuilder helps construct complex ffmpeg filter chains
type FilterBuilder struct {
	filters []string
}

// NewFilterBuilder creates a new filter builder
func NewFilterBuilder() *FilterBuilder {
	return &FilterBuilder{
		filters: make([]string, 0),
	}
}

// Scale adds a scale filter
func (fb *FilterBuilder) Scale(width, height int) *FilterBuilder {
	if width <= 0 || height <= 0 {
		// Return self without adding filter - allows chaining to continue
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("scale=%d:%d", width, height))
	return fb
}

// Fit scales into width x height keeping aspect ratio and pads the rest
func (fb *FilterBuilder) Fit(width, height int) *FilterBuilder {
	if width <= 0 || height <= 0 {
		return fb
	}
	fb.filters = append(fb.filters,
		fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", width, height),
		fmt.Sprintf("pad=%d:%d:(ow-iw)/2:(oh-ih)/2", width, height),
		"setsar=1",
	)
	return fb
}

// FPS adds an fps filter
func (fb *FilterBuilder) FPS(fps float64) *FilterBuilder {
	if fps <= 0 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("fps=%f", fps))
	return fb
}

// Format adds a pixel or sample format filter
func (fb *FilterBuilder) Format(pixFmt string) *FilterBuilder {
	if pixFmt == "" {
		return fb
	}
	fb.filters = append(fb.filters, "format="+pixFmt)
	return fb
}

// Trim keeps the first duration seconds of a video stream
func (fb *FilterBuilder) Trim(duration float64) *FilterBuilder {
	fb.filters = append(fb.filters, "trim=duration="+formatSeconds(duration))
	return fb
}

// ATrim keeps the first duration seconds of an audio stream
func (fb *FilterBuilder) ATrim(duration float64) *FilterBuilder {
	fb.filters = append(fb.filters, "atrim=duration="+formatSeconds(duration))
	return fb
}

// SetPTS rewrites video timestamps
func (fb *FilterBuilder) SetPTS(expr string) *FilterBuilder {
	fb.filters = append(fb.filters, "setpts="+expr)
	return fb
}

// ASetPTS rewrites audio timestamps
func (fb *FilterBuilder) ASetPTS(expr string) *FilterBuilder {
	fb.filters = append(fb.filters, "asetpts="+expr)
	return fb
}

// AudioVolume scales audio volume by a linear factor
func (fb *FilterBuilder) AudioVolume(factor float64) *FilterBuilder {
	fb.filters = append(fb.filters, "volume="+strconv.FormatFloat(factor, 'f', -1, 64))
	return fb
}

// DrawText adds a drawtext filter
func (fb *FilterBuilder) DrawText(opts DrawTextOptions) *FilterBuilder {
	fb.filters = append(fb.filters, opts.String())
	return fb
}

// Custom adds a custom filter string
func (fb *FilterBuilder) Custom(filter string) *FilterBuilder {
	if filter == "" {
		return fb
	}
	fb.filters = append(fb.filters, filter)
	return fb
}

// Build returns the complete filter string joined with commas
func (fb *FilterBuilder) Build() string {
	if len(fb.filters) == 0 {
		return ""
	}
	return strings.Join(fb.filters, ",")
}

// FilterGraph assembles labeled chains for -filter_complex
type FilterGraph struct {
	chains []string
}

// NewFilterGraph creates an empty graph
func NewFilterGraph() *FilterGraph {
	return &FilterGraph{}
}

// Chain appends "[in...]filters[out...]"
func (g *FilterGraph) Chain(inputs []string, filters string, outputs ...string) *FilterGraph {
	var sb strings.Builder
	for _, in := range inputs {
		sb.WriteString("[" + in + "]")
	}
	sb.WriteString(filters)
	for _, out := range outputs {
		sb.WriteString("[" + out + "]")
	}
	g.chains = append(g.chains, sb.String())
	return g
}

// Len returns the number of chains
func (g *FilterGraph) Len() int {
	return len(g.chains)
}

// String joins the chains with semicolons
func (g *FilterGraph) String() string {
	return strings.Join(g.chains, ";")
}

// DrawTextOptions configures a drawtext filter
type DrawTextOptions struct {
	Text      string
	FontFile  string
	FontSize  int
	FontColor string
	X         string
	Y         string
	Box       bool
	BoxColor  string
	Enable    string
}

// String renders the drawtext filter
func (o DrawTextOptions) String() string {
	parts := []string{fmt.Sprintf("drawtext=text='%s'", EscapeText(o.Text))}

	if o.FontFile != "" {
		parts = append(parts, fmt.Sprintf("fontfile='%s'", escapeSubtitlePath(o.FontFile)))
	}
	size := o.FontSize
	if size <= 0 {
		size = 48
	}
	color := o.FontColor
	if color == "" {
		color = "white"
	}
	x := o.X
	if x == "" {
		x = "(w-text_w)/2"
	}
	y := o.Y
	if y == "" {
		y = "(h-text_h)/2"
	}
	parts = append(parts,
		fmt.Sprintf("fontsize=%d", size),
		"fontcolor="+color,
		"x="+x,
		"y="+y,
	)
	if o.Box {
		boxColor := o.BoxColor
		if boxColor == "" {
			boxColor = "black@0.5"
		}
		parts = append(parts, "box=1", "boxcolor="+boxColor, "boxborderw=10")
	}
	if o.Enable != "" {
		parts = append(parts, fmt.Sprintf("enable='%s'", o.Enable))
	}
	return strings.Join(parts, ":")
}

// EscapeText escapes text for use inside a quoted drawtext argument.
// Apostrophes cannot be escaped inside a quoted filter argument, so they
// are replaced with a typographic apostrophe.
func EscapeText(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		"'", "’",
		":", `\:`,
		"%", `\%`,
		"\n", " ",
	)
	return r.Replace(s)
}

// formatSeconds prints seconds with millisecond precision and no trailing zeros
func formatSeconds(s float64) string {
	return strconv.FormatFloat(roundMillis(s), 'f', -1, 64)
}

func roundMillis(s float64) float64 {
	if s < 0 {
		return -roundMillis(-s)
	}
	return float64(int64(s*1000+0.5)) / 1000
}
