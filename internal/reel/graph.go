package reel

import (
	"fmt"
	"strconv"

	"github.com/keagan/highlightreel/internal/ffmpeg"
)

type graphOptions struct {
	width, height int
	fps           float64
	clipAudio     bool
	music         bool
	volume        float64
}

// mergeGraph is a filter graph plus the pads to map into the output
type mergeGraph struct {
	*ffmpeg.FilterGraph
	maps     []string
	hasAudio bool
}

func secs(s float64) string {
	return strconv.FormatFloat(float64(int64(s*1000+0.5))/1000, 'f', -1, 64)
}

// buildMergeGraph normalises and trims every clip, then chains xfade (and
// acrossfade for clip audio) at the planned offsets. Background music is
// trimmed to the reel length and mixed under, or replaces, the clip audio.
func buildMergeGraph(p plan, o graphOptions) mergeGraph {
	n := len(p.trims)
	g := mergeGraph{FilterGraph: ffmpeg.NewFilterGraph()}

	for i, d := range p.trims {
		video := ffmpeg.NewFilterBuilder().
			Trim(d).
			SetPTS("PTS-STARTPTS").
			Fit(o.width, o.height).
			FPS(o.fps).
			Format(ffmpeg.DefaultPixelFormat)
		g.Chain([]string{fmt.Sprintf("%d:v", i)}, video.Build(), fmt.Sprintf("v%d", i))

		if o.clipAudio {
			aud := ffmpeg.NewFilterBuilder().
				ATrim(d).
				ASetPTS("PTS-STARTPTS").
				Custom("aformat=sample_fmts=fltp:sample_rates=44100:channel_layouts=stereo")
			g.Chain([]string{fmt.Sprintf("%d:a", i)}, aud.Build(), fmt.Sprintf("a%d", i))
		}
	}

	videoOut := chainTransitions(g.FilterGraph, n, "v", "vout", func(k int) string {
		return fmt.Sprintf("xfade=transition=fade:duration=%s:offset=%s", secs(p.transition), secs(p.offsets[k-1]))
	}, p.transition > 0, "concat=n=%d:v=1:a=0")
	g.maps = append(g.maps, "["+videoOut+"]")

	var audioOut string
	if o.clipAudio {
		audioOut = chainTransitions(g.FilterGraph, n, "a", "aclips", func(int) string {
			return fmt.Sprintf("acrossfade=d=%s", secs(p.transition))
		}, p.transition > 0, "concat=n=%d:v=0:a=1")
	}

	if o.music {
		volume := o.volume
		if volume <= 0 {
			volume = 1
		}
		music := ffmpeg.NewFilterBuilder().
			ATrim(p.total).
			ASetPTS("PTS-STARTPTS").
			AudioVolume(volume)
		g.Chain([]string{fmt.Sprintf("%d:a", n)}, music.Build(), "music")

		if audioOut != "" {
			g.Chain([]string{audioOut, "music"}, "amix=inputs=2:duration=first:dropout_transition=0", "aout")
		} else {
			g.Chain([]string{"music"}, "anull", "aout")
		}
		audioOut = "aout"
	}

	if audioOut != "" {
		g.maps = append(g.maps, "["+audioOut+"]")
		g.hasAudio = true
	}
	return g
}

// chainTransitions folds n labelled streams prefix0..prefix(n-1) into one.
// With crossfades each step blends the running output with the next stream;
// otherwise all streams go through a single concat filter.
func chainTransitions(g *ffmpeg.FilterGraph, n int, prefix, out string, step func(k int) string, crossfade bool, concatFmt string) string {
	if n == 1 {
		g.Chain([]string{prefix + "0"}, nullFilter(prefix), out)
		return out
	}

	if !crossfade {
		inputs := make([]string, n)
		for i := range inputs {
			inputs[i] = fmt.Sprintf("%s%d", prefix, i)
		}
		g.Chain(inputs, fmt.Sprintf(concatFmt, n), out)
		return out
	}

	prev := prefix + "0"
	for k := 1; k < n; k++ {
		label := fmt.Sprintf("%sx%d", prefix, k)
		if k == n-1 {
			label = out
		}
		g.Chain([]string{prev, fmt.Sprintf("%s%d", prefix, k)}, step(k), label)
		prev = label
	}
	return out
}

func nullFilter(prefix string) string {
	if prefix == "a" {
		return "anull"
	}
	return "null"
}
