package main

import (
	"fmt"
	"os"

	"github.com/keagan/highlightreel/internal/config"
	"github.com/keagan/highlightreel/internal/logging"
	"github.com/keagan/highlightreel/internal/pipeline"
	"github.com/keagan/highlightreel/internal/reel"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	editOutput string

	titleOpts = reel.DefaultTitleOptions()
	textOpts  reel.TextOptions
	textPos   string
	effects   reel.Effects
)

func newAssembler(cfg *config.Config) (*reel.Assembler, error) {
	exec, err := pipeline.NewExecutor(logging.WithComponent("ffmpeg"), cfg)
	if err != nil {
		return nil, err
	}
	return reel.New(logging.WithComponent("reel"), exec, cfg.TempDir), nil
}

// loadCaptions reads a YAML or JSON list of {text, start, end} cues
func loadCaptions(path string) ([]reel.Caption, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var captions []reel.Caption
	if err := yaml.Unmarshal(data, &captions); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return captions, nil
}

func captionStyle(sc config.SubtitleConfig) reel.CaptionStyle {
	return reel.CaptionStyle{
		FontName:     sc.FontName,
		FontSize:     sc.FontSize,
		FontColor:    sc.FontColor,
		OutlineWidth: sc.OutlineWidth,
	}
}

var captionCmd = &cobra.Command{
	Use:   "caption [input video] [captions file]",
	Short: "Burn subtitle cues from a YAML or JSON file into a video",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		captions, err := loadCaptions(args[1])
		if err != nil {
			return err
		}
		assembler, err := newAssembler(cfg)
		if err != nil {
			return err
		}

		out, err := assembler.AddCaptions(cmd.Context(), args[0], editOutput, captions, captionStyle(cfg.Subtitles))
		if err != nil {
			return err
		}
		log.Info().Str("output", out).Int("captions", len(captions)).Msg("captions added")
		return nil
	},
}

var titleCmd = &cobra.Command{
	Use:   "title [input video] [title text]",
	Short: "Prepend a title card",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		assembler, err := newAssembler(config.FromContext(cmd.Context()))
		if err != nil {
			return err
		}

		out, err := assembler.AddTitleScreen(cmd.Context(), args[0], editOutput, args[1], titleOpts)
		if err != nil {
			return err
		}
		log.Info().Str("output", out).Msg("title screen added")
		return nil
	},
}

var overlayCmd = &cobra.Command{
	Use:   "overlay [input video] [text]",
	Short: "Draw text over a video",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		assembler, err := newAssembler(config.FromContext(cmd.Context()))
		if err != nil {
			return err
		}

		opts := textOpts
		opts.Position = reel.TextPosition(textPos)
		out, err := assembler.AddTextOverlay(cmd.Context(), args[0], editOutput, args[1], opts)
		if err != nil {
			return err
		}
		log.Info().Str("output", out).Msg("text overlay added")
		return nil
	},
}

var effectsCmd = &cobra.Command{
	Use:   "effects [input video]",
	Short: "Change speed, brightness, contrast or saturation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		assembler, err := newAssembler(config.FromContext(cmd.Context()))
		if err != nil {
			return err
		}

		out, err := assembler.AddEffects(cmd.Context(), args[0], editOutput, effects)
		if err != nil {
			return err
		}
		log.Info().Str("output", out).Msg("effects applied")
		return nil
	},
}

func addEditCommands(root *cobra.Command) {
	for _, cmd := range []*cobra.Command{captionCmd, titleCmd, overlayCmd, effectsCmd} {
		cmd.Flags().StringVarP(&editOutput, "out", "o", "", "output file")
		cmd.MarkFlagRequired("out")
		root.AddCommand(cmd)
	}

	titleCmd.Flags().Float64Var(&titleOpts.Duration, "duration", titleOpts.Duration, "title card seconds")
	titleCmd.Flags().StringVar(&titleOpts.Background, "background", titleOpts.Background, "card colour")
	titleCmd.Flags().IntVar(&titleOpts.FontSize, "size", titleOpts.FontSize, "font size")
	titleCmd.Flags().StringVar(&titleOpts.FontColor, "color", titleOpts.FontColor, "font colour")
	titleCmd.Flags().StringVar(&titleOpts.FontFile, "font", "", "font file")

	overlayCmd.Flags().StringVar(&textPos, "position", string(reel.PositionBottom), "top, center or bottom")
	overlayCmd.Flags().IntVar(&textOpts.FontSize, "size", 36, "font size")
	overlayCmd.Flags().StringVar(&textOpts.FontColor, "color", "white", "font colour")
	overlayCmd.Flags().StringVar(&textOpts.FontFile, "font", "", "font file")
	overlayCmd.Flags().BoolVar(&textOpts.Box, "box", false, "draw a background box")
	overlayCmd.Flags().Float64Var(&textOpts.Start, "start", 0, "show from this second")
	overlayCmd.Flags().Float64Var(&textOpts.End, "end", 0, "hide after this second (0 shows until the end)")

	effectsCmd.Flags().Float64Var(&effects.Speed, "speed", 1, "playback speed, 0.25 to 4")
	effectsCmd.Flags().Float64Var(&effects.Brightness, "brightness", 0, "brightness offset, -1 to 1")
	effectsCmd.Flags().Float64Var(&effects.Contrast, "contrast", 1, "contrast factor")
	effectsCmd.Flags().Float64Var(&effects.Saturation, "saturation", 1, "saturation factor")
}
