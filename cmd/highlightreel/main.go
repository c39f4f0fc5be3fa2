package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/keagan/highlightreel/internal/clips"
	"github.com/keagan/highlightreel/internal/config"
	"github.com/keagan/highlightreel/internal/logging"
	"github.com/keagan/highlightreel/internal/pipeline"
	"github.com/keagan/highlightreel/internal/reel"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "highlightreel",
	Short:         "highlightreel - multi-modal highlight detection and reel assembly",
	Long:          "Finds highlights in event footage from detected objects, crowd reactions and applause, then cuts and merges them into a reel.",
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logging
		logging.Init(verbose, "console")

		// Load config
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if cfg.LogFormat != "console" {
			logging.Init(verbose, cfg.LogFormat)
		}

		// Store config in context
		ctx := config.WithConfig(cmd.Context(), cfg)
		cmd.SetContext(ctx)

		return nil
	},
}

var (
	maxClips     int
	noCache      bool
	visualize    bool
	dumpApplause string
	noReel       bool
	publish      bool
	extractDir   string
	runsDir      string
	reelOutput   string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	detectCmd.Flags().IntVar(&maxClips, "max-clips", 0, "keep only the N best highlights (default: detection.max_clips)")
	detectCmd.Flags().BoolVar(&noCache, "no-cache", false, "ignore cached analysis results")
	detectCmd.Flags().StringVar(&dumpApplause, "dump-applause", "", "write applause segments as WAV files to this directory")

	extractCmd.Flags().IntVar(&maxClips, "max-clips", 0, "keep only the N best highlights (default: detection.max_clips)")
	extractCmd.Flags().BoolVar(&noCache, "no-cache", false, "ignore cached analysis results")
	extractCmd.Flags().StringVarP(&extractDir, "out", "o", "clips", "output directory")
	extractCmd.Flags().BoolVar(&visualize, "visualize", false, "draw face boxes and a duration badge onto the clips")

	runCmd.Flags().IntVar(&maxClips, "max-clips", 0, "keep only the N best highlights (default: detection.max_clips)")
	runCmd.Flags().BoolVar(&noCache, "no-cache", false, "ignore cached analysis results")
	runCmd.Flags().StringVarP(&runsDir, "out", "o", "", "runs directory (default: <work_dir>/runs)")
	runCmd.Flags().BoolVar(&visualize, "visualize", false, "draw face boxes and a duration badge onto the clips")
	runCmd.Flags().BoolVar(&noReel, "no-reel", false, "extract clips without merging them")
	runCmd.Flags().BoolVar(&publish, "publish", false, "upload clips, reel and report to object storage")

	addReelFlags(reelCmd)
	addReelFlags(runCmd)
	reelCmd.Flags().StringVarP(&reelOutput, "out", "o", "reel.mp4", "output file")

	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(reelCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(configCmd)
	addEditCommands(rootCmd)
}

// openPipeline builds the full pipeline; callers must Close it
func openPipeline(cmd *cobra.Command) (*pipeline.Pipeline, *config.Config, error) {
	cfg := config.FromContext(cmd.Context())
	pipe, err := pipeline.New(cmd.Context(), logging.WithComponent("pipeline"), cfg)
	if err != nil {
		return nil, nil, err
	}
	if !cmd.Flags().Changed("max-clips") {
		maxClips = cfg.Detection.MaxClips
	}
	return pipe, cfg, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// logProgress reports progress in steps of ten percent
func logProgress(stage string) func(int) {
	last := -1
	return func(p int) {
		if p/10 == last/10 && p != 100 {
			return
		}
		last = p
		log.Info().Str("stage", stage).Int("percent", p).Msg("progress")
	}
}

var detectCmd = &cobra.Command{
	Use:   "detect [input video]",
	Short: "Detect highlights and print them as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, _, err := openPipeline(cmd)
		if err != nil {
			return err
		}
		defer pipe.Close()

		analysis, err := pipe.Analyze(cmd.Context(), args[0], pipeline.AnalyzeOptions{MaxClips: maxClips, NoCache: noCache})
		if err != nil {
			return err
		}

		if dumpApplause != "" {
			paths, err := pipe.ExportApplause(cmd.Context(), args[0], dumpApplause)
			if err != nil {
				return err
			}
			log.Info().Int("segments", len(paths)).Str("dir", dumpApplause).Msg("applause exported")
		}

		log.Info().
			Int("highlights", len(analysis.Highlights)).
			Bool("cache_hit", analysis.CacheHit).
			Msg("detection complete")
		return printJSON(analysis)
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract [input video]",
	Short: "Detect highlights and cut them into clips",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, cfg, err := openPipeline(cmd)
		if err != nil {
			return err
		}
		defer pipe.Close()

		analysis, err := pipe.Analyze(cmd.Context(), args[0], pipeline.AnalyzeOptions{MaxClips: maxClips, NoCache: noCache})
		if err != nil {
			return err
		}

		extracted, err := pipe.Extract(cmd.Context(), args[0], analysis.Highlights, extractDir, visualize || cfg.Reel.Visualize)
		if extracted == nil && err != nil {
			return err
		}
		if err != nil {
			log.Warn().Err(err).Msg("some clips failed")
		}

		log.Info().
			Int("clips", len(clips.Paths(extracted))).
			Int("highlights", len(analysis.Highlights)).
			Str("dir", extractDir).
			Msg("extraction complete")
		return printJSON(extracted)
	},
}

var runCmd = &cobra.Command{
	Use:   "run [input video]",
	Short: "Detect, extract, merge and optionally publish in one go",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, cfg, err := openPipeline(cmd)
		if err != nil {
			return err
		}
		defer pipe.Close()

		merge := reelOptions(cmd, cfg)
		merge.Progress = logProgress("reel")

		report, err := pipe.Run(cmd.Context(), pipeline.RunOptions{
			Input:     args[0],
			OutputDir: runsDir,
			MaxClips:  maxClips,
			Visualize: visualize || cfg.Reel.Visualize,
			SkipReel:  noReel,
			Publish:   publish,
			NoCache:   noCache,
			Merge:     merge,
		})
		if report == nil {
			return err
		}
		if err != nil && report.Reel == "" && !noReel {
			return err
		}
		if err != nil {
			log.Warn().Err(err).Msg("run finished with errors")
		}

		log.Info().
			Str("run", report.RunID).
			Str("reel", report.Reel).
			Str("dir", report.Dir).
			Msg("run complete")
		return printJSON(report)
	},
}

var (
	transition float64
	target     float64
	musicPath  string
	musicVol   float64
	keepAudio  bool
)

func addReelFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&transition, "transition", 0, "crossfade seconds (default: reel.transition_duration)")
	cmd.Flags().Float64Var(&target, "target", 0, "target reel length in seconds (default: reel.target_duration)")
	cmd.Flags().StringVar(&musicPath, "music", "", "background music file (default: reel.music_path)")
	cmd.Flags().Float64Var(&musicVol, "music-volume", 0, "background music volume (default: reel.music_volume)")
	cmd.Flags().BoolVar(&keepAudio, "keep-audio", false, "keep the clips' own audio")
}

// reelOptions starts from the config and applies explicitly set flags
func reelOptions(cmd *cobra.Command, cfg *config.Config) reel.MergeOptions {
	opts := pipeline.MergeOptions(cfg.Reel)
	flags := cmd.Flags()
	if flags.Changed("transition") {
		opts.TransitionDuration = transition
	}
	if flags.Changed("target") {
		opts.TargetDuration = target
	}
	if flags.Changed("music") {
		opts.MusicPath = musicPath
	}
	if flags.Changed("music-volume") {
		opts.MusicVolume = musicVol
	}
	if flags.Changed("keep-audio") {
		opts.KeepClipAudio = keepAudio
	}
	return opts
}

var reelCmd = &cobra.Command{
	Use:   "reel [clip files...]",
	Short: "Merge clips into a reel with crossfades and optional music",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		assembler, err := newAssembler(cfg)
		if err != nil {
			return err
		}

		opts := reelOptions(cmd, cfg)
		opts.Progress = logProgress("reel")

		out, err := assembler.Merge(cmd.Context(), args, reelOutput, opts)
		if err != nil {
			return err
		}
		log.Info().Str("output", out).Int("clips", len(args)).Msg("reel written")
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Config management commands",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration to a file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "config.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if err := config.Default().Save(path); err != nil {
			return err
		}
		log.Info().Str("path", path).Msg("config written")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
