package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/autovol/internal/adapter/input"
	"github.com/jmylchreest/autovol/internal/adapter/output"
	"github.com/jmylchreest/autovol/internal/config"
	"github.com/jmylchreest/autovol/internal/control"
)

var simulateOpts struct {
	sampleRate int
	blockSize  int
	start      int
	steps      int
	maxTicks   int
	window     int
	format     string
	quiet      bool

	minVolume     int
	maxVolume     int
	lowThreshold  float64
	highThreshold float64
}

var simulateCmd = &cobra.Command{
	Use:   "simulate FILE|-",
	Short: "Replay a recording through the control loop",
	Long: `Replay a recording through the control loop without touching any real
player. Each block of the recording is one tick: it is scored, mapped to a
target volume, and a simulated player is moved one step towards it.

Recordings can be .wav, .mp3, .flac or .ogg files. Raw signed 16-bit
little-endian mono PCM is read from .raw and .pcm files, or from stdin when
the argument is -.

Control parameters default to the daemon configuration.

Examples:
  # Replay a drive recorded with the phone
  autovol simulate drive.ogg

  # Feed live audio from PipeWire
  pw-record --format s16 --rate 16000 --channels 1 - | autovol simulate --sample-rate 16000 -

  # Try a narrower threshold band, output JSON
  autovol simulate cafe.wav --low 55 --high 65 --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().IntVar(&simulateOpts.sampleRate, "sample-rate", 0,
		"Sample rate in Hz (default from config)")
	simulateCmd.Flags().IntVar(&simulateOpts.blockSize, "block-size", 0,
		"Samples per tick (default from config)")
	simulateCmd.Flags().IntVar(&simulateOpts.start, "start", -1,
		"Starting volume of the simulated player (default from config)")
	simulateCmd.Flags().IntVar(&simulateOpts.steps, "steps", 0,
		"Volume steps of the simulated player (default from config)")
	simulateCmd.Flags().IntVar(&simulateOpts.maxTicks, "max-ticks", 0,
		"Stop after this many ticks (0=until the input ends)")
	simulateCmd.Flags().IntVar(&simulateOpts.window, "window", 12,
		"Ticks averaged for the rolling score")
	simulateCmd.Flags().StringVarP(&simulateOpts.format, "format", "f", "text",
		"Output format (text, json, yaml)")
	simulateCmd.Flags().BoolVarP(&simulateOpts.quiet, "quiet", "q", false,
		"Only print the summary")

	simulateCmd.Flags().IntVar(&simulateOpts.minVolume, "min", -1,
		"Volume in quiet surroundings (default from daemon config)")
	simulateCmd.Flags().IntVar(&simulateOpts.maxVolume, "max", -1,
		"Volume in loud surroundings (default from daemon config)")
	simulateCmd.Flags().Float64Var(&simulateOpts.lowThreshold, "low", 0,
		"Score below which the volume is minimal (default from daemon config)")
	simulateCmd.Flags().Float64Var(&simulateOpts.highThreshold, "high", 0,
		"Score above which the volume is maximal (default from daemon config)")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	daemonCfg, err := config.LoadDaemonConfig(globalOpts.daemonConfig)
	if err != nil {
		return fmt.Errorf("failed to load daemon config: %w", err)
	}

	simCfg, blockSize := simulationConfig(daemonCfg.Params())
	if err := simCfg.Params.Validate(); err != nil {
		return err
	}

	source, err := input.NewSource(args[0], input.SourceOptions{
		SampleRate: simCfg.SampleRate,
		BlockSize:  blockSize,
	}, logger)
	if err != nil {
		return err
	}

	result, err := runSimulation(source, simCfg, logger)
	if err != nil {
		return err
	}

	switch format := output.FormatType(simulateOpts.format); format {
	case output.FormatJSON, output.FormatYAML:
		if simulateOpts.quiet {
			return output.Encode(os.Stdout, format, result.Summary)
		}
		return output.Encode(os.Stdout, format, result)
	default:
		return writeSimulationText(os.Stdout, result, simulateOpts.quiet)
	}
}

// simulationConfig merges flags over the CLI and daemon config.
func simulationConfig(params control.Params) (simConfig, int) {
	if simulateOpts.minVolume >= 0 {
		params.MinVolume = simulateOpts.minVolume
	}
	if simulateOpts.maxVolume >= 0 {
		params.MaxVolume = simulateOpts.maxVolume
	}
	if simulateOpts.lowThreshold > 0 {
		params.LowThreshold = simulateOpts.lowThreshold
	}
	if simulateOpts.highThreshold > 0 {
		params.HighThreshold = simulateOpts.highThreshold
	}

	simCfg := simConfig{
		Params:     params,
		SampleRate: firstPositive(simulateOpts.sampleRate, cfg.Simulate.SampleRate, config.DefaultSampleRate),
		Steps:      firstPositive(simulateOpts.steps, cfg.Simulate.Steps, config.DefaultSinkSteps),
		Start:      cfg.Simulate.Start,
		MaxTicks:   simulateOpts.maxTicks,
		Window:     simulateOpts.window,
	}
	if simulateOpts.start >= 0 {
		simCfg.Start = simulateOpts.start
	}

	blockSize := firstPositive(simulateOpts.blockSize, cfg.Simulate.BlockSize, config.DefaultBlockSize)
	return simCfg, blockSize
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func writeSimulationText(w io.Writer, result *simResult, summaryOnly bool) error {
	if !summaryOnly {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "TICK\tTIME\tSCORE\tAVG\tTARGET\tVOLUME\t\t")
		for _, t := range result.Ticks {
			marker := ""
			switch {
			case t.ReadError != "":
				marker = "read error"
			case t.Applied:
				marker = "*"
			}
			fmt.Fprintf(tw, "%d\t%.1fs\t%.1f\t%.1f\t%d\t%d\t%s\t\n",
				t.Tick, t.Offset, t.Score, t.Average, t.Target, t.Volume, marker)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}

	s := result.Summary
	_, err := fmt.Fprintf(w,
		"%d ticks over %.1fs, %d adjustments, volume %d -> %d (range %d-%d), mean score %.1f dB, peak %.1f dB\n",
		s.Ticks, s.Duration, s.Adjustments, s.StartVolume, s.EndVolume, s.MinVolume, s.MaxVolume, s.MeanScore, s.PeakScore)
	return err
}
