package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/autovol/internal/audio"
	"github.com/jmylchreest/autovol/internal/config"
)

var recordOpts struct {
	duration   time.Duration
	device     string
	sampleRate int
}

var recordCmd = &cobra.Command{
	Use:   "record FILE",
	Short: "Record the microphone to a WAV file",
	Long: `Record the microphone to a 16-bit mono WAV file, for replay with
'autovol simulate'. Recording stops after --duration or on Ctrl-C.

Pause the daemon first if the capture device cannot be shared.

Examples:
  # Record a minute of cabin noise
  autovol record drive.wav --duration 1m
  autovol simulate drive.wav`,
	Args: cobra.ExactArgs(1),
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)

	recordCmd.Flags().DurationVarP(&recordOpts.duration, "duration", "d", 30*time.Second,
		"Recording length (0 = until interrupted)")
	recordCmd.Flags().StringVar(&recordOpts.device, "device", "",
		"Capture device name substring (default from daemon config)")
	recordCmd.Flags().IntVar(&recordOpts.sampleRate, "sample-rate", 0,
		"Sample rate in Hz (default from daemon config)")
}

func runRecord(cmd *cobra.Command, args []string) error {
	daemonCfg, err := config.LoadDaemonConfig(globalOpts.daemonConfig)
	if err != nil {
		return fmt.Errorf("failed to load daemon config: %w", err)
	}

	capCfg := audio.CaptureConfig{
		SampleRate: firstPositive(recordOpts.sampleRate, daemonCfg.Source.SampleRate),
		BlockSize:  daemonCfg.Source.BlockSize,
		Device:     daemonCfg.Source.Device,
	}
	if recordOpts.device != "" {
		capCfg.Device = recordOpts.device
	}

	f, err := os.Create(args[0])
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", args[0], err)
	}
	defer func() { _ = f.Close() }()

	capture := audio.NewCapture(capCfg, logger)
	if err := capture.Open(); err != nil {
		return err
	}
	defer func() { _ = capture.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	samples := int(recordOpts.duration.Seconds() * float64(capCfg.SampleRate))
	blockTime := time.Duration(float64(capCfg.BlockSize) / float64(capCfg.SampleRate) * float64(time.Second))

	fmt.Fprintf(os.Stderr, "Recording to %s, press Ctrl-C to stop\n", args[0])
	n, err := audio.Record(ctx, capture, f, audio.RecordConfig{
		SampleRate: capCfg.SampleRate,
		Samples:    samples,
		Poll:       blockTime / 4,
	})
	if err != nil {
		return err
	}

	seconds := float64(n) / float64(capCfg.SampleRate)
	size := int64(n) * 2
	fmt.Printf("Recorded %.1fs (%s) to %s\n", seconds, humanize.Bytes(uint64(size)), args[0])
	return nil
}
