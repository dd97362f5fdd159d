package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"
)

// ErrClosed is returned when reading from a source that is not open.
var ErrClosed = errors.New("audio source is not open")

// CaptureConfig configures a microphone capture.
type CaptureConfig struct {
	SampleRate int    // Hz
	BlockSize  int    // Samples returned per ReadBlock
	Device     string // Case-insensitive device name substring, empty = default device
}

// Capture is a control.SampleSource backed by a miniaudio capture device.
// The device callback fills a ring buffer holding a few blocks of audio and
// ReadBlock returns the most recent block without waiting. The buffer is
// emptied on Open and Close so audio from before a pause is never scored.
type Capture struct {
	cfg    CaptureConfig
	logger *slog.Logger
	ring   *RingBuffer

	mu       sync.Mutex
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
}

// NewCapture creates a closed Capture.
func NewCapture(cfg CaptureConfig, logger *slog.Logger) *Capture {
	if logger == nil {
		logger = slog.Default()
	}
	return &Capture{cfg: cfg, logger: logger, ring: NewRingBuffer(cfg.BlockSize * 4)}
}

// Open initializes and starts the capture device. Missing devices and denied
// microphone access are reported here.
func (c *Capture) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device != nil {
		return nil
	}
	if c.cfg.SampleRate <= 0 || c.cfg.BlockSize <= 0 {
		return fmt.Errorf("invalid capture format: %d Hz, %d samples", c.cfg.SampleRate, c.cfg.BlockSize)
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(c.cfg.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	if c.cfg.Device != "" {
		info, err := findCaptureDevice(ctx, c.cfg.Device)
		if err != nil {
			c.freeContext(ctx)
			return err
		}
		deviceConfig.Capture.DeviceID = info.ID.Pointer()
	}

	ring := c.ring
	ring.Reset()
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pInputSamples []byte, _ uint32) {
			ring.Write(decodeS16LE(pInputSamples))
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		c.freeContext(ctx)
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		c.freeContext(ctx)
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	c.malgoCtx = ctx
	c.device = device

	c.logger.Info("audio capture started",
		"sample_rate", c.cfg.SampleRate,
		"block_size", c.cfg.BlockSize,
		"device", c.cfg.Device)
	return nil
}

// ReadBlock returns up to BlockSize of the most recently captured samples.
// It returns an empty block if nothing was captured since the last read.
func (c *Capture) ReadBlock() ([]int16, error) {
	c.mu.Lock()
	open := c.device != nil
	c.mu.Unlock()

	if !open {
		return nil, ErrClosed
	}
	return c.ring.ReadLatest(c.cfg.BlockSize), nil
}

// Close stops the device and releases the miniaudio context.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.ring.Reset()

	if c.device == nil {
		return nil
	}

	if err := c.device.Stop(); err != nil {
		c.logger.Warn("capture device stop error", "error", err)
	}
	c.device.Uninit()
	c.device = nil

	c.freeContext(c.malgoCtx)
	c.malgoCtx = nil

	c.logger.Info("audio capture stopped")
	return nil
}

func (c *Capture) freeContext(ctx *malgo.AllocatedContext) {
	if ctx == nil {
		return
	}
	if err := ctx.Uninit(); err != nil {
		c.logger.Warn("malgo context uninit error", "error", err)
	}
	ctx.Free()
}

// CaptureDevices lists the names of the available capture devices.
func CaptureDevices() ([]string, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to list capture devices: %w", err)
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names, nil
}

func findCaptureDevice(ctx *malgo.AllocatedContext, name string) (malgo.DeviceInfo, error) {
	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceInfo{}, fmt.Errorf("failed to list capture devices: %w", err)
	}

	needle := strings.ToLower(name)
	for _, info := range infos {
		if strings.Contains(strings.ToLower(info.Name()), needle) {
			return info, nil
		}
	}
	return malgo.DeviceInfo{}, fmt.Errorf("no capture device matching %q", name)
}

// decodeS16LE converts little-endian signed 16-bit PCM to samples.
// A trailing odd byte is ignored.
func decodeS16LE(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}
