// Package scanner turns camera frames into the text of the first QR code
// found.  The camera is abstracted so the BFF can feed uploaded frames and
// tests can feed generated ones.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrNoDevice = errors.New("no camera device available")
	ErrNoCode   = errors.New("no QR code found")
	ErrBusy     = errors.New("scanner already running")
)

// Device is one video input.
type Device struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Camera lists video inputs and opens frame streams on them.
type Camera interface {
	Devices(ctx context.Context) ([]Device, error)
	Open(ctx context.Context, deviceID string) (Stream, error)
}

// Stream yields frames until it returns io.EOF.  Close releases the device
// and must be safe to call more than once.
type Stream interface {
	Next(ctx context.Context) (image.Image, error)
	Close() error
}

// Decoder extracts QR text from a frame.  Frames without a code return an
// error wrapping ErrNoCode.
type Decoder interface {
	Decode(img image.Image) (string, error)
}

// SelectDevice prefers a rear-facing camera by label and falls back to the
// first device.  A non-empty preferred id that matches a device wins.
func SelectDevice(devices []Device, preferred string) (Device, error) {
	if len(devices) == 0 {
		return Device{}, ErrNoDevice
	}
	if preferred != "" {
		for _, d := range devices {
			if d.ID == preferred {
				return d, nil
			}
		}
	}
	for _, d := range devices {
		l := strings.ToLower(d.Label)
		if strings.Contains(l, "back") || strings.Contains(l, "rear") || strings.Contains(l, "environment") {
			return d, nil
		}
	}
	return devices[0], nil
}

// Scanner owns a camera while a scan runs.
type Scanner struct {
	cam     Camera
	dec     Decoder
	log     *zap.Logger
	mu      sync.Mutex
	running bool
}

func New(cam Camera, dec Decoder, log *zap.Logger) *Scanner {
	if dec == nil {
		dec = NewQRDecoder()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scanner{cam: cam, dec: dec, log: log.Named("scanner")}
}

// Scan opens the selected device and decodes frames until one carries a QR
// code.  handle receives that payload exactly once, after the stream has
// been released.  The stream is also released when ctx is cancelled, when
// the stream fails and when it runs out of frames.
func (s *Scanner) Scan(ctx context.Context, preferredDevice string, handle func(payload string)) (err error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrBusy
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	devices, err := s.cam.Devices(ctx)
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}
	dev, err := SelectDevice(devices, preferredDevice)
	if err != nil {
		return err
	}
	stream, err := s.cam.Open(ctx, dev.ID)
	if err != nil {
		return fmt.Errorf("open %s: %w", dev.Label, err)
	}
	s.log.Debug("camera opened", zap.String("device", dev.ID), zap.String("label", dev.Label))

	payload, err := s.decodeLoop(ctx, stream)
	if cerr := stream.Close(); cerr != nil {
		s.log.Warn("camera release failed", zap.Error(cerr))
	}
	if err != nil {
		return err
	}
	handle(payload)
	return nil
}

func (s *Scanner) decodeLoop(ctx context.Context, stream Stream) (string, error) {
	frames := 0
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		img, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			s.log.Debug("stream exhausted", zap.Int("frames", frames))
			return "", ErrNoCode
		}
		if err != nil {
			return "", fmt.Errorf("read frame: %w", err)
		}
		frames++
		text, err := s.dec.Decode(img)
		if errors.Is(err, ErrNoCode) {
			continue
		}
		if err != nil {
			s.log.Debug("frame decode failed", zap.Error(err))
			continue
		}
		s.log.Info("qr decoded", zap.Int("frames", frames))
		return text, nil
	}
}
