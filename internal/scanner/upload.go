package scanner

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"sync"
)

// UploadDevice is the single device an UploadCamera exposes.
var UploadDevice = Device{ID: "upload", Label: "uploaded frames (environment)"}

// UploadCamera replays frames posted by a client.  Frames are decoded lazily
// so a payload found early skips decoding the rest.
type UploadCamera struct {
	frames [][]byte
}

func NewUploadCamera(frames [][]byte) *UploadCamera {
	return &UploadCamera{frames: frames}
}

// ReadFrames drains readers into an UploadCamera, capping each frame at max bytes.
func ReadFrames(readers []io.Reader, max int64) (*UploadCamera, error) {
	frames := make([][]byte, 0, len(readers))
	for i, r := range readers {
		b, err := io.ReadAll(io.LimitReader(r, max+1))
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		if int64(len(b)) > max {
			return nil, fmt.Errorf("frame %d exceeds %d bytes", i, max)
		}
		frames = append(frames, b)
	}
	return NewUploadCamera(frames), nil
}

func (u *UploadCamera) Devices(context.Context) ([]Device, error) {
	if len(u.frames) == 0 {
		return nil, nil
	}
	return []Device{UploadDevice}, nil
}

func (u *UploadCamera) Open(_ context.Context, deviceID string) (Stream, error) {
	if deviceID != UploadDevice.ID {
		return nil, ErrNoDevice
	}
	return &frameStream{frames: u.frames}, nil
}

type frameStream struct {
	mu     sync.Mutex
	frames [][]byte
	pos    int
	closed bool
}

func (f *frameStream) Next(ctx context.Context) (image.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for {
		if f.closed || f.pos >= len(f.frames) {
			return nil, io.EOF
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw := f.frames[f.pos]
		f.pos++
		img, _, err := image.Decode(bytes.NewReader(raw))
		if err != nil {
			// unreadable frames are skipped like frames without a code
			continue
		}
		return img, nil
	}
}

func (f *frameStream) Close() error {
	f.mu.Lock()
	f.closed = true
	f.frames = nil
	f.mu.Unlock()
	return nil
}
