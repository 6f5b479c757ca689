package scanner

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeStream struct {
	frames []image.Image
	err    error
	closes int
}

func (f *fakeStream) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(f.frames) == 0 {
		if f.err != nil {
			return nil, f.err
		}
		return nil, io.EOF
	}
	img := f.frames[0]
	f.frames = f.frames[1:]
	return img, nil
}

func (f *fakeStream) Close() error { f.closes++; return nil }

type fakeCamera struct {
	devices []Device
	stream  *fakeStream
	opened  string
}

func (c *fakeCamera) Devices(context.Context) ([]Device, error) { return c.devices, nil }

func (c *fakeCamera) Open(_ context.Context, id string) (Stream, error) {
	c.opened = id
	return c.stream, nil
}

type textDecoder struct{}

// Decode treats any non-blank frame as carrying the text "payload".
func (textDecoder) Decode(img image.Image) (string, error) {
	if img.Bounds().Dx() == 1 {
		return "", ErrNoCode
	}
	return "payload", nil
}

func blank() image.Image { return image.NewGray(image.Rect(0, 0, 1, 1)) }
func marked() image.Image { return image.NewGray(image.Rect(0, 0, 2, 2)) }

func TestSelectDevice(t *testing.T) {
	_, err := SelectDevice(nil, "")
	assert.ErrorIs(t, err, ErrNoDevice)

	devs := []Device{{ID: "1", Label: "FaceTime HD"}, {ID: "2", Label: "Camera 2, facing BACK"}}
	d, err := SelectDevice(devs, "")
	require.NoError(t, err)
	assert.Equal(t, "2", d.ID)

	d, _ = SelectDevice([]Device{{ID: "a", Label: "front"}, {ID: "b", Label: "USB"}}, "")
	assert.Equal(t, "a", d.ID)

	d, _ = SelectDevice([]Device{{ID: "a", Label: "Rear camera"}, {ID: "b", Label: "environment"}}, "")
	assert.Equal(t, "a", d.ID)

	d, _ = SelectDevice(devs, "1")
	assert.Equal(t, "1", d.ID)
}

func TestScanDeliversOnceAndReleases(t *testing.T) {
	stream := &fakeStream{frames: []image.Image{blank(), blank(), marked(), marked()}}
	cam := &fakeCamera{devices: []Device{{ID: "f", Label: "front"}, {ID: "r", Label: "rear"}}, stream: stream}
	s := New(cam, textDecoder{}, zaptest.NewLogger(t))

	var got []string
	err := s.Scan(context.Background(), "", func(p string) {
		assert.Equal(t, 1, stream.closes, "stream released before the handler runs")
		got = append(got, p)
	})
	require.NoError(t, err)
	assert.Equal(t, "r", cam.opened)
	assert.Equal(t, []string{"payload"}, got)
	assert.Equal(t, 1, stream.closes)
	assert.Len(t, stream.frames, 1, "decoding stops after the first hit")
}

func TestScanReleasesOnEveryExit(t *testing.T) {
	t.Run("exhausted", func(t *testing.T) {
		stream := &fakeStream{frames: []image.Image{blank()}}
		s := New(&fakeCamera{devices: []Device{{ID: "x"}}, stream: stream}, textDecoder{}, nil)
		err := s.Scan(context.Background(), "", func(string) { t.Fatal("handler must not run") })
		assert.ErrorIs(t, err, ErrNoCode)
		assert.Equal(t, 1, stream.closes)
	})
	t.Run("cancelled", func(t *testing.T) {
		stream := &fakeStream{frames: []image.Image{marked()}}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		s := New(&fakeCamera{devices: []Device{{ID: "x"}}, stream: stream}, textDecoder{}, nil)
		err := s.Scan(ctx, "", func(string) { t.Fatal("handler must not run") })
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, stream.closes)
	})
	t.Run("stream error", func(t *testing.T) {
		boom := errors.New("device unplugged")
		stream := &fakeStream{err: boom}
		s := New(&fakeCamera{devices: []Device{{ID: "x"}}, stream: stream}, textDecoder{}, nil)
		err := s.Scan(context.Background(), "", func(string) { t.Fatal("handler must not run") })
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, stream.closes)
	})
	t.Run("no device", func(t *testing.T) {
		s := New(&fakeCamera{}, textDecoder{}, nil)
		err := s.Scan(context.Background(), "", func(string) {})
		assert.ErrorIs(t, err, ErrNoDevice)
	})
}

func pngFrame(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestQRRoundTripThroughUploadCamera(t *testing.T) {
	const text = `{"id":42,"phone":"01099998888","nickname":"Ace"}`
	code, err := Encode(text, 240)
	require.NoError(t, err)

	white := image.NewGray(image.Rect(0, 0, 32, 32))
	for x := 0; x < 32; x++ {
		for y := 0; y < 32; y++ {
			white.Set(x, y, color.White)
		}
	}

	cam := NewUploadCamera([][]byte{[]byte("not an image"), pngFrame(t, white), pngFrame(t, code)})
	s := New(cam, nil, zaptest.NewLogger(t))

	var got string
	require.NoError(t, s.Scan(context.Background(), "", func(p string) { got = p }))
	assert.Equal(t, text, got)

	p, err := ParsePayload(got)
	require.NoError(t, err)
	assert.Equal(t, int64(42), p.UserID)
	assert.Equal(t, "Ace", p.Nickname)
}

func TestReadFramesLimit(t *testing.T) {
	_, err := ReadFrames([]io.Reader{bytes.NewReader(make([]byte, 10))}, 5)
	assert.Error(t, err)
	cam, err := ReadFrames([]io.Reader{bytes.NewReader(make([]byte, 5))}, 5)
	require.NoError(t, err)
	devs, _ := cam.Devices(context.Background())
	assert.Equal(t, []Device{UploadDevice}, devs)
}

func TestParsePayload(t *testing.T) {
	p, err := ParsePayload(`{"id":42,"phone":"01099998888","nickname":"Ace"}`)
	require.NoError(t, err)
	assert.Equal(t, Payload{UserID: 42, Phone: "01099998888", Nickname: "Ace", Raw: `{"id":42,"phone":"01099998888","nickname":"Ace"}`}, p)

	raw := "user_id:7,uuid:3f1c2b6e-8a3d-4e8b-9f3a-2b7c9d1e0f11"
	p, err = ParsePayload(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.UserID)
	assert.Equal(t, "3f1c2b6e-8a3d-4e8b-9f3a-2b7c9d1e0f11", p.UUID)

	for _, bad := range []string{"", "hello", `{"id":0}`, `{"nickname":"x"}`, "user_id:7", "user_id:x,uuid:3f1c2b6e-8a3d-4e8b-9f3a-2b7c9d1e0f11", "user_id:7,uuid:nope"} {
		_, err := ParsePayload(bad)
		assert.ErrorIs(t, err, ErrBadPayload, bad)
	}
}
