package imageprep

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetSize(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{name: "small landscape untouched", w: 800, h: 600, wantW: 800, wantH: 600},
		{name: "wide landscape limited by width", w: 3840, h: 2160, wantW: 1920, wantH: 1080},
		{name: "tall landscape only checks width", w: 1900, h: 1500, wantW: 1900, wantH: 1500},
		{name: "portrait limited by height", w: 1080, h: 2160, wantW: 540, wantH: 1080},
		{name: "square limited by height", w: 2000, h: 2000, wantW: 1080, wantH: 1080},
		{name: "extreme ratio keeps a pixel", w: 10000, h: 2, wantW: 1920, wantH: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := TargetSize(tt.w, tt.h, 1920, 1080)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPrepare(t *testing.T) {
	uri, err := Prepare(bytes.NewReader(encodePNG(t, 400, 100)), Options{MaxWidth: 200, MaxHeight: 200, Quality: 80})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "data:image/jpeg;base64,"))

	data, err := DecodeDataURI(uri)
	require.NoError(t, err)
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Width)
	assert.Equal(t, 50, cfg.Height)
}

func TestPrepareDataURIRoundTrip(t *testing.T) {
	first, err := Prepare(bytes.NewReader(encodePNG(t, 64, 32)), DefaultOptions())
	require.NoError(t, err)

	second, err := PrepareDataURI(first, DefaultOptions())
	require.NoError(t, err)

	data, err := DecodeDataURI(second)
	require.NoError(t, err)
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Width)
	assert.Equal(t, 32, cfg.Height)
}

func TestPrepareRejectsGarbage(t *testing.T) {
	_, err := Prepare(strings.NewReader("not an image"), DefaultOptions())
	assert.Error(t, err)
}

func TestDecodeDataURI(t *testing.T) {
	_, err := DecodeDataURI("https://example.com/a.jpg")
	assert.ErrorIs(t, err, ErrNotDataURI)

	_, err = DecodeDataURI("data:image/jpeg;base64,%%%")
	assert.ErrorIs(t, err, ErrNotDataURI)

	data, err := DecodeDataURI("data:image/png;base64,aGk=")
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), data)
}

func TestPrepareLimits(t *testing.T) {
	src := encodePNG(t, 64, 32)
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(src)

	tests := []struct {
		name string
		opts Options
	}{
		{name: "byte limit", opts: Options{MaxSourceBytes: int64(len(src) - 1)}},
		{name: "pixel limit", opts: Options{MaxSourcePixels: 64*32 - 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Prepare(bytes.NewReader(src), tt.opts)
			assert.ErrorIs(t, err, ErrImageTooLarge)

			_, err = PrepareDataURI(uri, tt.opts)
			assert.ErrorIs(t, err, ErrImageTooLarge)
		})
	}

	_, err := Prepare(bytes.NewReader(src), Options{MaxSourceBytes: int64(len(src)), MaxSourcePixels: 64 * 32})
	assert.NoError(t, err)
}

func TestPrepareDataURIRejectsHugePayloadBeforeDecoding(t *testing.T) {
	// not valid base64, so only the size check can reject it first
	uri := "data:image/png;base64," + strings.Repeat("!", 4096)
	_, err := PrepareDataURI(uri, Options{MaxSourceBytes: 1024})
	assert.ErrorIs(t, err, ErrImageTooLarge)
}
