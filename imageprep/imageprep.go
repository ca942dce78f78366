// Package imageprep shrinks uploaded and generated images and encodes them as
// JPEG data URIs that can be stored directly on a slide.
package imageprep

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"math"
	"strings"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	dataURIPrefix = "data:image/jpeg;base64,"
	// room for the "data:<mime>;base64," header when sizing a URI up front
	dataURIHeaderSlack = 64
)

var (
	ErrNotDataURI    = errors.New("not a base64 data URI")
	ErrImageTooLarge = errors.New("image too large")
)

type Options struct {
	MaxWidth  int
	MaxHeight int
	// Quality is the JPEG quality, 1-100.
	Quality int

	// MaxSourceBytes and MaxSourcePixels bound what is accepted for
	// decoding, before any resize happens.
	MaxSourceBytes  int64
	MaxSourcePixels int64
}

func DefaultOptions() Options {
	return Options{
		MaxWidth:        1920,
		MaxHeight:       1080,
		Quality:         90,
		MaxSourceBytes:  32 << 20,
		MaxSourcePixels: 64_000_000,
	}
}

// WithDefaults fills unset or out of range fields from DefaultOptions.
func (o Options) WithDefaults() Options {
	def := DefaultOptions()
	if o.MaxWidth <= 0 {
		o.MaxWidth = def.MaxWidth
	}
	if o.MaxHeight <= 0 {
		o.MaxHeight = def.MaxHeight
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = def.Quality
	}
	if o.MaxSourceBytes <= 0 {
		o.MaxSourceBytes = def.MaxSourceBytes
	}
	if o.MaxSourcePixels <= 0 {
		o.MaxSourcePixels = def.MaxSourcePixels
	}
	return o
}

// TargetSize returns the output dimensions for a w x h source. Landscape
// images are limited by width, portrait and square images by height. Images
// are never upscaled.
func TargetSize(w, h, maxW, maxH int) (int, int) {
	if w > h {
		if w > maxW {
			h = int(math.Round(float64(h) * float64(maxW) / float64(w)))
			w = maxW
		}
	} else if h > maxH {
		w = int(math.Round(float64(w) * float64(maxH) / float64(h)))
		h = maxH
	}
	return max(w, 1), max(h, 1)
}

// Resize scales img down to fit the limits in opts.
func Resize(img image.Image, opts Options) image.Image {
	opts = opts.WithDefaults()
	b := img.Bounds()
	w, h := TargetSize(b.Dx(), b.Dy(), opts.MaxWidth, opts.MaxHeight)
	if w == b.Dx() && h == b.Dy() {
		return img
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}

// Prepare decodes an image from r, resizes it and returns a JPEG data URI.
// Sources over the byte or pixel limits in opts fail with ErrImageTooLarge
// without being decoded.
func Prepare(r io.Reader, opts Options) (string, error) {
	opts = opts.WithDefaults()

	data, err := io.ReadAll(io.LimitReader(r, opts.MaxSourceBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > opts.MaxSourceBytes {
		return "", fmt.Errorf("%w: more than %d bytes", ErrImageTooLarge, opts.MaxSourceBytes)
	}
	return prepare(data, opts)
}

func prepare(data []byte, opts Options) (string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > opts.MaxSourcePixels {
		return "", fmt.Errorf("%w: %dx%d %s exceeds %d pixels", ErrImageTooLarge, cfg.Width, cfg.Height, format, opts.MaxSourcePixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Resize(img, opts), &jpeg.Options{Quality: opts.Quality}); err != nil {
		return "", fmt.Errorf("failed to encode %s image as jpeg: %w", format, err)
	}
	return dataURIPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// PrepareDataURI is Prepare for an image that is already a base64 data URI.
func PrepareDataURI(uri string, opts Options) (string, error) {
	opts = opts.WithDefaults()
	if n := base64.StdEncoding.DecodedLen(len(uri)); int64(n) > opts.MaxSourceBytes+dataURIHeaderSlack {
		return "", fmt.Errorf("%w: more than %d bytes", ErrImageTooLarge, opts.MaxSourceBytes)
	}

	data, err := DecodeDataURI(uri)
	if err != nil {
		return "", err
	}
	if int64(len(data)) > opts.MaxSourceBytes {
		return "", fmt.Errorf("%w: more than %d bytes", ErrImageTooLarge, opts.MaxSourceBytes)
	}
	return prepare(data, opts)
}

// DecodeDataURI returns the bytes of a base64 data URI.
func DecodeDataURI(uri string) ([]byte, error) {
	header, payload, ok := strings.Cut(uri, ",")
	if !ok || !strings.HasPrefix(header, "data:") || !strings.HasSuffix(header, ";base64") {
		return nil, ErrNotDataURI
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotDataURI, err)
	}
	return data, nil
}
