// Package imaging fits receipt photos under a byte budget so a whole session,
// attachments included, stays below the store's per-record ceiling.
package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"math"
	"time"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/mmynk/tithe/internal/metrics"
)

// ErrDecode is returned when the source image cannot be read.
var ErrDecode = errors.New("failed to decode image")

const (
	// Mime and Ext describe every compressed output.
	Mime = "image/jpeg"
	Ext  = "jpg"

	initialQuality = 0.82
	qualityStep    = 0.07
	initialShrink  = 0.9
	shrinkStep     = 0.08
	minShrink      = 0.6
	floorDim       = 800

	// MaxPixels caps the source resolution. Larger images are refused
	// before their pixels are decoded.
	MaxPixels = 50_000_000
)

// Options bound the output of Compress.
type Options struct {
	// TargetMaxBytes is the encoded size to stay under.
	TargetMaxBytes int

	// MaxDim caps the longer side; images are never upscaled.
	MaxDim int

	// MinQuality is the lowest encoder quality tried, in (0, 1].
	MinQuality float64
}

// DefaultOptions returns a 900 KiB budget, a 2000px longer side and a 0.5
// quality floor.
func DefaultOptions() Options {
	return Options{
		TargetMaxBytes: 900 * 1024,
		MaxDim:         2000,
		MinQuality:     0.5,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.TargetMaxBytes <= 0 {
		o.TargetMaxBytes = d.TargetMaxBytes
	}
	if o.MaxDim <= 0 {
		o.MaxDim = d.MaxDim
	}
	if o.MinQuality <= 0 || o.MinQuality > 1 {
		o.MinQuality = d.MinQuality
	}
	return o
}

// Result is a compressed receipt.
type Result struct {
	DataURI string
	Mime    string
	Ext     string

	// Quality is the encoder quality of the final image, never below MinQuality.
	Quality float64

	Width  int
	Height int

	// Bytes is the decoded size of the payload.
	Bytes int
}

// Compressor re-encodes images as JPEG within a byte budget.
type Compressor struct {
	opts Options
}

// NewCompressor creates a compressor. Zero fields of opts take the defaults.
func NewCompressor(opts Options) *Compressor {
	return &Compressor{opts: opts.withDefaults()}
}

// Options returns the effective options.
func (c *Compressor) Options() Options {
	return c.opts
}

// CompressDataURI decodes a data URI and compresses the image it carries.
func (c *Compressor) CompressDataURI(ctx context.Context, uri string) (*Result, error) {
	_, data, err := DecodeDataURI(uri)
	if err != nil {
		metrics.CompressionFailures.Inc()
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return c.Compress(ctx, data)
}

// Compress decodes src and re-encodes it until it fits the budget.
//
// The image is first scaled so its longer side is at most MaxDim. Quality
// then steps down from 0.82 by 0.07 to MinQuality. If the image is still too
// large, the canvas shrinks by a factor starting at 0.9 and dropping by 0.08
// per round, until the budget is met, the longer side is at most 800px, or
// the factor falls below 0.6. The result may still exceed the budget.
func (c *Compressor) Compress(ctx context.Context, src []byte) (*Result, error) {
	start := time.Now()

	cfg, _, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		metrics.CompressionFailures.Inc()
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		metrics.CompressionFailures.Inc()
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrDecode, cfg.Width, cfg.Height, MaxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		metrics.CompressionFailures.Inc()
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	b := img.Bounds()
	ow, oh := b.Dx(), b.Dy()
	if ow == 0 || oh == 0 {
		metrics.CompressionFailures.Inc()
		return nil, fmt.Errorf("%w: empty image", ErrDecode)
	}

	scale := math.Min(1, float64(c.opts.MaxDim)/float64(max(ow, oh)))
	w := max(1, int(math.Round(float64(ow)*scale)))
	h := max(1, int(math.Round(float64(oh)*scale)))

	canvas := render(img, w, h)
	quality := initialQuality
	payload, err := encode(canvas, quality)
	if err != nil {
		return nil, err
	}

	for PayloadBytes(payload) > c.opts.TargetMaxBytes && quality > c.opts.MinQuality {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		quality = math.Max(c.opts.MinQuality, quality-qualityStep)
		if payload, err = encode(canvas, quality); err != nil {
			return nil, err
		}
	}

	shrink := initialShrink
	for PayloadBytes(payload) > c.opts.TargetMaxBytes && max(w, h) > floorDim {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		w = max(1, int(math.Round(float64(w)*shrink)))
		h = max(1, int(math.Round(float64(h)*shrink)))
		canvas = render(img, w, h)
		if payload, err = encode(canvas, quality); err != nil {
			return nil, err
		}
		shrink -= shrinkStep
		if shrink < minShrink {
			break
		}
	}

	size := PayloadBytes(payload)
	metrics.ObserveCompression(start, size, c.opts.TargetMaxBytes)
	slog.Debug("Compressed receipt",
		"source_format", format,
		"source_bytes", len(src),
		"width", w,
		"height", h,
		"quality", quality,
		"bytes", size,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &Result{
		DataURI: "data:" + Mime + ";base64," + payload,
		Mime:    Mime,
		Ext:     Ext,
		Quality: quality,
		Width:   w,
		Height:  h,
		Bytes:   size,
	}, nil
}

// render draws src scaled to w×h onto a white canvas, since JPEG has no alpha.
func render(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}

// encode returns the base64 payload of img as JPEG at quality q.
func encode(img image.Image, q float64) (string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality(q)}); err != nil {
		return "", fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return base64Encode(buf.Bytes()), nil
}

// jpegQuality maps a 0..1 quality to the encoder's 1..100 scale.
func jpegQuality(q float64) int {
	return min(100, max(1, int(math.Round(q*100))))
}
