package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"

	_ "image/jpeg"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"

	"github.com/pipeworks/profile-ocr-service/internal/models"
)

// ErrInvalidImage marks a buffer that cannot be decoded as an image.
var ErrInvalidImage = errors.New("invalid image")

// Options controls the normalization applied before OCR.
type Options struct {
	Grayscale      bool
	ContrastFactor float64 // > 0; 1.0 leaves contrast unchanged
	MaxDimension   int     // > 0; longer side is capped at this many pixels
}

// DefaultOptions mirrors the settings used for vintage profile drawings:
// grayscale, doubled contrast, bounded at 2000px.
func DefaultOptions() Options {
	return Options{Grayscale: true, ContrastFactor: 2.0, MaxDimension: 2000}
}

// Validate rejects option values the transform cannot honor.
func (o Options) Validate() error {
	if o.ContrastFactor <= 0 {
		return fmt.Errorf("contrast_factor must be positive, got %v", o.ContrastFactor)
	}
	if o.MaxDimension <= 0 {
		return fmt.Errorf("max_dimension must be positive, got %d", o.MaxDimension)
	}
	return nil
}

// Decode reads an image buffer into a RawImage with its format tag and
// dimensions. Returns ErrInvalidImage when the buffer is not a supported
// image (PNG, JPEG or TIFF).
func Decode(id string, data []byte) (models.RawImage, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return models.RawImage{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return models.RawImage{
		ID:     id,
		Data:   data,
		Format: models.ImageFormat(format),
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}

// Preprocess normalizes a raw drawing for the OCR backend: optional
// grayscale, linear contrast stretch around mid-gray, and an
// aspect-preserving downscale so the longer side never exceeds MaxDimension.
// The result is always PNG-encoded. The transform is pure; the input is
// never modified.
func Preprocess(raw models.RawImage, opts Options) (models.PreprocessedImage, error) {
	if err := opts.Validate(); err != nil {
		return models.PreprocessedImage{}, err
	}

	img, format, err := image.Decode(bytes.NewReader(raw.Data))
	if err != nil {
		return models.PreprocessedImage{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	slog.Debug("preprocess: decoded image",
		"source_id", raw.ID,
		"format", format,
		"width", width,
		"height", height)

	if opts.Grayscale {
		img = toGray(img)
	}
	if opts.ContrastFactor != 1.0 {
		img = stretchContrast(img, opts.ContrastFactor)
	}

	targetWidth, targetHeight := fitWithin(width, height, opts.MaxDimension)
	if targetWidth != width || targetHeight != height {
		slog.Debug("preprocess: downscaling",
			"source_id", raw.ID,
			"scaled_width", targetWidth,
			"scaled_height", targetHeight)
		scaled := image.NewRGBA(image.Rect(0, 0, targetWidth, targetHeight))
		xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), img, img.Bounds(), xdraw.Over, nil)
		img = scaled
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return models.PreprocessedImage{}, fmt.Errorf("failed to encode preprocessed image: %w", err)
	}

	return models.PreprocessedImage{
		SourceID: raw.ID,
		Data:     buf.Bytes(),
		Width:    targetWidth,
		Height:   targetHeight,
	}, nil
}

// fitWithin computes dimensions whose longer side equals max when the source
// exceeds it, preserving aspect ratio. Smaller images pass through unchanged.
func fitWithin(width, height, max int) (int, int) {
	longer := width
	if height > width {
		longer = height
	}
	if longer <= max {
		return width, height
	}
	ratio := float64(max) / float64(longer)
	scaledW := int(float64(width)*ratio + 0.5)
	scaledH := int(float64(height)*ratio + 0.5)
	if scaledW < 1 {
		scaledW = 1
	}
	if scaledH < 1 {
		scaledH = 1
	}
	return scaledW, scaledH
}

func toGray(img image.Image) image.Image {
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, img.At(x, y))
		}
	}
	return gray
}

// stretchContrast applies a linear stretch around mid-gray. A factor of 2
// doubles the distance of every sample from 128, clamped to [0, 255].
func stretchContrast(img image.Image, factor float64) image.Image {
	bounds := img.Bounds()
	out := image.NewRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			out.Set(x, y, color.RGBA{
				R: stretchChannel(r, factor),
				G: stretchChannel(g, factor),
				B: stretchChannel(b, factor),
				A: uint8(a >> 8),
			})
		}
	}
	return out
}

func stretchChannel(c uint32, factor float64) uint8 {
	v := 128 + (float64(c>>8)-128)*factor
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
