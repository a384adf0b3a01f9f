package preprocess

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"
)

func makeTestPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), 120, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestDecode_InvalidBuffer(t *testing.T) {
	_, err := Decode("bad", []byte("this is not an image"))
	if !errors.Is(err, ErrInvalidImage) {
		t.Errorf("Expected ErrInvalidImage, got %v", err)
	}
}

func TestDecode_ReportsDimensionsAndFormat(t *testing.T) {
	raw, err := Decode("drawing-1", makeTestPNG(t, 320, 200))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if raw.Width != 320 || raw.Height != 200 {
		t.Errorf("Expected 320x200, got %dx%d", raw.Width, raw.Height)
	}
	if string(raw.Format) != "png" {
		t.Errorf("Expected format png, got %s", raw.Format)
	}
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"Zero contrast", Options{ContrastFactor: 0, MaxDimension: 100}},
		{"Negative contrast", Options{ContrastFactor: -1, MaxDimension: 100}},
		{"Zero max dimension", Options{ContrastFactor: 1, MaxDimension: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.opts.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestPreprocess_InvalidImage(t *testing.T) {
	raw, _ := Decode("x", makeTestPNG(t, 10, 10))
	raw.Data = []byte("garbage")

	_, err := Preprocess(raw, DefaultOptions())
	if !errors.Is(err, ErrInvalidImage) {
		t.Errorf("Expected ErrInvalidImage, got %v", err)
	}
}

func TestPreprocess_RespectsMaxDimension(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		maxDim        int
	}{
		{"Wide landscape", 3000, 1000, 2000},
		{"Tall portrait", 900, 2700, 1200},
		{"Square", 2500, 2500, 800},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := Decode("dim-test", makeTestPNG(t, tt.width, tt.height))
			if err != nil {
				t.Fatalf("Failed to decode test image: %v", err)
			}

			out, err := Preprocess(raw, Options{Grayscale: true, ContrastFactor: 1.5, MaxDimension: tt.maxDim})
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}

			longer := out.Width
			if out.Height > longer {
				longer = out.Height
			}
			if longer != tt.maxDim {
				t.Errorf("Expected longer side %d, got %d", tt.maxDim, longer)
			}

			originalAspect := float64(tt.width) / float64(tt.height)
			scaledAspect := float64(out.Width) / float64(out.Height)
			if math.Abs(scaledAspect-originalAspect)/originalAspect > 0.01 {
				t.Errorf("Aspect ratio drifted more than 1%%: original %v, scaled %v", originalAspect, scaledAspect)
			}
		})
	}
}

func TestPreprocess_SmallImagePassesThrough(t *testing.T) {
	raw, _ := Decode("small", makeTestPNG(t, 400, 300))

	out, err := Preprocess(raw, DefaultOptions())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if out.Width != 400 || out.Height != 300 {
		t.Errorf("Expected 400x300, got %dx%d", out.Width, out.Height)
	}
}

func TestPreprocess_OutputIsDecodablePNG(t *testing.T) {
	raw, _ := Decode("roundtrip", makeTestPNG(t, 500, 500))

	out, err := Preprocess(raw, DefaultOptions())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	img, err := png.Decode(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatalf("Output is not valid PNG: %v", err)
	}
	if img.Bounds().Dx() != out.Width || img.Bounds().Dy() != out.Height {
		t.Errorf("Reported dimensions %dx%d do not match decoded %dx%d",
			out.Width, out.Height, img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestPreprocess_DoesNotMutateInput(t *testing.T) {
	data := makeTestPNG(t, 100, 100)
	original := append([]byte(nil), data...)
	raw, _ := Decode("immutable", data)

	if _, err := Preprocess(raw, DefaultOptions()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !bytes.Equal(raw.Data, original) {
		t.Error("Preprocess mutated the input buffer")
	}
}

func TestStretchChannel_Clamps(t *testing.T) {
	if got := stretchChannel(0xFFFF, 3.0); got != 255 {
		t.Errorf("Expected clamp to 255, got %d", got)
	}
	if got := stretchChannel(0, 3.0); got != 0 {
		t.Errorf("Expected clamp to 0, got %d", got)
	}
}
