package postprocess

import (
	"image"
	"image/color"
	"testing"
)

// testPNG encodes a solid-color image of the given dimensions.
func testPNG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 40, G: 120, B: 200, A: 255})
		}
	}

	data, err := EncodePNG(img)
	if err != nil {
		t.Fatalf("EncodePNG() error = %v", err)
	}
	return data
}

func TestDecodeImage(t *testing.T) {
	img, format, err := DecodeImage(testPNG(t, 8, 6))
	if err != nil {
		t.Fatalf("DecodeImage() error = %v", err)
	}
	if format != "png" {
		t.Errorf("format = %s, want png", format)
	}
	if img.Bounds().Dx() != 8 || img.Bounds().Dy() != 6 {
		t.Errorf("bounds = %v, want 8x6", img.Bounds())
	}
}

func TestDecodeImageRejectsGarbage(t *testing.T) {
	if _, _, err := DecodeImage([]byte("not an image")); err == nil {
		t.Fatal("DecodeImage() expected error for garbage input, got nil")
	}
	if _, _, err := DecodeImage(nil); err != ErrEmptyImage {
		t.Fatalf("DecodeImage(nil) error = %v, want ErrEmptyImage", err)
	}
}

func TestResizeToFit(t *testing.T) {
	tests := []struct {
		name       string
		width      int
		height     int
		maxDim     int
		wantWidth  int
		wantHeight int
	}{
		{"wide image scales to max width", 200, 100, 50, 50, 25},
		{"tall image scales to max height", 100, 200, 50, 25, 50},
		{"within bounds unchanged", 40, 30, 50, 40, 30},
		{"exact fit unchanged", 50, 50, 50, 50, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := image.NewRGBA(image.Rect(0, 0, tt.width, tt.height))
			resized, err := ResizeToFit(img, tt.maxDim)
			if err != nil {
				t.Fatalf("ResizeToFit() error = %v", err)
			}
			bounds := resized.Bounds()
			if bounds.Dx() != tt.wantWidth || bounds.Dy() != tt.wantHeight {
				t.Errorf("ResizeToFit() = %dx%d, want %dx%d",
					bounds.Dx(), bounds.Dy(), tt.wantWidth, tt.wantHeight)
			}
		})
	}
}

func TestResizeToFitRejectsBadDimension(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	if _, err := ResizeToFit(img, 0); err != ErrInvalidDimensions {
		t.Fatalf("ResizeToFit(0) error = %v, want ErrInvalidDimensions", err)
	}
}

func TestThumbnailCropsToSquare(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 300, 100))
	thumb, err := Thumbnail(img, 64)
	if err != nil {
		t.Fatalf("Thumbnail() error = %v", err)
	}
	if thumb.Bounds().Dx() != 64 || thumb.Bounds().Dy() != 64 {
		t.Errorf("Thumbnail() = %v, want 64x64", thumb.Bounds())
	}
}

func TestProcessorDownscalesAndReencodes(t *testing.T) {
	p := NewProcessor(ProcessorConfig{MaxDimension: 32})

	result, err := p.Process(testPNG(t, 128, 64))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if result.Width != 32 || result.Height != 16 {
		t.Errorf("Process() dimensions = %dx%d, want 32x16", result.Width, result.Height)
	}
	if !result.Resized {
		t.Error("Process() Resized = false, want true")
	}
	if result.SourceFormat != "png" {
		t.Errorf("Process() SourceFormat = %s, want png", result.SourceFormat)
	}

	// Output must decode on its own
	if _, _, err := DecodeImage(result.Data); err != nil {
		t.Errorf("processed output failed to decode: %v", err)
	}
}

func TestProcessorJPEGOutput(t *testing.T) {
	p := NewProcessor(ProcessorConfig{MaxDimension: 64, Format: FormatJPEG, JPEGQuality: 80})

	result, err := p.Process(testPNG(t, 16, 16))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	_, format, err := DecodeImage(result.Data)
	if err != nil {
		t.Fatalf("output failed to decode: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("output format = %s, want jpeg", format)
	}
	if result.Resized {
		t.Error("Process() Resized = true for in-bounds image")
	}
}
