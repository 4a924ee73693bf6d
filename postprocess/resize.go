// Package postprocess implements local post-processing of generated
// images: decoding, high-quality downscaling, and re-encoding before
// results are handed back to the caller.
package postprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Image post-processing errors
var (
	ErrEmptyImage        = errors.New("postprocess: empty image data")
	ErrInvalidImage      = errors.New("postprocess: invalid image data")
	ErrInvalidDimensions = errors.New("postprocess: invalid dimensions")
)

// DecodeImage decodes image data from common formats (PNG, JPEG, GIF, WebP).
// Returns the decoded image and the detected format name.
// This is a pure function with no side effects.
func DecodeImage(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", ErrEmptyImage
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	return img, format, nil
}

// ResizeToFit scales an image down so neither dimension exceeds maxDim,
// preserving aspect ratio. Images already within bounds are returned
// unchanged. Uses Catmull-Rom interpolation for quality.
// This is a pure function with no side effects.
func ResizeToFit(img image.Image, maxDim int) (image.Image, error) {
	if maxDim <= 0 {
		return nil, ErrInvalidDimensions
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width <= maxDim && height <= maxDim {
		return img, nil
	}

	scale := float64(maxDim) / float64(max(width, height))
	newWidth := max(1, int(float64(width)*scale))
	newHeight := max(1, int(float64(height)*scale))

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)

	return dst, nil
}

// Thumbnail produces a square thumbnail of the given size, scaling to
// cover and cropping the overflow from the center.
func Thumbnail(img image.Image, size int) (image.Image, error) {
	if size <= 0 {
		return nil, ErrInvalidDimensions
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	// Scale so the SHORTER edge matches, then crop the long edge
	scale := float64(size) / float64(min(width, height))
	newWidth := max(size, int(float64(width)*scale))
	newHeight := max(size, int(float64(height)*scale))

	scaled := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, bounds, draw.Src, nil)

	offsetX := (newWidth - size) / 2
	offsetY := (newHeight - size) / 2
	crop := image.Rect(offsetX, offsetY, offsetX+size, offsetY+size)

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(dst, dst.Bounds(), scaled, crop.Min, draw.Src)

	return dst, nil
}

// EncodePNG encodes an image as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("postprocess: PNG encode failed: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeJPEG encodes an image as JPEG bytes with the given quality (1-100).
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if quality < 1 || quality > 100 {
		return nil, fmt.Errorf("postprocess: JPEG quality must be 1-100, got %d", quality)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("postprocess: JPEG encode failed: %w", err)
	}
	return buf.Bytes(), nil
}
