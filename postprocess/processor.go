package postprocess

import (
	"fmt"
	"image"
)

// OutputFormat selects the encoding applied after processing.
type OutputFormat string

const (
	// FormatPNG re-encodes results as PNG (lossless)
	FormatPNG OutputFormat = "png"
	// FormatJPEG re-encodes results as JPEG
	FormatJPEG OutputFormat = "jpeg"
)

// ProcessorConfig holds configuration for the image processor.
type ProcessorConfig struct {
	// MaxDimension caps the longer edge of processed images
	// Default: 3072 (no horde model outputs more without upscaling)
	MaxDimension int

	// Format is the output encoding
	// Default: FormatPNG
	Format OutputFormat

	// JPEGQuality applies when Format is FormatJPEG (1-100)
	// Default: 90
	JPEGQuality int
}

// DefaultProcessorConfig returns sensible defaults for processing
// generated images.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		MaxDimension: 3072,
		Format:       FormatPNG,
		JPEGQuality:  90,
	}
}

// Processor runs the local post-processing pipeline on generated
// images: decode, downscale to fit, re-encode.
//
// Thread Safety: Processor is safe for concurrent use; it holds no
// mutable state.
type Processor struct {
	config ProcessorConfig
}

// NewProcessor creates a processor with the given configuration.
// Zero-value fields fall back to defaults.
func NewProcessor(config ProcessorConfig) *Processor {
	defaults := DefaultProcessorConfig()
	if config.MaxDimension <= 0 {
		config.MaxDimension = defaults.MaxDimension
	}
	if config.Format == "" {
		config.Format = defaults.Format
	}
	if config.JPEGQuality <= 0 || config.JPEGQuality > 100 {
		config.JPEGQuality = defaults.JPEGQuality
	}

	return &Processor{config: config}
}

// ProcessResult describes a processed image.
type ProcessResult struct {
	// Data is the re-encoded image
	Data []byte
	// Width and Height are the final dimensions
	Width  int
	Height int
	// SourceFormat is the format the input decoded as
	SourceFormat string
	// Format is the encoding applied to Data
	Format OutputFormat
	// Resized reports whether the image was scaled down
	Resized bool
}

// Process decodes, downscales, and re-encodes a generated image.
func (p *Processor) Process(data []byte) (*ProcessResult, error) {
	img, format, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}

	original := img.Bounds()
	resized, err := ResizeToFit(img, p.config.MaxDimension)
	if err != nil {
		return nil, err
	}

	encoded, err := p.encode(resized)
	if err != nil {
		return nil, err
	}

	final := resized.Bounds()
	return &ProcessResult{
		Data:         encoded,
		Width:        final.Dx(),
		Height:       final.Dy(),
		SourceFormat: format,
		Format:       p.config.Format,
		Resized:      final.Dx() != original.Dx() || final.Dy() != original.Dy(),
	}, nil
}

func (p *Processor) encode(img image.Image) ([]byte, error) {
	switch p.config.Format {
	case FormatPNG:
		return EncodePNG(img)
	case FormatJPEG:
		return EncodeJPEG(img, p.config.JPEGQuality)
	default:
		return nil, fmt.Errorf("postprocess: unknown output format %q", p.config.Format)
	}
}
