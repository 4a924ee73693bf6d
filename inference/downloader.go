package inference

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultMaxDownloadSize caps source image downloads at 20 MB, which
// comfortably covers anything a generation endpoint will accept.
const DefaultMaxDownloadSize = 20 << 20

// Downloader fetches source images referenced by URL so they can be
// attached to alchemy jobs as payload data.
//
// Thread Safety: Downloader is safe for concurrent use.
// Each download creates its own HTTP request.
type Downloader struct {
	client  *http.Client
	maxSize int64
}

// DownloaderConfig holds configuration for the Downloader.
type DownloaderConfig struct {
	// HTTPClient is the HTTP client for downloads (optional)
	HTTPClient *http.Client

	// MaxSize caps the downloaded payload in bytes
	// Default: 20 MB
	MaxSize int64

	// Timeout for download operations
	// Default: 60 seconds
	Timeout time.Duration
}

// DefaultDownloaderConfig returns sensible defaults for downloading
// source images.
func DefaultDownloaderConfig() DownloaderConfig {
	return DownloaderConfig{
		MaxSize: DefaultMaxDownloadSize,
		Timeout: 60 * time.Second,
	}
}

// NewDownloader creates a source image downloader.
func NewDownloader(config DownloaderConfig) *Downloader {
	client := config.HTTPClient
	if client == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	maxSize := config.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxDownloadSize
	}

	return &Downloader{
		client:  client,
		maxSize: maxSize,
	}
}

// DownloadResult contains the downloaded image payload.
type DownloadResult struct {
	// Data is the raw image bytes
	Data []byte

	// ContentType is the MIME type reported by the server
	ContentType string
}

// Download fetches an image from the given URL.
//
// Returns an error if:
//   - The URL is empty or the request fails
//   - The server responds with a non-200 status
//   - The response is not an image content type
//   - The payload exceeds the configured size cap
func (d *Downloader) Download(ctx context.Context, url string) (*DownloadResult, error) {
	if url == "" {
		return nil, fmt.Errorf("inference: download URL cannot be empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("inference: failed to build download request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference: download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference: download returned status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("inference: expected image content, got %s", contentType)
	}

	// Read one byte past the cap to distinguish at-limit from over-limit
	data, err := io.ReadAll(io.LimitReader(resp.Body, d.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("inference: failed to read image data: %w", err)
	}
	if int64(len(data)) > d.maxSize {
		return nil, fmt.Errorf("inference: image exceeds size limit of %d bytes", d.maxSize)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("inference: downloaded image is empty")
	}

	return &DownloadResult{
		Data:        data,
		ContentType: contentType,
	}, nil
}
