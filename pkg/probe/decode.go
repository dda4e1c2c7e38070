package probe

import (
	"context"
	"fmt"
	"image"
	_ "image/gif" // register decoders for image.DecodeConfig
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Sriram-PR/page-auditor/pkg/fetch"
	"github.com/Sriram-PR/page-auditor/pkg/models"
	"github.com/Sriram-PR/page-auditor/pkg/utils"
)

// sniffLen is how many leading bytes are handed to the MIME sniffer
const sniffLen = 3072

// Content types accepted as images
var imageMIMETypes = map[string]bool{
	"image/jpeg":               true,
	"image/jpg":                true,
	"image/png":                true,
	"image/gif":                true,
	"image/webp":               true,
	"image/svg+xml":            true,
	"image/bmp":                true,
	"image/tiff":               true,
	"image/x-icon":             true,
	"image/vnd.microsoft.icon": true,
	"image/avif":               true,
	"image/heic":               true,
	"image/heif":               true,
}

// Types image.DecodeConfig can read with the registered decoders
var decodableTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
	"image/tiff": true,
}

// IsImageMIME reports whether a media type is on the image allowlist
func IsImageMIME(mediaType string) bool {
	return imageMIMETypes[mediaType]
}

// mediaType strips parameters from a Content-Type value and lowercases it
func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		return mt
	}
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

// sniff detects the media type of the leading bytes of a resource
func sniff(head []byte) string {
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	return mediaType(mimetype.Detect(head).String())
}

// decodeDimensions reads only the image header
func decodeDimensions(r io.Reader) (models.Dimensions, error) {
	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return models.Dimensions{}, fmt.Errorf("%w: %w", utils.ErrDecode, err)
	}
	return models.Dimensions{Width: cfg.Width, Height: cfg.Height}, nil
}

// ImageDecoder loads an image and reports its pixel dimensions. Implementations may observe
// pixel data even where response metadata is hidden from the probe.
type ImageDecoder interface {
	DecodeConfig(ctx context.Context, rawURL string) (models.Dimensions, error)
}

// HTTPDecoder is the default ImageDecoder: a GET followed by image.DecodeConfig
type HTTPDecoder struct {
	fetcher  *fetch.Fetcher
	timeout  time.Duration
	maxBytes int64
}

// NewHTTPDecoder creates a decoder that reads at most maxBytes of each image
func NewHTTPDecoder(fetcher *fetch.Fetcher, timeout time.Duration, maxBytes int64) *HTTPDecoder {
	return &HTTPDecoder{fetcher: fetcher, timeout: timeout, maxBytes: maxBytes}
}

func (d *HTTPDecoder) DecodeConfig(ctx context.Context, rawURL string) (models.Dimensions, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	resp, err := d.fetcher.Do(ctx, fetch.Request{Method: http.MethodGet, URL: rawURL, Accept: fetch.AcceptImage})
	if err != nil {
		if resp != nil {
			fetch.Discard(resp)
		}
		return models.Dimensions{}, err
	}
	defer fetch.Discard(resp)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.Dimensions{}, fmt.Errorf("%w: HTTP %d", utils.ErrDecode, resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if d.maxBytes > 0 {
		body = io.LimitReader(resp.Body, d.maxBytes)
	}
	return decodeDimensions(body)
}
