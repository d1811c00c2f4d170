// Package source acquires image bytes for a transform request, either by
// SSRF-protected URL fetch or from an uploaded request body.
package source

import (
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"

	"github.com/oszuidwest/zwfm-imageproxy/internal/types"
)

// uploadFields are the accepted multipart field names, in lookup order.
var uploadFields = []string{"file", "image", "blob"}

// Getter performs an HTTP GET. Production uses the safeurl wrapped client;
// tests substitute a stub.
type Getter interface {
	Get(url string) (*http.Response, error)
}

// Fetcher downloads source images from caller-supplied URLs.
type Fetcher struct {
	client   Getter
	maxBytes int64
}

// NewFetcher creates a Fetcher with SSRF protection and a bounded request
// timeout. Reads are capped one byte past maxBytes so the caller's size
// ceiling check can distinguish at-limit from over-limit.
func NewFetcher(maxBytes int64, timeout time.Duration) *Fetcher {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		Build()

	return &Fetcher{client: safeurl.Client(config), maxBytes: maxBytes}
}

// NewFetcherWithClient creates a Fetcher around an explicit HTTP client.
func NewFetcherWithClient(client Getter, maxBytes int64) *Fetcher {
	return &Fetcher{client: client, maxBytes: maxBytes}
}

// FromURL validates and downloads an image. Fetch failures are terminal for
// the request; nothing here is retried.
func (f *Fetcher) FromURL(urlString string) ([]byte, error) {
	if err := validateURL(urlString); err != nil {
		return nil, err
	}

	resp, err := f.client.Get(urlString)
	if err != nil {
		return nil, types.WrapError(types.KindFetchFailed, "Failed to fetch image", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Debug("Failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, types.NewErrorf(types.KindFetchFailed, "Failed to fetch image: HTTP %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, types.NewError(types.KindFetchFailed, "URL does not point to an image")
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, types.WrapError(types.KindFetchFailed, "Failed to read image data", err)
	}

	return data, nil
}

// validateURL checks scheme and hostname before any network activity.
func validateURL(urlString string) error {
	parsed, err := url.Parse(urlString)
	if err != nil {
		return types.WrapError(types.KindInvalidParameter, "Invalid URL", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return types.NewError(types.KindInvalidParameter, "Only HTTP and HTTPS URLs are allowed")
	}

	if parsed.Host == "" {
		return types.NewError(types.KindInvalidParameter, "URL has no hostname")
	}

	return nil
}

// ReadUpload extracts image bytes from a POST body: a multipart form field
// named file, image, or blob, or a raw binary body declared as image/* or
// application/octet-stream.
func ReadUpload(r *http.Request, maxBytes int64) ([]byte, error) {
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "multipart/form-data") {
		return readMultipart(r, maxBytes)
	}

	if !strings.HasPrefix(contentType, "image/") && contentType != "application/octet-stream" {
		return nil, types.NewErrorf(types.KindInvalidParameter,
			"Unsupported content type: %s. Use image/* or application/octet-stream", contentType)
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
	if err != nil {
		return nil, types.WrapError(types.KindInvalidParameter, "Failed to read request body", err)
	}

	if len(data) == 0 {
		return nil, types.NewError(types.KindInvalidParameter, "Missing image data in request body")
	}

	return data, nil
}

func readMultipart(r *http.Request, maxBytes int64) ([]byte, error) {
	for _, field := range uploadFields {
		file, header, err := r.FormFile(field)
		if err != nil {
			continue
		}
		defer func() {
			if err := file.Close(); err != nil {
				slog.Debug("Failed to close multipart file", "error", err)
			}
		}()

		// Clients that don't set a part content type send octet-stream;
		// the sniffer decides whether the bytes are really an image.
		if ct := header.Header.Get("Content-Type"); ct != "" &&
			!strings.HasPrefix(ct, "image/") && ct != "application/octet-stream" {
			return nil, types.NewError(types.KindInvalidParameter, "Uploaded file must be an image")
		}

		data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
		if err != nil {
			return nil, types.WrapError(types.KindInvalidParameter, "Failed to read uploaded file", err)
		}
		return data, nil
	}

	return nil, types.NewError(types.KindInvalidParameter,
		"Missing file in form data. Use field name: file, image, or blob")
}

// CheckSize enforces the global source size ceiling before any codec work.
func CheckSize(data []byte, maxBytes int64) error {
	if int64(len(data)) > maxBytes {
		return types.NewErrorf(types.KindPayloadTooLarge,
			"Image too large. Maximum size: %dMB", maxBytes/1024/1024)
	}
	return nil
}
