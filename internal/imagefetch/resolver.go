// Package imagefetch downloads camera snapshots and turns them into inline
// data URLs so the display client needs no network access of its own.
package imagefetch

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Placeholder is a 1x1 transparent PNG shown when a snapshot is unavailable.
const Placeholder = "data:image/png;base64," +
	"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR4nGNgYAAAAAMAASsJTYQAAAAASUVORK5CYII="

// DefaultMaxBytes caps a single snapshot download.
const DefaultMaxBytes = 4 << 20

var (
	// ErrStatus is returned when the camera endpoint answers with a non-2xx status.
	ErrStatus = errors.New("unexpected status")
	// ErrTooLarge is returned when a snapshot exceeds the configured size cap.
	ErrTooLarge = errors.New("snapshot too large")
)

// Image is a downloaded snapshot.
type Image struct {
	Data        []byte
	ContentType string
}

// DataURL returns the image as a self-contained data URL.
func (i Image) DataURL() string {
	return "data:" + i.ContentType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// Resolver fetches the snapshot at address. Implementations must respect
// timeout and never retry.
type Resolver interface {
	Fetch(ctx context.Context, address, credential string, timeout time.Duration) (Image, error)
}

// Options configures an HTTPResolver.
type Options struct {
	// Client overrides the HTTP client. Its transport is used as-is.
	Client *http.Client
	// MaxBytes caps the body size; 0 selects DefaultMaxBytes.
	MaxBytes int64
	// Now is used for the cache-busting query parameter.
	Now func() time.Time
}

// HTTPResolver fetches snapshots over HTTP with a bearer credential.
type HTTPResolver struct {
	client   *http.Client
	maxBytes int64
	now      func() time.Time
}

// NewHTTPResolver creates a resolver. Without an explicit client it uses one
// whose transport is instrumented with OpenTelemetry.
func NewHTTPResolver(opts Options) *HTTPResolver {
	client := opts.Client
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &HTTPResolver{client: client, maxBytes: maxBytes, now: now}
}

// Fetch performs a single GET against address. A `_t` query parameter with
// the current unix milliseconds defeats intermediate caches.
func (r *HTTPResolver) Fetch(ctx context.Context, address, credential string, timeout time.Duration) (Image, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	target, err := bustCache(address, r.now())
	if err != nil {
		return Image{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Image{}, fmt.Errorf("failed to build request: %w", err)
	}
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return Image{}, fmt.Errorf("failed to fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Image{}, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
	if err != nil {
		return Image{}, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if int64(len(data)) > r.maxBytes {
		return Image{}, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, r.maxBytes)
	}

	return Image{Data: data, ContentType: mediaType(resp.Header.Get("Content-Type"))}, nil
}

func bustCache(address string, now time.Time) (string, error) {
	u, err := url.Parse(address)
	if err != nil {
		return "", fmt.Errorf("invalid snapshot address: %w", err)
	}
	stamp := "_t=" + strconv.FormatInt(now.UnixMilli(), 10)
	if u.RawQuery == "" {
		u.RawQuery = stamp
	} else {
		u.RawQuery += "&" + stamp
	}
	return u.String(), nil
}

// mediaType strips parameters from a Content-Type header. A missing header
// is reported as application/octet-stream; a header with no usable media
// type is assumed to be JPEG, which is what camera proxies serve.
func mediaType(header string) string {
	if header == "" {
		return "application/octet-stream"
	}
	mt, _, _ := strings.Cut(header, ";")
	mt = strings.TrimSpace(mt)
	if mt == "" {
		return "image/jpeg"
	}
	return mt
}

// DataURLOrPlaceholder resolves address and returns its data URL, or the
// placeholder together with the fetch error.
func DataURLOrPlaceholder(ctx context.Context, r Resolver, address, credential string, timeout time.Duration) (string, error) {
	img, err := r.Fetch(ctx, address, credential, timeout)
	if err != nil {
		return Placeholder, err
	}
	return img.DataURL(), nil
}
