package extend

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/jmylchreest/openwtv/internal/version"
)

// Transport defaults.
const (
	DefaultTimeout         = 30 * time.Second
	DefaultMaxResponseSize = 4 << 20

	maxErrorBodyReadSize = 1024
	acceptEncoding       = "gzip, deflate, br"
)

// HTTP header constants.
const (
	headerUserAgent       = "User-Agent"
	headerAcceptEncoding  = "Accept-Encoding"
	headerContentEncoding = "Content-Encoding"
)

// ErrResponseTooLarge is wrapped by the NetworkError returned when a body
// exceeds the configured maximum size.
var ErrResponseTooLarge = errors.New("response body exceeds maximum size limit")

// Transport performs a single GET and returns the complete response body.
// It is the only network primitive the session client uses.
type Transport interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, url string) ([]byte, error)

// Fetch calls f(ctx, url).
func (f TransportFunc) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}

// HTTPTransport is the default Transport. It never retries: a failed fetch
// fails the calling operation.
type HTTPTransport struct {
	client          *http.Client
	userAgent       string
	maxResponseSize int64
	logger          *slog.Logger
}

// TransportOption configures an HTTPTransport.
type TransportOption func(*HTTPTransport)

// WithHTTPClient sets the underlying *http.Client.
func WithHTTPClient(client *http.Client) TransportOption {
	return func(t *HTTPTransport) {
		t.client = client
	}
}

// WithTimeout replaces the HTTP client with one using the given timeout.
func WithTimeout(timeout time.Duration) TransportOption {
	return func(t *HTTPTransport) {
		t.client = &http.Client{Timeout: timeout}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) TransportOption {
	return func(t *HTTPTransport) {
		t.userAgent = ua
	}
}

// WithMaxResponseSize limits decoded response bodies. Zero disables the limit.
func WithMaxResponseSize(n int64) TransportOption {
	return func(t *HTTPTransport) {
		t.maxResponseSize = n
	}
}

// WithTransportLogger sets the logger used for request tracing.
func WithTransportLogger(logger *slog.Logger) TransportOption {
	return func(t *HTTPTransport) {
		t.logger = logger
	}
}

// NewHTTPTransport creates an HTTPTransport with DefaultTimeout and
// DefaultMaxResponseSize unless overridden.
func NewHTTPTransport(opts ...TransportOption) *HTTPTransport {
	t := &HTTPTransport{
		client:          &http.Client{Timeout: DefaultTimeout},
		userAgent:       version.UserAgent(),
		maxResponseSize: DefaultMaxResponseSize,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.client == nil {
		t.client = http.DefaultClient
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	return t
}

// Fetch issues a GET for rawURL and reads the whole body. The response body
// is closed on every path.
func (t *HTTPTransport) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &NetworkError{Op: "fetch", URL: rawURL, Err: fmt.Errorf("creating request: %w", err)}
	}
	if t.userAgent != "" {
		req.Header.Set(headerUserAgent, t.userAgent)
	}
	req.Header.Set(headerAcceptEncoding, acceptEncoding)

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.DebugContext(ctx, "extend request failed",
			slog.String("url", rawURL),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()),
		)
		return nil, &NetworkError{Op: "fetch", URL: rawURL, Err: unwrapURLError(err)}
	}
	defer resp.Body.Close()

	body, err := decompress(resp)
	if err != nil {
		return nil, &NetworkError{Op: "fetch", URL: rawURL, Err: err}
	}
	defer body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(body, maxErrorBodyReadSize))
		t.logger.WarnContext(ctx, "extend request rejected",
			slog.String("url", rawURL),
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(excerpt)),
		)
		return nil, &NetworkError{Op: "fetch", URL: rawURL, StatusCode: resp.StatusCode}
	}

	reader := io.Reader(body)
	if t.maxResponseSize > 0 {
		reader = io.LimitReader(body, t.maxResponseSize+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, &NetworkError{Op: "fetch", URL: rawURL, Err: fmt.Errorf("reading body: %w", unwrapURLError(err))}
	}
	if t.maxResponseSize > 0 && int64(len(data)) > t.maxResponseSize {
		return nil, &NetworkError{Op: "fetch", URL: rawURL, Err: ErrResponseTooLarge}
	}

	t.logger.DebugContext(ctx, "extend request completed",
		slog.String("url", rawURL),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
		slog.Int("bytes", len(data)),
	)
	return data, nil
}

// unwrapURLError strips *url.Error so that error messages shown to users do
// not repeat the request URL and its session identifier.
func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

// decompress wraps the response body according to Content-Encoding.
func decompress(resp *http.Response) (io.ReadCloser, error) {
	switch strings.ToLower(resp.Header.Get(headerContentEncoding)) {
	case "", "identity":
		return io.NopCloser(resp.Body), nil
	case "gzip":
		r, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("creating gzip reader: %w", err)
		}
		return r, nil
	case "deflate":
		return flate.NewReader(resp.Body), nil
	case "br":
		return io.NopCloser(brotli.NewReader(resp.Body)), nil
	default:
		return io.NopCloser(resp.Body), nil
	}
}
