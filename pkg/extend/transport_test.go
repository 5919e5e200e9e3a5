package extend

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPTransport_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Contains(t, r.Header.Get(headerUserAgent), "openwtv")
		assert.Equal(t, acceptEncoding, r.Header.Get(headerAcceptEncoding))
		w.Write([]byte(`<rsp stat="ok"/>`))
	}))
	defer server.Close()

	body, err := NewHTTPTransport().Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, `<rsp stat="ok"/>`, string(body))
}

func TestHTTPTransport_CustomUserAgent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "custom/1.0", r.Header.Get(headerUserAgent))
	}))
	defer server.Close()

	_, err := NewHTTPTransport(WithUserAgent("custom/1.0")).Fetch(context.Background(), server.URL)
	require.NoError(t, err)
}

func TestHTTPTransport_Decompression(t *testing.T) {
	payload := `<rsp stat="ok"><sid>compressed</sid></rsp>`

	t.Run("gzip", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(headerContentEncoding, "gzip")
			gz := gzip.NewWriter(w)
			gz.Write([]byte(payload))
			gz.Close()
		}))
		defer server.Close()

		body, err := NewHTTPTransport().Fetch(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Equal(t, payload, string(body))
	})

	t.Run("brotli", func(t *testing.T) {
		var buf bytes.Buffer
		bw := brotli.NewWriter(&buf)
		bw.Write([]byte(payload))
		bw.Close()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(headerContentEncoding, "br")
			w.Write(buf.Bytes())
		}))
		defer server.Close()

		body, err := NewHTTPTransport().Fetch(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Equal(t, payload, string(body))
	})
}

func TestHTTPTransport_HTTPErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewHTTPTransport().Fetch(context.Background(), server.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNetwork))

	var nerr *NetworkError
	require.True(t, errors.As(err, &nerr))
	assert.Equal(t, http.StatusInternalServerError, nerr.StatusCode)
}

func TestHTTPTransport_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewHTTPTransport().Fetch(context.Background(), url+"/services/service?method=x&sid=SECRET")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNetwork))
	assert.NotContains(t, err.Error(), "SECRET")
}

func TestHTTPTransport_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	_, err := NewHTTPTransport(WithTimeout(50*time.Millisecond)).Fetch(context.Background(), server.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNetwork))
}

func TestHTTPTransport_ContextCancel(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := NewHTTPTransport().Fetch(ctx, server.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNetwork))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestHTTPTransport_MaxResponseSize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 128)))
	}))
	defer server.Close()

	_, err := NewHTTPTransport(WithMaxResponseSize(64)).Fetch(context.Background(), server.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrResponseTooLarge))

	body, err := NewHTTPTransport(WithMaxResponseSize(128)).Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Len(t, body, 128)

	body, err = NewHTTPTransport(WithMaxResponseSize(0)).Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Len(t, body, 128)
}

func TestTransportFunc(t *testing.T) {
	var got string
	tr := TransportFunc(func(_ context.Context, url string) ([]byte, error) {
		got = url
		return []byte("ok"), nil
	})

	body, err := tr.Fetch(context.Background(), "http://example.invalid")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, "http://example.invalid", got)
}

type countingRoundTripper struct {
	calls int
	next  http.RoundTripper
}

func (c *countingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	c.calls++
	return c.next.RoundTrip(req)
}

func TestHTTPTransport_WithHTTPClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<rsp stat="ok"/>`))
	}))
	defer server.Close()

	rt := &countingRoundTripper{next: http.DefaultTransport}
	transport := NewHTTPTransport(WithHTTPClient(&http.Client{Transport: rt}))

	body, err := transport.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, `<rsp stat="ok"/>`, string(body))
	assert.Equal(t, 1, rt.calls)
}
