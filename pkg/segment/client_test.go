package segment

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/teslashibe/go-holocam/internal/log"
	"github.com/teslashibe/go-holocam/pkg/frame"
)

const (
	testW = 64
	testH = 48
)

// maskServer answers every POST with a mask whose bytes are (row+col)%2.
func maskServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/octet-stream" {
			t.Errorf("Expected application/octet-stream, got %s", ct)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("Expected X-Request-ID header")
		}
		body, _ := io.ReadAll(r.Body)
		if !bytes.HasPrefix(body, []byte{0xFF, 0xD8}) {
			t.Errorf("Expected JPEG body, got % x", body[:min(4, len(body))])
		}

		out := make([]byte, testW*testH)
		for y := 0; y < testH; y++ {
			for x := 0; x < testW; x++ {
				out[y*testW+x] = byte((x + y) % 2)
			}
		}
		w.Write(out)
	}))
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := NewClient(WithBaseURL(url), WithLogger(log.Discard()))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestClientMask(t *testing.T) {
	server := maskServer(t)
	defer server.Close()

	c := newTestClient(t, server.URL+"/")
	f := frame.Solid(testW, testH, 10, 20, 30)
	defer f.Close()

	m, err := c.Mask(context.Background(), f)
	if err != nil {
		t.Fatalf("Mask: %v", err)
	}
	defer m.Close()

	if got := frame.ShapeOf(m); got != frame.MaskShape(testW, testH) {
		t.Fatalf("shape = %s", got)
	}
	for _, p := range [][2]int{{0, 0}, {0, 1}, {5, 9}, {47, 63}} {
		want := uint8((p[0] + p[1]) % 2)
		if got := m.GetUCharAt(p[0], p[1]); got != want {
			t.Errorf("mask(%d,%d) = %d, want %d", p[0], p[1], got, want)
		}
	}
}

func TestClientServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	f := frame.Solid(testW, testH, 0, 0, 0)
	defer f.Close()

	m, err := c.Mask(context.Background(), f)
	defer m.Close()

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if !apiErr.IsWarmingUp() || apiErr.Message != "model loading" {
		t.Errorf("APIError = %+v", apiErr)
	}
	if !IsRetryable(err) {
		t.Error("service errors should be retryable")
	}
	if !m.Empty() {
		t.Error("failed request returned a non-empty mask")
	}
}

func TestClientReusesConnectionOnError(t *testing.T) {
	var conns atomic.Int32
	server := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write(bytes.Repeat([]byte("warming up "), 2048))
	}))
	server.Config.ConnState = func(c net.Conn, s http.ConnState) {
		if s == http.StateNew {
			conns.Add(1)
		}
	}
	server.Start()
	defer server.Close()

	c := newTestClient(t, server.URL)
	f := frame.Solid(testW, testH, 0, 0, 0)
	defer f.Close()

	for i := 0; i < 3; i++ {
		m, err := c.Mask(context.Background(), f)
		m.Close()
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("request %d: err = %v, want *APIError", i, err)
		}
	}
	if n := conns.Load(); n != 1 {
		t.Errorf("opened %d connections, want 1 reused keep-alive connection", n)
	}
}

func TestClientShortBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, testW*testH-1))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	f := frame.Solid(testW, testH, 0, 0, 0)
	defer f.Close()

	m, err := c.Mask(context.Background(), f)
	defer m.Close()

	var sme *frame.ShapeMismatchError
	if !errors.As(err, &sme) {
		t.Fatalf("err = %v, want ShapeMismatchError", err)
	}
	if IsRetryable(err) {
		t.Error("malformed masks should not be retried")
	}
}

func TestClientConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c := newTestClient(t, url)
	f := frame.Solid(testW, testH, 0, 0, 0)
	defer f.Close()

	m, err := c.Mask(context.Background(), f)
	defer m.Close()

	var tErr *TransportError
	if !errors.As(err, &tErr) {
		t.Fatalf("err = %v, want *TransportError", err)
	}
	if !IsRetryable(err) {
		t.Error("transport errors should be retryable")
	}
}

func TestClientWithRetryingRecovers(t *testing.T) {
	var hits atomic.Int32
	ok := maskServer(t)
	defer ok.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		ok.Config.Handler.ServeHTTP(w, r)
	}))
	defer server.Close()

	policy := RetryPolicy{MaxAttempts: 5}
	r := NewRetrying(newTestClient(t, server.URL), policy, log.Discard())

	f := frame.Solid(testW, testH, 0, 0, 0)
	defer f.Close()

	m, err := r.Mask(context.Background(), f)
	if err != nil {
		t.Fatalf("Mask: %v", err)
	}
	defer m.Close()

	if hits.Load() != 3 {
		t.Errorf("server hits = %d, want 3", hits.Load())
	}
	if s := r.Stats(); s.Attempts != 3 || s.Failures != 2 || s.Successes != 1 {
		t.Errorf("Stats = %+v", s)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"default", func(*Config) {}, nil},
		{"no url", func(c *Config) { c.BaseURL = "" }, ErrNoBaseURL},
		{"quality zero", func(c *Config) { c.JPEGQuality = 0 }, ErrInvalidConfig},
		{"negative timeout", func(c *Config) { c.Timeout = -1 }, ErrInvalidConfig},
		{"shrinking backoff", func(c *Config) { c.Retry.Multiplier = 0.5 }, ErrInvalidConfig},
		{"no max delay", func(c *Config) { c.Retry.MaxDelay = 0 }, ErrInvalidConfig},
		{"immediate retries", func(c *Config) { c.Retry.InitialDelay, c.Retry.MaxDelay = 0, 0 }, nil},
		{"max below initial", func(c *Config) { c.Retry.MaxDelay = c.Retry.InitialDelay / 2 }, ErrInvalidConfig},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.want == nil && err != nil {
				t.Fatalf("Validate: unexpected error %v", err)
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("Validate: err = %v, want %v", err, tc.want)
			}
		})
	}
}
