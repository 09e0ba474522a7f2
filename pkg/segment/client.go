// Package segment fetches per-pixel foreground masks from a remote
// segmentation service (a bodypix style HTTP endpoint).
//
// The wire protocol is deliberately dumb: POST the frame as a JPEG with
// Content-Type application/octet-stream, read back exactly width*height
// bytes, one uint8 score per pixel in row-major order.
package segment

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/teslashibe/go-holocam/internal/httpc"
	"github.com/teslashibe/go-holocam/pkg/frame"
)

// Provider produces a raw CV_8UC1 mask matching the frame's size.
// The caller owns the returned Mat. On error the returned Mat is empty.
type Provider interface {
	Mask(ctx context.Context, f gocv.Mat) (gocv.Mat, error)
}

// Client is a single-attempt Provider talking HTTP to the service.
// Wrap it with NewRetrying for the retry policy.
type Client struct {
	baseURL string
	quality int
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a new segmentation client.
func NewClient(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		quality: cfg.JPEGQuality,
		http:    httpc.NewClient(cfg.Timeout),
		logger:  cfg.Logger.With("component", "segment.client"),
	}, nil
}

// Mask sends f to the service and returns its mask.
func (c *Client) Mask(ctx context.Context, f gocv.Mat) (gocv.Mat, error) {
	if f.Empty() {
		return gocv.NewMat(), frame.ErrEmptyFrame
	}
	start := time.Now()
	width, height := f.Cols(), f.Rows()

	body, err := c.encode(f)
	if err != nil {
		return gocv.NewMat(), err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("segment: build request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return gocv.NewMat(), ctx.Err()
		}
		return gocv.NewMat(), &TransportError{Op: "post", Err: err}
	}
	defer func() {
		// Drain so the keep-alive connection goes back to the pool.
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return gocv.NewMat(), &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(msg)),
		}
	}

	want := width * height
	data, err := io.ReadAll(io.LimitReader(resp.Body, int64(want)+1))
	if err != nil {
		if ctx.Err() != nil {
			return gocv.NewMat(), ctx.Err()
		}
		return gocv.NewMat(), &TransportError{Op: "read body", Err: err}
	}
	if len(data) != want {
		return gocv.NewMat(), &frame.ShapeMismatchError{
			What: "mask body",
			Want: frame.MaskShape(width, height),
			Got:  frame.Shape{Width: len(data), Height: 1, Channels: 1},
		}
	}

	view, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC1, data)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("segment: wrap mask: %w", err)
	}
	mask := view.Clone()
	view.Close()

	c.logger.Debug("mask received",
		"request_id", requestID,
		"request_bytes", len(body),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return mask, nil
}

// encode JPEG-encodes f and copies the bytes out of native memory.
func (c *Client) encode(f gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, f, []int{gocv.IMWriteJpegQuality, c.quality})
	if err != nil {
		return nil, fmt.Errorf("segment: encode frame: %w", err)
	}
	defer buf.Close()
	return bytes.Clone(buf.GetBytes()), nil
}
