package pipeline

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-holocam/pkg/segment"
)

// State is the driver lifecycle state.
type State int32

const (
	StateInit State = iota
	StateRunning
	StateShutdown
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRunning:
		return "running"
	case StateShutdown:
		return "shutdown"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Stats is a point-in-time snapshot of the driver.
type Stats struct {
	RunID string `json:"run_id"`
	State string `json:"state"`

	FramesCaptured  int64 `json:"frames_captured"`
	FramesPublished int64 `json:"frames_published"`
	FramesDropped   int64 `json:"frames_dropped"`
	CaptureFailures int64 `json:"capture_failures"`
	PublishFailures int64 `json:"publish_failures"`
	DegradedFrames  int64 `json:"degraded_frames"`
	ShapeMismatches int64 `json:"shape_mismatches"`

	// Degraded is true while frames are going out without a fresh mask.
	Degraded bool `json:"degraded"`

	Mask segment.Stats `json:"mask"`

	LastLatencyMS float64 `json:"last_latency_ms"`
	FPS           float64 `json:"fps"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// counters are written by the driver goroutines and read by Stats.
type counters struct {
	captured        atomic.Int64
	published       atomic.Int64
	dropped         atomic.Int64
	captureFailures atomic.Int64
	publishFailures atomic.Int64
	degraded        atomic.Int64
	mismatches      atomic.Int64

	degradedNow atomic.Bool
	lastLatency atomic.Int64 // nanoseconds
	fps         atomic.Uint64
	started     atomic.Int64 // unix nanoseconds, zero before Run
}

func (c *counters) setFPS(v float64) {
	c.fps.Store(math.Float64bits(v))
}

func (c *counters) snapshot() Stats {
	s := Stats{
		FramesCaptured:  c.captured.Load(),
		FramesPublished: c.published.Load(),
		FramesDropped:   c.dropped.Load(),
		CaptureFailures: c.captureFailures.Load(),
		PublishFailures: c.publishFailures.Load(),
		DegradedFrames:  c.degraded.Load(),
		ShapeMismatches: c.mismatches.Load(),
		Degraded:        c.degradedNow.Load(),
		LastLatencyMS:   float64(c.lastLatency.Load()) / float64(time.Millisecond),
		FPS:             math.Float64frombits(c.fps.Load()),
	}
	if started := c.started.Load(); started != 0 {
		s.UptimeSeconds = time.Since(time.Unix(0, started)).Seconds()
	}
	return s
}
