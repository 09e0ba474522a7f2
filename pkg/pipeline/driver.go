// Package pipeline drives the capture -> hologram -> composite -> output
// loop.
//
// Acquisition runs in its own goroutine and leaves only the newest frame
// in a single slot. The mask request for a frame runs in a worker
// goroutine while the same frame is being stylized; everything else for
// that frame happens on the Run goroutine.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/teslashibe/go-holocam/pkg/camera"
	"github.com/teslashibe/go-holocam/pkg/composite"
	"github.com/teslashibe/go-holocam/pkg/frame"
	"github.com/teslashibe/go-holocam/pkg/mask"
	"github.com/teslashibe/go-holocam/pkg/segment"
	"github.com/teslashibe/go-holocam/pkg/stylize"
	"github.com/teslashibe/go-holocam/pkg/vcam"
)

var (
	// ErrNotInit is returned by Run on a driver that already ran.
	ErrNotInit = errors.New("pipeline: driver already started")

	// ErrCaptureLost is returned by Run after MaxCaptureFailures
	// consecutive failed reads.
	ErrCaptureLost = errors.New("pipeline: capture device lost")
)

// Stylizer renders the hologram effect. The result is a new Mat.
type Stylizer interface {
	Apply(src gocv.Mat) (gocv.Mat, error)
}

// MaskProcessor turns a raw mask into blend weights.
type MaskProcessor interface {
	Process(raw gocv.Mat) (gocv.Mat, error)
	Close() error
}

// Observer receives stats and preview frames. Calls come from driver
// goroutines and must not block.
type Observer interface {
	OnStats(Stats)
	OnPreview(jpeg []byte)
}

// Deps are the parts a Driver runs. The driver owns them after New and
// closes them when Run returns.
type Deps struct {
	Source     camera.Source
	Sink       vcam.Sink
	Background *composite.Background
	Stylizer   Stylizer
	Masks      segment.Provider
	Processor  MaskProcessor
}

func (d Deps) validate() error {
	switch {
	case d.Source == nil:
		return fmt.Errorf("%w: no frame source", ErrInvalidConfig)
	case d.Sink == nil:
		return fmt.Errorf("%w: no frame sink", ErrInvalidConfig)
	case d.Background == nil:
		return fmt.Errorf("%w: no background", ErrInvalidConfig)
	case d.Stylizer == nil:
		return fmt.Errorf("%w: no stylizer", ErrInvalidConfig)
	case d.Masks == nil:
		return fmt.Errorf("%w: no mask provider", ErrInvalidConfig)
	case d.Processor == nil:
		return fmt.Errorf("%w: no mask processor", ErrInvalidConfig)
	}
	return nil
}

// close releases whatever is set. Errors are joined.
func (d Deps) close() error {
	var errs []error
	if d.Source != nil {
		errs = append(errs, d.Source.Close())
	}
	if d.Sink != nil {
		errs = append(errs, d.Sink.Close())
	}
	if d.Background != nil {
		errs = append(errs, d.Background.Close())
	}
	if d.Processor != nil {
		errs = append(errs, d.Processor.Close())
	}
	return errors.Join(errs...)
}

type options struct {
	logger   *slog.Logger
	observer Observer
}

// Option configures a Driver.
type Option func(*options)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObserver registers an observer for stats and previews.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Driver runs the pipeline once.
type Driver struct {
	cfg      Config
	deps     Deps
	logger   *slog.Logger
	observer Observer
	runID    string

	mu    sync.Mutex
	state State

	c counters

	// lastMask is only touched by the Run goroutine.
	lastMask gocv.Mat
	haveLast bool
}

// New builds a driver from already opened parts.
func New(cfg Config, deps Deps, opts ...Option) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if err := frame.CheckShape("background", frame.ColorShape(cfg.Capture.Width, cfg.Capture.Height), deps.Background.Shape()); err != nil {
		return nil, err
	}

	o := buildOptions(opts)
	runID := uuid.NewString()
	return &Driver{
		cfg:      cfg,
		deps:     deps,
		logger:   o.logger.With("component", "pipeline", "run_id", runID),
		observer: o.observer,
		runID:    runID,
		state:    StateInit,
	}, nil
}

// Open performs startup: it loads the background, opens the capture and
// output devices and builds the processing stages. Any failure is fatal
// and everything opened so far is released.
func Open(cfg Config, opts ...Option) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	w, h := cfg.Capture.Width, cfg.Capture.Height

	var deps Deps
	ok := false
	defer func() {
		if !ok {
			deps.close()
		}
	}()

	bg, err := composite.LoadBackground(cfg.Background, w, h)
	if err != nil {
		return nil, err
	}
	deps.Background = bg

	if deps.Stylizer, err = stylize.New(cfg.Stylize); err != nil {
		return nil, err
	}

	pp, err := mask.New(cfg.Mask)
	if err != nil {
		return nil, err
	}
	deps.Processor = pp

	client, err := segment.NewClient(
		segment.WithBaseURL(cfg.Segment.BaseURL),
		segment.WithTimeout(cfg.Segment.Timeout),
		segment.WithJPEGQuality(cfg.Segment.JPEGQuality),
		segment.WithLogger(o.logger),
	)
	if err != nil {
		return nil, err
	}
	deps.Masks = segment.NewRetrying(client, cfg.Segment.Retry, o.logger)

	src, err := camera.Open(cfg.Capture, o.logger)
	if err != nil {
		return nil, err
	}
	deps.Source = src

	sink, err := vcam.Open(cfg.Output, w, h, o.logger)
	if err != nil {
		return nil, err
	}
	deps.Sink = sink

	d, err := New(cfg, deps, opts...)
	if err != nil {
		return nil, err
	}
	ok = true
	return d, nil
}

// Config returns the configuration the driver was built with.
func (d *Driver) Config() Config {
	return d.cfg
}

// RunID identifies this driver in logs and stats.
func (d *Driver) RunID() string {
	return d.runID
}

// State returns the lifecycle state.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Driver) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

// Stats returns a snapshot of the counters.
func (d *Driver) Stats() Stats {
	s := d.c.snapshot()
	s.RunID = d.runID
	s.State = d.State().String()
	if r, ok := d.deps.Masks.(interface{ Stats() segment.Stats }); ok {
		s.Mask = r.Stats()
	}
	return s
}

type maskResult struct {
	mask gocv.Mat
	err  error
}

// Run processes frames until ctx is cancelled. It returns nil on
// cancellation. Source, sink and background are closed before Run
// returns, on every path.
func (d *Driver) Run(ctx context.Context) error {
	d.mu.Lock()
	if d.state != StateInit {
		d.mu.Unlock()
		return ErrNotInit
	}
	d.state = StateRunning
	d.mu.Unlock()

	d.c.started.Store(time.Now().UnixNano())
	d.logger.Info("pipeline running",
		"width", d.cfg.Capture.Width,
		"height", d.cfg.Capture.Height,
		"fallback", d.cfg.Fallback,
	)

	ctx, cancel := context.WithCancel(ctx)
	slot := newSlot()
	jobs := make(chan gocv.Mat, 1)
	results := make(chan maskResult, 1)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		d.acquire(ctx, slot)
	}()
	go func() {
		defer wg.Done()
		d.maskWorker(ctx, jobs, results)
	}()
	go func() {
		defer wg.Done()
		d.report(ctx)
	}()

	err := d.loop(ctx, slot, jobs, results)

	cancel()
	wg.Wait()
	slot.drain()
	drainJobs(jobs, results)

	if d.haveLast {
		d.lastMask.Close()
		d.haveLast = false
	}
	if cerr := d.deps.close(); cerr != nil {
		d.logger.Warn("release failed", "error", cerr)
	}

	stats := d.Stats()
	if err != nil {
		d.setState(StateFailed)
		d.logger.Error("pipeline failed", "error", err, "frames_published", stats.FramesPublished)
		return err
	}
	d.setState(StateShutdown)
	d.logger.Info("pipeline stopped",
		"frames_captured", stats.FramesCaptured,
		"frames_published", stats.FramesPublished,
		"frames_dropped", stats.FramesDropped,
		"degraded_frames", stats.DegradedFrames,
	)
	return nil
}

func (d *Driver) loop(ctx context.Context, slot *slot, jobs chan<- gocv.Mat, results <-chan maskResult) error {
	for ctx.Err() == nil {
		f, err := slot.take(ctx)
		if err != nil {
			f.Close()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		d.process(ctx, f, jobs, results)
		f.Close()
	}
	return nil
}

// process runs one frame through the pipeline. f stays owned by the caller.
func (d *Driver) process(ctx context.Context, f gocv.Mat, jobs chan<- gocv.Mat, results <-chan maskResult) {
	start := time.Now()

	job := f.Clone()
	select {
	case jobs <- job:
	case <-ctx.Done():
		job.Close()
		return
	}

	out, err := d.deps.Stylizer.Apply(f)
	res, ok := d.await(ctx, results)
	if !ok {
		out.Close()
		return
	}
	if err != nil {
		res.mask.Close()
		out.Close()
		d.logger.Error("stylize failed", "error", err)
		return
	}
	defer out.Close()

	if weights, ok := d.weights(ctx, res, frame.ShapeOf(f)); ok {
		if err := composite.Blend(&out, d.deps.Background, weights); err != nil {
			d.c.mismatches.Add(1)
			d.logger.Warn("composite failed, passing through", "error", err)
		}
		weights.Close()
	}

	rgb, err := frame.ToRGB(out)
	if err != nil {
		d.logger.Error("color conversion failed", "error", err)
		return
	}
	err = d.deps.Sink.Publish(rgb)
	rgb.Close()
	if err != nil {
		d.c.publishFailures.Add(1)
		d.logger.Warn("publish failed", "error", err)
		return
	}

	n := d.c.published.Add(1)
	d.c.lastLatency.Store(int64(time.Since(start)))
	d.preview(n, out)
}

func (d *Driver) await(ctx context.Context, results <-chan maskResult) (maskResult, bool) {
	select {
	case res := <-results:
		if ctx.Err() != nil {
			res.mask.Close()
			return res, false
		}
		return res, true
	case <-ctx.Done():
		return maskResult{}, false
	}
}

// weights turns the fetch result into blend weights for a frame of shape
// want. ok is false when the frame should pass through unmasked.
func (d *Driver) weights(ctx context.Context, res maskResult, want frame.Shape) (gocv.Mat, bool) {
	err := res.err
	if err == nil {
		processed, perr := d.deps.Processor.Process(res.mask)
		if perr == nil {
			perr = frame.CheckSize("mask", want, frame.ShapeOf(processed))
		}
		if perr != nil {
			processed.Close()
		}
		err = perr
		if err == nil {
			d.recovered()
			if d.cfg.Fallback == FallbackLastMask {
				if d.haveLast {
					d.lastMask.Close()
				}
				d.lastMask = processed.Clone()
				d.haveLast = true
			}
			res.mask.Close()
			return processed, true
		}
	}
	res.mask.Close()

	d.degrade(err)
	if d.cfg.Fallback == FallbackLastMask && d.haveLast {
		return d.lastMask.Clone(), true
	}
	return gocv.Mat{}, false
}

func (d *Driver) degrade(err error) {
	d.c.degraded.Add(1)
	var sme *frame.ShapeMismatchError
	if errors.As(err, &sme) {
		d.c.mismatches.Add(1)
	}
	if !d.c.degradedNow.Swap(true) {
		d.logger.Warn("no mask available, falling back",
			"fallback", d.cfg.Fallback,
			"error", err,
		)
		return
	}
	d.logger.Debug("degraded frame", "error", err)
}

func (d *Driver) recovered() {
	if d.c.degradedNow.Swap(false) {
		d.logger.Info("masks available again", "degraded_frames", d.c.degraded.Load())
	}
}

func (d *Driver) preview(n int64, out gocv.Mat) {
	if d.observer == nil || d.cfg.PreviewEvery == 0 || n%int64(d.cfg.PreviewEvery) != 0 {
		return
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, out)
	if err != nil {
		d.logger.Debug("preview encode failed", "error", err)
		return
	}
	jpeg := bytes.Clone(buf.GetBytes())
	buf.Close()
	d.observer.OnPreview(jpeg)
}

// acquire reads frames into slot until ctx is done.
func (d *Driver) acquire(ctx context.Context, slot *slot) {
	failures := 0
	for ctx.Err() == nil {
		f := gocv.NewMat()
		if !d.deps.Source.Read(&f) {
			f.Close()
			d.c.captureFailures.Add(1)
			failures++
			if failures == 1 {
				d.logger.Warn("capture read failed, skipping")
			}
			if limit := d.cfg.MaxCaptureFailures; limit > 0 && failures >= limit {
				slot.fail(fmt.Errorf("%w: %d consecutive failed reads", ErrCaptureLost, failures))
				return
			}
			sleep(ctx, d.cfg.CaptureRetryDelay)
			continue
		}
		if failures > 0 {
			d.logger.Info("capture recovered", "failed_reads", failures)
			failures = 0
		}

		d.c.captured.Add(1)
		if slot.put(f) {
			d.c.dropped.Add(1)
		}
	}
}

// maskWorker answers one mask request at a time.
func (d *Driver) maskWorker(ctx context.Context, jobs <-chan gocv.Mat, results chan<- maskResult) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-jobs:
			m, err := d.deps.Masks.Mask(ctx, f)
			f.Close()
			select {
			case results <- maskResult{mask: m, err: err}:
			case <-ctx.Done():
				m.Close()
				return
			}
		}
	}
}

// report publishes stats every StatsInterval and keeps the fps estimate.
func (d *Driver) report(ctx context.Context) {
	interval := d.cfg.StatsInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := d.c.published.Load()
	lastAt := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n := d.c.published.Load()
			d.c.setFPS(float64(n-last) / now.Sub(lastAt).Seconds())
			last, lastAt = n, now

			if d.observer != nil {
				d.observer.OnStats(d.Stats())
			}
		}
	}
}

func drainJobs(jobs chan gocv.Mat, results chan maskResult) {
	select {
	case f := <-jobs:
		f.Close()
	default:
	}
	select {
	case res := <-results:
		res.mask.Close()
	default:
	}
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
