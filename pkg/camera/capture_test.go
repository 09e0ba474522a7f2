package camera

import (
	"errors"
	"testing"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-holocam/internal/log"
	"github.com/teslashibe/go-holocam/pkg/frame"
)

// fakeDevice replays a fixed list of frames, then fails.
type fakeDevice struct {
	frames []gocv.Mat
	closed int
}

func (d *fakeDevice) Read(m *gocv.Mat) bool {
	if len(d.frames) == 0 {
		return false
	}
	f := d.frames[0]
	d.frames = d.frames[1:]
	f.CopyTo(m)
	f.Close()
	return true
}

func (d *fakeDevice) Close() error {
	d.closed++
	return nil
}

func TestCaptureRead(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name string
		in   gocv.Mat
	}{
		{"native", frame.Solid(cfg.Width, cfg.Height, 1, 2, 3)},
		{"wrong size", frame.Solid(320, 240, 1, 2, 3)},
		{"gray", gocv.NewMatWithSizeFromScalar(gocv.NewScalar(9, 0, 0, 0), cfg.Height, cfg.Width, gocv.MatTypeCV8UC1)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newCapture(cfg, &fakeDevice{frames: []gocv.Mat{tc.in}}, log.Discard())
			dst := gocv.NewMat()
			defer dst.Close()

			if !c.Read(&dst) {
				t.Fatal("Read returned false")
			}
			if got := frame.ShapeOf(dst); got != frame.ColorShape(cfg.Width, cfg.Height) {
				t.Errorf("shape = %s", got)
			}
		})
	}
}

func TestCaptureReadFailure(t *testing.T) {
	c := newCapture(DefaultConfig(), &fakeDevice{}, log.Discard())
	dst := gocv.NewMat()
	defer dst.Close()

	if c.Read(&dst) {
		t.Error("Read on exhausted device should fail")
	}
}

func TestCaptureCloseOnce(t *testing.T) {
	dev := &fakeDevice{}
	c := newCapture(DefaultConfig(), dev, log.Discard())
	c.Close()
	c.Close()
	if dev.closed != 1 {
		t.Errorf("device closed %d times, want 1", dev.closed)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"path device", func(c *Config) { c.Device = "/dev/video2" }, false},
		{"no device", func(c *Config) { c.Device = "" }, true},
		{"zero width", func(c *Config) { c.Width = 0 }, true},
		{"huge height", func(c *Config) { c.Height = 100000 }, true},
		{"zero fps", func(c *Config) { c.Framerate = 0 }, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestDeviceID(t *testing.T) {
	tests := []struct {
		device string
		want   interface{}
	}{
		{"0", 0},
		{"3", 3},
		{"/dev/video1", "/dev/video1"},
		{"-1", "-1"},
	}
	for _, tc := range tests {
		got := Config{Device: tc.device}.deviceID()
		if got != tc.want {
			t.Errorf("deviceID(%q) = %v (%T), want %v", tc.device, got, got, tc.want)
		}
	}
}

func TestOpenMissingDevice(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Device = "/nonexistent/video99"

	_, err := Open(cfg, log.Discard())
	var de *DeviceError
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, want *DeviceError", err)
	}
	if de.Device != cfg.Device {
		t.Errorf("Device = %q", de.Device)
	}
}

func TestPresets(t *testing.T) {
	for _, name := range PresetNames() {
		p := GetPreset(name)
		if p == nil {
			t.Fatalf("preset %q missing", name)
		}
		if err := p.Validate(); err != nil {
			t.Errorf("preset %q invalid: %v", name, err)
		}
	}
	if GetPreset("nope") != nil {
		t.Error("unknown preset should be nil")
	}
}
