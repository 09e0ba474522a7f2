package httpc

import (
	"net/http"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	c := NewClient(500 * time.Millisecond)
	if c.Timeout != 500*time.Millisecond {
		t.Errorf("Timeout = %v, want 500ms", c.Timeout)
	}
	tr, ok := c.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("Transport is %T, want *http.Transport", c.Transport)
	}
	if !tr.DisableCompression {
		t.Error("compression should be disabled for raw mask bytes")
	}
}

func TestNewClientDefaultTimeout(t *testing.T) {
	if c := NewClient(0); c.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", c.Timeout, DefaultTimeout)
	}
}
