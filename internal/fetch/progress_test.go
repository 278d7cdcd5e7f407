package fetch

import (
	"strings"
	"testing"
	"time"
)

func TestProgressSummary(t *testing.T) {
	p := NewProgress(4, false)
	p.Update(4, 4, 1, 3*1024*1024)

	summary := p.Summary()
	if !strings.Contains(summary, "Saved 3/4 tiles") {
		t.Errorf("summary = %q, want Saved 3/4 tiles", summary)
	}
	if !strings.Contains(summary, "1 failed") {
		t.Errorf("summary = %q, want failure count", summary)
	}
}

func TestProgressDisabledIsSilent(t *testing.T) {
	var sink strings.Builder
	p := NewProgress(2, false)
	p.output = &sink

	p.Update(1, 2, 0, 100)
	p.Done()

	if sink.Len() != 0 {
		t.Errorf("disabled progress wrote %q", sink.String())
	}
}

func TestProgressEnabledWritesBar(t *testing.T) {
	var sink strings.Builder
	p := NewProgress(2, true)
	p.output = &sink

	p.Update(2, 2, 0, 2048)
	p.Done()

	out := sink.String()
	if !strings.Contains(out, "2/2 tiles") {
		t.Errorf("progress output = %q, want 2/2 tiles", out)
	}
	if !strings.Contains(out, "Done in") {
		t.Errorf("progress output = %q, want completion note", out)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds  float64
		expected string
	}{
		{45, "45s"},
		{125, "2m5s"},
		{3750, "1h2m"},
	}

	for _, tt := range tests {
		d := time.Duration(tt.seconds * float64(time.Second))
		if got := formatDuration(d); got != tt.expected {
			t.Errorf("formatDuration(%vs) = %s, want %s", tt.seconds, got, tt.expected)
		}
	}
}
