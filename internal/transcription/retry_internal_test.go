package transcription

import (
	"net/http"
	"testing"
	"time"
)

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", 0},
		{"12", 12 * time.Second},
		{"-4", 0},
		{now.Add(30 * time.Second).Format(http.TimeFormat), 30 * time.Second},
		{now.Add(-time.Minute).Format(http.TimeFormat), 0},
		{"soon", 0},
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.value, now); got != tt.want {
			t.Fatalf("parseRetryAfter(%q) = %s, want %s", tt.value, got, tt.want)
		}
	}
}

func TestBackoffFloorAppliesOnce(t *testing.T) {
	b := newExponentialJitter(time.Second, 0)
	b.atLeast(5 * time.Second)
	if got := b.NextBackOff(); got != 5*time.Second {
		t.Fatalf("first backoff = %s, want provider floor 5s", got)
	}
	if got := b.NextBackOff(); got != 2*time.Second {
		t.Fatalf("second backoff = %s, want 2s once the floor is spent", got)
	}
	b.atLeast(time.Hour)
	if got := b.NextBackOff(); got != MaxRetryAfter {
		t.Fatalf("capped backoff = %s, want %s", got, MaxRetryAfter)
	}
}
