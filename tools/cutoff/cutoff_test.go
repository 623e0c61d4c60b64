package cutoff_test

import (
	"testing"
	"time"

	"github.com/septivank/meter-field-ops/tools/cutoff"
)

func newJakartaWindow(t *testing.T) *cutoff.Window {
	t.Helper()
	w, err := cutoff.NewWindow(28, 20, 2, 10, "Asia/Jakarta")
	if err != nil {
		t.Fatalf("Failed to create window: %v", err)
	}
	return w
}

func TestActive_Boundaries(t *testing.T) {
	w := newJakartaWindow(t)
	jkt := w.Location

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"day 27 late evening", time.Date(2025, 1, 27, 23, 59, 0, 0, jkt), false},
		{"day 28 before 20:00", time.Date(2025, 1, 28, 19, 59, 59, 0, jkt), false},
		{"day 28 at 20:00", time.Date(2025, 1, 28, 20, 0, 0, 0, jkt), true},
		{"day 29", time.Date(2025, 1, 29, 8, 0, 0, 0, jkt), true},
		{"day 31", time.Date(2025, 1, 31, 12, 0, 0, 0, jkt), true},
		{"day 1", time.Date(2025, 2, 1, 12, 0, 0, 0, jkt), true},
		{"day 2 at 09:59", time.Date(2025, 2, 2, 9, 59, 0, 0, jkt), true},
		{"day 2 at 10:00", time.Date(2025, 2, 2, 10, 0, 0, 0, jkt), false},
		{"mid month", time.Date(2025, 2, 15, 12, 0, 0, 0, jkt), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.Active(tt.at); got != tt.want {
				t.Errorf("Active(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestActive_UsesWindowTimezone(t *testing.T) {
	w := newJakartaWindow(t)

	// 13:00 UTC on the 28th is 20:00 in Jakarta
	at := time.Date(2025, 3, 28, 13, 0, 0, 0, time.UTC)
	if !w.Active(at) {
		t.Errorf("Expected window to be active at %v", at)
	}

	at = time.Date(2025, 3, 28, 12, 59, 0, 0, time.UTC)
	if w.Active(at) {
		t.Errorf("Expected window to be closed at %v", at)
	}
}

func TestReopensAt(t *testing.T) {
	w := newJakartaWindow(t)
	jkt := w.Location

	got := w.ReopensAt(time.Date(2025, 12, 30, 8, 0, 0, 0, jkt))
	want := time.Date(2026, 1, 2, 10, 0, 0, 0, jkt)
	if !got.Equal(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	got = w.ReopensAt(time.Date(2026, 1, 1, 8, 0, 0, 0, jkt))
	if !got.Equal(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	open := time.Date(2026, 1, 15, 8, 0, 0, 0, jkt)
	if got := w.ReopensAt(open); !got.Equal(open) {
		t.Errorf("Expected closed window to return input time, got %v", got)
	}
}

func TestNewWindow_Invalid(t *testing.T) {
	if _, err := cutoff.NewWindow(28, 20, 2, 10, "Mars/Olympus"); err == nil {
		t.Error("Expected error for unknown timezone")
	}
	if _, err := cutoff.NewWindow(2, 10, 28, 20, "UTC"); err == nil {
		t.Error("Expected error for window not crossing the month boundary")
	}
	if _, err := cutoff.NewWindow(28, 24, 2, 10, "UTC"); err == nil {
		t.Error("Expected error for hour out of range")
	}
}
