package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsRequestError(t *testing.T) {
	outage := errors.New("connection refused")
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"validation", Validation("title is required"), true},
		{"too far", TooFar(45, 30), true},
		{"duplicate", Duplicate("abc"), true},
		{"provisioning", Provisioning(outage), true},
		{"wrapped policy error", fmt.Errorf("dedup: %w", Duplicate("")), true},
		{"infrastructure", Infrastructure("failed to load", outage), false},
		{"plain error", outage, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRequestError(tt.err); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestTooFar(t *testing.T) {
	e := TooFar(30.4, 30)
	if e.Distance == nil || *e.Distance != 30 {
		t.Fatalf("Expected rounded distance 30, got %v", e.Distance)
	}
	if want := "You must be within 30 meters of the container to report a signal. Current distance: 30m"; e.Message != want {
		t.Errorf("Expected %q, got %q", want, e.Message)
	}
	if e.Kind.HTTPStatus() != 403 {
		t.Errorf("Expected 403, got %d", e.Kind.HTTPStatus())
	}
}
