package api

import "testing"

func TestNewRunID(t *testing.T) {
	id := NewRunID()
	if !ValidateRunID(id) {
		t.Errorf("NewRunID() = %q, does not match run ID pattern", id)
	}

	other := NewRunID()
	if id == other {
		t.Errorf("two consecutive run IDs are equal: %q", id)
	}
}

func TestValidateRunID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"run_abcdefghijklmnopqrstuvwx", true},
		{"run_ABCDEFGHIJKLMNOPQRSTUV12", true},
		{"run_short", false},
		{"resp_abcdefghijklmnopqrstuvwx", false},
		{"run_abcdefghijklmnopqrstuv-x", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := ValidateRunID(tt.id); got != tt.want {
			t.Errorf("ValidateRunID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}
