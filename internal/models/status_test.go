package models

import "testing"

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantOK  bool
	}{
		{"pending", StatusPending, true},
		{"accepted", StatusAccepted, true},
		{"in_progress", StatusInProgress, true},
		{"completed", StatusCompleted, true},
		{"cancelled", StatusCancelled, true},
		{"cart", StatusCart, true},
		{"confirmed", StatusAccepted, true},
		{"shipped", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := NormalizeStatus(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("NormalizeStatus(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestIsTerminalStatus(t *testing.T) {
	if !IsTerminalStatus(StatusCompleted) || !IsTerminalStatus(StatusCancelled) {
		t.Error("completed and cancelled should be terminal")
	}
	if IsTerminalStatus(StatusPending) || IsTerminalStatus(StatusInProgress) {
		t.Error("pending and in_progress should not be terminal")
	}
}
