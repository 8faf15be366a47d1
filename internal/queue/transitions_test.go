package queue

import "testing"

func TestValidTransition(t *testing.T) {
	cases := []struct {
		from  Status
		to    Status
		valid bool
	}{
		{StatusWaiting, StatusInProgress, true},
		{StatusWaiting, StatusCompleted, true},
		{StatusWaiting, StatusWaiting, false},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusWaiting, true},
		{StatusInProgress, StatusInProgress, false},
		{StatusCompleted, StatusInProgress, false},
		{StatusCompleted, StatusWaiting, false},
		{StatusCompleted, StatusCompleted, false},
		{StatusWaiting, "removed", false},
	}

	for _, tt := range cases {
		if got := ValidTransition(tt.from, tt.to); got != tt.valid {
			t.Fatalf("ValidTransition(%q, %q)=%v, want %v", tt.from, tt.to, got, tt.valid)
		}
	}
}
