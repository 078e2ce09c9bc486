package contest

import "testing"

func TestCompetitionNextStatus(t *testing.T) {
	competition := Competition{
		ID:                 "competition-1",
		StartAtSeconds:     1000,
		EndAtSeconds:       2000,
		VotingEndAtSeconds: 3000,
		Status:             CompetitionStatusUpcoming,
	}

	tests := []struct {
		name     string
		status   CompetitionStatus
		override bool
		now      int64
		want     CompetitionStatus
	}{
		{name: "before-start", status: CompetitionStatusUpcoming, now: 999, want: CompetitionStatusUpcoming},
		{name: "at-start", status: CompetitionStatusUpcoming, now: 1000, want: CompetitionStatusActive},
		{name: "entries-closed", status: CompetitionStatusActive, now: 2500, want: CompetitionStatusVoting},
		{name: "voting-closed", status: CompetitionStatusVoting, now: 3000, want: CompetitionStatusCompleted},
		{name: "skips-idle-boundaries", status: CompetitionStatusUpcoming, now: 5000, want: CompetitionStatusCompleted},
		{name: "blank-status-treated-as-upcoming", status: "", now: 1500, want: CompetitionStatusActive},
		{name: "manual-override", status: CompetitionStatusActive, override: true, now: 5000, want: CompetitionStatusActive},
		{name: "completed-is-terminal", status: CompetitionStatusCompleted, now: 0, want: CompetitionStatusCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidate := competition
			candidate.Status = tt.status
			candidate.ManualOverride = tt.override
			if got := candidate.NextStatus(tt.now); got != tt.want {
				t.Fatalf("want %s, got %s", tt.want, got)
			}
		})
	}
}

func TestCompetitionCompletedAtUsesScheduleNotStatus(t *testing.T) {
	stale := Competition{
		EndAtSeconds:       2000,
		VotingEndAtSeconds: 3000,
		Status:             CompetitionStatusVoting,
	}
	if !stale.CompletedAt(3001) {
		t.Fatalf("expected competition past voting end to count as completed")
	}
	if stale.CompletedAt(2999) {
		t.Fatalf("expected competition within voting window to be open")
	}

	noVoting := Competition{EndAtSeconds: 2000}
	if !noVoting.CompletedAt(2000) {
		t.Fatalf("expected competition without voting window to close at end date")
	}
	if (Competition{}).CompletedAt(5000) {
		t.Fatalf("unscheduled competition must never count as completed")
	}
}
