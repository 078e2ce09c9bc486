package contest

import (
	"errors"
	"strings"
	"testing"
)

func TestNewUserIDTrimsAndValidates(t *testing.T) {
	id, err := NewUserID("  user-1 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.String() != "user-1" {
		t.Fatalf("expected trimmed identifier, got %q", id)
	}

	if _, err := NewUserID("   "); !errors.Is(err, ErrInvalidUserID) {
		t.Fatalf("expected ErrInvalidUserID for blank input, got %v", err)
	}
	if _, err := NewCompetitionID(strings.Repeat("c", maxIdentifierLength+1)); !errors.Is(err, ErrInvalidCompetitionID) {
		t.Fatalf("expected ErrInvalidCompetitionID for oversized input, got %v", err)
	}
	if _, err := NewSubmissionID(""); !errors.Is(err, ErrInvalidSubmissionID) {
		t.Fatalf("expected ErrInvalidSubmissionID for empty input, got %v", err)
	}
}

func TestValidateScore(t *testing.T) {
	for _, score := range []int{1, 3, 5} {
		if err := ValidateScore(score); err != nil {
			t.Fatalf("score %d should be valid: %v", score, err)
		}
	}
	for _, score := range []int{0, 6, -1} {
		if err := ValidateScore(score); !errors.Is(err, ErrInvalidScore) {
			t.Fatalf("score %d should be rejected, got %v", score, err)
		}
	}
}

func TestPrizeLabel(t *testing.T) {
	tests := map[int]string{1: "Gold Medal", 2: "Silver Medal", 3: "Bronze Medal", 4: "", 0: ""}
	for position, want := range tests {
		if got := PrizeLabel(position); got != want {
			t.Fatalf("position %d: want %q, got %q", position, want, got)
		}
	}
}

func TestResultIDIsStablePerSlot(t *testing.T) {
	first := ResultID("competition-1", PositionGold)
	if first != ResultID("competition-1", PositionGold) {
		t.Fatalf("expected identical ids for the same slot")
	}
	if first == ResultID("competition-1", PositionSilver) {
		t.Fatalf("expected distinct ids for different positions")
	}
	if first == ResultID("competition-2", PositionGold) {
		t.Fatalf("expected distinct ids for different competitions")
	}
}
