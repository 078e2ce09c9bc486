package ranking

import (
	"cmp"
	"slices"

	"github.com/MarcoPoloResearchLab/podium/backend/internal/contest"
)

// Placement is a prize slot awarded to one of a user's submissions. Position is the slot
// (1..3); Rank is the submission's true dense rank, which differs from Position when the
// bronze fallback applies.
type Placement struct {
	SubmissionID  string
	UserID        string
	Title         string
	Position      int
	Rank          int
	Prize         string
	AverageRating float64
	RatingCount   int64
	Fallback      bool
}

// ResolvePlacements decides which of userID's submissions earn prize slots in one competition.
//
// For each position 1..3 the user's submission holding exactly that dense rank is awarded;
// among several, the highest average rating wins. When none of the user's submissions holds
// rank 3, the user's best remaining unclaimed submission takes the bronze slot regardless of
// its rank.
func ResolvePlacements(ranking []Ranked, userID string) []Placement {
	owned := make([]Ranked, 0)
	for _, item := range ranking {
		if item.UserID == userID {
			owned = append(owned, item)
		}
	}
	if len(owned) == 0 {
		return nil
	}

	placements := make([]Placement, 0, contest.PositionBronze)
	claimed := make(map[string]struct{}, contest.PositionBronze)

	for position := contest.PositionGold; position <= contest.PositionBronze; position++ {
		candidates := make([]Ranked, 0)
		for _, item := range owned {
			if item.Rank == position {
				candidates = append(candidates, item)
			}
		}
		if len(candidates) == 0 {
			continue
		}
		best := slices.MinFunc(candidates, preferHigherRating)
		claimed[best.SubmissionID] = struct{}{}
		placements = append(placements, newPlacement(best, position, false))
	}

	if hasPosition(placements, contest.PositionBronze) {
		return placements
	}

	remaining := make([]Ranked, 0, len(owned))
	for _, item := range owned {
		if _, taken := claimed[item.SubmissionID]; !taken {
			remaining = append(remaining, item)
		}
	}
	if len(remaining) == 0 {
		return placements
	}

	fallback := slices.MinFunc(remaining, func(a, b Ranked) int {
		if c := cmp.Compare(a.Rank, b.Rank); c != 0 {
			return c
		}
		return preferHigherRating(a, b)
	})
	return append(placements, newPlacement(fallback, contest.PositionBronze, true))
}

func preferHigherRating(a, b Ranked) int {
	if c := cmp.Compare(b.AverageRating, a.AverageRating); c != 0 {
		return c
	}
	if c := cmp.Compare(b.RatingCount, a.RatingCount); c != 0 {
		return c
	}
	return cmp.Compare(a.SubmissionID, b.SubmissionID)
}

func hasPosition(placements []Placement, position int) bool {
	return slices.ContainsFunc(placements, func(p Placement) bool {
		return p.Position == position
	})
}

func newPlacement(item Ranked, position int, fallback bool) Placement {
	return Placement{
		SubmissionID:  item.SubmissionID,
		UserID:        item.UserID,
		Title:         item.Title,
		Position:      position,
		Rank:          item.Rank,
		Prize:         contest.PrizeLabel(position),
		AverageRating: item.AverageRating,
		RatingCount:   item.RatingCount,
		Fallback:      fallback,
	}
}
