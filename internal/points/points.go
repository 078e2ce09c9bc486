// Package points scores users from their placements and voting participation.
package points

import (
	"cmp"
	"math"
	"slices"
)

// Submission is one approved submission tagged with its true dense rank in its competition.
type Submission struct {
	SubmissionID  string
	CompetitionID string
	Title         string
	AverageRating float64
	RatingCount   int64
	Rank          int
}

// TotalRating is the sum of all scores the submission received.
func (s Submission) TotalRating() float64 {
	return s.AverageRating * float64(s.RatingCount)
}

// Detail explains the points earned by one podium submission.
type Detail struct {
	SubmissionID  string  `json:"submission_id"`
	CompetitionID string  `json:"competition_id"`
	Title         string  `json:"title"`
	Rank          int     `json:"rank"`
	TotalRating   float64 `json:"total_rating"`
	Multiplier    int     `json:"multiplier"`
	Points        float64 `json:"points"`
}

// Breakdown is a user's score split by category.
type Breakdown struct {
	VotingPoints           int64    `json:"voting_points"`
	FirstPlacePoints       float64  `json:"first_place_points"`
	SecondPlacePoints      float64  `json:"second_place_points"`
	ThirdPlacePoints       float64  `json:"third_place_points"`
	OtherSubmissionsPoints float64  `json:"other_submissions_points"`
	TotalPoints            int64    `json:"total_points"`
	FirstPlaceCount        int      `json:"first_place_count"`
	SecondPlaceCount       int      `json:"second_place_count"`
	ThirdPlaceCount        int      `json:"third_place_count"`
	OtherSubmissionsCount  int      `json:"other_submissions_count"`
	Details                []Detail `json:"details"`
}

// Multiplier returns the placement weight of a dense rank.
func Multiplier(rank int) int {
	switch rank {
	case 1:
		return 5
	case 2:
		return 3
	case 3:
		return 2
	default:
		return 1
	}
}

// Calculate scores the submissions and adds one point per distinct photo the user rated.
// Only ranks 1..3 produce Detail entries; everything else is folded into the other bucket.
func Calculate(submissions []Submission, votedPhotos int) Breakdown {
	breakdown := Breakdown{
		VotingPoints: int64(max(votedPhotos, 0)),
		Details:      make([]Detail, 0),
	}

	for _, submission := range submissions {
		multiplier := Multiplier(submission.Rank)
		earned := submission.TotalRating() * float64(multiplier)

		switch submission.Rank {
		case 1:
			breakdown.FirstPlacePoints += earned
			breakdown.FirstPlaceCount++
		case 2:
			breakdown.SecondPlacePoints += earned
			breakdown.SecondPlaceCount++
		case 3:
			breakdown.ThirdPlacePoints += earned
			breakdown.ThirdPlaceCount++
		default:
			breakdown.OtherSubmissionsPoints += earned
			breakdown.OtherSubmissionsCount++
			continue
		}

		breakdown.Details = append(breakdown.Details, Detail{
			SubmissionID:  submission.SubmissionID,
			CompetitionID: submission.CompetitionID,
			Title:         submission.Title,
			Rank:          submission.Rank,
			TotalRating:   submission.TotalRating(),
			Multiplier:    multiplier,
			Points:        earned,
		})
	}

	slices.SortFunc(breakdown.Details, func(a, b Detail) int {
		if c := cmp.Compare(a.Rank, b.Rank); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Points, a.Points); c != 0 {
			return c
		}
		return cmp.Compare(a.SubmissionID, b.SubmissionID)
	})

	sum := float64(breakdown.VotingPoints) +
		breakdown.FirstPlacePoints +
		breakdown.SecondPlacePoints +
		breakdown.ThirdPlacePoints +
		breakdown.OtherSubmissionsPoints
	breakdown.TotalPoints = int64(math.Round(sum))
	return breakdown
}
