// Package ranking computes dense per-competition rankings and the prize slots derived from them.
package ranking

import (
	"cmp"
	"slices"

	"github.com/MarcoPoloResearchLab/podium/backend/internal/contest"
)

// Entry is the ranking input for one approved submission.
type Entry struct {
	SubmissionID  string
	UserID        string
	Title         string
	AverageRating float64
	RatingCount   int64
}

// Ranked pairs an entry with its dense rank.
type Ranked struct {
	Entry
	Rank int
}

// EntriesFromSubmissions converts approved submissions into ranking entries. Submissions
// in any other moderation state are skipped.
func EntriesFromSubmissions(submissions []contest.Submission) []Entry {
	entries := make([]Entry, 0, len(submissions))
	for _, submission := range submissions {
		if !submission.Approved() {
			continue
		}
		entries = append(entries, Entry{
			SubmissionID:  submission.ID,
			UserID:        submission.UserID,
			Title:         submission.Title,
			AverageRating: submission.AverageRating,
			RatingCount:   submission.RatingCount,
		})
	}
	return entries
}

// compareKey orders by (averageRating desc, ratingCount desc). A zero result means the
// two entries are indistinguishable and share a rank.
func compareKey(a, b Entry) int {
	if c := cmp.Compare(b.AverageRating, a.AverageRating); c != 0 {
		return c
	}
	return cmp.Compare(b.RatingCount, a.RatingCount)
}

// Order sorts entries into ranking order and assigns dense ranks starting at 1.
// Entries sharing a rank are listed by submission id so the output is stable across runs;
// the id never influences the rank itself.
func Order(entries []Entry) []Ranked {
	if len(entries) == 0 {
		return nil
	}

	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, func(a, b Entry) int {
		if c := compareKey(a, b); c != 0 {
			return c
		}
		return cmp.Compare(a.SubmissionID, b.SubmissionID)
	})

	ranked := make([]Ranked, len(sorted))
	rank := 1
	for index, entry := range sorted {
		if index > 0 && compareKey(sorted[index-1], entry) != 0 {
			rank++
		}
		ranked[index] = Ranked{Entry: entry, Rank: rank}
	}
	return ranked
}

// DenseRank maps submission id to dense rank. An empty input yields an empty map.
func DenseRank(entries []Entry) map[string]int {
	ranked := Order(entries)
	ranks := make(map[string]int, len(ranked))
	for _, item := range ranked {
		ranks[item.SubmissionID] = item.Rank
	}
	return ranks
}
