package points

import (
	"cmp"
	"slices"

	"github.com/MarcoPoloResearchLab/podium/backend/internal/contest"
)

// Integrity warning kinds.
const (
	KindSelfVote        = "self_vote"
	KindDuplicateRating = "duplicate_rating"
)

// IntegrityWarning describes suspicious rating data. Warnings never block scoring.
type IntegrityWarning struct {
	Kind    string
	UserID  string
	PhotoID string
	Count   int
}

// FindSelfVotes reports ratings cast on photos listed in ownPhotoIDs.
func FindSelfVotes(ownPhotoIDs []string, ratings []contest.Rating) []IntegrityWarning {
	owned := make(map[string]struct{}, len(ownPhotoIDs))
	for _, photoID := range ownPhotoIDs {
		owned[photoID] = struct{}{}
	}

	counts := make(map[ratingKey]int)
	for _, rating := range ratings {
		if _, ok := owned[rating.PhotoID]; ok {
			counts[ratingKey{userID: rating.UserID, photoID: rating.PhotoID}]++
		}
	}
	return warningsFrom(KindSelfVote, counts, 1)
}

// FindDuplicateRatings reports (user, photo) pairs that carry more than one rating row.
func FindDuplicateRatings(ratings []contest.Rating) []IntegrityWarning {
	counts := make(map[ratingKey]int, len(ratings))
	for _, rating := range ratings {
		counts[ratingKey{userID: rating.UserID, photoID: rating.PhotoID}]++
	}
	return warningsFrom(KindDuplicateRating, counts, 2)
}

// DistinctPhotos counts the photos covered by ratings, ignoring repeated rows for one photo.
func DistinctPhotos(ratings []contest.Rating) int {
	photos := make(map[string]struct{}, len(ratings))
	for _, rating := range ratings {
		photos[rating.PhotoID] = struct{}{}
	}
	return len(photos)
}

type ratingKey struct {
	userID  string
	photoID string
}

func warningsFrom(kind string, counts map[ratingKey]int, threshold int) []IntegrityWarning {
	warnings := make([]IntegrityWarning, 0)
	for key, count := range counts {
		if count < threshold {
			continue
		}
		warnings = append(warnings, IntegrityWarning{
			Kind:    kind,
			UserID:  key.userID,
			PhotoID: key.photoID,
			Count:   count,
		})
	}
	slices.SortFunc(warnings, func(a, b IntegrityWarning) int {
		return cmp.Or(cmp.Compare(a.UserID, b.UserID), cmp.Compare(a.PhotoID, b.PhotoID))
	})
	return warnings
}
