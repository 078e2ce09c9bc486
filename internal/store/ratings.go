package store

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/MarcoPoloResearchLab/podium/backend/internal/contest"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ratings stores votes and keeps the submission aggregates in step with them.
type Ratings struct {
	db    *gorm.DB
	ids   contest.IDProvider
	clock func() time.Time
}

// ListByUser returns every rating row cast by the user.
func (s *Ratings) ListByUser(ctx context.Context, userID string) ([]contest.Rating, error) {
	var ratings []contest.Rating
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("photo_id ASC, id ASC").
		Find(&ratings).Error
	if err != nil {
		return nil, translateError(err)
	}
	return ratings, nil
}

// ListByPhoto returns every rating row for the photo.
func (s *Ratings) ListByPhoto(ctx context.Context, photoID string) ([]contest.Rating, error) {
	var ratings []contest.Rating
	err := s.db.WithContext(ctx).
		Where("photo_id = ?", photoID).
		Order("user_id ASC, id ASC").
		Find(&ratings).Error
	if err != nil {
		return nil, translateError(err)
	}
	return ratings, nil
}

// Record creates or replaces the user's rating of a photo and recomputes the photo's
// average_rating and rating_count in the same transaction.
func (s *Ratings) Record(ctx context.Context, userID, photoID string, score int) (contest.Rating, error) {
	if err := contest.ValidateScore(score); err != nil {
		return contest.Rating{}, err
	}

	var stored contest.Rating
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var submission contest.Submission
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", photoID).
			Take(&submission).Error; err != nil {
			return err
		}
		if submission.UserID == userID {
			return ErrSelfVote
		}

		now := s.clock().UTC().Unix()
		err := tx.Where("user_id = ? AND photo_id = ?", userID, photoID).Take(&stored).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			ratingID, idErr := s.ids.NewID()
			if idErr != nil {
				return idErr
			}
			stored = contest.Rating{
				ID:               ratingID,
				UserID:           userID,
				PhotoID:          photoID,
				Score:            score,
				UpdatedAtSeconds: now,
			}
			if err := tx.Create(&stored).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			stored.Score = score
			stored.UpdatedAtSeconds = now
			if err := tx.Model(&contest.Rating{}).
				Where("id = ?", stored.ID).
				Updates(map[string]any{"score": score, "updated_at_s": now}).Error; err != nil {
				return err
			}
		}

		return recomputeAggregate(tx, photoID)
	})
	if err != nil {
		return contest.Rating{}, translateError(err)
	}
	return stored, nil
}

// Remove deletes the user's rating of a photo and recomputes the photo's aggregates.
func (s *Ratings) Remove(ctx context.Context, userID, photoID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		deleted := tx.Where("user_id = ? AND photo_id = ?", userID, photoID).Delete(&contest.Rating{})
		if deleted.Error != nil {
			return deleted.Error
		}
		if deleted.RowsAffected == 0 {
			return ErrNotFound
		}
		return recomputeAggregate(tx, photoID)
	})
	return translateError(err)
}

func recomputeAggregate(tx *gorm.DB, photoID string) error {
	var aggregate struct {
		Count   int64
		Average float64
	}
	if err := tx.Model(&contest.Rating{}).
		Select("COUNT(*) AS count, COALESCE(AVG(score), 0) AS average").
		Where("photo_id = ?", photoID).
		Scan(&aggregate).Error; err != nil {
		return err
	}
	return tx.Model(&contest.Submission{}).
		Where("id = ?", photoID).
		Updates(map[string]any{
			"average_rating": roundRating(aggregate.Average),
			"rating_count":   aggregate.Count,
		}).Error
}

// roundRating keeps one decimal, matching how averages are displayed and compared.
func roundRating(value float64) float64 {
	return math.Round(value*10) / 10
}
