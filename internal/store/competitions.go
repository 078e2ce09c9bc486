package store

import (
	"context"
	"time"

	"github.com/MarcoPoloResearchLab/podium/backend/internal/contest"
	"gorm.io/gorm"
)

// Competitions reads competition schedules and applies lifecycle transitions.
type Competitions struct {
	db *gorm.DB
}

// StatusChange records one applied lifecycle transition.
type StatusChange struct {
	CompetitionID string
	From          contest.CompetitionStatus
	To            contest.CompetitionStatus
}

// Get loads one competition.
func (s *Competitions) Get(ctx context.Context, competitionID string) (contest.Competition, error) {
	var competition contest.Competition
	err := s.db.WithContext(ctx).Where("id = ?", competitionID).Take(&competition).Error
	if err != nil {
		return contest.Competition{}, translateError(err)
	}
	return competition, nil
}

// ListCompleted returns competitions whose schedule closed at or before asOf. The cached
// status column is ignored so stale statuses cannot hide a finished competition.
func (s *Competitions) ListCompleted(ctx context.Context, asOf time.Time) ([]contest.Competition, error) {
	cutoff := asOf.UTC().Unix()
	var competitions []contest.Competition
	err := s.db.WithContext(ctx).
		Where("(voting_end_at_s > 0 AND voting_end_at_s <= ?) OR (voting_end_at_s = 0 AND end_at_s > 0 AND end_at_s <= ?)", cutoff, cutoff).
		Order("voting_end_at_s ASC, id ASC").
		Find(&competitions).Error
	if err != nil {
		return nil, translateError(err)
	}
	return competitions, nil
}

// AdvanceStatuses applies the time-driven lifecycle to every open competition.
func (s *Competitions) AdvanceStatuses(ctx context.Context, now time.Time) ([]StatusChange, error) {
	nowSeconds := now.UTC().Unix()
	changes := make([]StatusChange, 0)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var open []contest.Competition
		if err := tx.
			Where("status <> ? AND manual_override = ?", contest.CompetitionStatusCompleted, false).
			Order("id ASC").
			Find(&open).Error; err != nil {
			return err
		}

		for _, competition := range open {
			next := competition.NextStatus(nowSeconds)
			if next == competition.Status {
				continue
			}
			if err := tx.Model(&contest.Competition{}).
				Where("id = ?", competition.ID).
				Update("status", next).Error; err != nil {
				return err
			}
			changes = append(changes, StatusChange{
				CompetitionID: competition.ID,
				From:          competition.Status,
				To:            next,
			})
		}
		return nil
	})
	if err != nil {
		return nil, translateError(err)
	}
	return changes, nil
}
