package store

import (
	"context"

	"github.com/MarcoPoloResearchLab/podium/backend/internal/contest"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ResultWriter is the write side of the result table used inside a transaction.
type ResultWriter interface {
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)
	Insert(ctx context.Context, result *contest.Result) error
}

// Results persists prize slots.
type Results struct {
	db *gorm.DB
}

// DeleteAllForUser removes every result held by the user and reports how many were removed.
func (s *Results) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	deleted := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&contest.Result{})
	if deleted.Error != nil {
		return 0, translateError(deleted.Error)
	}
	return deleted.RowsAffected, nil
}

// Insert writes one result. A collision on any of the competition-scoped unique indexes
// returns ErrResultConflict without aborting an enclosing transaction.
func (s *Results) Insert(ctx context.Context, result *contest.Result) error {
	created := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(result)
	if created.Error != nil {
		return translateError(created.Error)
	}
	if created.RowsAffected == 0 {
		return ErrResultConflict
	}
	return nil
}

// Transaction runs fn against a transaction-bound writer. Returning an error rolls back.
func (s *Results) Transaction(ctx context.Context, fn func(ResultWriter) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Results{db: tx})
	})
	return translateError(err)
}

// ListForCompetition returns the competition's results ordered by position.
func (s *Results) ListForCompetition(ctx context.Context, competitionID string) ([]contest.Result, error) {
	var results []contest.Result
	err := s.db.WithContext(ctx).
		Where("competition_id = ?", competitionID).
		Order("position ASC").
		Find(&results).Error
	if err != nil {
		return nil, translateError(err)
	}
	return results, nil
}

// ListForUser returns the user's results ordered by competition and position.
func (s *Results) ListForUser(ctx context.Context, userID string) ([]contest.Result, error) {
	var results []contest.Result
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("competition_id ASC, position ASC").
		Find(&results).Error
	if err != nil {
		return nil, translateError(err)
	}
	return results, nil
}
