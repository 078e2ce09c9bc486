package store

import (
	"context"

	"github.com/MarcoPoloResearchLab/podium/backend/internal/contest"
	"gorm.io/gorm"
)

// Submissions reads photo submissions.
type Submissions struct {
	db *gorm.DB
}

// Get loads one submission.
func (s *Submissions) Get(ctx context.Context, submissionID string) (contest.Submission, error) {
	var submission contest.Submission
	if err := s.db.WithContext(ctx).Where("id = ?", submissionID).Take(&submission).Error; err != nil {
		return contest.Submission{}, translateError(err)
	}
	return submission, nil
}

// ListApproved returns the approved submissions of a competition in a single read.
func (s *Submissions) ListApproved(ctx context.Context, competitionID string) ([]contest.Submission, error) {
	var submissions []contest.Submission
	err := s.db.WithContext(ctx).
		Where("competition_id = ? AND status = ?", competitionID, contest.SubmissionStatusApproved).
		Order("id ASC").
		Find(&submissions).Error
	if err != nil {
		return nil, translateError(err)
	}
	return submissions, nil
}

// ListByUser returns every submission owned by the user, whatever its status.
func (s *Submissions) ListByUser(ctx context.Context, userID string) ([]contest.Submission, error) {
	var submissions []contest.Submission
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("competition_id ASC, id ASC").
		Find(&submissions).Error
	if err != nil {
		return nil, translateError(err)
	}
	return submissions, nil
}

// ListParticipants returns the distinct owners of approved submissions in the given competitions.
func (s *Submissions) ListParticipants(ctx context.Context, competitionIDs []string) ([]string, error) {
	if len(competitionIDs) == 0 {
		return nil, nil
	}
	var userIDs []string
	err := s.db.WithContext(ctx).
		Model(&contest.Submission{}).
		Distinct("user_id").
		Where("competition_id IN ? AND status = ?", competitionIDs, contest.SubmissionStatusApproved).
		Order("user_id ASC").
		Pluck("user_id", &userIDs).Error
	if err != nil {
		return nil, translateError(err)
	}
	return userIDs, nil
}
