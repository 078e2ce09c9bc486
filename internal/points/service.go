package points

import (
	"context"
	"errors"
	"sync"

	"github.com/MarcoPoloResearchLab/podium/backend/internal/contest"
	"github.com/MarcoPoloResearchLab/podium/backend/internal/metrics"
	"github.com/MarcoPoloResearchLab/podium/backend/internal/ranking"
	"github.com/MarcoPoloResearchLab/podium/backend/internal/serviceerr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	opServiceNew  = "points.service.new"
	opUserPoints  = "points.user_points"
	defaultWorker = 4
)

var (
	errMissingSubmissions = errors.New("submission reader is required")
	errMissingRatings     = errors.New("rating reader is required")
)

// SubmissionReader is the submission store contract used for scoring.
type SubmissionReader interface {
	ListByUser(ctx context.Context, userID string) ([]contest.Submission, error)
	ListApproved(ctx context.Context, competitionID string) ([]contest.Submission, error)
}

// RatingReader is the rating store contract used for scoring.
type RatingReader interface {
	ListByUser(ctx context.Context, userID string) ([]contest.Rating, error)
}

// ServiceConfig wires the points service.
type ServiceConfig struct {
	Submissions SubmissionReader
	Ratings     RatingReader
	Logger      *zap.Logger
	Metrics     *metrics.Recorder
	Workers     int
}

// Service computes user point breakdowns from stored submissions and ratings.
type Service struct {
	submissions SubmissionReader
	ratings     RatingReader
	logger      *zap.Logger
	metrics     *metrics.Recorder
	workers     int
}

// NewService validates the configuration and builds a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Submissions == nil {
		return nil, serviceerr.New(opServiceNew, "missing_submissions", errMissingSubmissions)
	}
	if cfg.Ratings == nil {
		return nil, serviceerr.New(opServiceNew, "missing_ratings", errMissingRatings)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorker
	}
	return &Service{
		submissions: cfg.Submissions,
		ratings:     cfg.Ratings,
		logger:      logger,
		metrics:     cfg.Metrics,
		workers:     workers,
	}, nil
}

// UserPoints scores every approved submission of the user at its true dense rank and
// credits one point per distinct photo the user rated. Self-votes and duplicate ratings
// are logged and counted as they are.
func (s *Service) UserPoints(ctx context.Context, userID string) (Breakdown, error) {
	owned, err := s.submissions.ListByUser(ctx, userID)
	if err != nil {
		s.logError(opUserPoints, "list_submissions_failed", err, zap.String("user_id", userID))
		return Breakdown{}, serviceerr.New(opUserPoints, "list_submissions_failed", err)
	}

	ranks, err := s.rankCompetitions(ctx, owned)
	if err != nil {
		s.logError(opUserPoints, "rank_competitions_failed", err, zap.String("user_id", userID))
		return Breakdown{}, serviceerr.New(opUserPoints, "rank_competitions_failed", err)
	}

	scored := make([]Submission, 0, len(owned))
	ownPhotoIDs := make([]string, 0, len(owned))
	for _, submission := range owned {
		ownPhotoIDs = append(ownPhotoIDs, submission.ID)
		if !submission.Approved() {
			continue
		}
		scored = append(scored, Submission{
			SubmissionID:  submission.ID,
			CompetitionID: submission.CompetitionID,
			Title:         submission.Title,
			AverageRating: submission.AverageRating,
			RatingCount:   submission.RatingCount,
			Rank:          ranks[submission.ID],
		})
	}

	ratings, err := s.ratings.ListByUser(ctx, userID)
	if err != nil {
		s.logError(opUserPoints, "list_ratings_failed", err, zap.String("user_id", userID))
		return Breakdown{}, serviceerr.New(opUserPoints, "list_ratings_failed", err)
	}

	s.reportWarnings(FindSelfVotes(ownPhotoIDs, ratings))
	s.reportWarnings(FindDuplicateRatings(ratings))

	return Calculate(scored, DistinctPhotos(ratings)), nil
}

// rankCompetitions computes dense ranks for every competition the user entered.
func (s *Service) rankCompetitions(ctx context.Context, owned []contest.Submission) (map[string]int, error) {
	competitionIDs := make(map[string]struct{})
	for _, submission := range owned {
		if submission.Approved() {
			competitionIDs[submission.CompetitionID] = struct{}{}
		}
	}

	var mu sync.Mutex
	ranks := make(map[string]int, len(owned))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.workers)
	for competitionID := range competitionIDs {
		group.Go(func() error {
			approved, err := s.submissions.ListApproved(groupCtx, competitionID)
			if err != nil {
				return err
			}
			competitionRanks := ranking.DenseRank(ranking.EntriesFromSubmissions(approved))
			mu.Lock()
			defer mu.Unlock()
			for submissionID, rank := range competitionRanks {
				ranks[submissionID] = rank
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return ranks, nil
}

func (s *Service) reportWarnings(warnings []IntegrityWarning) {
	for _, warning := range warnings {
		s.logger.Warn("data integrity warning",
			zap.String("kind", warning.Kind),
			zap.String("user_id", warning.UserID),
			zap.String("photo_id", warning.PhotoID),
			zap.Int("count", warning.Count))
		s.metrics.IntegrityWarning(warning.Kind)
	}
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("points service error", attrs...)
}
