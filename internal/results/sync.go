// Package results reconciles persisted prize slots with a fresh ranking and audits them.
package results

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/podium/backend/internal/contest"
	"github.com/MarcoPoloResearchLab/podium/backend/internal/metrics"
	"github.com/MarcoPoloResearchLab/podium/backend/internal/notify"
	"github.com/MarcoPoloResearchLab/podium/backend/internal/ranking"
	"github.com/MarcoPoloResearchLab/podium/backend/internal/serviceerr"
	"github.com/MarcoPoloResearchLab/podium/backend/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	opSynchronizerNew = "results.synchronizer.new"
	opSynchronizeUser = "results.synchronize_user"
	opSynchronizeAll  = "results.synchronize_all"

	defaultWorkers = 4
)

type syncMode int

const (
	// modeFull writes every placement and sends notifications.
	modeFull syncMode = iota
	// modeExactOnly writes only placements whose slot equals the true dense rank and sends nothing.
	modeExactOnly
)

var (
	errMissingCompetitions = errors.New("competition reader is required")
	errMissingSubmissions  = errors.New("submission reader is required")
	errMissingResults      = errors.New("result store is required")
	errCompetitionPanic    = errors.New("competition processing panicked")
)

// CompetitionReader is the competition store contract.
type CompetitionReader interface {
	Get(ctx context.Context, competitionID string) (contest.Competition, error)
	ListCompleted(ctx context.Context, asOf time.Time) ([]contest.Competition, error)
}

// SubmissionReader is the submission store contract.
type SubmissionReader interface {
	ListApproved(ctx context.Context, competitionID string) ([]contest.Submission, error)
	ListParticipants(ctx context.Context, competitionIDs []string) ([]string, error)
}

// ResultStore is the result store contract. Writes happen inside Transaction.
type ResultStore interface {
	Transaction(ctx context.Context, fn func(store.ResultWriter) error) error
	ListForCompetition(ctx context.Context, competitionID string) ([]contest.Result, error)
}

// Config wires the Synchronizer.
type Config struct {
	Competitions CompetitionReader
	Submissions  SubmissionReader
	Results      ResultStore
	Notifier     notify.Sink
	Clock        func() time.Time
	Logger       *zap.Logger
	Metrics      *metrics.Recorder
	// Workers bounds how many competitions are ranked concurrently.
	Workers int
	// Timeout bounds a single user run. Zero disables the bound.
	Timeout time.Duration
}

// SyncError is a per-competition failure that did not stop the run.
type SyncError struct {
	CompetitionID string `json:"competition_id"`
	Message       string `json:"message"`
}

// SyncReport summarizes one user's reconciliation.
type SyncReport struct {
	UserID               string      `json:"user_id"`
	Competitions         int         `json:"competitions"`
	ResultsRemoved       int64       `json:"results_removed"`
	ResultsCreated       int         `json:"results_created"`
	NotificationsCreated int         `json:"notifications_created"`
	SlotsAlreadyClaimed  int         `json:"slots_already_claimed"`
	Errors               []SyncError `json:"errors"`
}

// Synchronizer rebuilds a user's Result rows from the current ranking of every completed
// competition.
type Synchronizer struct {
	competitions CompetitionReader
	submissions  SubmissionReader
	results      ResultStore
	notifier     notify.Sink
	clock        func() time.Time
	logger       *zap.Logger
	metrics      *metrics.Recorder
	workers      int
	timeout      time.Duration
	locks        *competitionLocks
}

// NewSynchronizer validates the configuration and builds a Synchronizer.
func NewSynchronizer(cfg Config) (*Synchronizer, error) {
	if cfg.Competitions == nil {
		return nil, serviceerr.New(opSynchronizerNew, "missing_competitions", errMissingCompetitions)
	}
	if cfg.Submissions == nil {
		return nil, serviceerr.New(opSynchronizerNew, "missing_submissions", errMissingSubmissions)
	}
	if cfg.Results == nil {
		return nil, serviceerr.New(opSynchronizerNew, "missing_results", errMissingResults)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Synchronizer{
		competitions: cfg.Competitions,
		submissions:  cfg.Submissions,
		results:      cfg.Results,
		notifier:     cfg.Notifier,
		clock:        clock,
		logger:       logger,
		metrics:      cfg.Metrics,
		workers:      workers,
		timeout:      cfg.Timeout,
		locks:        newCompetitionLocks(),
	}, nil
}

// competitionPlan is the outcome of ranking one competition for one user.
type competitionPlan struct {
	competition  contest.Competition
	participated bool
	placements   []ranking.Placement
	err          error
}

type persistedSlot struct {
	competition contest.Competition
	placement   ranking.Placement
}

// SynchronizeUser replaces every Result row of the user with the placements computed from
// the current ranking of each completed competition. The replacement commits atomically.
// A failure confined to one competition is reported in SyncReport.Errors; a lost store or
// an expired run returns the partial report together with the error.
func (s *Synchronizer) SynchronizeUser(ctx context.Context, rawUserID string) (SyncReport, error) {
	return s.run(ctx, rawUserID, modeFull)
}

func (s *Synchronizer) run(ctx context.Context, rawUserID string, mode syncMode) (SyncReport, error) {
	started := s.clock()
	report := SyncReport{UserID: rawUserID, Errors: make([]SyncError, 0)}

	userID, err := contest.NewUserID(rawUserID)
	if err != nil {
		return report, serviceerr.New(opSynchronizeUser, "invalid_user_id", err)
	}
	report.UserID = userID.String()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	report, err = s.synchronize(ctx, userID.String(), report, mode)
	if mode == modeFull {
		s.metrics.SyncCompleted(outcomeOf(report, err), s.clock().Sub(started))
	}
	return report, err
}

func (s *Synchronizer) synchronize(ctx context.Context, userID string, report SyncReport, mode syncMode) (SyncReport, error) {
	completed, err := s.competitions.ListCompleted(ctx, s.clock())
	if err != nil {
		s.logError(opSynchronizeUser, "list_competitions_failed", err, zap.String("user_id", userID))
		return report, serviceerr.New(opSynchronizeUser, "list_competitions_failed", err)
	}
	report.Competitions = len(completed)

	plans, err := s.planCompetitions(ctx, completed, userID)
	if err != nil {
		s.logError(opSynchronizeUser, "rank_competitions_failed", err, zap.String("user_id", userID))
		return report, serviceerr.New(opSynchronizeUser, "rank_competitions_failed", err)
	}
	for index, plan := range plans {
		if mode == modeExactOnly {
			plans[index].placements = exactPlacements(plan.placements)
		}
		if plan.err == nil {
			continue
		}
		if mode == modeFull {
			s.logError(opSynchronizeUser, "competition_failed", plan.err,
				zap.String("user_id", userID),
				zap.String("competition_id", plan.competition.ID))
		}
		report.Errors = append(report.Errors, SyncError{
			CompetitionID: plan.competition.ID,
			Message:       plan.err.Error(),
		})
	}

	if err := ctx.Err(); err != nil {
		return report, serviceerr.New(opSynchronizeUser, "cancelled", err)
	}

	persisted, removed, claimed, err := s.writeResults(ctx, userID, plans, mode)
	report.SlotsAlreadyClaimed = claimed
	if err != nil {
		s.logError(opSynchronizeUser, "write_results_failed", err, zap.String("user_id", userID))
		return report, serviceerr.New(opSynchronizeUser, "write_results_failed", err)
	}
	report.ResultsRemoved = removed
	report.ResultsCreated = len(persisted)
	if mode == modeExactOnly {
		s.logger.Debug("exact result slots reserved",
			zap.String("user_id", userID),
			zap.Int("results_created", report.ResultsCreated))
		return report, nil
	}
	s.metrics.ResultsCreated(len(persisted))

	report.NotificationsCreated = s.sendNotifications(ctx, userID, plans, persisted)

	s.logger.Info("results synchronized",
		zap.String("user_id", userID),
		zap.Int("competitions", report.Competitions),
		zap.Int64("results_removed", report.ResultsRemoved),
		zap.Int("results_created", report.ResultsCreated),
		zap.Int("slots_already_claimed", report.SlotsAlreadyClaimed),
		zap.Int("errors", len(report.Errors)))
	return report, nil
}

// planCompetitions ranks every competition with bounded concurrency. Per-competition
// failures are kept on the plan; only fatal failures stop the group.
func (s *Synchronizer) planCompetitions(ctx context.Context, competitions []contest.Competition, userID string) ([]competitionPlan, error) {
	plans := make([]competitionPlan, len(competitions))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.workers)
	for index, competition := range competitions {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			plan := s.planCompetition(groupCtx, competition, userID)
			if plan.err != nil && isFatal(plan.err) {
				return plan.err
			}
			plans[index] = plan
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return plans, nil
}

func (s *Synchronizer) planCompetition(ctx context.Context, competition contest.Competition, userID string) (plan competitionPlan) {
	plan.competition = competition
	defer func() {
		if recovered := recover(); recovered != nil {
			plan.placements = nil
			plan.err = fmt.Errorf("%w: %v", errCompetitionPanic, recovered)
		}
	}()

	submissions, err := s.submissions.ListApproved(ctx, competition.ID)
	if err != nil {
		plan.err = err
		return plan
	}
	ordered := ranking.Order(ranking.EntriesFromSubmissions(submissions))
	for _, item := range ordered {
		if item.UserID == userID {
			plan.participated = true
			break
		}
	}
	plan.placements = ranking.ResolvePlacements(ordered, userID)
	return plan
}

func exactPlacements(placements []ranking.Placement) []ranking.Placement {
	exact := make([]ranking.Placement, 0, len(placements))
	for _, placement := range placements {
		if !placement.Fallback {
			exact = append(exact, placement)
		}
	}
	return exact
}

// writeResults deletes the user's Result rows and inserts the new placements in one
// transaction while holding the write locks of every affected competition.
func (s *Synchronizer) writeResults(ctx context.Context, userID string, plans []competitionPlan, mode syncMode) ([]persistedSlot, int64, int, error) {
	lockIDs := make([]string, 0, len(plans))
	for _, plan := range plans {
		if plan.err == nil && len(plan.placements) > 0 {
			lockIDs = append(lockIDs, plan.competition.ID)
		}
	}
	release := s.locks.acquire(lockIDs)
	defer release()

	var (
		persisted []persistedSlot
		removed   int64
		claimed   int
	)
	err := s.results.Transaction(ctx, func(tx store.ResultWriter) error {
		persisted = persisted[:0]
		claimed = 0

		deleted, err := tx.DeleteAllForUser(ctx, userID)
		if err != nil {
			return err
		}
		removed = deleted

		for _, plan := range plans {
			if plan.err != nil {
				continue
			}
			for _, placement := range plan.placements {
				if err := ctx.Err(); err != nil {
					return err
				}
				result := &contest.Result{
					ID:               contest.ResultID(plan.competition.ID, placement.Position),
					CompetitionID:    plan.competition.ID,
					UserID:           userID,
					PhotoID:          placement.SubmissionID,
					Position:         placement.Position,
					FinalScore:       placement.AverageRating,
					Prize:            placement.Prize,
					CreatedAtSeconds: plan.competition.ClosesAtSeconds(),
				}
				err := tx.Insert(ctx, result)
				if errors.Is(err, store.ErrResultConflict) {
					claimed++
					if mode == modeExactOnly {
						continue
					}
					s.metrics.ConstraintViolation()
					s.logger.Info("result slot already claimed",
						zap.String("user_id", userID),
						zap.String("competition_id", plan.competition.ID),
						zap.String("photo_id", placement.SubmissionID),
						zap.Int("position", placement.Position))
					continue
				}
				if err != nil {
					return err
				}
				persisted = append(persisted, persistedSlot{competition: plan.competition, placement: placement})
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, claimed, err
	}
	return persisted, removed, claimed, nil
}

// sendNotifications emits one "results available" message per participated competition and
// one achievement per persisted slot. Delivery failures are logged and skipped.
func (s *Synchronizer) sendNotifications(ctx context.Context, userID string, plans []competitionPlan, persisted []persistedSlot) int {
	if s.notifier == nil {
		return 0
	}
	now := s.clock().UTC()
	sent := 0
	deliver := func(message notify.Message) {
		if err := s.notifier.Notify(ctx, message); err != nil {
			s.metrics.NotificationFailed()
			s.logger.Warn("notification failed",
				zap.String("user_id", userID),
				zap.String("kind", string(message.Kind)),
				zap.String("competition_id", message.CompetitionID),
				zap.Error(err))
			return
		}
		sent++
	}

	for _, plan := range plans {
		if plan.err != nil || !plan.participated {
			continue
		}
		deliver(resultsAvailableMessage(userID, plan.competition, now))
	}
	for _, slot := range persisted {
		deliver(achievementMessage(userID, slot, now))
	}
	return sent
}

func resultsAvailableMessage(userID string, competition contest.Competition, now time.Time) notify.Message {
	return notify.Message{
		UserID:        userID,
		Kind:          contest.NotificationKindResultsAvailable,
		Title:         "Competition results are in",
		Message:       fmt.Sprintf("Final results for %s are now available.", displayTitle(competition)),
		Link:          fmt.Sprintf("/competitions/%s/results", competition.ID),
		CompetitionID: competition.ID,
		Timestamp:     now,
	}
}

func achievementMessage(userID string, slot persistedSlot, now time.Time) notify.Message {
	photo := slot.placement.Title
	if photo == "" {
		photo = "Your photo"
	}
	return notify.Message{
		UserID:        userID,
		Kind:          contest.NotificationKindAchievement,
		Title:         fmt.Sprintf("You won the %s", slot.placement.Prize),
		Message:       fmt.Sprintf("%s placed #%d in %s.", photo, slot.placement.Position, displayTitle(slot.competition)),
		Link:          fmt.Sprintf("/photos/%s", slot.placement.SubmissionID),
		CompetitionID: slot.competition.ID,
		PhotoID:       slot.placement.SubmissionID,
		Timestamp:     now,
	}
}

func displayTitle(competition contest.Competition) string {
	if competition.Title != "" {
		return competition.Title
	}
	return competition.ID
}

// SynchronizeAll reconciles every user holding an approved submission in a completed
// competition, one user at a time. Every participant first claims the slots matching their
// true dense rank; only then are the full placements, bronze fallbacks included, rewritten
// and notified. It stops at the first fatal failure.
func (s *Synchronizer) SynchronizeAll(ctx context.Context) ([]SyncReport, error) {
	completed, err := s.competitions.ListCompleted(ctx, s.clock())
	if err != nil {
		s.logError(opSynchronizeAll, "list_competitions_failed", err)
		return nil, serviceerr.New(opSynchronizeAll, "list_competitions_failed", err)
	}
	competitionIDs := make([]string, 0, len(completed))
	for _, competition := range completed {
		competitionIDs = append(competitionIDs, competition.ID)
	}

	userIDs, err := s.submissions.ListParticipants(ctx, competitionIDs)
	if err != nil {
		s.logError(opSynchronizeAll, "list_participants_failed", err)
		return nil, serviceerr.New(opSynchronizeAll, "list_participants_failed", err)
	}

	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			return nil, serviceerr.New(opSynchronizeAll, "cancelled", err)
		}
		if _, err := s.run(ctx, userID, modeExactOnly); err != nil && isFatal(err) {
			return nil, serviceerr.New(opSynchronizeAll, "reserve_slots_failed", err)
		}
	}

	reports := make([]SyncReport, 0, len(userIDs))
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			return reports, serviceerr.New(opSynchronizeAll, "cancelled", err)
		}
		report, err := s.SynchronizeUser(ctx, userID)
		reports = append(reports, report)
		if err != nil && isFatal(err) {
			return reports, serviceerr.New(opSynchronizeAll, "user_failed", err)
		}
	}
	return reports, nil
}

func isFatal(err error) bool {
	return errors.Is(err, store.ErrUnavailable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func outcomeOf(report SyncReport, err error) string {
	switch {
	case err != nil:
		return metrics.OutcomeFatal
	case len(report.Errors) > 0:
		return metrics.OutcomePartial
	default:
		return metrics.OutcomeSuccess
	}
}

func (s *Synchronizer) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("results service error", attrs...)
}
