package results

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/MarcoPoloResearchLab/podium/backend/internal/contest"
	"github.com/MarcoPoloResearchLab/podium/backend/internal/metrics"
	"github.com/MarcoPoloResearchLab/podium/backend/internal/ranking"
	"github.com/MarcoPoloResearchLab/podium/backend/internal/serviceerr"
	"go.uber.org/zap"
)

const (
	opAuditorNew       = "results.auditor.new"
	opAuditCompetition = "results.audit_competition"
	opRanking          = "results.ranking"
)

// ErrCompetitionNotCompleted reports an audit of a competition whose voting has not closed.
var ErrCompetitionNotCompleted = errors.New("competition is not completed")

// AuditorConfig wires the Auditor.
type AuditorConfig struct {
	Competitions CompetitionReader
	Submissions  SubmissionReader
	Results      ResultStore
	Logger       *zap.Logger
	Metrics      *metrics.Recorder
	Clock        func() time.Time
}

// AuditEntry compares a submission's computed rank against its persisted prize slot.
type AuditEntry struct {
	SubmissionID      string `json:"submission_id"`
	UserID            string `json:"user_id"`
	ComputedRank      int    `json:"computed_rank"`
	PersistedPosition *int   `json:"persisted_position"`
	Mismatch          bool   `json:"mismatch"`
}

// Auditor recomputes rankings and reports drift from persisted results. It never writes.
type Auditor struct {
	competitions CompetitionReader
	submissions  SubmissionReader
	results      ResultStore
	logger       *zap.Logger
	metrics      *metrics.Recorder
	clock        func() time.Time
}

// NewAuditor validates the configuration and builds an Auditor.
func NewAuditor(cfg AuditorConfig) (*Auditor, error) {
	if cfg.Competitions == nil {
		return nil, serviceerr.New(opAuditorNew, "missing_competitions", errMissingCompetitions)
	}
	if cfg.Submissions == nil {
		return nil, serviceerr.New(opAuditorNew, "missing_submissions", errMissingSubmissions)
	}
	if cfg.Results == nil {
		return nil, serviceerr.New(opAuditorNew, "missing_results", errMissingResults)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Auditor{
		competitions: cfg.Competitions,
		submissions:  cfg.Submissions,
		results:      cfg.Results,
		logger:       logger,
		metrics:      cfg.Metrics,
		clock:        clock,
	}, nil
}

// Ranking returns the current dense ranking of a competition in display order.
func (a *Auditor) Ranking(ctx context.Context, rawCompetitionID string) ([]ranking.Ranked, error) {
	_, ordered, err := a.rank(ctx, opRanking, rawCompetitionID)
	return ordered, err
}

// AuditCompetition reports, for each participating user, the computed rank of their best
// submission and the position persisted for that submission, if any. A persisted position
// differing from the computed rank is flagged as a mismatch; bronze fallback slots therefore
// show up as mismatches by construction. Persisted slots held by any other submission are
// appended as mismatches. Only completed competitions can be audited.
func (a *Auditor) AuditCompetition(ctx context.Context, rawCompetitionID string) ([]AuditEntry, error) {
	competition, ordered, err := a.rank(ctx, opAuditCompetition, rawCompetitionID)
	if err != nil {
		return nil, err
	}
	competitionID := competition.ID
	if !competition.CompletedAt(a.clock().Unix()) {
		return nil, serviceerr.New(opAuditCompetition, "competition_not_completed", ErrCompetitionNotCompleted)
	}

	persisted, err := a.results.ListForCompetition(ctx, competitionID)
	if err != nil {
		a.logError(opAuditCompetition, "list_results_failed", err, zap.String("competition_id", competitionID))
		return nil, serviceerr.New(opAuditCompetition, "list_results_failed", err)
	}
	positions := make(map[string]int, len(persisted))
	for _, result := range persisted {
		positions[result.PhotoID] = result.Position
	}

	entries := make([]AuditEntry, 0)
	seen := make(map[string]struct{}, len(ordered))
	mismatches := 0
	for _, item := range ordered {
		if _, done := seen[item.UserID]; done {
			continue
		}
		seen[item.UserID] = struct{}{}

		entry := AuditEntry{
			SubmissionID: item.SubmissionID,
			UserID:       item.UserID,
			ComputedRank: item.Rank,
		}
		if position, ok := positions[item.SubmissionID]; ok {
			entry.PersistedPosition = &position
			entry.Mismatch = position != item.Rank
		}
		if entry.Mismatch {
			mismatches++
		}
		entries = append(entries, entry)
	}

	ranks := make(map[string]int, len(ordered))
	for _, item := range ordered {
		ranks[item.SubmissionID] = item.Rank
	}
	for _, result := range persisted {
		if slices.ContainsFunc(entries, func(entry AuditEntry) bool { return entry.SubmissionID == result.PhotoID }) {
			continue
		}
		position := result.Position
		entries = append(entries, AuditEntry{
			SubmissionID:      result.PhotoID,
			UserID:            result.UserID,
			ComputedRank:      ranks[result.PhotoID],
			PersistedPosition: &position,
			Mismatch:          true,
		})
		mismatches++
	}

	a.metrics.AuditMismatches(mismatches)
	a.logger.Info("competition audited",
		zap.String("competition_id", competitionID),
		zap.Int("entries", len(entries)),
		zap.Int("mismatches", mismatches))
	return entries, nil
}

func (a *Auditor) rank(ctx context.Context, operation, rawCompetitionID string) (contest.Competition, []ranking.Ranked, error) {
	validated, err := contest.NewCompetitionID(rawCompetitionID)
	if err != nil {
		return contest.Competition{}, nil, serviceerr.New(operation, "invalid_competition_id", err)
	}
	competitionID := validated.String()
	competition, err := a.competitions.Get(ctx, competitionID)
	if err != nil {
		a.logError(operation, "load_competition_failed", err, zap.String("competition_id", competitionID))
		return contest.Competition{}, nil, serviceerr.New(operation, "load_competition_failed", err)
	}
	submissions, err := a.submissions.ListApproved(ctx, competitionID)
	if err != nil {
		a.logError(operation, "list_submissions_failed", err, zap.String("competition_id", competitionID))
		return contest.Competition{}, nil, serviceerr.New(operation, "list_submissions_failed", err)
	}
	ordered := ranking.Order(ranking.EntriesFromSubmissions(submissions))
	if ordered == nil {
		ordered = make([]ranking.Ranked, 0)
	}
	return competition, ordered, nil
}

func (a *Auditor) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	a.logger.Error("results service error", attrs...)
}
