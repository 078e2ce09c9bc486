package results

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/podium/backend/internal/contest"
	"github.com/MarcoPoloResearchLab/podium/backend/internal/notify"
	"github.com/MarcoPoloResearchLab/podium/backend/internal/store"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

var fixedNow = time.Unix(1700000000, 0).UTC()

func fixedClock() time.Time {
	return fixedNow
}

type sqliteFixture struct {
	db       *gorm.DB
	store    *store.Store
	notifier notify.Sink
}

func newSQLiteFixture(t *testing.T) *sqliteFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:podium_results_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(contest.Models()...); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	repositories, err := store.New(store.Config{Database: db, Clock: fixedClock})
	if err != nil {
		t.Fatalf("failed to build store: %v", err)
	}
	sink, err := notify.NewStoreSink(repositories.Notifications, nil, fixedClock)
	if err != nil {
		t.Fatalf("failed to build sink: %v", err)
	}
	return &sqliteFixture{db: db, store: repositories, notifier: sink}
}

func (f *sqliteFixture) seed(t *testing.T, rows ...any) {
	t.Helper()
	for _, row := range rows {
		if err := f.db.Create(row).Error; err != nil {
			t.Fatalf("failed to seed %T: %v", row, err)
		}
	}
}

func (f *sqliteFixture) synchronizer(t *testing.T) *Synchronizer {
	t.Helper()
	synchronizer, err := NewSynchronizer(Config{
		Competitions: f.store.Competitions,
		Submissions:  f.store.Submissions,
		Results:      f.store.Results,
		Notifier:     f.notifier,
		Clock:        fixedClock,
	})
	if err != nil {
		t.Fatalf("failed to build synchronizer: %v", err)
	}
	return synchronizer
}

func (f *sqliteFixture) auditor(t *testing.T) *Auditor {
	t.Helper()
	auditor, err := NewAuditor(AuditorConfig{
		Competitions: f.store.Competitions,
		Submissions:  f.store.Submissions,
		Results:      f.store.Results,
		Clock:        fixedClock,
	})
	if err != nil {
		t.Fatalf("failed to build auditor: %v", err)
	}
	return auditor
}

func completedCompetition(id string) *contest.Competition {
	return &contest.Competition{
		ID:                 id,
		Title:              "Competition " + id,
		StartAtSeconds:     fixedNow.Add(-72 * time.Hour).Unix(),
		EndAtSeconds:       fixedNow.Add(-48 * time.Hour).Unix(),
		VotingEndAtSeconds: fixedNow.Add(-24 * time.Hour).Unix(),
		Status:             contest.CompetitionStatusVoting,
	}
}

func approvedSubmission(id, competitionID, userID string, average float64, count int64) *contest.Submission {
	return &contest.Submission{
		ID:            id,
		CompetitionID: competitionID,
		UserID:        userID,
		Title:         "Photo " + id,
		AverageRating: average,
		RatingCount:   count,
		Status:        contest.SubmissionStatusApproved,
	}
}

type stubCompetitions struct {
	completed []contest.Competition
	err       error
}

func (s *stubCompetitions) Get(_ context.Context, competitionID string) (contest.Competition, error) {
	for _, competition := range s.completed {
		if competition.ID == competitionID {
			return competition, nil
		}
	}
	return contest.Competition{}, store.ErrNotFound
}

func (s *stubCompetitions) ListCompleted(context.Context, time.Time) ([]contest.Competition, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.completed, nil
}

type stubSubmissions struct {
	approved map[string][]contest.Submission
	errs     map[string]error
	panics   map[string]bool
}

func (s *stubSubmissions) ListApproved(_ context.Context, competitionID string) ([]contest.Submission, error) {
	if s.panics[competitionID] {
		panic("corrupt submission row")
	}
	if err := s.errs[competitionID]; err != nil {
		return nil, err
	}
	return s.approved[competitionID], nil
}

func (s *stubSubmissions) ListParticipants(_ context.Context, competitionIDs []string) ([]string, error) {
	users := make([]string, 0)
	for _, competitionID := range competitionIDs {
		for _, submission := range s.approved[competitionID] {
			users = append(users, submission.UserID)
		}
	}
	slices.Sort(users)
	return slices.Compact(users), nil
}

// memoryResults enforces the same uniqueness rules as the results table.
type memoryResults struct {
	mu           sync.Mutex
	rows         []contest.Result
	transactions int
	insertErr    error
}

func (m *memoryResults) Transaction(_ context.Context, fn func(store.ResultWriter) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions++
	writer := &memoryWriter{rows: slices.Clone(m.rows), insertErr: m.insertErr}
	if err := fn(writer); err != nil {
		return err
	}
	m.rows = writer.rows
	return nil
}

func (m *memoryResults) ListForCompetition(_ context.Context, competitionID string) ([]contest.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	results := make([]contest.Result, 0)
	for _, row := range m.rows {
		if row.CompetitionID == competitionID {
			results = append(results, row)
		}
	}
	return results, nil
}

func (m *memoryResults) snapshot() []contest.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.rows)
}

type memoryWriter struct {
	rows      []contest.Result
	insertErr error
}

func (w *memoryWriter) DeleteAllForUser(_ context.Context, userID string) (int64, error) {
	before := len(w.rows)
	w.rows = slices.DeleteFunc(w.rows, func(row contest.Result) bool { return row.UserID == userID })
	return int64(before - len(w.rows)), nil
}

func (w *memoryWriter) Insert(_ context.Context, result *contest.Result) error {
	if w.insertErr != nil {
		return w.insertErr
	}
	for _, row := range w.rows {
		if row.CompetitionID != result.CompetitionID {
			continue
		}
		if row.ID == result.ID || row.Position == result.Position || row.UserID == result.UserID || row.PhotoID == result.PhotoID {
			return store.ErrResultConflict
		}
	}
	w.rows = append(w.rows, *result)
	return nil
}

type recordingSink struct {
	mu       sync.Mutex
	messages []notify.Message
	err      error
}

func (s *recordingSink) Notify(_ context.Context, message notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, message)
	return nil
}

func submissionValue(id, competitionID, userID string, average float64, count int64) contest.Submission {
	return *approvedSubmission(id, competitionID, userID, average, count)
}
