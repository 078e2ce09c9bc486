package server

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/podium/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/podium/backend/internal/contest"
	"github.com/MarcoPoloResearchLab/podium/backend/internal/points"
	"github.com/MarcoPoloResearchLab/podium/backend/internal/ranking"
	"github.com/MarcoPoloResearchLab/podium/backend/internal/results"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	testSigningSecret = "server-test-secret"
	testIssuer        = "podium-auth"
	testCookieName    = "podium_session"
	operatorUserID    = "operator-1"
	memberUserID      = "member-1"
)

var testNow = time.Unix(1700000000, 0).UTC()

func testClock() time.Time {
	return testNow
}

type stubSessions struct {
	requestClaims auth.SessionClaims
	requestErr    error
	tokenClaims   auth.SessionClaims
	tokenErr      error
}

func (s stubSessions) ValidateRequest(*http.Request) (auth.SessionClaims, error) {
	return s.requestClaims, s.requestErr
}

func (s stubSessions) ValidateToken(string) (auth.SessionClaims, error) {
	return s.tokenClaims, s.tokenErr
}

type stubSynchronizer struct {
	mu     sync.Mutex
	report results.SyncReport
	err    error
	users  []string
}

func (s *stubSynchronizer) SynchronizeUser(_ context.Context, userID string) (results.SyncReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, userID)
	report := s.report
	report.UserID = userID
	return report, s.err
}

type stubAuditor struct {
	ranked  []ranking.Ranked
	entries []results.AuditEntry
	err     error
}

func (s stubAuditor) Ranking(context.Context, string) ([]ranking.Ranked, error) {
	return s.ranked, s.err
}

func (s stubAuditor) AuditCompetition(context.Context, string) ([]results.AuditEntry, error) {
	return s.entries, s.err
}

type stubPoints struct {
	breakdown points.Breakdown
	err       error
}

func (s stubPoints) UserPoints(context.Context, string) (points.Breakdown, error) {
	return s.breakdown, s.err
}

type stubRatings struct {
	mu      sync.Mutex
	err     error
	voterID string
}

func (s *stubRatings) Record(_ context.Context, userID, photoID string, score int) (contest.Rating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voterID = userID
	if s.err != nil {
		return contest.Rating{}, s.err
	}
	return contest.Rating{ID: "rating-1", UserID: userID, PhotoID: photoID, Score: score, UpdatedAtSeconds: testNow.Unix()}, nil
}

type testHarness struct {
	handler      http.Handler
	issuer       *auth.TokenIssuer
	synchronizer *stubSynchronizer
	ratings      *stubRatings
}

func newTestHarness(t *testing.T, mutate func(*Dependencies)) *testHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	validator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(testSigningSecret),
		Issuer:        testIssuer,
		CookieName:    testCookieName,
		Clock:         testClock,
	})
	if err != nil {
		t.Fatalf("failed to build validator: %v", err)
	}
	issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(testSigningSecret),
		Issuer:        testIssuer,
		Clock:         testClock,
	})
	if err != nil {
		t.Fatalf("failed to build issuer: %v", err)
	}

	synchronizer := &stubSynchronizer{report: results.SyncReport{Competitions: 2, ResultsCreated: 1}}
	ratings := &stubRatings{}
	deps := Dependencies{
		SessionValidator: validator,
		Synchronizer:     synchronizer,
		Auditor:          stubAuditor{},
		Points:           stubPoints{},
		Ratings:          ratings,
		Clock:            testClock,
		Logger:           zap.NewNop(),
	}
	if mutate != nil {
		mutate(&deps)
	}
	handler, err := NewHTTPHandler(deps)
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}
	return &testHarness{handler: handler, issuer: issuer, synchronizer: synchronizer, ratings: ratings}
}

func (h *testHarness) token(t *testing.T, subject string, roles ...string) string {
	t.Helper()
	token, _, err := h.issuer.Issue(subject, roles...)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return token
}
