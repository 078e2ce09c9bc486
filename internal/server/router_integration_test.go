package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/podium/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/podium/backend/internal/contest"
	"github.com/MarcoPoloResearchLab/podium/backend/internal/database"
	"github.com/MarcoPoloResearchLab/podium/backend/internal/notify"
	"github.com/MarcoPoloResearchLab/podium/backend/internal/points"
	"github.com/MarcoPoloResearchLab/podium/backend/internal/results"
	"github.com/MarcoPoloResearchLab/podium/backend/internal/store"
	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestReconciliationFlowOverHTTP(t *testing.T) {
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:podium_server_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.Migrate(db, zap.NewNop()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	repositories, err := store.New(store.Config{Database: db, Clock: testClock})
	if err != nil {
		t.Fatalf("failed to build store: %v", err)
	}

	closed := testNow.Add(-time.Hour).Unix()
	seedRows := []any{
		&contest.Competition{ID: "comp-1", Title: "Coastlines", StartAtSeconds: closed - 7200, EndAtSeconds: closed - 3600, VotingEndAtSeconds: closed, Status: contest.CompetitionStatusVoting},
		&contest.Submission{ID: "photo-a", CompetitionID: "comp-1", UserID: "alice", Title: "Tide", Status: contest.SubmissionStatusApproved},
		&contest.Submission{ID: "photo-b", CompetitionID: "comp-1", UserID: "bob", Title: "Cliff", Status: contest.SubmissionStatusApproved},
		&contest.Submission{ID: "photo-c", CompetitionID: "comp-1", UserID: "carol", Title: "Gulls", Status: contest.SubmissionStatusApproved},
	}
	for _, row := range seedRows {
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("failed to seed %T: %v", row, err)
		}
	}

	ctx := context.Background()
	votes := []struct {
		voter string
		photo string
		score int
	}{
		{"bob", "photo-a", 5}, {"carol", "photo-a", 5},
		{"alice", "photo-b", 4}, {"carol", "photo-b", 4},
		{"alice", "photo-c", 2}, {"bob", "photo-c", 3},
	}
	for _, vote := range votes {
		if _, err := repositories.Ratings.Record(ctx, vote.voter, vote.photo, vote.score); err != nil {
			t.Fatalf("failed to record vote %+v: %v", vote, err)
		}
	}

	dispatcher := notify.NewDispatcher()
	storeSink, err := notify.NewStoreSink(repositories.Notifications, nil, testClock)
	if err != nil {
		t.Fatalf("failed to build store sink: %v", err)
	}
	synchronizer, err := results.NewSynchronizer(results.Config{
		Competitions: repositories.Competitions,
		Submissions:  repositories.Submissions,
		Results:      repositories.Results,
		Notifier:     notify.NewFanout(storeSink, dispatcher),
		Clock:        testClock,
	})
	if err != nil {
		t.Fatalf("failed to build synchronizer: %v", err)
	}
	auditor, err := results.NewAuditor(results.AuditorConfig{
		Competitions: repositories.Competitions,
		Submissions:  repositories.Submissions,
		Results:      repositories.Results,
		Clock:        testClock,
	})
	if err != nil {
		t.Fatalf("failed to build auditor: %v", err)
	}
	pointsService, err := points.NewService(points.ServiceConfig{
		Submissions: repositories.Submissions,
		Ratings:     repositories.Ratings,
	})
	if err != nil {
		t.Fatalf("failed to build points service: %v", err)
	}
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

	handler, err := NewHTTPHandler(Dependencies{
		SessionValidator: validator,
		Synchronizer:     synchronizer,
		Auditor:          auditor,
		Points:           pointsService,
		Ratings:          repositories.Ratings,
		Dispatcher:       dispatcher,
		Clock:            testClock,
	})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}
	operatorToken, _, err := issuer.Issue(operatorUserID, auth.RoleOperator)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	for _, userID := range []string{"alice", "bob", "carol"} {
		response := serve(handler, http.MethodPost, "/users/"+userID+"/sync", operatorToken, nil)
		if response.Code != http.StatusOK {
			t.Fatalf("sync %s: status %d body %s", userID, response.Code, response.Body.String())
		}
		var report results.SyncReport
		if err := json.Unmarshal(response.Body.Bytes(), &report); err != nil {
			t.Fatalf("failed to decode report: %v", err)
		}
		if report.ResultsCreated != 1 || len(report.Errors) != 0 {
			t.Fatalf("unexpected report for %s: %+v", userID, report)
		}
	}

	persisted, err := repositories.Results.ListForCompetition(ctx, "comp-1")
	if err != nil {
		t.Fatalf("failed to list results: %v", err)
	}
	wantPositions := map[string]int{"photo-a": 1, "photo-b": 2, "photo-c": 3}
	if len(persisted) != len(wantPositions) {
		t.Fatalf("expected %d results, got %+v", len(wantPositions), persisted)
	}
	for _, result := range persisted {
		if wantPositions[result.PhotoID] != result.Position {
			t.Fatalf("unexpected position for %s: %d", result.PhotoID, result.Position)
		}
	}

	audit := serve(handler, http.MethodGet, "/competitions/comp-1/audit", operatorToken, nil)
	if audit.Code != http.StatusOK {
		t.Fatalf("audit status %d: %s", audit.Code, audit.Body.String())
	}
	var auditBody struct {
		Mismatches int `json:"mismatches"`
	}
	if err := json.Unmarshal(audit.Body.Bytes(), &auditBody); err != nil {
		t.Fatalf("failed to decode audit: %v", err)
	}
	if auditBody.Mismatches != 0 {
		t.Fatalf("expected a clean audit, got %d mismatches", auditBody.Mismatches)
	}

	aliceToken, _, err := issuer.Issue("alice")
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	pointsResponse := serve(handler, http.MethodGet, "/users/alice/points", aliceToken, nil)
	if pointsResponse.Code != http.StatusOK {
		t.Fatalf("points status %d: %s", pointsResponse.Code, pointsResponse.Body.String())
	}
	var breakdown points.Breakdown
	if err := json.Unmarshal(pointsResponse.Body.Bytes(), &breakdown); err != nil {
		t.Fatalf("failed to decode points: %v", err)
	}
	// Two votes cast plus a first place with a rating total of 10 at multiplier 5.
	if breakdown.VotingPoints != 2 || breakdown.FirstPlaceCount != 1 || breakdown.TotalPoints != 52 {
		t.Fatalf("unexpected breakdown: %+v", breakdown)
	}

	notifications, err := repositories.Notifications.ListForUser(ctx, "alice", 0)
	if err != nil {
		t.Fatalf("failed to list notifications: %v", err)
	}
	if len(notifications) != 2 {
		t.Fatalf("expected results and achievement notifications, got %+v", notifications)
	}

	selfVote := serve(handler, http.MethodPost, "/ratings", aliceToken, []byte(`{"photo_id":"photo-a","score":5}`))
	if selfVote.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected self vote rejection, got %d", selfVote.Code)
	}
}
