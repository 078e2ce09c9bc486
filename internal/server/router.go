package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/podium/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/podium/backend/internal/contest"
	"github.com/MarcoPoloResearchLab/podium/backend/internal/notify"
	"github.com/MarcoPoloResearchLab/podium/backend/internal/points"
	"github.com/MarcoPoloResearchLab/podium/backend/internal/ranking"
	"github.com/MarcoPoloResearchLab/podium/backend/internal/results"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	sessionClaimsContextKey  = "podium_session_claims"
	defaultSyncRatePerMinute = 6
	defaultHeartbeatInterval = 30 * time.Second
)

var (
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingSynchronizer     = errors.New("synchronizer dependency required")
	errMissingAuditor          = errors.New("auditor dependency required")
	errMissingPoints           = errors.New("points dependency required")
	errMissingRatings          = errors.New("ratings dependency required")
)

// SessionValidator authenticates requests.
type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
	ValidateToken(token string) (auth.SessionClaims, error)
}

// Synchronizer rebuilds a user's results.
type Synchronizer interface {
	SynchronizeUser(ctx context.Context, userID string) (results.SyncReport, error)
}

// Auditor exposes read-only ranking views.
type Auditor interface {
	Ranking(ctx context.Context, competitionID string) ([]ranking.Ranked, error)
	AuditCompetition(ctx context.Context, competitionID string) ([]results.AuditEntry, error)
}

// PointsCalculator scores users.
type PointsCalculator interface {
	UserPoints(ctx context.Context, userID string) (points.Breakdown, error)
}

// RatingRecorder stores votes.
type RatingRecorder interface {
	Record(ctx context.Context, userID, photoID string, score int) (contest.Rating, error)
}

// Dependencies wires the HTTP handler.
type Dependencies struct {
	SessionValidator  SessionValidator
	Synchronizer      Synchronizer
	Auditor           Auditor
	Points            PointsCalculator
	Ratings           RatingRecorder
	Dispatcher        *notify.Dispatcher
	MetricsHandler    http.Handler
	SyncRatePerMinute int
	HeartbeatInterval time.Duration
	Clock             func() time.Time
	Logger            *zap.Logger
}

// NewHTTPHandler builds the gin router serving the operator API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.SessionValidator == nil {
		return nil, errMissingSessionValidator
	}
	if deps.Synchronizer == nil {
		return nil, errMissingSynchronizer
	}
	if deps.Auditor == nil {
		return nil, errMissingAuditor
	}
	if deps.Points == nil {
		return nil, errMissingPoints
	}
	if deps.Ratings == nil {
		return nil, errMissingRatings
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	ratePerMinute := deps.SyncRatePerMinute
	if ratePerMinute <= 0 {
		ratePerMinute = defaultSyncRatePerMinute
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	handler := &httpHandler{
		sessions:     deps.SessionValidator,
		synchronizer: deps.Synchronizer,
		auditor:      deps.Auditor,
		points:       deps.Points,
		ratings:      deps.Ratings,
		dispatcher:   deps.Dispatcher,
		syncLimiter:  NewKeyedRateLimiter(ratePerMinute, clock),
		heartbeat:    heartbeat,
		clock:        clock,
		logger:       logger,
	}

	router.GET("/healthz", handler.handleHealth)
	if deps.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/users/:userID/sync", handler.requireOperator, handler.limitSync, handler.handleSyncUser)
	protected.GET("/users/:userID/points", handler.handleUserPoints)
	protected.GET("/competitions/:competitionID/ranking", handler.requireOperator, handler.handleRanking)
	protected.GET("/competitions/:competitionID/audit", handler.requireOperator, handler.handleAudit)
	protected.POST("/ratings", handler.handleRecordRating)
	if deps.Dispatcher != nil {
		protected.GET("/users/:userID/notifications/stream", handler.handleNotificationStream)
	}

	return router, nil
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc:  func(string) bool { return true },
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type", "Last-Event-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

type httpHandler struct {
	sessions     SessionValidator
	synchronizer Synchronizer
	auditor      Auditor
	points       PointsCalculator
	ratings      RatingRecorder
	dispatcher   *notify.Dispatcher
	syncLimiter  *KeyedRateLimiter
	heartbeat    time.Duration
	clock        func() time.Time
	logger       *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handleSyncUser(c *gin.Context) {
	report, err := h.synchronizer.SynchronizeUser(c.Request.Context(), c.Param("userID"))
	if err != nil {
		h.logger.Error("result synchronization failed", zap.String("user_id", c.Param("userID")), zap.Error(err))
		status, body := errorResponse(err)
		body["report"] = report
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *httpHandler) handleUserPoints(c *gin.Context) {
	userID := c.Param("userID")
	if !h.authorizeSubject(c, userID) {
		return
	}
	breakdown, err := h.points.UserPoints(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, "failed to compute points", err)
		return
	}
	c.JSON(http.StatusOK, breakdown)
}

type rankingEntryPayload struct {
	SubmissionID  string  `json:"submission_id"`
	UserID        string  `json:"user_id"`
	Title         string  `json:"title"`
	AverageRating float64 `json:"average_rating"`
	RatingCount   int64   `json:"rating_count"`
	Rank          int     `json:"rank"`
}

func (h *httpHandler) handleRanking(c *gin.Context) {
	competitionID := c.Param("competitionID")
	ordered, err := h.auditor.Ranking(c.Request.Context(), competitionID)
	if err != nil {
		h.writeError(c, "failed to rank competition", err)
		return
	}
	entries := make([]rankingEntryPayload, 0, len(ordered))
	for _, item := range ordered {
		entries = append(entries, rankingEntryPayload{
			SubmissionID:  item.SubmissionID,
			UserID:        item.UserID,
			Title:         item.Title,
			AverageRating: item.AverageRating,
			RatingCount:   item.RatingCount,
			Rank:          item.Rank,
		})
	}
	c.JSON(http.StatusOK, gin.H{"competition_id": competitionID, "entries": entries})
}

func (h *httpHandler) handleAudit(c *gin.Context) {
	competitionID := c.Param("competitionID")
	entries, err := h.auditor.AuditCompetition(c.Request.Context(), competitionID)
	if err != nil {
		h.writeError(c, "failed to audit competition", err)
		return
	}
	mismatches := 0
	for _, entry := range entries {
		if entry.Mismatch {
			mismatches++
		}
	}
	c.JSON(http.StatusOK, gin.H{"competition_id": competitionID, "mismatches": mismatches, "entries": entries})
}

type ratingRequestPayload struct {
	UserID  string `json:"user_id"`
	PhotoID string `json:"photo_id"`
	Score   int    `json:"score"`
}

type ratingResponsePayload struct {
	ID               string `json:"id"`
	UserID           string `json:"user_id"`
	PhotoID          string `json:"photo_id"`
	Score            int    `json:"score"`
	UpdatedAtSeconds int64  `json:"updated_at_s"`
}

func (h *httpHandler) handleRecordRating(c *gin.Context) {
	var request ratingRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	photoID, err := contest.NewSubmissionID(request.PhotoID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_photo_id"})
		return
	}

	claims := sessionClaims(c)
	voter := claims.UserID
	if request.UserID != "" && request.UserID != voter {
		if !claims.HasRole(auth.RoleOperator) {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		voter = request.UserID
	}

	rating, err := h.ratings.Record(c.Request.Context(), voter, photoID.String(), request.Score)
	if err != nil {
		h.writeError(c, "failed to record rating", err)
		return
	}
	c.JSON(http.StatusOK, ratingResponsePayload{
		ID:               rating.ID,
		UserID:           rating.UserID,
		PhotoID:          rating.PhotoID,
		Score:            rating.Score,
		UpdatedAtSeconds: rating.UpdatedAtSeconds,
	})
}
