package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/MarcoPoloResearchLab/podium/backend/internal/contest"
	"github.com/MarcoPoloResearchLab/podium/backend/internal/results"
	"github.com/MarcoPoloResearchLab/podium/backend/internal/serviceerr"
	"github.com/MarcoPoloResearchLab/podium/backend/internal/store"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *httpHandler) writeError(c *gin.Context, message string, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(message, zap.Error(err))
	} else {
		h.logger.Info(message, zap.Error(err))
	}
	c.JSON(status, body)
}

// errorResponse maps an error onto a status code and a {"error", "code"} body.
func errorResponse(err error) (int, gin.H) {
	status := http.StatusInternalServerError
	reason := "internal_error"

	switch {
	case errors.Is(err, contest.ErrInvalidUserID),
		errors.Is(err, contest.ErrInvalidCompetitionID),
		errors.Is(err, contest.ErrInvalidSubmissionID),
		errors.Is(err, contest.ErrInvalidScore):
		status, reason = http.StatusBadRequest, "invalid_request"
	case errors.Is(err, store.ErrNotFound):
		status, reason = http.StatusNotFound, "not_found"
	case errors.Is(err, store.ErrSelfVote):
		status, reason = http.StatusUnprocessableEntity, "self_vote"
	case errors.Is(err, store.ErrConflict):
		status, reason = http.StatusConflict, "conflict"
	case errors.Is(err, results.ErrCompetitionNotCompleted):
		status, reason = http.StatusConflict, "competition_not_completed"
	case errors.Is(err, context.DeadlineExceeded):
		status, reason = http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, store.ErrUnavailable):
		status, reason = http.StatusServiceUnavailable, "unavailable"
	}

	body := gin.H{"error": reason}
	if code, ok := serviceerr.CodeOf(err); ok {
		body["code"] = code
	}
	return status, body
}
