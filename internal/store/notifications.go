package store

import (
	"context"

	"github.com/MarcoPoloResearchLab/podium/backend/internal/contest"
	"gorm.io/gorm"
)

const defaultNotificationLimit = 50

// Notifications persists user notifications.
type Notifications struct {
	db *gorm.DB
}

// Create inserts a notification.
func (s *Notifications) Create(ctx context.Context, notification *contest.Notification) error {
	return translateError(s.db.WithContext(ctx).Create(notification).Error)
}

// ListForUser returns the user's most recent notifications, newest first.
func (s *Notifications) ListForUser(ctx context.Context, userID string, limit int) ([]contest.Notification, error) {
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	var notifications []contest.Notification
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at_s DESC, id DESC").
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, translateError(err)
	}
	return notifications, nil
}
