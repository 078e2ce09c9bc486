// Package notify delivers user notifications produced by result reconciliation.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/podium/backend/internal/contest"
)

var (
	errMissingWriter = errors.New("notify: notification writer is required")
	errMissingUser   = errors.New("notify: user id is required")
)

// Message is one user-facing notification.
type Message struct {
	UserID        string                   `json:"user_id"`
	Kind          contest.NotificationKind `json:"kind"`
	Title         string                   `json:"title"`
	Message       string                   `json:"message"`
	Link          string                   `json:"link,omitempty"`
	CompetitionID string                   `json:"competition_id,omitempty"`
	PhotoID       string                   `json:"photo_id,omitempty"`
	Timestamp     time.Time                `json:"timestamp"`
}

// Sink accepts notifications. Delivery is best effort; callers log failures and move on.
type Sink interface {
	Notify(ctx context.Context, message Message) error
}

// NotificationWriter persists notification rows.
type NotificationWriter interface {
	Create(ctx context.Context, notification *contest.Notification) error
}

// StoreSink persists every message as a contest.Notification row.
type StoreSink struct {
	writer NotificationWriter
	ids    contest.IDProvider
	clock  func() time.Time
}

// NewStoreSink builds a persisting sink. A nil IDProvider defaults to UUIDv7 identifiers.
func NewStoreSink(writer NotificationWriter, ids contest.IDProvider, clock func() time.Time) (*StoreSink, error) {
	if writer == nil {
		return nil, errMissingWriter
	}
	if ids == nil {
		ids = contest.NewUUIDProvider()
	}
	if clock == nil {
		clock = time.Now
	}
	return &StoreSink{writer: writer, ids: ids, clock: clock}, nil
}

// Notify stores the message.
func (s *StoreSink) Notify(ctx context.Context, message Message) error {
	if message.UserID == "" {
		return errMissingUser
	}
	id, err := s.ids.NewID()
	if err != nil {
		return err
	}
	createdAt := message.Timestamp
	if createdAt.IsZero() {
		createdAt = s.clock()
	}
	return s.writer.Create(ctx, &contest.Notification{
		ID:               id,
		UserID:           message.UserID,
		Kind:             message.Kind,
		Title:            message.Title,
		Message:          message.Message,
		Link:             message.Link,
		CompetitionID:    message.CompetitionID,
		PhotoID:          message.PhotoID,
		CreatedAtSeconds: createdAt.UTC().Unix(),
	})
}

// Fanout delivers each message to every sink. A failing sink does not stop the others.
// Failures are returned to the caller, which owns logging them.
type Fanout struct {
	sinks []Sink
}

// NewFanout combines sinks. Nil sinks are ignored.
func NewFanout(sinks ...Sink) *Fanout {
	active := make([]Sink, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			active = append(active, sink)
		}
	}
	return &Fanout{sinks: active}
}

// Notify forwards the message and joins the sink errors, each tagged with its sink type.
func (f *Fanout) Notify(ctx context.Context, message Message) error {
	var errs []error
	for _, sink := range f.sinks {
		if err := sink.Notify(ctx, message); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", sink, err))
		}
	}
	return errors.Join(errs...)
}
