package contest

import (
	"errors"
	"fmt"
	"strings"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidCompetitionID indicates that a competition identifier is empty or exceeds storage bounds.
	ErrInvalidCompetitionID = errors.New("contest: invalid competition id")
	// ErrInvalidUserID indicates that a user identifier is empty or exceeds storage bounds.
	ErrInvalidUserID = errors.New("contest: invalid user id")
	// ErrInvalidSubmissionID indicates that a submission identifier is empty or exceeds storage bounds.
	ErrInvalidSubmissionID = errors.New("contest: invalid submission id")
	// ErrInvalidScore indicates that a rating score falls outside the 1..5 range.
	ErrInvalidScore = errors.New("contest: invalid rating score")
)

// CompetitionID represents a validated competition identifier.
type CompetitionID string

// NewCompetitionID validates raw input and returns a CompetitionID.
func NewCompetitionID(rawInput string) (CompetitionID, error) {
	trimmed, err := validateIdentifier(rawInput, ErrInvalidCompetitionID)
	if err != nil {
		return "", err
	}
	return CompetitionID(trimmed), nil
}

// String returns the underlying string identifier.
func (id CompetitionID) String() string {
	return string(id)
}

// UserID represents a validated user identifier.
type UserID string

// NewUserID validates raw input and returns a UserID.
func NewUserID(rawInput string) (UserID, error) {
	trimmed, err := validateIdentifier(rawInput, ErrInvalidUserID)
	if err != nil {
		return "", err
	}
	return UserID(trimmed), nil
}

// String returns the underlying string identifier.
func (id UserID) String() string {
	return string(id)
}

// SubmissionID represents a validated photo submission identifier.
type SubmissionID string

// NewSubmissionID validates raw input and returns a SubmissionID.
func NewSubmissionID(rawInput string) (SubmissionID, error) {
	trimmed, err := validateIdentifier(rawInput, ErrInvalidSubmissionID)
	if err != nil {
		return "", err
	}
	return SubmissionID(trimmed), nil
}

// String returns the underlying string identifier.
func (id SubmissionID) String() string {
	return string(id)
}

func validateIdentifier(rawInput string, sentinel error) (string, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", sentinel)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", sentinel, maxIdentifierLength)
	}
	return trimmed, nil
}

// ValidateScore reports whether a rating score is within the accepted 1..5 range.
func ValidateScore(score int) error {
	if score < MinScore || score > MaxScore {
		return fmt.Errorf("%w: %d", ErrInvalidScore, score)
	}
	return nil
}

const (
	// MinScore is the lowest rating a voter may give.
	MinScore = 1
	// MaxScore is the highest rating a voter may give.
	MaxScore = 5
)

// CompetitionStatus enumerates the competition lifecycle states.
type CompetitionStatus string

const (
	CompetitionStatusUpcoming  CompetitionStatus = "upcoming"
	CompetitionStatusActive    CompetitionStatus = "active"
	CompetitionStatusVoting    CompetitionStatus = "voting"
	CompetitionStatusCompleted CompetitionStatus = "completed"
)

// SubmissionStatus enumerates moderation states of a photo submission.
type SubmissionStatus string

const (
	SubmissionStatusPending  SubmissionStatus = "pending"
	SubmissionStatusApproved SubmissionStatus = "approved"
	SubmissionStatusRejected SubmissionStatus = "rejected"
)

// Competition models a photography competition and its schedule.
type Competition struct {
	ID                 string            `gorm:"column:id;primaryKey;size:190;not null"`
	Title              string            `gorm:"column:title;size:320;not null;default:''"`
	StartAtSeconds     int64             `gorm:"column:start_at_s;not null"`
	EndAtSeconds       int64             `gorm:"column:end_at_s;not null"`
	VotingEndAtSeconds int64             `gorm:"column:voting_end_at_s;not null;index:idx_competitions_voting_end"`
	Status             CompetitionStatus `gorm:"column:status;size:16;not null;default:'upcoming'"`
	ManualOverride     bool              `gorm:"column:manual_override;not null;default:false"`
}

// TableName provides the explicit table binding for GORM.
func (Competition) TableName() string {
	return "competitions"
}

// ClosesAtSeconds returns the unix time after which the competition counts as completed.
// Competitions without a voting window close at their end date.
func (c Competition) ClosesAtSeconds() int64 {
	if c.VotingEndAtSeconds > 0 {
		return c.VotingEndAtSeconds
	}
	return c.EndAtSeconds
}

// Submission models a photo entered into a competition. AverageRating and RatingCount
// are maintained from Rating rows whenever a rating is recorded or removed.
type Submission struct {
	ID               string           `gorm:"column:id;primaryKey;size:190;not null"`
	CompetitionID    string           `gorm:"column:competition_id;size:190;not null;index:idx_submissions_competition_status,priority:1"`
	UserID           string           `gorm:"column:user_id;size:190;not null;index:idx_submissions_user"`
	Title            string           `gorm:"column:title;size:320;not null;default:''"`
	AverageRating    float64          `gorm:"column:average_rating;not null;default:0"`
	RatingCount      int64            `gorm:"column:rating_count;not null;default:0"`
	Status           SubmissionStatus `gorm:"column:status;size:16;not null;default:'pending';index:idx_submissions_competition_status,priority:2"`
	CreatedAtSeconds int64            `gorm:"column:created_at_s;not null;default:0"`
}

// TableName provides the explicit table binding for GORM.
func (Submission) TableName() string {
	return "submissions"
}

// Approved reports whether the submission participates in ranking.
func (s Submission) Approved() bool {
	return s.Status == SubmissionStatusApproved
}

// Rating stores one voter's score for one photo.
type Rating struct {
	ID               string `gorm:"column:id;primaryKey;size:190;not null"`
	UserID           string `gorm:"column:user_id;size:190;not null;uniqueIndex:idx_ratings_user_photo,priority:1"`
	PhotoID          string `gorm:"column:photo_id;size:190;not null;uniqueIndex:idx_ratings_user_photo,priority:2;index:idx_ratings_photo"`
	Score            int    `gorm:"column:score;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null;default:0"`
}

// TableName provides the explicit table binding for GORM.
func (Rating) TableName() string {
	return "ratings"
}

// Result is a persisted prize slot. Rows are derived from Submission and Rating state
// and are regenerated by result synchronization.
type Result struct {
	ID               string  `gorm:"column:id;primaryKey;size:190;not null"`
	CompetitionID    string  `gorm:"column:competition_id;size:190;not null;uniqueIndex:idx_results_competition_position,priority:1;uniqueIndex:idx_results_competition_user,priority:1;uniqueIndex:idx_results_competition_photo,priority:1"`
	UserID           string  `gorm:"column:user_id;size:190;not null;uniqueIndex:idx_results_competition_user,priority:2;index:idx_results_user"`
	PhotoID          string  `gorm:"column:photo_id;size:190;not null;uniqueIndex:idx_results_competition_photo,priority:2"`
	Position         int     `gorm:"column:position;not null;uniqueIndex:idx_results_competition_position,priority:2"`
	FinalScore       float64 `gorm:"column:final_score;not null;default:0"`
	Prize            string  `gorm:"column:prize;size:64;not null"`
	CreatedAtSeconds int64   `gorm:"column:created_at_s;not null;default:0"`
}

// TableName provides the explicit table binding for GORM.
func (Result) TableName() string {
	return "results"
}

// NotificationKind classifies user notifications emitted by the engine.
type NotificationKind string

const (
	NotificationKindResultsAvailable NotificationKind = "results_available"
	NotificationKindAchievement      NotificationKind = "achievement"
)

// Notification is a persisted user-facing message.
type Notification struct {
	ID               string           `gorm:"column:id;primaryKey;size:190;not null"`
	UserID           string           `gorm:"column:user_id;size:190;not null;index:idx_notifications_user_created,priority:1"`
	Kind             NotificationKind `gorm:"column:kind;size:32;not null"`
	Title            string           `gorm:"column:title;size:320;not null"`
	Message          string           `gorm:"column:message;type:text;not null"`
	Link             string           `gorm:"column:link;size:512;not null;default:''"`
	CompetitionID    string           `gorm:"column:competition_id;size:190;not null;default:''"`
	PhotoID          string           `gorm:"column:photo_id;size:190;not null;default:''"`
	IsRead           bool             `gorm:"column:is_read;not null;default:false"`
	CreatedAtSeconds int64            `gorm:"column:created_at_s;not null;index:idx_notifications_user_created,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (Notification) TableName() string {
	return "notifications"
}

// Models lists every persisted type for schema migration.
func Models() []any {
	return []any{&Competition{}, &Submission{}, &Rating{}, &Result{}, &Notification{}}
}
