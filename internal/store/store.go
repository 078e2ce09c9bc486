// Package store persists competitions, submissions, ratings, results and notifications with GORM.
package store

import (
	"time"

	"github.com/MarcoPoloResearchLab/podium/backend/internal/contest"
	"gorm.io/gorm"
)

// Config describes the dependencies of the repository set.
type Config struct {
	Database   *gorm.DB
	IDProvider contest.IDProvider
	Clock      func() time.Time
}

// Store groups the repositories sharing one database handle.
type Store struct {
	Competitions  *Competitions
	Submissions   *Submissions
	Ratings       *Ratings
	Results       *Results
	Notifications *Notifications
}

// New constructs the repository set.
func New(cfg Config) (*Store, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	ids := cfg.IDProvider
	if ids == nil {
		ids = contest.NewUUIDProvider()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Store{
		Competitions:  &Competitions{db: cfg.Database},
		Submissions:   &Submissions{db: cfg.Database},
		Ratings:       &Ratings{db: cfg.Database, ids: ids, clock: clock},
		Results:       &Results{db: cfg.Database},
		Notifications: &Notifications{db: cfg.Database},
	}, nil
}
