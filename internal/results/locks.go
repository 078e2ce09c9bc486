package results

import (
	"slices"
	"sync"
)

// competitionLocks serializes result writes per competition inside this process.
type competitionLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newCompetitionLocks() *competitionLocks {
	return &competitionLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks every competition in ascending id order and returns the release func.
func (l *competitionLocks) acquire(competitionIDs []string) func() {
	ordered := slices.Clone(competitionIDs)
	slices.Sort(ordered)
	ordered = slices.Compact(ordered)

	held := make([]*sync.Mutex, 0, len(ordered))
	for _, competitionID := range ordered {
		lock := l.lockFor(competitionID)
		lock.Lock()
		held = append(held, lock)
	}
	return func() {
		for index := len(held) - 1; index >= 0; index-- {
			held[index].Unlock()
		}
	}
}

func (l *competitionLocks) lockFor(competitionID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[competitionID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[competitionID] = lock
	}
	return lock
}
