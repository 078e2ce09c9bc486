package contest

// NextStatus evaluates the time-driven lifecycle at the given unix time.
// Several transitions may apply at once when a competition has been idle past
// more than one boundary. Competitions flagged with ManualOverride keep their status.
func (c Competition) NextStatus(nowSeconds int64) CompetitionStatus {
	status := c.Status
	if status == "" {
		status = CompetitionStatusUpcoming
	}
	if c.ManualOverride {
		return status
	}

	for {
		switch {
		case status == CompetitionStatusUpcoming && nowSeconds >= c.StartAtSeconds:
			status = CompetitionStatusActive
		case status == CompetitionStatusActive && nowSeconds >= c.EndAtSeconds:
			status = CompetitionStatusVoting
		case status == CompetitionStatusVoting && nowSeconds >= c.ClosesAtSeconds():
			status = CompetitionStatusCompleted
		default:
			return status
		}
	}
}

// CompletedAt reports whether the competition's schedule has closed at the given unix time,
// independent of the cached Status column.
func (c Competition) CompletedAt(nowSeconds int64) bool {
	closesAt := c.ClosesAtSeconds()
	return closesAt > 0 && nowSeconds >= closesAt
}
