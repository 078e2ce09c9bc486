package contest

// Prize slots stored in Result.Position.
const (
	PositionGold   = 1
	PositionSilver = 2
	PositionBronze = 3
)

const (
	PrizeGold   = "Gold Medal"
	PrizeSilver = "Silver Medal"
	PrizeBronze = "Bronze Medal"
)

// PrizeLabel returns the medal label for a prize slot, or "" when the position carries no prize.
func PrizeLabel(position int) string {
	switch position {
	case PositionGold:
		return PrizeGold
	case PositionSilver:
		return PrizeSilver
	case PositionBronze:
		return PrizeBronze
	default:
		return ""
	}
}
