package types

// Tier is the coarse provider class. It is the primary routing sort key,
// ahead of health score.
type Tier string

const (
	TierSelfHosted Tier = "self-hosted"
	TierHostedFast Tier = "hosted-fast"
	TierAggregator Tier = "aggregator"
	TierCommunity  Tier = "community"
)

// Order returns the routing rank of the tier. Lower is preferred.
func (t Tier) Order() int {
	switch t {
	case TierSelfHosted:
		return 0
	case TierHostedFast:
		return 1
	case TierAggregator:
		return 2
	case TierCommunity:
		return 3
	default:
		return -1
	}
}

func ParseTier(s string) (Tier, bool) {
	switch Tier(s) {
	case TierSelfHosted, TierHostedFast, TierAggregator, TierCommunity:
		return Tier(s), true
	default:
		return "", false
	}
}
