package config

// TierLimit bounds a subscription tier's monthly usage. Zero means unlimited.
type TierLimit struct {
	JobsPerMonth     int
	InvoicesPerMonth int
	QuotesPerMonth   int
	MaxClients       int
	TeamSeats        int
}

// tierLimits is immutable after process start; read-only by construction
// (GetTierLimit returns a copy).
var tierLimits = map[string]TierLimit{
	"free":  {JobsPerMonth: 10, InvoicesPerMonth: 5, QuotesPerMonth: 5, MaxClients: 20, TeamSeats: 1},
	"trial": {JobsPerMonth: 50, InvoicesPerMonth: 50, QuotesPerMonth: 50, MaxClients: 100, TeamSeats: 5},
	"pro":   {JobsPerMonth: 0, InvoicesPerMonth: 0, QuotesPerMonth: 0, MaxClients: 0, TeamSeats: 1},
	"team":  {JobsPerMonth: 0, InvoicesPerMonth: 0, QuotesPerMonth: 0, MaxClients: 0, TeamSeats: 10},
}

// GetTierLimit returns the quota row for a tier. Unknown tiers get the free
// limits, the most restrictive set.
func GetTierLimit(tier string) TierLimit {
	if l, ok := tierLimits[tier]; ok {
		return l
	}
	return tierLimits["free"]
}
