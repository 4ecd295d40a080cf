// Package netlist owns the keyed table of discovered networks and the logic
// that keeps an on-screen list in step with it: signal tiers, snapshot diffs
// and row reordering.
package netlist

// Tier is a discrete signal quality bucket.
type Tier int

const (
	TierWeak Tier = iota
	TierOk
	TierGood
	TierExcellent
)

// Thresholds are inclusive lower bounds.
const (
	excellentThreshold = 75
	goodThreshold      = 50
	okThreshold        = 25
)

// Classify maps a strength in 0..100 to its tier.
func Classify(strength uint8) Tier {
	switch {
	case strength >= excellentThreshold:
		return TierExcellent
	case strength >= goodThreshold:
		return TierGood
	case strength >= okThreshold:
		return TierOk
	default:
		return TierWeak
	}
}

func (t Tier) String() string {
	switch t {
	case TierExcellent:
		return "excellent"
	case TierGood:
		return "good"
	case TierOk:
		return "ok"
	default:
		return "weak"
	}
}

// Bars is the number of filled signal bars (1-4) shown for the tier.
func (t Tier) Bars() int { return int(t) + 1 }
