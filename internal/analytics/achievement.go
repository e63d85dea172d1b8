package analytics

import "github.com/shopspring/decimal"

// AchievementRate returns actual / planned, or nil when there is no positive plan.
func AchievementRate(actual, planned decimal.Decimal) *float64 {
	if !planned.IsPositive() {
		return nil
	}
	rate := actual.DivRound(planned, 8).InexactFloat64()
	return &rate
}

// ChangeRatio returns the relative change from previous to current, or nil when
// previous is zero.
func ChangeRatio(current, previous decimal.Decimal) *float64 {
	if previous.IsZero() {
		return nil
	}
	ratio := current.Sub(previous).DivRound(previous.Abs(), 8).InexactFloat64()
	return &ratio
}
