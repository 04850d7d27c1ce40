package domain

import "strings"

// Fee percentages are fixed platform policy. Both roundings happen per stage,
// never on the final sum: the gateway amount must match to the minor unit.
const (
	platformFeePct = 5
	taxPct         = 18
)

// roundHalfUpPct computes round-half-up(amount * pct / 100) in pure integer
// arithmetic. Exact for non-negative amounts.
func roundHalfUpPct(amount, pct int64) int64 {
	return (amount*pct + 50) / 100
}

// PriceStay prices a stay of nights at baseRate plus planSurcharge per night,
// all in whole currency units.
func PriceStay(baseRate, planSurcharge int64, nights int) (PriceBreakdown, error) {
	if nights <= 0 {
		return PriceBreakdown{}, ErrInvalidDateRange
	}

	pricePerNight := baseRate + planSurcharge
	basePrice := int64(nights) * pricePerNight
	platformFee := roundHalfUpPct(basePrice, platformFeePct)
	tax := roundHalfUpPct(basePrice+platformFee, taxPct)

	return PriceBreakdown{
		BasePrice:   basePrice,
		PlatformFee: platformFee,
		Tax:         tax,
		TotalPrice:  basePrice + platformFee + tax,
	}, nil
}

// SelectPlan matches a plan by name, ignoring case and surrounding whitespace.
func SelectPlan(listing *Listing, name string) (RoomPlan, error) {
	want := strings.ToLower(strings.TrimSpace(name))
	for _, p := range listing.RoomPlans {
		if strings.ToLower(strings.TrimSpace(p.Name)) == want {
			return p, nil
		}
	}
	return RoomPlan{}, ErrInvalidPlan
}
