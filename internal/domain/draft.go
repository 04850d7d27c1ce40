package domain

import "time"

// NewDraft builds a priced reservation draft for a listing. The draft carries
// its own expiry so a stale slot read still fails as an expired session.
func NewDraft(listing *Listing, planName string, from, to time.Time, guests int, ttl time.Duration, now time.Time) (ReservationDraft, error) {
	plan, err := SelectPlan(listing, planName)
	if err != nil {
		return ReservationDraft{}, err
	}

	nights := Nights(from, to)
	breakdown, err := PriceStay(listing.PricePerNight, plan.ExtraPrice, nights)
	if err != nil {
		return ReservationDraft{}, err
	}

	return ReservationDraft{
		ListingID:   listing.ID,
		FromDate:    from,
		ToDate:      to,
		Guests:      guests,
		PlanName:    plan.Name,
		Nights:      nights,
		BasePrice:   breakdown.BasePrice,
		PlatformFee: breakdown.PlatformFee,
		Tax:         breakdown.Tax,
		TotalPrice:  breakdown.TotalPrice,
		ExpiresAt:   now.Add(ttl),
	}, nil
}
