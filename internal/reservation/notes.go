package reservation

import (
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stayhaven/reservations/internal/domain"
)

const noteDateLayout = "2006-01-02"

// notesFromDraft flattens a draft into gateway order notes. The gateway is
// the only durable carrier of intent between order creation and payment
// confirmation, so every field needed to build the booking must round-trip.
func notesFromDraft(principalID string, d domain.ReservationDraft) map[string]string {
	return map[string]string{
		"user_id":      principalID,
		"listing_id":   d.ListingID,
		"from_date":    d.FromDate.Format(noteDateLayout),
		"to_date":      d.ToDate.Format(noteDateLayout),
		"guests":       strconv.Itoa(d.Guests),
		"room_plan":    d.PlanName,
		"nights":       strconv.Itoa(d.Nights),
		"base_price":   strconv.FormatInt(d.BasePrice, 10),
		"platform_fee": strconv.FormatInt(d.PlatformFee, 10),
		"tax":          strconv.FormatInt(d.Tax, 10),
		"total_price":  strconv.FormatInt(d.TotalPrice, 10),
	}
}

func draftFromNotes(notes map[string]string) (string, domain.ReservationDraft, error) {
	principalID := notes["user_id"]
	if principalID == "" || notes["listing_id"] == "" {
		return "", domain.ReservationDraft{}, errors.New("order notes missing identity fields")
	}

	from, err := time.ParseInLocation(noteDateLayout, notes["from_date"], time.UTC)
	if err != nil {
		return "", domain.ReservationDraft{}, errors.Wrap(err, "from_date")
	}
	to, err := time.ParseInLocation(noteDateLayout, notes["to_date"], time.UTC)
	if err != nil {
		return "", domain.ReservationDraft{}, errors.Wrap(err, "to_date")
	}
	guests, err := strconv.Atoi(notes["guests"])
	if err != nil {
		return "", domain.ReservationDraft{}, errors.Wrap(err, "guests")
	}
	nights, err := strconv.Atoi(notes["nights"])
	if err != nil {
		return "", domain.ReservationDraft{}, errors.Wrap(err, "nights")
	}

	var prices [4]int64
	for i, key := range []string{"base_price", "platform_fee", "tax", "total_price"} {
		v, err := strconv.ParseInt(notes[key], 10, 64)
		if err != nil {
			return "", domain.ReservationDraft{}, errors.Wrap(err, key)
		}
		prices[i] = v
	}

	return principalID, domain.ReservationDraft{
		ListingID:   notes["listing_id"],
		FromDate:    from,
		ToDate:      to,
		Guests:      guests,
		PlanName:    notes["room_plan"],
		Nights:      nights,
		BasePrice:   prices[0],
		PlatformFee: prices[1],
		Tax:         prices[2],
		TotalPrice:  prices[3],
	}, nil
}
