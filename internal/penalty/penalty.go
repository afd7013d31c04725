// Package penalty is the single source of truth for overstay penalty math.
// All money values are integer cents; percentage rates are integer basis
// points (20% = 2000 bps). Rounding happens once, half-up at cents
// granularity, at each multiplication that produces a persisted value, so
// a stored breakdown is reproducible bit-for-bit from the snapshot fields.
package penalty

import "time"

// Breakdown gives the full derivation of a penalty for display to the
// manager alongside the stored totals.
type Breakdown struct {
	DaysOverdue            int32
	PenaltyDays            int32
	DailyPenaltyCents      int32
	CalculatedPenaltyCents int32
}

// DaysOverdue returns whole days elapsed since the booking end date,
// never negative. Both instants are truncated to calendar dates in UTC,
// so repeated computations within the same day agree.
func DaysOverdue(bookingEndDate, now time.Time) int32 {
	end := truncateToDate(bookingEndDate)
	today := truncateToDate(now)
	if !today.After(end) {
		return 0
	}
	return int32(today.Sub(end).Hours() / 24)
}

// BillableDays clamps the overdue period to the penalized window:
// days past the grace period, capped at maxPenaltyDays.
func BillableDays(daysOverdue, gracePeriodDays, maxPenaltyDays int32) int32 {
	days := daysOverdue - gracePeriodDays
	if days < 0 {
		days = 0
	}
	if days > maxPenaltyDays {
		days = maxPenaltyDays
	}
	return days
}

// DailyPenaltyCents is the surcharged day rate:
// round(dailyRateCents * (1 + penaltyRate)).
func DailyPenaltyCents(dailyRateCents, penaltyRateBps int32) int32 {
	return dailyRateCents + roundBps(dailyRateCents, penaltyRateBps)
}

// Calculate computes the penalty owed for a given overdue duration from
// the snapshot rate parameters.
func Calculate(dailyRateCents, penaltyRateBps, gracePeriodDays, maxPenaltyDays, daysOverdue int32) Breakdown {
	days := BillableDays(daysOverdue, gracePeriodDays, maxPenaltyDays)
	perDay := DailyPenaltyCents(dailyRateCents, penaltyRateBps)
	return Breakdown{
		DaysOverdue:            daysOverdue,
		PenaltyDays:            days,
		DailyPenaltyCents:      perDay,
		CalculatedPenaltyCents: perDay * days,
	}
}

// TaxInclusiveTotal is the chef-facing amount actually charged:
// round(amountCents * (1 + taxRate)).
func TaxInclusiveTotal(amountCents, taxRateBps int32) int32 {
	return amountCents + roundBps(amountCents, taxRateBps)
}

// roundBps multiplies cents by a basis-point rate, rounding half-up.
func roundBps(amountCents, bps int32) int32 {
	return int32((int64(amountCents)*int64(bps) + 5000) / 10000)
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
