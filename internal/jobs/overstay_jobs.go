package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"kitchenhub-backend/internal/domain"
	"kitchenhub-backend/internal/logger"
	"kitchenhub-backend/internal/penalty"
)

// ScanOverstays detects storage bookings past their end date and keeps
// every open overstay record current. The scan is idempotent: running it
// twice at the same instant writes nothing the second time.
func (jr *JobRunner) ScanOverstays() {
	if !jr.scanMu.TryLock() {
		logger.Warn("Skipping overstay scan, previous run still in progress")
		return
	}
	defer jr.scanMu.Unlock()

	jr.runWithRecovery("ScanOverstays", func() {
		ctx := context.Background()
		now := jr.now()

		created, updated := jr.detectNewOverstays(ctx, now)
		advanced := jr.refreshOpenOverstays(ctx, now)

		logger.Info("Overstay scan finished",
			"detected", created,
			"updated", updated+advanced)
	})
}

// detectNewOverstays opens a record for each overdue confirmed booking
// that has no active record yet. New records are snapshotted from the
// listing's current rates and moved straight into their grace period.
func (jr *JobRunner) detectNewOverstays(ctx context.Context, now time.Time) (created, updated int) {
	bookings, err := jr.bookingRepo.ListOverdueConfirmed(ctx, now)
	if err != nil {
		logger.Error("Failed to list overdue bookings", "error", err)
		return 0, 0
	}

	for _, booking := range bookings {
		_, err := jr.overstayRepo.GetActiveByBooking(ctx, booking.ID)
		if err == nil {
			continue // already tracked
		}
		if err != domain.ErrNotFound {
			logger.Error("Failed to check for active overstay", "booking_id", booking.ID, "error", err)
			continue
		}

		daysOverdue := penalty.DaysOverdue(booking.EndDate, now)
		breakdown := penalty.Calculate(booking.DailyRateCents, booking.PenaltyRateBps,
			booking.GracePeriodDays, booking.MaxPenaltyDays, daysOverdue)

		rec := &domain.OverstayRecord{
			ID:                     uuid.New().String(),
			StorageBookingID:       booking.ID,
			KitchenID:              booking.KitchenID,
			ChefID:                 booking.ChefID,
			DailyRateCents:         booking.DailyRateCents,
			GracePeriodDays:        booking.GracePeriodDays,
			PenaltyRateBps:         booking.PenaltyRateBps,
			MaxPenaltyDays:         booking.MaxPenaltyDays,
			KitchenTaxRateBps:      booking.KitchenTaxRateBps,
			BookingEndDate:         booking.EndDate,
			DaysOverdue:            daysOverdue,
			CalculatedPenaltyCents: breakdown.CalculatedPenaltyCents,
			Status:                 domain.OverstayStatusDetected,
			DetectedAt:             now,
			GracePeriodEndsAt:      booking.EndDate.AddDate(0, 0, int(booking.GracePeriodDays)),
		}
		if err := jr.overstayRepo.Create(ctx, rec); err != nil {
			logger.Error("Failed to create overstay record", "booking_id", booking.ID, "error", err)
			continue
		}
		created++
		jr.appendEvent(ctx, rec.ID, domain.EventTypeDetected, "", rec.Status,
			fmt.Sprintf("booking %d overdue by %d day(s)", booking.ID, daysOverdue))

		// Detection immediately opens the grace window.
		if err := jr.advance(ctx, rec, domain.OverstayStatusGracePeriod, "grace period started"); err != nil {
			logger.Error("Failed to open grace period", "overstay_id", rec.ID, "error", err)
			continue
		}
		updated++

		logger.Info("Opened overstay record",
			"overstay_id", rec.ID,
			"booking_id", booking.ID,
			"days_overdue", daysOverdue,
			"grace_ends", rec.GracePeriodEndsAt.Format("2006-01-02"))
	}
	return created, updated
}

// refreshOpenOverstays recomputes the overdue duration and penalty for
// every non-terminal record, and moves records past their grace period
// into manager review. Frozen penalties are never recomputed.
func (jr *JobRunner) refreshOpenOverstays(ctx context.Context, now time.Time) int {
	records, err := jr.overstayRepo.ListNonTerminal(ctx)
	if err != nil {
		logger.Error("Failed to list open overstays", "error", err)
		return 0
	}

	changed := 0
	for i := range records {
		rec := &records[i]

		daysOverdue := penalty.DaysOverdue(rec.BookingEndDate, now)
		dirty := false
		if daysOverdue != rec.DaysOverdue {
			rec.DaysOverdue = daysOverdue
			dirty = true
		}
		if !rec.PenaltyFrozen() {
			breakdown := penalty.Calculate(rec.DailyRateCents, rec.PenaltyRateBps,
				rec.GracePeriodDays, rec.MaxPenaltyDays, daysOverdue)
			if breakdown.CalculatedPenaltyCents != rec.CalculatedPenaltyCents {
				rec.CalculatedPenaltyCents = breakdown.CalculatedPenaltyCents
				dirty = true
			}
		}

		if dirty {
			if err := jr.overstayRepo.Update(ctx, rec); err != nil {
				logger.Error("Failed to refresh overstay", "overstay_id", rec.ID, "error", err)
				continue
			}
			changed++
		}

		if rec.Status == domain.OverstayStatusGracePeriod && daysOverdue > rec.GracePeriodDays {
			if err := jr.advance(ctx, rec, domain.OverstayStatusPendingReview, "grace period expired"); err != nil {
				logger.Error("Failed to queue overstay for review", "overstay_id", rec.ID, "error", err)
				continue
			}
			changed++
			logger.Info("Overstay pending manager review",
				"overstay_id", rec.ID,
				"days_overdue", daysOverdue,
				"calculated_penalty_cents", rec.CalculatedPenaltyCents)
		}
	}
	return changed
}

func (jr *JobRunner) advance(ctx context.Context, rec *domain.OverstayRecord, next domain.OverstayStatus, details string) error {
	from := rec.Status
	if err := rec.Transition("scan", next); err != nil {
		return err
	}
	if err := jr.overstayRepo.Update(ctx, rec); err != nil {
		return err
	}
	jr.appendEvent(ctx, rec.ID, domain.EventTypeStatusChanged, from, rec.Status, details)
	return nil
}

func (jr *JobRunner) appendEvent(ctx context.Context, overstayID string, eventType domain.OverstayEventType, from, to domain.OverstayStatus, details string) {
	event := &domain.OverstayEvent{
		OverstayID: overstayID,
		EventType:  eventType,
		FromStatus: from,
		ToStatus:   to,
		Details:    details,
	}
	if err := jr.overstayRepo.AppendEvent(ctx, event); err != nil {
		logger.Error("Failed to append audit event", "overstay_id", overstayID, "event", eventType, "error", err)
	}
}
