package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kitchenhub-backend/internal/config"
	"kitchenhub-backend/internal/domain"
	"kitchenhub-backend/internal/logger"
	"kitchenhub-backend/internal/payment"
	"kitchenhub-backend/internal/penalty"
	"kitchenhub-backend/internal/repository"
)

type overstayService struct {
	overstayRepo repository.OverstayRepository
	bookingRepo  repository.BookingRepository
	noteRepo     repository.NotificationRepository
	emailSvc     EmailService
	gateway      payment.Gateway
	cfg          config.PenaltyConfig
}

func NewOverstayService(
	overstayRepo repository.OverstayRepository,
	bookingRepo repository.BookingRepository,
	noteRepo repository.NotificationRepository,
	emailSvc EmailService,
	gateway payment.Gateway,
	cfg config.PenaltyConfig,
) OverstayService {
	return &overstayService{
		overstayRepo: overstayRepo,
		bookingRepo:  bookingRepo,
		noteRepo:     noteRepo,
		emailSvc:     emailSvc,
		gateway:      gateway,
		cfg:          cfg,
	}
}

func (s *overstayService) Approve(ctx context.Context, managerID int32, overstayID string, amountCents int32, notes string) (*domain.OverstayRecord, error) {
	rec, err := s.overstayRepo.GetByID(ctx, overstayID)
	if err != nil {
		return nil, err
	}

	if amountCents <= 0 {
		return nil, domain.NewValidationError("amount_cents", "approved amount must be positive")
	}
	// Managers may discount, never inflate.
	if amountCents > rec.CalculatedPenaltyCents {
		return nil, domain.NewValidationError("amount_cents",
			fmt.Sprintf("approved amount %d exceeds calculated penalty %d", amountCents, rec.CalculatedPenaltyCents))
	}

	// A failed charge goes back through review on re-approval, possibly
	// with an adjusted amount.
	if rec.Status == domain.OverstayStatusChargeFailed {
		if err := rec.Transition("approve", domain.OverstayStatusPendingReview); err != nil {
			return nil, err
		}
	}
	if err := rec.Transition("approve", domain.OverstayStatusPenaltyApproved); err != nil {
		return nil, err
	}

	rec.FinalPenaltyCents = &amountCents
	rec.ManagerNotes = notes
	if err := s.overstayRepo.Update(ctx, rec); err != nil {
		return nil, err
	}
	s.appendEvent(ctx, rec.ID, domain.EventTypePenaltyApproved, &managerID,
		domain.OverstayStatusPendingReview, rec.Status,
		fmt.Sprintf("penalty approved at %d cents (calculated %d)", amountCents, rec.CalculatedPenaltyCents))

	// Approval triggers an immediate charge attempt. A gateway failure
	// is captured on the record, not returned as an error.
	if err := s.executeCharge(ctx, rec, &managerID); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *overstayService) Waive(ctx context.Context, managerID int32, overstayID string, reason, notes string) (*domain.OverstayRecord, error) {
	rec, err := s.overstayRepo.GetByID(ctx, overstayID)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(reason) == "" {
		return nil, domain.NewValidationError("reason", "a waive reason is required")
	}

	from := rec.Status
	if err := rec.Transition("waive", domain.OverstayStatusPenaltyWaived); err != nil {
		return nil, err
	}

	zero := int32(0)
	rec.FinalPenaltyCents = &zero
	rec.WaiveReason = reason
	rec.ManagerNotes = notes
	if err := s.overstayRepo.Update(ctx, rec); err != nil {
		return nil, err
	}
	s.appendEvent(ctx, rec.ID, domain.EventTypePenaltyWaived, &managerID, from, rec.Status, reason)

	s.notifyCaseClosed(ctx, rec, "the penalty was waived")
	return rec, nil
}

func (s *overstayService) Charge(ctx context.Context, managerID int32, overstayID string) (*domain.OverstayRecord, error) {
	rec, err := s.overstayRepo.GetByID(ctx, overstayID)
	if err != nil {
		return nil, err
	}

	// Once escalated, automatic collection is frozen until a manager
	// resolves or reopens the case.
	if rec.Status == domain.OverstayStatusEscalated {
		return nil, &domain.InvalidTransitionError{Action: "charge", From: rec.Status}
	}

	// A spent attempt budget escalates instead of charging again.
	if rec.Status == domain.OverstayStatusChargeFailed && rec.ChargeAttemptCount >= s.cfg.MaxChargeAttempts {
		if err := s.escalate(ctx, rec, "charge attempt budget exhausted"); err != nil {
			return nil, err
		}
		return rec, nil
	}

	if err := s.executeCharge(ctx, rec, &managerID); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *overstayService) Resolve(ctx context.Context, managerID int32, overstayID string, resolutionType domain.ResolutionType, notes string) (*domain.OverstayRecord, error) {
	rec, err := s.overstayRepo.GetByID(ctx, overstayID)
	if err != nil {
		return nil, err
	}

	if !resolutionType.Valid() {
		return nil, domain.NewValidationError("resolution_type",
			fmt.Sprintf("unknown resolution type %q", resolutionType))
	}

	from := rec.Status
	if err := rec.Transition("resolve", domain.OverstayStatusResolved); err != nil {
		return nil, err
	}

	rec.ResolutionType = resolutionType
	rec.ResolutionNotes = notes
	if err := s.overstayRepo.Update(ctx, rec); err != nil {
		return nil, err
	}
	s.appendEvent(ctx, rec.ID, domain.EventTypeResolved, &managerID, from, rec.Status, string(resolutionType))

	s.notifyCaseClosed(ctx, rec, "the case was resolved")
	return rec, nil
}

func (s *overstayService) Get(ctx context.Context, overstayID string) (*domain.OverstayRecord, []domain.ChargeAttempt, []domain.OverstayEvent, error) {
	rec, err := s.overstayRepo.GetByID(ctx, overstayID)
	if err != nil {
		return nil, nil, nil, err
	}
	attempts, err := s.overstayRepo.ListChargeAttempts(ctx, overstayID)
	if err != nil {
		return nil, nil, nil, err
	}
	events, err := s.overstayRepo.ListEvents(ctx, overstayID)
	if err != nil {
		return nil, nil, nil, err
	}
	return rec, attempts, events, nil
}

func (s *overstayService) List(ctx context.Context, status string, page, pageSize int32) ([]domain.OverstayRecord, int32, error) {
	if status != "" && !domain.OverstayStatus(status).Valid() {
		return nil, 0, domain.NewValidationError("status", fmt.Sprintf("unknown status %q", status))
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.overstayRepo.List(ctx, status, page, pageSize)
}

func (s *overstayService) GetSummary(ctx context.Context) (*domain.OverstaySummary, error) {
	return s.overstayRepo.GetSummary(ctx)
}

// executeCharge runs one charge attempt against the chef's stored payment
// method and records the outcome. The record must hold a frozen penalty.
func (s *overstayService) executeCharge(ctx context.Context, rec *domain.OverstayRecord, actor *int32) error {
	if !rec.Status.CanTransitionTo(domain.OverstayStatusChargePending) {
		return &domain.InvalidTransitionError{Action: "charge", From: rec.Status}
	}
	if rec.FinalPenaltyCents == nil {
		return domain.NewValidationError("final_penalty_cents", "no approved amount to charge")
	}

	booking, err := s.bookingRepo.GetByID(ctx, rec.StorageBookingID)
	if err != nil {
		return fmt.Errorf("failed to load booking %d: %w", rec.StorageBookingID, err)
	}

	from := rec.Status
	if err := rec.Transition("charge", domain.OverstayStatusChargePending); err != nil {
		return err
	}
	if err := s.overstayRepo.Update(ctx, rec); err != nil {
		return err
	}
	s.appendEvent(ctx, rec.ID, domain.EventTypeStatusChanged, actor, from, rec.Status, "charge attempt started")

	attemptNumber := rec.ChargeAttemptCount + 1
	amountCents := penalty.TaxInclusiveTotal(*rec.FinalPenaltyCents, rec.KitchenTaxRateBps)

	chargeCtx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.ChargeTimeoutSeconds)*time.Second)
	defer cancel()

	result, chargeErr := s.gateway.Charge(chargeCtx, payment.ChargeRequest{
		CustomerToken:      booking.CustomerToken,
		PaymentMethodToken: booking.PaymentMethodToken,
		AmountCents:        amountCents,
		IdempotencyKey:     rec.IdempotencyKey(attemptNumber),
		Description:        fmt.Sprintf("Storage overstay penalty, booking %d", rec.StorageBookingID),
	})

	attempt := &domain.ChargeAttempt{
		OverstayID:    rec.ID,
		AttemptNumber: attemptNumber,
		AmountCents:   amountCents,
		AttemptedAt:   time.Now(),
	}
	rec.ChargeAttemptCount = attemptNumber

	if chargeErr == nil {
		attempt.Outcome = domain.ChargeOutcomeSucceeded
		attempt.GatewayReference = result.Reference
		rec.ChargeReference = result.Reference
		rec.LastFailureReason = ""
		if err := rec.Transition("charge", domain.OverstayStatusChargeSucceeded); err != nil {
			return err
		}
		if err := s.overstayRepo.Update(ctx, rec); err != nil {
			return err
		}
		if err := s.overstayRepo.AppendChargeAttempt(ctx, attempt); err != nil {
			logger.Error("Failed to record charge attempt", "overstay_id", rec.ID, "error", err)
		}
		s.appendEvent(ctx, rec.ID, domain.EventTypeChargeAttempted, actor,
			domain.OverstayStatusChargePending, rec.Status,
			fmt.Sprintf("attempt %d succeeded, reference %s", attemptNumber, result.Reference))

		_ = s.emailSvc.SendChargeReceiptNotification(ctx, booking.ChefEmail, booking.ChefName, amountCents, result.Reference)
		s.createChefNotification(ctx, rec, "Penalty Collected",
			fmt.Sprintf("A storage overstay penalty of %s was charged to your card on file.", formatCents(amountCents)))
		return nil
	}

	var gwErr *domain.GatewayError
	if !errors.As(chargeErr, &gwErr) {
		gwErr = &domain.GatewayError{Transient: true, Reason: chargeErr.Error(), Err: chargeErr}
	}

	attempt.Outcome = domain.ChargeOutcomeTransientFailure
	if !gwErr.Transient {
		attempt.Outcome = domain.ChargeOutcomeTerminalFailure
	}
	attempt.FailureReason = gwErr.Reason
	rec.LastFailureReason = gwErr.Reason
	if err := rec.Transition("charge", domain.OverstayStatusChargeFailed); err != nil {
		return err
	}
	if err := s.overstayRepo.Update(ctx, rec); err != nil {
		return err
	}
	if err := s.overstayRepo.AppendChargeAttempt(ctx, attempt); err != nil {
		logger.Error("Failed to record charge attempt", "overstay_id", rec.ID, "error", err)
	}
	s.appendEvent(ctx, rec.ID, domain.EventTypeChargeAttempted, actor,
		domain.OverstayStatusChargePending, rec.Status,
		fmt.Sprintf("attempt %d failed (%s): %s", attemptNumber, attempt.Outcome, gwErr.Reason))
	logger.Warn("Charge attempt failed",
		"overstay_id", rec.ID,
		"attempt", attemptNumber,
		"transient", gwErr.Transient,
		"reason", gwErr.Reason)

	if s.shouldEscalate(ctx, rec) {
		return s.escalate(ctx, rec, gwErr.Reason)
	}
	return nil
}

// shouldEscalate applies the two escalation triggers: a run of
// consecutive terminal failures reaching the configured threshold, or an
// exhausted total attempt budget.
func (s *overstayService) shouldEscalate(ctx context.Context, rec *domain.OverstayRecord) bool {
	if rec.ChargeAttemptCount >= s.cfg.MaxChargeAttempts {
		return true
	}
	attempts, err := s.overstayRepo.ListChargeAttempts(ctx, rec.ID)
	if err != nil {
		logger.Error("Failed to list charge attempts", "overstay_id", rec.ID, "error", err)
		return false
	}
	streak := int32(0)
	for i := len(attempts) - 1; i >= 0; i-- {
		if attempts[i].Outcome != domain.ChargeOutcomeTerminalFailure {
			break
		}
		streak++
	}
	return streak >= s.cfg.EscalationThreshold
}

// escalate freezes automatic retries, hands the chef a manual payment
// link and alerts operations staff.
func (s *overstayService) escalate(ctx context.Context, rec *domain.OverstayRecord, reason string) error {
	from := rec.Status
	if err := rec.Transition("escalate", domain.OverstayStatusEscalated); err != nil {
		return err
	}
	if err := s.overstayRepo.Update(ctx, rec); err != nil {
		return err
	}
	s.appendEvent(ctx, rec.ID, domain.EventTypeEscalated, nil, from, rec.Status, reason)

	amountCents := penalty.TaxInclusiveTotal(*rec.FinalPenaltyCents, rec.KitchenTaxRateBps)
	paymentLink := fmt.Sprintf("%s/%s", strings.TrimRight(s.cfg.PaymentLinkBaseURL, "/"), rec.ID)

	booking, err := s.bookingRepo.GetByID(ctx, rec.StorageBookingID)
	if err != nil {
		logger.Error("Failed to load booking for escalation notices", "overstay_id", rec.ID, "error", err)
	} else {
		_ = s.emailSvc.SendPaymentLinkNotification(ctx, booking.ChefEmail, booking.ChefName, amountCents, paymentLink)
		s.createChefNotification(ctx, rec, "Payment Required",
			fmt.Sprintf("Automatic collection of your %s storage overstay penalty failed. Please pay manually: %s",
				formatCents(amountCents), paymentLink))
	}
	_ = s.emailSvc.SendOpsEscalationAlert(ctx, rec.ID, rec.StorageBookingID, amountCents, reason)

	logger.Info("Overstay escalated to manual collection",
		"overstay_id", rec.ID,
		"booking_id", rec.StorageBookingID,
		"attempts", rec.ChargeAttemptCount,
		"reason", reason)
	return nil
}

func (s *overstayService) notifyCaseClosed(ctx context.Context, rec *domain.OverstayRecord, outcome string) {
	booking, err := s.bookingRepo.GetByID(ctx, rec.StorageBookingID)
	if err != nil {
		logger.Error("Failed to load booking for closure notice", "overstay_id", rec.ID, "error", err)
		return
	}
	_ = s.emailSvc.SendCaseClosedNotification(ctx, booking.ChefEmail, booking.ChefName, outcome)
	s.createChefNotification(ctx, rec, "Overstay Closed",
		fmt.Sprintf("Your storage overstay case for booking %d is closed: %s.", rec.StorageBookingID, outcome))
}

func (s *overstayService) createChefNotification(ctx context.Context, rec *domain.OverstayRecord, title, message string) {
	notif := &domain.Notification{
		UserID:    rec.ChefID,
		KitchenID: rec.KitchenID,
		Title:     title,
		Message:   message,
		Attributes: map[string]string{
			"type":        "STORAGE_OVERSTAY",
			"overstay_id": rec.ID,
		},
	}
	if err := s.noteRepo.Create(ctx, notif); err != nil {
		logger.Error("Failed to create notification", "overstay_id", rec.ID, "error", err)
	}
}

// appendEvent writes one audit row. Audit failures are logged, never
// propagated: the state change has already committed.
func (s *overstayService) appendEvent(ctx context.Context, overstayID string, eventType domain.OverstayEventType, actor *int32, from, to domain.OverstayStatus, details string) {
	event := &domain.OverstayEvent{
		OverstayID:     overstayID,
		EventType:      eventType,
		ActorManagerID: actor,
		FromStatus:     from,
		ToStatus:       to,
		Details:        details,
	}
	if err := s.overstayRepo.AppendEvent(ctx, event); err != nil {
		logger.Error("Failed to append audit event", "overstay_id", overstayID, "event", eventType, "error", err)
	}
}

func formatCents(cents int32) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
