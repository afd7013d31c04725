package service

import (
	"context"

	"kitchenhub-backend/internal/domain"
)

// OverstayService exposes the manager decision operations plus the reads
// backing the manager surface. Mutations validate against the current
// status and reject illegal transitions without side effects.
type OverstayService interface {
	// Approve freezes the penalty at amountCents (which may discount,
	// never inflate, the calculated amount) and fires an immediate
	// charge attempt. Legal from PENDING_REVIEW, or from CHARGE_FAILED
	// as a re-approval.
	Approve(ctx context.Context, managerID int32, overstayID string, amountCents int32, notes string) (*domain.OverstayRecord, error)
	// Waive closes the case without billing. A non-empty reason is
	// mandatory.
	Waive(ctx context.Context, managerID int32, overstayID string, reason, notes string) (*domain.OverstayRecord, error)
	// Charge manually retriggers the charge executor on a failed case.
	Charge(ctx context.Context, managerID int32, overstayID string) (*domain.OverstayRecord, error)
	// Resolve closes the case for a reason outside the billing flow
	// (booking extended, items removed, sent to collections).
	Resolve(ctx context.Context, managerID int32, overstayID string, resolutionType domain.ResolutionType, notes string) (*domain.OverstayRecord, error)

	Get(ctx context.Context, overstayID string) (*domain.OverstayRecord, []domain.ChargeAttempt, []domain.OverstayEvent, error)
	List(ctx context.Context, status string, page, pageSize int32) ([]domain.OverstayRecord, int32, error)
	GetSummary(ctx context.Context) (*domain.OverstaySummary, error)
}

type EmailService interface {
	// Chef notifications
	SendPaymentLinkNotification(ctx context.Context, chefEmail, chefName string, amountCents int32, paymentLink string) error
	SendChargeReceiptNotification(ctx context.Context, chefEmail, chefName string, amountCents int32, reference string) error
	SendCaseClosedNotification(ctx context.Context, chefEmail, chefName, outcome string) error

	// Operations notifications
	SendOpsEscalationAlert(ctx context.Context, overstayID string, storageBookingID int32, amountCents int32, failureReason string) error
}
