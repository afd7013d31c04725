package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"kitchenhub-backend/internal/config"
	"kitchenhub-backend/internal/domain"
	"kitchenhub-backend/internal/payment"
)

type serviceMocks struct {
	overstayRepo *MockOverstayRepo
	bookingRepo  *MockBookingRepo
	noteRepo     *MockNotificationRepo
	emailSvc     *MockEmailService
	gateway      *MockGateway
}

func newTestService() (OverstayService, *serviceMocks) {
	m := &serviceMocks{
		overstayRepo: new(MockOverstayRepo),
		bookingRepo:  new(MockBookingRepo),
		noteRepo:     new(MockNotificationRepo),
		emailSvc:     new(MockEmailService),
		gateway:      new(MockGateway),
	}
	cfg := config.PenaltyConfig{
		EscalationThreshold:  3,
		MaxChargeAttempts:    5,
		ChargeTimeoutSeconds: 30,
		PaymentLinkBaseURL:   "https://pay.test/overstays",
	}
	svc := NewOverstayService(m.overstayRepo, m.bookingRepo, m.noteRepo, m.emailSvc, m.gateway, cfg)
	return svc, m
}

// pendingReviewRecord is four days overdue on a $50/day listing with a
// 20% surcharge, two grace days and a five day cap: $120.00 calculated.
func pendingReviewRecord() *domain.OverstayRecord {
	return &domain.OverstayRecord{
		ID:                     "ovs-1",
		StorageBookingID:       42,
		KitchenID:              7,
		ChefID:                 9,
		DailyRateCents:         5000,
		GracePeriodDays:        2,
		PenaltyRateBps:         2000,
		MaxPenaltyDays:         5,
		KitchenTaxRateBps:      1500,
		DaysOverdue:            4,
		CalculatedPenaltyCents: 12000,
		Status:                 domain.OverstayStatusPendingReview,
		Version:                3,
	}
}

func testBooking() *domain.StorageBooking {
	return &domain.StorageBooking{
		ID:                 42,
		KitchenID:          7,
		ChefID:             9,
		ChefName:           "Ana Souza",
		ChefEmail:          "ana@example.com",
		Status:             domain.BookingStatusConfirmed,
		CustomerToken:      "cust-token",
		PaymentMethodToken: "card-token",
	}
}

func TestOverstayService_Approve_ChargesTaxInclusiveAmount(t *testing.T) {
	svc, m := newTestService()
	rec := pendingReviewRecord()

	m.overstayRepo.On("GetByID", mock.Anything, "ovs-1").Return(rec, nil)
	m.overstayRepo.On("Update", mock.Anything, rec).Return(nil)
	m.overstayRepo.On("AppendEvent", mock.Anything, mock.Anything).Return(nil)
	m.overstayRepo.On("AppendChargeAttempt", mock.Anything, mock.Anything).Return(nil)
	m.bookingRepo.On("GetByID", mock.Anything, int32(42)).Return(testBooking(), nil)
	// Manager discounts $120.00 to $100.00; the chef is charged $115.00
	// with the kitchen's 15% tax on top, under the first attempt's key.
	m.gateway.On("Charge", mock.Anything, mock.MatchedBy(func(req payment.ChargeRequest) bool {
		return req.AmountCents == 11500 &&
			req.IdempotencyKey == "ovs-1-1" &&
			req.PaymentMethodToken == "card-token"
	})).Return(&payment.ChargeResult{Reference: "trx-777"}, nil)
	m.emailSvc.On("SendChargeReceiptNotification", mock.Anything, "ana@example.com", "Ana Souza", int32(11500), "trx-777").Return(nil)
	m.noteRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	got, err := svc.Approve(context.Background(), 100, "ovs-1", 10000, "discounted per chef call")

	assert.NoError(t, err)
	assert.Equal(t, domain.OverstayStatusChargeSucceeded, got.Status)
	assert.Equal(t, int32(10000), *got.FinalPenaltyCents)
	assert.Equal(t, "trx-777", got.ChargeReference)
	assert.Equal(t, int32(1), got.ChargeAttemptCount)
	m.gateway.AssertExpectations(t)
	m.emailSvc.AssertExpectations(t)
}

func TestOverstayService_Approve_NeverInflatesPenalty(t *testing.T) {
	svc, m := newTestService()
	rec := pendingReviewRecord()
	m.overstayRepo.On("GetByID", mock.Anything, "ovs-1").Return(rec, nil)

	_, err := svc.Approve(context.Background(), 100, "ovs-1", 15000, "")

	var validationErr *domain.ValidationError
	assert.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "amount_cents", validationErr.Field)
	assert.Equal(t, domain.OverstayStatusPendingReview, rec.Status)
	m.overstayRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	m.gateway.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything)
}

func TestOverstayService_Approve_RejectsNonPositiveAmount(t *testing.T) {
	svc, m := newTestService()
	m.overstayRepo.On("GetByID", mock.Anything, "ovs-1").Return(pendingReviewRecord(), nil)

	_, err := svc.Approve(context.Background(), 100, "ovs-1", 0, "")

	var validationErr *domain.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestOverstayService_Approve_RejectedDuringGracePeriod(t *testing.T) {
	svc, m := newTestService()
	rec := pendingReviewRecord()
	rec.Status = domain.OverstayStatusGracePeriod
	m.overstayRepo.On("GetByID", mock.Anything, "ovs-1").Return(rec, nil)

	_, err := svc.Approve(context.Background(), 100, "ovs-1", 10000, "")

	var transitionErr *domain.InvalidTransitionError
	assert.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, domain.OverstayStatusGracePeriod, rec.Status)
	m.overstayRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestOverstayService_Approve_ReapprovalAfterFailedCharge(t *testing.T) {
	svc, m := newTestService()
	rec := pendingReviewRecord()
	rec.Status = domain.OverstayStatusChargeFailed
	rec.ChargeAttemptCount = 1
	prior := int32(12000)
	rec.FinalPenaltyCents = &prior
	rec.LastFailureReason = "card declined"

	m.overstayRepo.On("GetByID", mock.Anything, "ovs-1").Return(rec, nil)
	m.overstayRepo.On("Update", mock.Anything, rec).Return(nil)
	m.overstayRepo.On("AppendEvent", mock.Anything, mock.Anything).Return(nil)
	m.overstayRepo.On("AppendChargeAttempt", mock.Anything, mock.Anything).Return(nil)
	m.bookingRepo.On("GetByID", mock.Anything, int32(42)).Return(testBooking(), nil)
	// The re-approved amount is adjusted down; the second attempt gets a
	// fresh idempotency key.
	m.gateway.On("Charge", mock.Anything, mock.MatchedBy(func(req payment.ChargeRequest) bool {
		return req.AmountCents == 10350 && req.IdempotencyKey == "ovs-1-2"
	})).Return(&payment.ChargeResult{Reference: "trx-778"}, nil)
	m.emailSvc.On("SendChargeReceiptNotification", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	m.noteRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	got, err := svc.Approve(context.Background(), 100, "ovs-1", 9000, "reduced after dispute")

	assert.NoError(t, err)
	assert.Equal(t, domain.OverstayStatusChargeSucceeded, got.Status)
	assert.Equal(t, int32(9000), *got.FinalPenaltyCents)
	assert.Equal(t, int32(2), got.ChargeAttemptCount)
	m.gateway.AssertExpectations(t)
}

func TestOverstayService_Waive_RequiresReason(t *testing.T) {
	svc, m := newTestService()
	rec := pendingReviewRecord()
	m.overstayRepo.On("GetByID", mock.Anything, "ovs-1").Return(rec, nil)

	_, err := svc.Waive(context.Background(), 100, "ovs-1", "   ", "")

	var validationErr *domain.ValidationError
	assert.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "reason", validationErr.Field)
	assert.Equal(t, domain.OverstayStatusPendingReview, rec.Status)
	m.overstayRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestOverstayService_Waive_FreezesPenaltyAtZero(t *testing.T) {
	svc, m := newTestService()
	rec := pendingReviewRecord()

	m.overstayRepo.On("GetByID", mock.Anything, "ovs-1").Return(rec, nil)
	m.overstayRepo.On("Update", mock.Anything, rec).Return(nil)
	m.overstayRepo.On("AppendEvent", mock.Anything, mock.Anything).Return(nil)
	m.bookingRepo.On("GetByID", mock.Anything, int32(42)).Return(testBooking(), nil)
	m.emailSvc.On("SendCaseClosedNotification", mock.Anything, "ana@example.com", "Ana Souza", mock.Anything).Return(nil)
	m.noteRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	got, err := svc.Waive(context.Background(), 100, "ovs-1", "first offense, goodwill", "")

	assert.NoError(t, err)
	assert.Equal(t, domain.OverstayStatusPenaltyWaived, got.Status)
	assert.Equal(t, int32(0), *got.FinalPenaltyCents)
	assert.Equal(t, "first offense, goodwill", got.WaiveReason)
	m.gateway.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything)
}

func TestOverstayService_Charge_RejectedWhenEscalated(t *testing.T) {
	svc, m := newTestService()
	rec := pendingReviewRecord()
	rec.Status = domain.OverstayStatusEscalated
	m.overstayRepo.On("GetByID", mock.Anything, "ovs-1").Return(rec, nil)

	_, err := svc.Charge(context.Background(), 100, "ovs-1")

	var transitionErr *domain.InvalidTransitionError
	assert.ErrorAs(t, err, &transitionErr)
	m.gateway.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything)
}

func TestOverstayService_Charge_ExhaustedBudgetEscalates(t *testing.T) {
	svc, m := newTestService()
	rec := pendingReviewRecord()
	rec.Status = domain.OverstayStatusChargeFailed
	rec.ChargeAttemptCount = 5
	approved := int32(10000)
	rec.FinalPenaltyCents = &approved
	rec.LastFailureReason = "card declined"

	m.overstayRepo.On("GetByID", mock.Anything, "ovs-1").Return(rec, nil)
	m.overstayRepo.On("Update", mock.Anything, rec).Return(nil)
	m.overstayRepo.On("AppendEvent", mock.Anything, mock.Anything).Return(nil)
	m.bookingRepo.On("GetByID", mock.Anything, int32(42)).Return(testBooking(), nil)
	m.emailSvc.On("SendPaymentLinkNotification", mock.Anything, "ana@example.com", "Ana Souza",
		int32(11500), "https://pay.test/overstays/ovs-1").Return(nil)
	m.emailSvc.On("SendOpsEscalationAlert", mock.Anything, "ovs-1", int32(42), int32(11500), mock.Anything).Return(nil)
	m.noteRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	got, err := svc.Charge(context.Background(), 100, "ovs-1")

	assert.NoError(t, err)
	assert.Equal(t, domain.OverstayStatusEscalated, got.Status)
	m.gateway.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything)
	m.emailSvc.AssertExpectations(t)
}

func TestOverstayService_Charge_TerminalFailureStreakEscalates(t *testing.T) {
	svc, m := newTestService()
	rec := pendingReviewRecord()
	rec.Status = domain.OverstayStatusChargeFailed
	rec.ChargeAttemptCount = 2
	approved := int32(10000)
	rec.FinalPenaltyCents = &approved

	m.overstayRepo.On("GetByID", mock.Anything, "ovs-1").Return(rec, nil)
	m.overstayRepo.On("Update", mock.Anything, rec).Return(nil)
	m.overstayRepo.On("AppendEvent", mock.Anything, mock.Anything).Return(nil)
	m.overstayRepo.On("AppendChargeAttempt", mock.Anything, mock.Anything).Return(nil)
	m.bookingRepo.On("GetByID", mock.Anything, int32(42)).Return(testBooking(), nil)
	m.gateway.On("Charge", mock.Anything, mock.Anything).Return(nil,
		&domain.GatewayError{Transient: false, Reason: "card declined"})
	// Third consecutive terminal failure trips the escalation threshold.
	m.overstayRepo.On("ListChargeAttempts", mock.Anything, "ovs-1").Return([]domain.ChargeAttempt{
		{AttemptNumber: 1, Outcome: domain.ChargeOutcomeTerminalFailure},
		{AttemptNumber: 2, Outcome: domain.ChargeOutcomeTerminalFailure},
		{AttemptNumber: 3, Outcome: domain.ChargeOutcomeTerminalFailure},
	}, nil)
	m.emailSvc.On("SendPaymentLinkNotification", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	m.emailSvc.On("SendOpsEscalationAlert", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	m.noteRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	got, err := svc.Charge(context.Background(), 100, "ovs-1")

	assert.NoError(t, err)
	assert.Equal(t, domain.OverstayStatusEscalated, got.Status)
	assert.Equal(t, int32(3), got.ChargeAttemptCount)
	assert.Equal(t, "card declined", got.LastFailureReason)
}

func TestOverstayService_Charge_TransientFailureDoesNotEscalate(t *testing.T) {
	svc, m := newTestService()
	rec := pendingReviewRecord()
	rec.Status = domain.OverstayStatusChargeFailed
	rec.ChargeAttemptCount = 1
	approved := int32(10000)
	rec.FinalPenaltyCents = &approved

	var recorded *domain.ChargeAttempt
	m.overstayRepo.On("GetByID", mock.Anything, "ovs-1").Return(rec, nil)
	m.overstayRepo.On("Update", mock.Anything, rec).Return(nil)
	m.overstayRepo.On("AppendEvent", mock.Anything, mock.Anything).Return(nil)
	m.overstayRepo.On("AppendChargeAttempt", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		recorded = args.Get(1).(*domain.ChargeAttempt)
	}).Return(nil)
	m.bookingRepo.On("GetByID", mock.Anything, int32(42)).Return(testBooking(), nil)
	m.gateway.On("Charge", mock.Anything, mock.Anything).Return(nil,
		&domain.GatewayError{Transient: true, Reason: "gateway call timed out, outcome unknown"})
	m.overstayRepo.On("ListChargeAttempts", mock.Anything, "ovs-1").Return([]domain.ChargeAttempt{
		{AttemptNumber: 1, Outcome: domain.ChargeOutcomeTerminalFailure},
		{AttemptNumber: 2, Outcome: domain.ChargeOutcomeTransientFailure},
	}, nil)

	got, err := svc.Charge(context.Background(), 100, "ovs-1")

	assert.NoError(t, err)
	assert.Equal(t, domain.OverstayStatusChargeFailed, got.Status)
	assert.Equal(t, int32(2), got.ChargeAttemptCount)
	if assert.NotNil(t, recorded) {
		assert.Equal(t, domain.ChargeOutcomeTransientFailure, recorded.Outcome)
		assert.Equal(t, int32(2), recorded.AttemptNumber)
		assert.Equal(t, int32(11500), recorded.AmountCents)
	}
	m.emailSvc.AssertNotCalled(t, "SendPaymentLinkNotification",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOverstayService_Resolve_FromEscalated(t *testing.T) {
	svc, m := newTestService()
	rec := pendingReviewRecord()
	rec.Status = domain.OverstayStatusEscalated
	approved := int32(10000)
	rec.FinalPenaltyCents = &approved

	m.overstayRepo.On("GetByID", mock.Anything, "ovs-1").Return(rec, nil)
	m.overstayRepo.On("Update", mock.Anything, rec).Return(nil)
	m.overstayRepo.On("AppendEvent", mock.Anything, mock.Anything).Return(nil)
	m.bookingRepo.On("GetByID", mock.Anything, int32(42)).Return(testBooking(), nil)
	m.emailSvc.On("SendCaseClosedNotification", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	m.noteRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	got, err := svc.Resolve(context.Background(), 100, "ovs-1", domain.ResolutionTypeEscalated, "sent to collections agency")

	assert.NoError(t, err)
	assert.Equal(t, domain.OverstayStatusResolved, got.Status)
	assert.Equal(t, domain.ResolutionTypeEscalated, got.ResolutionType)
}

func TestOverstayService_Resolve_RejectsUnknownType(t *testing.T) {
	svc, m := newTestService()
	m.overstayRepo.On("GetByID", mock.Anything, "ovs-1").Return(pendingReviewRecord(), nil)

	_, err := svc.Resolve(context.Background(), 100, "ovs-1", domain.ResolutionType("PAID_CASH"), "")

	var validationErr *domain.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestOverstayService_Resolve_RejectedDuringReview(t *testing.T) {
	svc, m := newTestService()
	rec := pendingReviewRecord()
	m.overstayRepo.On("GetByID", mock.Anything, "ovs-1").Return(rec, nil)

	_, err := svc.Resolve(context.Background(), 100, "ovs-1", domain.ResolutionTypeRemoved, "")

	// A case under review must end in an explicit approve or waive.
	var transitionErr *domain.InvalidTransitionError
	assert.ErrorAs(t, err, &transitionErr)
}

func TestOverstayService_List_NormalizesPaging(t *testing.T) {
	svc, m := newTestService()
	m.overstayRepo.On("List", mock.Anything, "", int32(1), int32(20)).
		Return([]domain.OverstayRecord{}, int32(0), nil)

	_, _, err := svc.List(context.Background(), "", 0, 0)

	assert.NoError(t, err)
	m.overstayRepo.AssertExpectations(t)
}

func TestOverstayService_List_RejectsUnknownStatus(t *testing.T) {
	svc, _ := newTestService()

	_, _, err := svc.List(context.Background(), "LIMBO", 1, 20)

	var validationErr *domain.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}
