package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"kitchenhub-backend/internal/domain"
	"kitchenhub-backend/internal/payment"
)

// MockOverstayRepo
type MockOverstayRepo struct {
	mock.Mock
}

func (m *MockOverstayRepo) Create(ctx context.Context, rec *domain.OverstayRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}
func (m *MockOverstayRepo) GetByID(ctx context.Context, id string) (*domain.OverstayRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OverstayRecord), args.Error(1)
}
func (m *MockOverstayRepo) GetActiveByBooking(ctx context.Context, storageBookingID int32) (*domain.OverstayRecord, error) {
	args := m.Called(ctx, storageBookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OverstayRecord), args.Error(1)
}
func (m *MockOverstayRepo) Update(ctx context.Context, rec *domain.OverstayRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}
func (m *MockOverstayRepo) ListNonTerminal(ctx context.Context) ([]domain.OverstayRecord, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.OverstayRecord), args.Error(1)
}
func (m *MockOverstayRepo) List(ctx context.Context, status string, page, pageSize int32) ([]domain.OverstayRecord, int32, error) {
	args := m.Called(ctx, status, page, pageSize)
	return args.Get(0).([]domain.OverstayRecord), args.Get(1).(int32), args.Error(2)
}
func (m *MockOverstayRepo) GetSummary(ctx context.Context) (*domain.OverstaySummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OverstaySummary), args.Error(1)
}
func (m *MockOverstayRepo) AppendChargeAttempt(ctx context.Context, attempt *domain.ChargeAttempt) error {
	args := m.Called(ctx, attempt)
	return args.Error(0)
}
func (m *MockOverstayRepo) ListChargeAttempts(ctx context.Context, overstayID string) ([]domain.ChargeAttempt, error) {
	args := m.Called(ctx, overstayID)
	return args.Get(0).([]domain.ChargeAttempt), args.Error(1)
}
func (m *MockOverstayRepo) AppendEvent(ctx context.Context, event *domain.OverstayEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
func (m *MockOverstayRepo) ListEvents(ctx context.Context, overstayID string) ([]domain.OverstayEvent, error) {
	args := m.Called(ctx, overstayID)
	return args.Get(0).([]domain.OverstayEvent), args.Error(1)
}

// MockBookingRepo
type MockBookingRepo struct {
	mock.Mock
}

func (m *MockBookingRepo) GetByID(ctx context.Context, id int32) (*domain.StorageBooking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StorageBooking), args.Error(1)
}
func (m *MockBookingRepo) ListOverdueConfirmed(ctx context.Context, asOf time.Time) ([]domain.StorageBooking, error) {
	args := m.Called(ctx, asOf)
	return args.Get(0).([]domain.StorageBooking), args.Error(1)
}

// MockNotificationRepo
type MockNotificationRepo struct {
	mock.Mock
}

func (m *MockNotificationRepo) Create(ctx context.Context, note *domain.Notification) error {
	args := m.Called(ctx, note)
	return args.Error(0)
}
func (m *MockNotificationRepo) List(ctx context.Context, userID int32, limit, offset int32) ([]domain.Notification, int32, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]domain.Notification), args.Get(1).(int32), args.Error(2)
}
func (m *MockNotificationRepo) MarkAsRead(ctx context.Context, id, userID int32) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

// MockEmailService
type MockEmailService struct {
	mock.Mock
}

func (m *MockEmailService) SendPaymentLinkNotification(ctx context.Context, chefEmail, chefName string, amountCents int32, paymentLink string) error {
	args := m.Called(ctx, chefEmail, chefName, amountCents, paymentLink)
	return args.Error(0)
}
func (m *MockEmailService) SendChargeReceiptNotification(ctx context.Context, chefEmail, chefName string, amountCents int32, reference string) error {
	args := m.Called(ctx, chefEmail, chefName, amountCents, reference)
	return args.Error(0)
}
func (m *MockEmailService) SendCaseClosedNotification(ctx context.Context, chefEmail, chefName, outcome string) error {
	args := m.Called(ctx, chefEmail, chefName, outcome)
	return args.Error(0)
}
func (m *MockEmailService) SendOpsEscalationAlert(ctx context.Context, overstayID string, storageBookingID int32, amountCents int32, failureReason string) error {
	args := m.Called(ctx, overstayID, storageBookingID, amountCents, failureReason)
	return args.Error(0)
}

// MockGateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Charge(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.ChargeResult), args.Error(1)
}
