package repository

import (
	"context"
	"time"

	"kitchenhub-backend/internal/domain"
)

type OverstayRepository interface {
	Create(ctx context.Context, rec *domain.OverstayRecord) error
	GetByID(ctx context.Context, id string) (*domain.OverstayRecord, error)
	// GetActiveByBooking returns the single non-terminal record for a
	// booking, or domain.ErrNotFound.
	GetActiveByBooking(ctx context.Context, storageBookingID int32) (*domain.OverstayRecord, error)
	// Update persists the record with an optimistic version check and
	// returns domain.ErrConflict if another writer got there first.
	Update(ctx context.Context, rec *domain.OverstayRecord) error
	ListNonTerminal(ctx context.Context) ([]domain.OverstayRecord, error)
	List(ctx context.Context, status string, page, pageSize int32) ([]domain.OverstayRecord, int32, error)
	GetSummary(ctx context.Context) (*domain.OverstaySummary, error)

	AppendChargeAttempt(ctx context.Context, attempt *domain.ChargeAttempt) error
	ListChargeAttempts(ctx context.Context, overstayID string) ([]domain.ChargeAttempt, error)
	AppendEvent(ctx context.Context, event *domain.OverstayEvent) error
	ListEvents(ctx context.Context, overstayID string) ([]domain.OverstayEvent, error)
}

// BookingRepository reads from the booking store, an external
// collaborator. The penalty engine never writes bookings.
type BookingRepository interface {
	GetByID(ctx context.Context, id int32) (*domain.StorageBooking, error)
	// ListOverdueConfirmed returns confirmed storage bookings whose end
	// date has passed as of the given instant.
	ListOverdueConfirmed(ctx context.Context, asOf time.Time) ([]domain.StorageBooking, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, note *domain.Notification) error
	List(ctx context.Context, userID int32, limit, offset int32) ([]domain.Notification, int32, error)
	MarkAsRead(ctx context.Context, id, userID int32) error
}
