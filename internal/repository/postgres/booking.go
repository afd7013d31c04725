package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"kitchenhub-backend/internal/domain"
	"kitchenhub-backend/internal/repository"
)

// bookingRepository reads the booking store owned by the scheduling
// service. Listing rate parameters and the chef's payment tokens are
// joined in so the scanner can snapshot them in one pass.
const bookingColumns = `b.id, b.kitchen_id, b.listing_id, b.chef_id, c.name, c.email, b.start_date, b.end_date,
	b.status, l.daily_rate_cents, l.grace_period_days, l.penalty_rate_bps, l.max_penalty_days,
	k.tax_rate_bps, c.gateway_customer_token, c.gateway_payment_method_token`

const bookingJoins = `FROM storage_bookings b
	JOIN storage_listings l ON l.id = b.listing_id
	JOIN kitchens k ON k.id = b.kitchen_id
	JOIN chefs c ON c.id = b.chef_id`

type bookingRepository struct {
	db *sql.DB
}

func NewBookingRepository(db *sql.DB) repository.BookingRepository {
	return &bookingRepository{db: db}
}

func (r *bookingRepository) GetByID(ctx context.Context, id int32) (*domain.StorageBooking, error) {
	query := `SELECT ` + bookingColumns + ` ` + bookingJoins + ` WHERE b.id = $1`
	booking, err := scanBooking(r.db.QueryRowContext(ctx, query, id).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return booking, nil
}

func (r *bookingRepository) ListOverdueConfirmed(ctx context.Context, asOf time.Time) ([]domain.StorageBooking, error) {
	query := `SELECT ` + bookingColumns + ` ` + bookingJoins + `
	          WHERE b.status = 'CONFIRMED' AND b.end_date < $1
	          ORDER BY b.end_date ASC`
	rows, err := r.db.QueryContext(ctx, query, asOf.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.StorageBooking
	for rows.Next() {
		booking, err := scanBooking(rows.Scan)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *booking)
	}
	return bookings, rows.Err()
}

func scanBooking(scan func(...interface{}) error) (*domain.StorageBooking, error) {
	b := &domain.StorageBooking{}
	err := scan(&b.ID, &b.KitchenID, &b.ListingID, &b.ChefID, &b.ChefName, &b.ChefEmail,
		&b.StartDate, &b.EndDate, &b.Status, &b.DailyRateCents, &b.GracePeriodDays,
		&b.PenaltyRateBps, &b.MaxPenaltyDays, &b.KitchenTaxRateBps,
		&b.CustomerToken, &b.PaymentMethodToken)
	if err != nil {
		return nil, err
	}
	return b, nil
}
