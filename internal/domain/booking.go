package domain

import "time"

type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCompleted BookingStatus = "COMPLETED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// StorageBooking is the read model over the booking store (an external
// collaborator). It carries everything the penalty engine snapshots at
// detection time plus the stored payment tokens used by the charge
// executor.
type StorageBooking struct {
	ID        int32         `json:"id"`
	KitchenID int32         `json:"kitchen_id"`
	ListingID int32         `json:"listing_id"`
	ChefID    int32         `json:"chef_id"`
	ChefName  string        `json:"chef_name"`
	ChefEmail string        `json:"chef_email"`
	StartDate time.Time     `json:"start_date"`
	EndDate   time.Time     `json:"end_date"`
	Status    BookingStatus `json:"status"`

	// Current listing rate parameters; snapshotted onto the
	// OverstayRecord when a violation is detected.
	DailyRateCents    int32 `json:"daily_rate_cents"`
	GracePeriodDays   int32 `json:"grace_period_days"`
	PenaltyRateBps    int32 `json:"penalty_rate_bps"`
	MaxPenaltyDays    int32 `json:"max_penalty_days"`
	KitchenTaxRateBps int32 `json:"kitchen_tax_rate_bps"`

	// Tokenized payment method on file with the gateway.
	CustomerToken      string `json:"-"`
	PaymentMethodToken string `json:"-"`
}
