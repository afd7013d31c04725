package domain

import (
	"fmt"
	"time"
)

type OverstayStatus string

const (
	OverstayStatusDetected        OverstayStatus = "DETECTED"
	OverstayStatusGracePeriod     OverstayStatus = "GRACE_PERIOD"
	OverstayStatusPendingReview   OverstayStatus = "PENDING_REVIEW"
	OverstayStatusPenaltyApproved OverstayStatus = "PENALTY_APPROVED"
	OverstayStatusPenaltyWaived   OverstayStatus = "PENALTY_WAIVED"
	OverstayStatusChargePending   OverstayStatus = "CHARGE_PENDING"
	OverstayStatusChargeSucceeded OverstayStatus = "CHARGE_SUCCEEDED"
	OverstayStatusChargeFailed    OverstayStatus = "CHARGE_FAILED"
	OverstayStatusEscalated       OverstayStatus = "ESCALATED"
	OverstayStatusResolved        OverstayStatus = "RESOLVED"
)

// legalTransitions is the closed transition table for the overstay
// lifecycle. Anything not listed here is rejected with
// InvalidTransitionError before any state change.
var legalTransitions = map[OverstayStatus][]OverstayStatus{
	OverstayStatusDetected:        {OverstayStatusGracePeriod, OverstayStatusResolved},
	OverstayStatusGracePeriod:     {OverstayStatusPendingReview, OverstayStatusResolved},
	OverstayStatusPendingReview:   {OverstayStatusPenaltyApproved, OverstayStatusPenaltyWaived},
	OverstayStatusPenaltyApproved: {OverstayStatusChargePending, OverstayStatusResolved},
	OverstayStatusChargePending:   {OverstayStatusChargeSucceeded, OverstayStatusChargeFailed, OverstayStatusResolved},
	OverstayStatusChargeFailed:    {OverstayStatusPendingReview, OverstayStatusChargePending, OverstayStatusEscalated, OverstayStatusResolved},
	OverstayStatusEscalated:       {OverstayStatusResolved},
}

// IsTerminal reports whether no further transitions are possible.
// ESCALATED is not terminal: it freezes automatic retries but a manager
// can still resolve the record.
func (s OverstayStatus) IsTerminal() bool {
	switch s {
	case OverstayStatusPenaltyWaived, OverstayStatusChargeSucceeded, OverstayStatusResolved:
		return true
	}
	return false
}

func (s OverstayStatus) CanTransitionTo(next OverstayStatus) bool {
	for _, allowed := range legalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OverstayStatus) Valid() bool {
	switch s {
	case OverstayStatusDetected, OverstayStatusGracePeriod, OverstayStatusPendingReview,
		OverstayStatusPenaltyApproved, OverstayStatusPenaltyWaived, OverstayStatusChargePending,
		OverstayStatusChargeSucceeded, OverstayStatusChargeFailed, OverstayStatusEscalated,
		OverstayStatusResolved:
		return true
	}
	return false
}

type ResolutionType string

const (
	ResolutionTypeExtended  ResolutionType = "EXTENDED"  // chef extended the booking
	ResolutionTypeRemoved   ResolutionType = "REMOVED"   // chef removed items
	ResolutionTypeEscalated ResolutionType = "ESCALATED" // sent to collections
)

func (r ResolutionType) Valid() bool {
	switch r {
	case ResolutionTypeExtended, ResolutionTypeRemoved, ResolutionTypeEscalated:
		return true
	}
	return false
}

// OverstayRecord tracks one storage booking in violation of its end date.
// At most one non-terminal record exists per booking. Records are never
// deleted: they are the financial audit trail.
type OverstayRecord struct {
	ID               string `json:"id"`
	StorageBookingID int32  `json:"storage_booking_id"`
	KitchenID        int32  `json:"kitchen_id"`
	ChefID           int32  `json:"chef_id"`
	// Rate snapshot fields — captured from the listing at detection time.
	// Penalty math always uses these snapshots, never live listing rates,
	// so a stored breakdown stays reproducible after a rate change.
	DailyRateCents    int32 `json:"daily_rate_cents"`
	GracePeriodDays   int32 `json:"grace_period_days"`
	PenaltyRateBps    int32 `json:"penalty_rate_bps"`
	MaxPenaltyDays    int32 `json:"max_penalty_days"`
	KitchenTaxRateBps int32 `json:"kitchen_tax_rate_bps"`

	BookingEndDate         time.Time      `json:"booking_end_date"`
	DaysOverdue            int32          `json:"days_overdue"`
	CalculatedPenaltyCents int32          `json:"calculated_penalty_cents"`
	FinalPenaltyCents      *int32         `json:"final_penalty_cents,omitempty"` // frozen on approval or waiver
	Status                 OverstayStatus `json:"status"`
	DetectedAt             time.Time      `json:"detected_at"`
	GracePeriodEndsAt      time.Time      `json:"grace_period_ends_at"`
	ChargeAttemptCount     int32          `json:"charge_attempt_count"`
	ChargeReference        string         `json:"charge_reference,omitempty"`
	LastFailureReason      string         `json:"last_failure_reason,omitempty"`
	ResolutionType         ResolutionType `json:"resolution_type,omitempty"`
	ResolutionNotes        string         `json:"resolution_notes,omitempty"`
	WaiveReason            string         `json:"waive_reason,omitempty"`
	ManagerNotes           string         `json:"manager_notes,omitempty"`
	Version                int32          `json:"version"`
	CreatedOn              time.Time      `json:"created_on"`
	UpdatedOn              time.Time      `json:"updated_on"`
}

// Transition moves the record to the next status, enforcing the legal
// transition table.
func (r *OverstayRecord) Transition(action string, next OverstayStatus) error {
	if !r.Status.CanTransitionTo(next) {
		return &InvalidTransitionError{Action: action, From: r.Status}
	}
	r.Status = next
	return nil
}

// PenaltyFrozen reports whether the penalty amount is immutable. Once a
// manager approves or waives, CalculatedPenaltyCents is no longer
// recomputed by the scanner.
func (r *OverstayRecord) PenaltyFrozen() bool {
	return r.FinalPenaltyCents != nil
}

// IdempotencyKey derives the per-attempt charge idempotency key. The same
// (overstay, attempt) pair always maps to the same key, so a
// transport-level retry cannot double-charge.
func (r *OverstayRecord) IdempotencyKey(attemptNumber int32) string {
	return fmt.Sprintf("%s-%d", r.ID, attemptNumber)
}

type ChargeOutcome string

const (
	ChargeOutcomeSucceeded        ChargeOutcome = "SUCCEEDED"
	ChargeOutcomeTransientFailure ChargeOutcome = "TRANSIENT_FAILURE"
	ChargeOutcomeTerminalFailure  ChargeOutcome = "TERMINAL_FAILURE"
)

// ChargeAttempt is one automated or manual charge try. Append-only.
type ChargeAttempt struct {
	ID               int32         `json:"id"`
	OverstayID       string        `json:"overstay_id"`
	AttemptNumber    int32         `json:"attempt_number"`
	AmountCents      int32         `json:"amount_cents"`
	Outcome          ChargeOutcome `json:"outcome"`
	GatewayReference string        `json:"gateway_reference,omitempty"`
	FailureReason    string        `json:"failure_reason,omitempty"`
	AttemptedAt      time.Time     `json:"attempted_at"`
}

type OverstayEventType string

const (
	EventTypeDetected        OverstayEventType = "DETECTED"
	EventTypeStatusChanged   OverstayEventType = "STATUS_CHANGED"
	EventTypePenaltyApproved OverstayEventType = "PENALTY_APPROVED"
	EventTypePenaltyWaived   OverstayEventType = "PENALTY_WAIVED"
	EventTypeChargeAttempted OverstayEventType = "CHARGE_ATTEMPTED"
	EventTypeEscalated       OverstayEventType = "ESCALATED"
	EventTypeResolved        OverstayEventType = "RESOLVED"
)

// OverstayEvent is one row of the append-only audit log. Financial state
// transitions are recorded here and never overwritten.
type OverstayEvent struct {
	ID             int32             `json:"id"`
	OverstayID     string            `json:"overstay_id"`
	EventType      OverstayEventType `json:"event_type"`
	ActorManagerID *int32            `json:"actor_manager_id,omitempty"` // nil for system actions
	FromStatus     OverstayStatus    `json:"from_status,omitempty"`
	ToStatus       OverstayStatus    `json:"to_status,omitempty"`
	Details        string            `json:"details,omitempty"`
	CreatedOn      time.Time         `json:"created_on"`
}

// OverstaySummary backs the manager dashboard counters.
type OverstaySummary struct {
	CountsByStatus      map[OverstayStatus]int32 `json:"counts_by_status"`
	ActiveCount         int32                    `json:"active_count"`
	TotalCollectedCents int64                    `json:"total_collected_cents"`
	TotalWaivedCents    int64                    `json:"total_waived_cents"`
}
