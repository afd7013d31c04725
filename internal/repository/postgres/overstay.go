package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kitchenhub-backend/internal/domain"
	"kitchenhub-backend/internal/repository"
)

const overstayColumns = `id, storage_booking_id, kitchen_id, chef_id, daily_rate_cents, grace_period_days,
	penalty_rate_bps, max_penalty_days, kitchen_tax_rate_bps, booking_end_date, days_overdue,
	calculated_penalty_cents, final_penalty_cents, status, detected_at, grace_period_ends_at,
	charge_attempt_count, charge_reference, last_failure_reason, resolution_type, resolution_notes,
	waive_reason, manager_notes, version, created_on, updated_on`

type overstayRepository struct {
	db *sql.DB
}

func NewOverstayRepository(db *sql.DB) repository.OverstayRepository {
	return &overstayRepository{db: db}
}

func (r *overstayRepository) Create(ctx context.Context, rec *domain.OverstayRecord) error {
	query := `INSERT INTO overstay_records (id, storage_booking_id, kitchen_id, chef_id, daily_rate_cents,
	          grace_period_days, penalty_rate_bps, max_penalty_days, kitchen_tax_rate_bps, booking_end_date,
	          days_overdue, calculated_penalty_cents, status, detected_at, grace_period_ends_at, version,
	          created_on, updated_on)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, 1, $16, $17)`
	now := time.Now()
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.StorageBookingID, rec.KitchenID, rec.ChefID, rec.DailyRateCents,
		rec.GracePeriodDays, rec.PenaltyRateBps, rec.MaxPenaltyDays, rec.KitchenTaxRateBps, rec.BookingEndDate,
		rec.DaysOverdue, rec.CalculatedPenaltyCents, rec.Status, rec.DetectedAt, rec.GracePeriodEndsAt,
		now, now)
	if err != nil {
		return fmt.Errorf("failed to create overstay record: %w", err)
	}
	rec.Version = 1
	return nil
}

func (r *overstayRepository) GetByID(ctx context.Context, id string) (*domain.OverstayRecord, error) {
	query := `SELECT ` + overstayColumns + ` FROM overstay_records WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *overstayRepository) GetActiveByBooking(ctx context.Context, storageBookingID int32) (*domain.OverstayRecord, error) {
	query := `SELECT ` + overstayColumns + ` FROM overstay_records
	          WHERE storage_booking_id = $1
	            AND status NOT IN ('PENALTY_WAIVED', 'CHARGE_SUCCEEDED', 'RESOLVED')`
	return r.scanOne(r.db.QueryRowContext(ctx, query, storageBookingID))
}

// Update writes all mutable fields. The WHERE clause carries the version
// the caller read; zero rows affected means a concurrent writer won.
func (r *overstayRepository) Update(ctx context.Context, rec *domain.OverstayRecord) error {
	query := `UPDATE overstay_records
	          SET days_overdue=$1, calculated_penalty_cents=$2, final_penalty_cents=$3, status=$4,
	              charge_attempt_count=$5, charge_reference=$6, last_failure_reason=$7, resolution_type=$8,
	              resolution_notes=$9, waive_reason=$10, manager_notes=$11, version=version+1, updated_on=$12
	          WHERE id=$13 AND version=$14`
	result, err := r.db.ExecContext(ctx, query,
		rec.DaysOverdue, rec.CalculatedPenaltyCents, nullableInt32(rec.FinalPenaltyCents), rec.Status,
		rec.ChargeAttemptCount, rec.ChargeReference, rec.LastFailureReason, string(rec.ResolutionType),
		rec.ResolutionNotes, rec.WaiveReason, rec.ManagerNotes, time.Now(),
		rec.ID, rec.Version)
	if err != nil {
		return fmt.Errorf("failed to update overstay record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrConflict
	}
	rec.Version++
	return nil
}

func (r *overstayRepository) ListNonTerminal(ctx context.Context) ([]domain.OverstayRecord, error) {
	query := `SELECT ` + overstayColumns + ` FROM overstay_records
	          WHERE status NOT IN ('PENALTY_WAIVED', 'CHARGE_SUCCEEDED', 'RESOLVED')
	          ORDER BY detected_at ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.scanAll(rows)
}

func (r *overstayRepository) List(ctx context.Context, status string, page, pageSize int32) ([]domain.OverstayRecord, int32, error) {
	offset := (page - 1) * pageSize
	query := `SELECT ` + overstayColumns + ` FROM overstay_records`

	var args []interface{}
	argIdx := 1
	if status != "" {
		query += fmt.Sprintf(" WHERE status = $%d", argIdx)
		args = append(args, status)
		argIdx++
	}

	var count int32
	countQuery := "SELECT count(*) FROM (" + query + ") as sub"
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&count); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(" ORDER BY detected_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, pageSize, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	records, err := r.scanAll(rows)
	if err != nil {
		return nil, 0, err
	}
	return records, count, nil
}

func (r *overstayRepository) GetSummary(ctx context.Context) (*domain.OverstaySummary, error) {
	summary := &domain.OverstaySummary{
		CountsByStatus: make(map[domain.OverstayStatus]int32),
	}

	rows, err := r.db.QueryContext(ctx, `SELECT status, count(*) FROM overstay_records GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var status domain.OverstayStatus
		var count int32
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		summary.CountsByStatus[status] = count
		if !status.IsTerminal() {
			summary.ActiveCount += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Collected: tax-inclusive amounts of successful charges.
	// Waived: calculated penalties forgone by waiver.
	totalsQuery := `SELECT
	    COALESCE((SELECT SUM(amount_cents) FROM overstay_charge_attempts WHERE outcome = 'SUCCEEDED'), 0),
	    COALESCE((SELECT SUM(calculated_penalty_cents) FROM overstay_records WHERE status = 'PENALTY_WAIVED'), 0)`
	if err := r.db.QueryRowContext(ctx, totalsQuery).Scan(&summary.TotalCollectedCents, &summary.TotalWaivedCents); err != nil {
		return nil, err
	}

	return summary, nil
}

func (r *overstayRepository) AppendChargeAttempt(ctx context.Context, attempt *domain.ChargeAttempt) error {
	query := `INSERT INTO overstay_charge_attempts (overstay_id, attempt_number, amount_cents, outcome,
	          gateway_reference, failure_reason, attempted_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	return r.db.QueryRowContext(ctx, query,
		attempt.OverstayID, attempt.AttemptNumber, attempt.AmountCents, attempt.Outcome,
		attempt.GatewayReference, attempt.FailureReason, attempt.AttemptedAt).Scan(&attempt.ID)
}

func (r *overstayRepository) ListChargeAttempts(ctx context.Context, overstayID string) ([]domain.ChargeAttempt, error) {
	query := `SELECT id, overstay_id, attempt_number, amount_cents, outcome, gateway_reference, failure_reason, attempted_at
	          FROM overstay_charge_attempts WHERE overstay_id = $1 ORDER BY attempt_number ASC`
	rows, err := r.db.QueryContext(ctx, query, overstayID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []domain.ChargeAttempt
	for rows.Next() {
		var a domain.ChargeAttempt
		if err := rows.Scan(&a.ID, &a.OverstayID, &a.AttemptNumber, &a.AmountCents, &a.Outcome,
			&a.GatewayReference, &a.FailureReason, &a.AttemptedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func (r *overstayRepository) AppendEvent(ctx context.Context, event *domain.OverstayEvent) error {
	query := `INSERT INTO overstay_events (overstay_id, event_type, actor_manager_id, from_status, to_status, details, created_on)
	          VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	return r.db.QueryRowContext(ctx, query,
		event.OverstayID, event.EventType, event.ActorManagerID, string(event.FromStatus),
		string(event.ToStatus), event.Details, time.Now()).Scan(&event.ID)
}

func (r *overstayRepository) ListEvents(ctx context.Context, overstayID string) ([]domain.OverstayEvent, error) {
	query := `SELECT id, overstay_id, event_type, actor_manager_id, from_status, to_status, details, created_on
	          FROM overstay_events WHERE overstay_id = $1 ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, query, overstayID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.OverstayEvent
	for rows.Next() {
		var e domain.OverstayEvent
		var from, to string
		if err := rows.Scan(&e.ID, &e.OverstayID, &e.EventType, &e.ActorManagerID, &from, &to, &e.Details, &e.CreatedOn); err != nil {
			return nil, err
		}
		e.FromStatus = domain.OverstayStatus(from)
		e.ToStatus = domain.OverstayStatus(to)
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *overstayRepository) scanOne(row *sql.Row) (*domain.OverstayRecord, error) {
	rec, err := scanOverstay(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (r *overstayRepository) scanAll(rows *sql.Rows) ([]domain.OverstayRecord, error) {
	var records []domain.OverstayRecord
	for rows.Next() {
		rec, err := scanOverstay(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func scanOverstay(scan func(...interface{}) error) (*domain.OverstayRecord, error) {
	rec := &domain.OverstayRecord{}
	var finalPenalty sql.NullInt32
	var resolutionType string
	err := scan(&rec.ID, &rec.StorageBookingID, &rec.KitchenID, &rec.ChefID, &rec.DailyRateCents,
		&rec.GracePeriodDays, &rec.PenaltyRateBps, &rec.MaxPenaltyDays, &rec.KitchenTaxRateBps,
		&rec.BookingEndDate, &rec.DaysOverdue, &rec.CalculatedPenaltyCents, &finalPenalty, &rec.Status,
		&rec.DetectedAt, &rec.GracePeriodEndsAt, &rec.ChargeAttemptCount, &rec.ChargeReference,
		&rec.LastFailureReason, &resolutionType, &rec.ResolutionNotes, &rec.WaiveReason,
		&rec.ManagerNotes, &rec.Version, &rec.CreatedOn, &rec.UpdatedOn)
	if err != nil {
		return nil, err
	}
	if finalPenalty.Valid {
		v := finalPenalty.Int32
		rec.FinalPenaltyCents = &v
	}
	rec.ResolutionType = domain.ResolutionType(resolutionType)
	return rec, nil
}

func nullableInt32(v *int32) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
