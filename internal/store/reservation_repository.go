package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/guest-stay-portal/backend/internal/store/models"
)

// ReservationRepository provides data access for reservations.
type ReservationRepository struct {
	BaseRepository
}

// NewReservationRepository creates a new reservation repository.
func NewReservationRepository(db *DB) *ReservationRepository {
	return &ReservationRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

const reservationColumns = `id, guest_name, lock_code, safe_code, check_in_date,
       check_out_date, check_in_time, check_out_time, welcome_message, created_at, updated_at`

// Create inserts a new reservation.
func (r *ReservationRepository) Create(ctx context.Context, res *models.Reservation) error {
	if res.ID == "" {
		res.ID = GenerateID()
	}
	res.CreatedAt = r.Now()
	res.UpdatedAt = r.Now()

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO reservations (
			id, guest_name, lock_code, safe_code, check_in_date,
			check_out_date, check_in_time, check_out_time, welcome_message, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		res.ID, res.GuestName, res.LockCode, res.SafeCode, res.CheckInDate,
		res.CheckOutDate, res.CheckInTime, res.CheckOutTime, res.WelcomeMessage,
		res.CreatedAt, res.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("inserting reservation: %w", err)
	}

	return nil
}

// GetByID retrieves a reservation by its ID. Returns nil when not found.
func (r *ReservationRepository) GetByID(ctx context.Context, id string) (*models.Reservation, error) {
	res := &models.Reservation{}

	err := r.DB().QueryRowContext(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations WHERE id = ?
	`, id).Scan(
		&res.ID, &res.GuestName, &res.LockCode, &res.SafeCode, &res.CheckInDate,
		&res.CheckOutDate, &res.CheckInTime, &res.CheckOutTime, &res.WelcomeMessage,
		&res.CreatedAt, &res.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying reservation: %w", err)
	}

	return res, nil
}

// List retrieves all reservations, newest check-in first.
func (r *ReservationRepository) List(ctx context.Context) ([]models.Reservation, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		ORDER BY check_in_date DESC, created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying reservations: %w", err)
	}
	defer rows.Close()

	return r.scanReservations(rows)
}

func (r *ReservationRepository) scanReservations(rows *sql.Rows) ([]models.Reservation, error) {
	var reservations []models.Reservation
	for rows.Next() {
		var res models.Reservation
		if err := rows.Scan(
			&res.ID, &res.GuestName, &res.LockCode, &res.SafeCode, &res.CheckInDate,
			&res.CheckOutDate, &res.CheckInTime, &res.CheckOutTime, &res.WelcomeMessage,
			&res.CreatedAt, &res.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning reservation: %w", err)
		}
		reservations = append(reservations, res)
	}
	return reservations, rows.Err()
}

// Update updates an existing reservation.
func (r *ReservationRepository) Update(ctx context.Context, res *models.Reservation) error {
	res.UpdatedAt = r.Now()

	result, err := r.DB().ExecContext(ctx, `
		UPDATE reservations SET
			guest_name = ?, lock_code = ?, safe_code = ?, check_in_date = ?,
			check_out_date = ?, check_in_time = ?, check_out_time = ?,
			welcome_message = ?, updated_at = ?
		WHERE id = ?
	`,
		res.GuestName, res.LockCode, res.SafeCode, res.CheckInDate,
		res.CheckOutDate, res.CheckInTime, res.CheckOutTime,
		res.WelcomeMessage, res.UpdatedAt, res.ID,
	)

	if err != nil {
		return fmt.Errorf("updating reservation: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("reservation not found: %s", res.ID)
	}

	return nil
}

// Delete removes a reservation by ID.
func (r *ReservationRepository) Delete(ctx context.Context, id string) error {
	result, err := r.DB().ExecContext(ctx, "DELETE FROM reservations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting reservation: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("reservation not found: %s", id)
	}

	return nil
}

// Count returns the number of stored reservations.
func (r *ReservationRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM reservations").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting reservations: %w", err)
	}
	return count, nil
}
