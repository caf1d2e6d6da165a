// Package stay implements the guest stay access state machine: deciding which
// access phase a guest is in and whether door/safe codes may be disclosed.
package stay

// Default wall-clock times applied when a reservation doesn't specify its own.
const (
	DefaultCheckInTime  = "14:00"
	DefaultCheckOutTime = "11:00"
)

// ReservationSnapshot is an immutable view of one guest's stay, produced by the
// persistence layer. Any remote change arrives as a new snapshot through the
// subscription stream; snapshots are never mutated in place.
type ReservationSnapshot struct {
	ID        string `json:"id"`
	GuestName string `json:"guest_name"`

	// Credentials. The property-wide safe-code override, when configured, is
	// applied by the store before the snapshot is handed out.
	LockCode string `json:"lock_code"`
	SafeCode string `json:"safe_code"`

	// Calendar dates in "2006-01-02" form, interpreted as local calendar days.
	// Empty or malformed dates mean an unbounded stay: it never expires and
	// never gates on pre-check-in.
	CheckInDate  string `json:"check_in_date"`
	CheckoutDate string `json:"check_out_date"`

	// Wall-clock times in "15:04" form, for display.
	CheckInTime  string `json:"check_in_time"`
	CheckOutTime string `json:"check_out_time"`

	WelcomeMessage string `json:"welcome_message"`
}

// EffectiveCheckInTime returns the check-in time, falling back to the default.
func (s *ReservationSnapshot) EffectiveCheckInTime() string {
	if s.CheckInTime == "" {
		return DefaultCheckInTime
	}
	return s.CheckInTime
}

// EffectiveCheckOutTime returns the check-out time, falling back to the default.
func (s *ReservationSnapshot) EffectiveCheckOutTime() string {
	if s.CheckOutTime == "" {
		return DefaultCheckOutTime
	}
	return s.CheckOutTime
}
