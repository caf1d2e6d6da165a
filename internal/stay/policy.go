package stay

import (
	"time"
)

// Stage identifies the access phase of a guest session. Stages are computed
// from the reservation's calendar windows and never stored.
type Stage string

const (
	StageLoading     Stage = "loading"      // No evaluation has completed yet
	StagePreCheckin  Stage = "pre_checkin"  // Before the check-in day
	StageCheckin     Stage = "checkin"      // The check-in calendar day
	StageMiddle      Stage = "middle"       // Strictly between the boundary days
	StagePreCheckout Stage = "pre_checkout" // The day before check-out
	StageCheckout    Stage = "checkout"     // The check-out calendar day
	StageExpired     Stage = "expired"      // Past the end of the check-out day
	StageBlocked     Stage = "blocked"      // No usable reservation record
)

// AccessDecision is the result of one policy evaluation. It is recomputed on
// every evaluation and owned exclusively by the session that requested it.
type AccessDecision struct {
	Stage Stage `json:"stage"`

	// CredentialsReleased is true once "now" is on or after the calendar day
	// before check-in. Lock and safe codes stay masked until then.
	CredentialsReleased bool `json:"credentials_released"`

	// IsCheckoutToday is true when "now" falls on the check-out calendar day,
	// regardless of which stage won the tie-break.
	IsCheckoutToday bool `json:"is_checkout_today"`
}

// Evaluator resolves access decisions from reservation snapshots. All
// date-window arithmetic lives here; the evaluator performs no I/O and the
// same inputs always produce the same decision.
type Evaluator struct {
	location *time.Location
}

// NewEvaluator creates an evaluator using the local time zone.
func NewEvaluator() *Evaluator {
	return &Evaluator{location: time.Local}
}

// NewEvaluatorWithLocation creates an evaluator for a specific time zone.
func NewEvaluatorWithLocation(loc *time.Location) *Evaluator {
	if loc == nil {
		loc = time.Local
	}
	return &Evaluator{location: loc}
}

// Resolve computes the access decision for a snapshot at the given instant.
//
// Precedence: a deleted/absent snapshot blocks, expiry beats everything else,
// then pre-check-in, then the boundary days. The boundary-day stages test
// distinct calendar days, except a zero-night stay (check-in equals check-out)
// where the check-in stage wins.
func (e *Evaluator) Resolve(snapshot *ReservationSnapshot, now time.Time) AccessDecision {
	if snapshot == nil {
		return AccessDecision{Stage: StageBlocked}
	}

	local := now.In(e.location)
	checkIn, hasCheckIn := e.parseDate(snapshot.CheckInDate)
	checkout, hasCheckout := e.parseDate(snapshot.CheckoutDate)

	dec := AccessDecision{
		// Released from midnight of the day before check-in. An unbounded
		// stay never gates.
		CredentialsReleased: !hasCheckIn || !local.Before(checkIn.AddDate(0, 0, -1)),
		IsCheckoutToday:     hasCheckout && sameDay(local, checkout),
	}

	if hasCheckout {
		// The stay ends at the last instant of the departure calendar day.
		boundary := checkout.AddDate(0, 0, 1).Add(-time.Millisecond)
		if local.After(boundary) {
			dec.Stage = StageExpired
			return dec
		}
	}

	if hasCheckIn && local.Before(checkIn) {
		dec.Stage = StagePreCheckin
		return dec
	}

	switch {
	case hasCheckIn && sameDay(local, checkIn):
		dec.Stage = StageCheckin
	case hasCheckout && sameDay(local, checkout.AddDate(0, 0, -1)):
		dec.Stage = StagePreCheckout
	case dec.IsCheckoutToday:
		dec.Stage = StageCheckout
	default:
		dec.Stage = StageMiddle
	}

	return dec
}

// parseDate parses a "2006-01-02" calendar date into local midnight.
// Empty or malformed dates report absent rather than failing: the policy is
// total and a broken record degrades to an unbounded stay.
func (e *Evaluator) parseDate(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation("2006-01-02", value, e.location)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// sameDay reports whether two instants fall on the same calendar day.
// Both arguments must already be in the evaluator's location.
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
