// Package models defines the persisted data structures.
package models

import (
	"time"
)

// Reservation is one guest's stay as stored. Optional columns are pointers;
// absent dates mean an unbounded stay.
type Reservation struct {
	ID             string    `json:"id"`
	GuestName      string    `json:"guest_name"`
	LockCode       string    `json:"lock_code"`
	SafeCode       string    `json:"safe_code"`
	CheckInDate    *string   `json:"check_in_date,omitempty"`
	CheckOutDate   *string   `json:"check_out_date,omitempty"`
	CheckInTime    *string   `json:"check_in_time,omitempty"`
	CheckOutTime   *string   `json:"check_out_time,omitempty"`
	WelcomeMessage *string   `json:"welcome_message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
