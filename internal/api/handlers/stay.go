// Package handlers provides HTTP request handlers for the API endpoints.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/guest-stay-portal/backend/internal/api/middleware"
	"github.com/guest-stay-portal/backend/internal/stay"
)

// maskedCredential is what guests see in place of a code that has not been
// released yet. The real codes never travel to the client before release.
const maskedCredential = "••••"

// Static guest-facing messages. Not-found and transport failures are
// deliberately indistinguishable so valid reservation ids can't be probed.
const (
	blockedMessage = "This link is unavailable. Please contact your host."
	expiredMessage = "This stay has ended. We hope you enjoyed your visit!"
)

// StayStateResponse is the guest portal view of a session.
type StayStateResponse struct {
	SessionID           string `json:"session_id"`
	Stage               string `json:"stage"`
	IsTimeVerified      bool   `json:"is_time_verified"`
	CredentialsReleased bool   `json:"credentials_released"`
	IsCheckoutToday     bool   `json:"is_checkout_today"`
	Message             string `json:"message,omitempty"`

	GuestName      string `json:"guest_name,omitempty"`
	WelcomeMessage string `json:"welcome_message,omitempty"`
	CheckInDate    string `json:"check_in_date,omitempty"`
	CheckOutDate   string `json:"check_out_date,omitempty"`
	CheckInTime    string `json:"check_in_time,omitempty"`
	CheckOutTime   string `json:"check_out_time,omitempty"`
	LockCode       string `json:"lock_code,omitempty"`
	SafeCode       string `json:"safe_code,omitempty"`
}

// OpenStaySession returns a handler that opens a guest session for a
// reservation link. The session resolves asynchronously; the first response
// may still be in the loading stage and the client follows up via polling or
// the session's WebSocket stream.
func OpenStaySession(registry *stay.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reservationID := mux.Vars(r)["reservationID"]
		if reservationID == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Missing reservation id")
			return
		}

		session := registry.Open(reservationID)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(buildStayState(session))
	}
}

// GetStaySession returns a handler that reports the current session state.
func GetStaySession(registry *stay.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := registry.Get(mux.Vars(r)["sessionID"])
		if session == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Unknown session")
			return
		}

		session.Touch()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(buildStayState(session))
	}
}

// CloseStaySession returns a handler that tears a session down.
func CloseStaySession(registry *stay.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		registry.Close(mux.Vars(r)["sessionID"])
		w.WriteHeader(http.StatusNoContent)
	}
}

// buildStayState projects a session into its guest-facing view. Credentials
// are withheld server-side until the release flag is true.
func buildStayState(session *stay.Session) StayStateResponse {
	decision := session.Decision()

	resp := StayStateResponse{
		SessionID:           session.ID(),
		Stage:               string(decision.Stage),
		IsTimeVerified:      session.IsTimeVerified(),
		CredentialsReleased: decision.CredentialsReleased,
		IsCheckoutToday:     decision.IsCheckoutToday,
	}

	switch decision.Stage {
	case stay.StageBlocked:
		resp.Message = blockedMessage
		return resp
	case stay.StageExpired:
		resp.Message = expiredMessage
		return resp
	}

	snapshot := session.Snapshot()
	if snapshot == nil {
		return resp
	}

	resp.GuestName = snapshot.GuestName
	resp.WelcomeMessage = snapshot.WelcomeMessage
	resp.CheckInDate = snapshot.CheckInDate
	resp.CheckOutDate = snapshot.CheckoutDate
	resp.CheckInTime = snapshot.EffectiveCheckInTime()
	resp.CheckOutTime = snapshot.EffectiveCheckOutTime()

	if decision.CredentialsReleased {
		resp.LockCode = snapshot.LockCode
		resp.SafeCode = snapshot.SafeCode
	} else {
		resp.LockCode = maskedCredential
		resp.SafeCode = maskedCredential
	}

	return resp
}
