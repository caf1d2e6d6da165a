package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"

	"github.com/gorilla/mux"

	"github.com/guest-stay-portal/backend/internal/api/middleware"
	"github.com/guest-stay-portal/backend/internal/store"
	"github.com/guest-stay-portal/backend/internal/store/models"
	ws "github.com/guest-stay-portal/backend/internal/websocket"
)

var (
	datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timePattern = regexp.MustCompile(`^\d{2}:\d{2}$`)
)

// ReservationRequest is the admin payload for creating or updating a
// reservation.
type ReservationRequest struct {
	GuestName      string  `json:"guest_name"`
	LockCode       string  `json:"lock_code"`
	SafeCode       string  `json:"safe_code"`
	CheckInDate    *string `json:"check_in_date"`
	CheckOutDate   *string `json:"check_out_date"`
	CheckInTime    *string `json:"check_in_time"`
	CheckOutTime   *string `json:"check_out_time"`
	WelcomeMessage *string `json:"welcome_message"`
}

func (req *ReservationRequest) validate() (string, bool) {
	if req.GuestName == "" {
		return "guest_name is required", false
	}
	for _, d := range []*string{req.CheckInDate, req.CheckOutDate} {
		if d != nil && *d != "" && !datePattern.MatchString(*d) {
			return "dates must be YYYY-MM-DD", false
		}
	}
	for _, t := range []*string{req.CheckInTime, req.CheckOutTime} {
		if t != nil && *t != "" && !timePattern.MatchString(*t) {
			return "times must be HH:MM", false
		}
	}
	if req.CheckInDate != nil && req.CheckOutDate != nil &&
		*req.CheckInDate != "" && *req.CheckOutDate != "" &&
		*req.CheckOutDate < *req.CheckInDate {
		return "check_out_date must not precede check_in_date", false
	}
	return "", true
}

func (req *ReservationRequest) apply(res *models.Reservation) {
	res.GuestName = req.GuestName
	res.LockCode = req.LockCode
	res.SafeCode = req.SafeCode
	res.CheckInDate = req.CheckInDate
	res.CheckOutDate = req.CheckOutDate
	res.CheckInTime = req.CheckInTime
	res.CheckOutTime = req.CheckOutTime
	res.WelcomeMessage = req.WelcomeMessage
}

// ListReservations returns a handler that lists all reservations.
func ListReservations(st *store.ReservationStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reservations, err := st.ListReservations(r.Context())
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to list reservations")
			return
		}
		if reservations == nil {
			reservations = []models.Reservation{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(reservations)
	}
}

// CreateReservation returns a handler that creates a reservation.
func CreateReservation(st *store.ReservationStore, broadcaster *ws.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReservationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid JSON body")
			return
		}
		if msg, ok := req.validate(); !ok {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, msg)
			return
		}

		res := &models.Reservation{}
		req.apply(res)

		if err := st.CreateReservation(r.Context(), res); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to create reservation")
			return
		}

		if broadcaster != nil {
			broadcaster.BroadcastReservationUpdated(res.ID)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(res)
	}
}

// GetReservation returns a handler that fetches one reservation.
func GetReservation(st *store.ReservationStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := st.GetReservation(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to fetch reservation")
			return
		}
		if res == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Reservation not found")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(res)
	}
}

// UpdateReservation returns a handler that updates a reservation. Live guest
// sessions watching the record pick the change up through the store's
// subscription stream.
func UpdateReservation(st *store.ReservationStore, broadcaster *ws.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		existing, err := st.GetReservation(r.Context(), id)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to fetch reservation")
			return
		}
		if existing == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Reservation not found")
			return
		}

		var req ReservationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid JSON body")
			return
		}
		if msg, ok := req.validate(); !ok {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, msg)
			return
		}

		req.apply(existing)

		if err := st.UpdateReservation(r.Context(), existing); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to update reservation")
			return
		}

		if broadcaster != nil {
			broadcaster.BroadcastReservationUpdated(id)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(existing)
	}
}

// DeleteReservation returns a handler that removes a reservation. Deletion is
// terminal for any guest session watching it: the session blocks and stays
// blocked.
func DeleteReservation(st *store.ReservationStore, broadcaster *ws.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		existing, err := st.GetReservation(r.Context(), id)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to fetch reservation")
			return
		}
		if existing == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Reservation not found")
			return
		}

		if err := st.DeleteReservation(r.Context(), id); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to delete reservation")
			return
		}

		if broadcaster != nil {
			broadcaster.BroadcastReservationDeleted(id)
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
