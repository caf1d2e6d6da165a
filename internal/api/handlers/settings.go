package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/guest-stay-portal/backend/internal/api/middleware"
	"github.com/guest-stay-portal/backend/internal/store"
	"github.com/guest-stay-portal/backend/internal/store/models"
	ws "github.com/guest-stay-portal/backend/internal/websocket"
)

// GetSettings returns a handler that reports the property settings.
func GetSettings(st *store.ReservationStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settings, err := st.Settings(r.Context())
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to load settings")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(settings)
	}
}

// UpdateSettings returns a handler that writes the property settings.
// A safe-code override set here replaces every reservation's safe code in the
// snapshots handed to live sessions.
func UpdateSettings(st *store.ReservationStore, broadcaster *ws.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var settings models.PropertySettings
		if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid JSON body")
			return
		}

		if settings.CheckInTime != "" && !timePattern.MatchString(settings.CheckInTime) {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "check_in_time must be HH:MM")
			return
		}
		if settings.CheckOutTime != "" && !timePattern.MatchString(settings.CheckOutTime) {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "check_out_time must be HH:MM")
			return
		}

		if err := st.UpdateSettings(r.Context(), &settings); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to update settings")
			return
		}

		if broadcaster != nil {
			broadcaster.BroadcastSettingsChanged()
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(settings)
	}
}
