package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/guest-stay-portal/backend/internal/stay"
	"github.com/guest-stay-portal/backend/internal/store"
	ws "github.com/guest-stay-portal/backend/internal/websocket"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status      string `json:"status"`
	DBConnected bool   `json:"db_connected"`
}

// HealthCheck returns a handler that performs a health check.
func HealthCheck(db *store.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbConnected := db.Ping() == nil

		status := "healthy"
		if !dbConnected {
			status = "degraded"
		}

		response := HealthResponse{
			Status:      status,
			DBConnected: dbConnected,
		}

		w.Header().Set("Content-Type", "application/json")
		if status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(response)
	}
}

// StatusResponse represents the system status response.
type StatusResponse struct {
	Reservations     int  `json:"reservations"`
	LiveSessions     int  `json:"live_sessions"`
	WebSocketClients int  `json:"websocket_clients"`
	TrustedTime      bool `json:"trusted_time"`
}

// Status returns a handler that provides system status information.
func Status(st *store.ReservationStore, registry *stay.Registry, hub *ws.Hub, trustedTime bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := st.CountReservations(r.Context())
		if err != nil {
			count = -1
		}

		response := StatusResponse{
			Reservations:     count,
			LiveSessions:     registry.Count(),
			WebSocketClients: hub.ClientCount(),
			TrustedTime:      trustedTime,
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}
}
