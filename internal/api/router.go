// Package api provides HTTP routing and handlers for the REST API.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/guest-stay-portal/backend/internal/api/handlers"
	"github.com/guest-stay-portal/backend/internal/api/middleware"
	"github.com/guest-stay-portal/backend/internal/stay"
	"github.com/guest-stay-portal/backend/internal/store"
	ws "github.com/guest-stay-portal/backend/internal/websocket"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	DB          *store.DB
	Store       *store.ReservationStore
	Registry    *stay.Registry
	Hub         *ws.Hub
	Broadcaster *ws.EventBroadcaster
	Log         *logrus.Logger
	TrustedTime bool
	StaticDir   string
}

// NewRouter creates and configures the HTTP router with all API routes.
func NewRouter(deps Deps) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.Logging(deps.Log))
	r.Use(middleware.ErrorRecovery(deps.Log))

	api := r.PathPrefix("/api").Subrouter()

	// Health and status endpoints
	api.HandleFunc("/health", handlers.HealthCheck(deps.DB)).Methods("GET")
	api.HandleFunc("/status", handlers.Status(deps.Store, deps.Registry, deps.Hub, deps.TrustedTime)).Methods("GET")

	// Guest stay endpoints
	api.HandleFunc("/stay/{reservationID}/sessions", handlers.OpenStaySession(deps.Registry)).Methods("POST")
	api.HandleFunc("/stay/sessions/{sessionID}", handlers.GetStaySession(deps.Registry)).Methods("GET")
	api.HandleFunc("/stay/sessions/{sessionID}", handlers.CloseStaySession(deps.Registry)).Methods("DELETE")
	api.HandleFunc("/stay/sessions/{sessionID}/ws", handlers.StaySessionStream(deps.Hub, deps.Registry, deps.Log)).Methods("GET")

	// Admin reservation endpoints
	api.HandleFunc("/reservations", handlers.ListReservations(deps.Store)).Methods("GET")
	api.HandleFunc("/reservations", handlers.CreateReservation(deps.Store, deps.Broadcaster)).Methods("POST")
	api.HandleFunc("/reservations/{id}", handlers.GetReservation(deps.Store)).Methods("GET")
	api.HandleFunc("/reservations/{id}", handlers.UpdateReservation(deps.Store, deps.Broadcaster)).Methods("PUT")
	api.HandleFunc("/reservations/{id}", handlers.DeleteReservation(deps.Store, deps.Broadcaster)).Methods("DELETE")

	// Settings endpoints
	api.HandleFunc("/settings", handlers.GetSettings(deps.Store)).Methods("GET")
	api.HandleFunc("/settings", handlers.UpdateSettings(deps.Store, deps.Broadcaster)).Methods("PUT")

	// Admin event stream
	api.HandleFunc("/ws", handlers.AdminStream(deps.Hub, deps.Log)).Methods("GET")

	// Serve static frontend files
	if deps.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(deps.StaticDir)))
	}

	return r
}
