package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/guest-stay-portal/backend/internal/api/middleware"
	"github.com/guest-stay-portal/backend/internal/stay"
	ws "github.com/guest-stay-portal/backend/internal/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The portal is served from the same origin; reservation link
		// possession is the access control.
		return true
	},
}

// StaySessionStream returns a handler that upgrades to WebSocket and streams
// stage transitions for one guest session.
func StaySessionStream(hub *ws.Hub, registry *stay.Registry, log *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := mux.Vars(r)["sessionID"]
		session := registry.Get(sessionID)
		if session == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Unknown session")
			return
		}
		session.Touch()

		serveClient(hub, log, w, r, sessionID)
	}
}

// AdminStream returns a handler that streams every portal event, for the
// admin console.
func AdminStream(hub *ws.Hub, log *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveClient(hub, log, w, r, ws.TopicAll)
	}
}

func serveClient(hub *ws.Hub, log *logrus.Logger, w http.ResponseWriter, r *http.Request, topics ...string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := ws.NewClient(hub, topics...)
	hub.Register(client)

	go writePump(conn, client)
	go readPump(conn, client, hub, log)
}

// writePump pumps messages from the hub to the WebSocket connection.
func writePump(conn *websocket.Conn, client *ws.Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send():
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump pumps messages from the WebSocket connection to the hub.
func readPump(conn *websocket.Conn, client *ws.Client, hub *ws.Hub, log *logrus.Logger) {
	defer func() {
		hub.Unregister(client)
		conn.Close()
	}()

	conn.SetReadLimit(65536)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithError(err).Debug("WebSocket read error")
			}
			break
		}

		var msg ws.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			reply(hub, client, ws.NewMessage(ws.TypeError, ws.ErrorPayload{
				Code:    middleware.ErrBadRequest,
				Message: "Malformed message",
			}))
			continue
		}

		switch msg.Type {
		case ws.TypePing:
			reply(hub, client, ws.NewMessage(ws.TypePong, nil))
		default:
			reply(hub, client, ws.NewMessage(ws.TypeError, ws.ErrorPayload{
				Code:    middleware.ErrBadRequest,
				Message: "Unsupported message type",
			}))
		}
	}
}

// reply sends a response frame to one client through the hub, which is the
// only safe writer to the client's send channel.
func reply(hub *ws.Hub, client *ws.Client, msg ws.Message) {
	data, err := msg.JSON()
	if err != nil {
		return
	}
	hub.Send(client, data)
}
