package handlers_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guest-stay-portal/backend/internal/api/handlers"
	ws "github.com/guest-stay-portal/backend/internal/websocket"
)

func dialAdminStream(t *testing.T) *websocket.Conn {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	hub := ws.NewHub(log)
	go hub.Run()

	server := httptest.NewServer(handlers.AdminStream(hub, log))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func TestStreamAnswersClientPing(t *testing.T) {
	conn := dialAdminStream(t)

	require.NoError(t, conn.WriteJSON(ws.NewMessage(ws.TypePing, nil)))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var msg ws.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, ws.TypePong, msg.Type)
}

func TestStreamRejectsUnknownFrames(t *testing.T) {
	conn := dialAdminStream(t)

	require.NoError(t, conn.WriteJSON(ws.NewMessage("bogus", nil)))

	// The connection survives; the client gets a structured error frame.
	conn.SetReadDeadline(time.Now().Add(time.Second))
	var msg ws.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, ws.TypeError, msg.Type)

	require.NoError(t, conn.WriteJSON(ws.NewMessage(ws.TypePing, nil)))
	conn.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, ws.TypePong, msg.Type)
}
