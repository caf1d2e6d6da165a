package websocket_test

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ws "github.com/guest-stay-portal/backend/internal/websocket"
)

func newTestHub() *ws.Hub {
	log := logrus.New()
	log.SetOutput(io.Discard)
	hub := ws.NewHub(log)
	go hub.Run()
	return hub
}

func receive(t *testing.T, ch chan []byte) []byte {
	t.Helper()
	select {
	case data := <-ch:
		return data
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return nil
	}
}

func TestPublishRoutesByTopic(t *testing.T) {
	hub := newTestHub()

	guest := ws.NewClient(hub, "session-1")
	admin := ws.NewClient(hub, ws.TopicAll)
	hub.Register(guest)
	hub.Register(admin)

	hub.Publish("session-1", []byte("one"))
	assert.Equal(t, "one", string(receive(t, guest.Send())))
	assert.Equal(t, "one", string(receive(t, admin.Send())))

	hub.Publish("session-2", []byte("two"))
	assert.Equal(t, "two", string(receive(t, admin.Send())))

	select {
	case data := <-guest.Send():
		t.Fatalf("message for another session delivered: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSendTargetsOneClient(t *testing.T) {
	hub := newTestHub()

	guest := ws.NewClient(hub, "session-1")
	admin := ws.NewClient(hub, ws.TopicAll)
	hub.Register(guest)
	hub.Register(admin)

	hub.Send(guest, []byte("pong"))
	assert.Equal(t, "pong", string(receive(t, guest.Send())))

	// Direct sends bypass fanout entirely, even for TopicAll subscribers.
	select {
	case data := <-admin.Send():
		t.Fatalf("direct send reached another client: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSendAfterUnregisterIsDropped(t *testing.T) {
	hub := newTestHub()

	client := ws.NewClient(hub, "session-1")
	hub.Register(client)
	hub.Unregister(client)

	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)

	// The client's send channel is closed; the hub must drop this silently.
	hub.Send(client, []byte("late"))
}
