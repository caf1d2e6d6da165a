package websocket

import (
	"github.com/sirupsen/logrus"
)

// EventBroadcaster handles broadcasting WebSocket events.
type EventBroadcaster struct {
	hub *Hub
	log *logrus.Logger
}

// NewEventBroadcaster creates a new event broadcaster.
func NewEventBroadcaster(hub *Hub, log *logrus.Logger) *EventBroadcaster {
	return &EventBroadcaster{hub: hub, log: log}
}

// BroadcastStageChanged sends a stage transition to the session's topic.
func (b *EventBroadcaster) BroadcastStageChanged(payload StageChangedPayload) {
	msg := NewMessage(TypeStageChanged, payload)
	b.publish(payload.SessionID, msg)
}

// BroadcastReservationUpdated announces a reservation change to admin clients.
func (b *EventBroadcaster) BroadcastReservationUpdated(reservationID string) {
	msg := NewMessage(TypeReservationUpdated, ReservationChangePayload{ReservationID: reservationID})
	b.publish(TopicAll, msg)
}

// BroadcastReservationDeleted announces a reservation deletion to admin clients.
func (b *EventBroadcaster) BroadcastReservationDeleted(reservationID string) {
	msg := NewMessage(TypeReservationDeleted, ReservationChangePayload{ReservationID: reservationID})
	b.publish(TopicAll, msg)
}

// BroadcastSettingsChanged announces a property settings change.
func (b *EventBroadcaster) BroadcastSettingsChanged() {
	msg := NewMessage(TypeSettingsChanged, nil)
	b.publish(TopicAll, msg)
}

// BroadcastNotification sends a notification to all connected clients.
func (b *EventBroadcaster) BroadcastNotification(level, title, message string) {
	msg := NewMessage(TypeNotification, NotificationPayload{
		Level:   level,
		Title:   title,
		Message: message,
	})
	b.publish(TopicAll, msg)
}

func (b *EventBroadcaster) publish(topic string, msg Message) {
	data, err := msg.JSON()
	if err != nil {
		b.log.WithError(err).Error("Encoding WebSocket message failed")
		return
	}
	b.hub.Publish(topic, data)
}
