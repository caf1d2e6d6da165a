package websocket

import (
	"encoding/json"
	"time"
)

// MessageType identifies the type of WebSocket message.
type MessageType string

const (
	// Server -> Client event types
	TypeStageChanged       MessageType = "stay.stage_changed"
	TypeReservationUpdated MessageType = "reservation.updated"
	TypeReservationDeleted MessageType = "reservation.deleted"
	TypeSettingsChanged    MessageType = "settings.changed"
	TypeNotification       MessageType = "notification"

	// Client -> Server command types
	TypePing MessageType = "ping"

	// Server -> Client response types
	TypePong  MessageType = "pong"
	TypeError MessageType = "error"
)

// Message represents a WebSocket message envelope.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   any         `json:"payload"`
}

// NewMessage creates a new message with the current timestamp.
func NewMessage(msgType MessageType, payload any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// JSON serializes the message to JSON bytes.
func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// StageChangedPayload is the payload for stay.stage_changed events.
// Credentials themselves never travel over the event stream; the client
// refetches the session state when the release flag flips.
type StageChangedPayload struct {
	SessionID           string `json:"session_id"`
	ReservationID       string `json:"reservation_id"`
	PreviousStage       string `json:"previous_stage"`
	Stage               string `json:"stage"`
	CredentialsReleased bool   `json:"credentials_released"`
	IsCheckoutToday     bool   `json:"is_checkout_today"`
}

// ReservationChangePayload is the payload for reservation.updated and
// reservation.deleted events.
type ReservationChangePayload struct {
	ReservationID string `json:"reservation_id"`
}

// NotificationPayload is the payload for notification events.
type NotificationPayload struct {
	Level   string `json:"level"` // info, warning, error, success
	Title   string `json:"title"`
	Message string `json:"message"`
}

// ErrorPayload is the payload for error messages.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
