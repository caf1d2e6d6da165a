package store

import (
	"sync"

	"github.com/guest-stay-portal/backend/internal/stay"
)

// notifier is the in-process change registry behind the subscribe contract.
// Listeners are keyed by reservation id; a nil snapshot signals deletion.
type notifier struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[string]map[int]func(*stay.ReservationSnapshot)

	// pubMu serializes deliveries. publish and deliverCurrent both hold it,
	// so an initial fire's read-then-deliver cannot interleave with a write's
	// change event and hand a listener stale state after newer state.
	pubMu sync.Mutex
}

func newNotifier() *notifier {
	return &notifier{
		listeners: make(map[string]map[int]func(*stay.ReservationSnapshot)),
	}
}

// subscribe registers a listener for one reservation id and returns its
// release function. Releasing is idempotent.
func (n *notifier) subscribe(reservationID string, fn func(*stay.ReservationSnapshot)) func() {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	if n.listeners[reservationID] == nil {
		n.listeners[reservationID] = make(map[int]func(*stay.ReservationSnapshot))
	}
	n.listeners[reservationID][id] = fn
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.listeners[reservationID], id)
			if len(n.listeners[reservationID]) == 0 {
				delete(n.listeners, reservationID)
			}
		})
	}
}

// publish delivers a change to every listener of the reservation. Delivery is
// synchronous so successive changes reach each listener in write order;
// listeners are expected to hand off to their own queues quickly.
func (n *notifier) publish(reservationID string, snapshot *stay.ReservationSnapshot) {
	n.pubMu.Lock()
	defer n.pubMu.Unlock()

	n.mu.RLock()
	fns := make([]func(*stay.ReservationSnapshot), 0, len(n.listeners[reservationID]))
	for _, fn := range n.listeners[reservationID] {
		fns = append(fns, fn)
	}
	n.mu.RUnlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}

// deliverCurrent reads the current state via fetch and hands it straight to fn
// under the publish lock, so the pair is atomic with respect to change events.
// Subscriptions use it for their immediate initial fire.
func (n *notifier) deliverCurrent(fn func(*stay.ReservationSnapshot), fetch func() (*stay.ReservationSnapshot, error)) error {
	n.pubMu.Lock()
	defer n.pubMu.Unlock()

	snapshot, err := fetch()
	if err != nil {
		return err
	}
	fn(snapshot)
	return nil
}

// topics returns the reservation ids that currently have listeners.
func (n *notifier) topics() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	ids := make([]string, 0, len(n.listeners))
	for id := range n.listeners {
		ids = append(ids, id)
	}
	return ids
}
