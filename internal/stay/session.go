package stay

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Provider is the read/subscribe contract of the persistence layer.
type Provider interface {
	// FetchOnce resolves the current reservation record exactly once.
	// A nil snapshot with a nil error means the record does not exist;
	// a non-nil error means the fetch itself failed.
	FetchOnce(ctx context.Context, reservationID string) (*ReservationSnapshot, error)

	// Subscribe registers for every remote change of the record and fires once
	// immediately with the current state. A nil snapshot signals deletion.
	// The returned function releases the subscription.
	Subscribe(reservationID string, fn func(*ReservationSnapshot)) (func(), error)
}

// Clock supplies the current instant. Implementations may consult a network
// authority; they must fall back to the local clock rather than fail.
type Clock interface {
	Now(ctx context.Context) time.Time
}

// StageListener observes stage transitions of a session.
type StageListener func(previous, current Stage, decision AccessDecision)

const fetchTimeout = 10 * time.Second

type eventKind int

const (
	eventFetchResult eventKind = iota
	eventFetchError
	eventUpdate
	eventDeleted
	eventTick
)

type sessionEvent struct {
	kind     eventKind
	snapshot *ReservationSnapshot
}

// blockReason distinguishes why a session is blocked. Deletion is terminal;
// a not-found or failed fetch may still be superseded by a live non-nil
// subscription update carrying a real record.
type blockReason int

const (
	blockNone blockReason = iota
	blockFetchFailed
	blockNotFound
	blockDeleted
)

// Session owns the resolved access state for one guest for the lifetime of one
// portal session. It merges the one-shot fetch with the realtime subscription,
// applies events strictly in arrival order, and re-evaluates the policy on
// timer ticks so day boundaries are caught while the session stays open.
//
// Nothing outside the session may set the stage; all mutation flows through
// policy evaluation driven by clock ticks and subscription events.
type Session struct {
	id            string
	reservationID string

	provider  Provider
	clock     Clock
	evaluator *Evaluator
	log       *logrus.Entry

	events      chan sessionEvent
	done        chan struct{}
	closeOnce   sync.Once
	unsubscribe func()

	mu           sync.RWMutex
	snapshot     *ReservationSnapshot
	decision     AccessDecision
	timeVerified bool
	reason       blockReason
	lastAccess   time.Time
	listeners    []StageListener
}

func newSession(id, reservationID string, provider Provider, clock Clock, evaluator *Evaluator, log *logrus.Entry) *Session {
	return &Session{
		id:            id,
		reservationID: reservationID,
		provider:      provider,
		clock:         clock,
		evaluator:     evaluator,
		log:           log,
		events:        make(chan sessionEvent, 16),
		done:          make(chan struct{}),
		decision:      AccessDecision{Stage: StageLoading},
		lastAccess:    time.Now(),
	}
}

// start begins the subscription immediately, then launches the one-shot fetch.
// The two may complete in any relative order; the event loop serializes them.
func (s *Session) start() {
	unsubscribe, err := s.provider.Subscribe(s.reservationID, func(snapshot *ReservationSnapshot) {
		if snapshot == nil {
			s.dispatch(sessionEvent{kind: eventDeleted})
			return
		}
		s.dispatch(sessionEvent{kind: eventUpdate, snapshot: snapshot})
	})
	if err != nil {
		s.log.WithError(err).Warn("Subscription failed, blocking session")
		s.dispatch(sessionEvent{kind: eventFetchError})
	} else {
		s.unsubscribe = unsubscribe
	}

	go s.run()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		snapshot, err := s.provider.FetchOnce(ctx, s.reservationID)
		if err != nil {
			s.log.WithError(err).Warn("Reservation fetch failed")
			s.dispatch(sessionEvent{kind: eventFetchError})
			return
		}
		s.dispatch(sessionEvent{kind: eventFetchResult, snapshot: snapshot})
	}()
}

// dispatch queues an event, discarding it if the session is already torn down.
// An in-flight fetch that lands after Close is dropped here.
func (s *Session) dispatch(ev sessionEvent) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// requestTick asks for a re-evaluation. Non-blocking: if the queue is full a
// re-evaluation is already pending and another one adds nothing.
func (s *Session) requestTick() {
	select {
	case s.events <- sessionEvent{kind: eventTick}:
	default:
	}
}

func (s *Session) run() {
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.events:
			s.apply(ev)
		}
	}
}

// apply advances the merge state machine by one event. Events are applied in
// arrival order; deletion wins over everything and is terminal.
func (s *Session) apply(ev sessionEvent) {
	// The trusted clock may hit the network; consult it before taking the
	// lock so readers never wait on a time authority.
	var now time.Time
	switch ev.kind {
	case eventFetchResult, eventUpdate, eventTick:
		now = s.clock.Now(context.Background())
	}

	s.mu.Lock()
	if s.reason == blockDeleted {
		// Terminal for this reservation: nothing re-arms after a deletion.
		s.mu.Unlock()
		return
	}

	previous := s.decision.Stage

	switch ev.kind {
	case eventDeleted:
		s.snapshot = nil
		s.reason = blockDeleted
		s.decision = AccessDecision{Stage: StageBlocked}
		s.timeVerified = true

	case eventFetchError:
		// Drop any earlier snapshot too: a tick re-resolves from the cached
		// snapshot, and only a live non-nil update may lift this block.
		s.snapshot = nil
		s.reason = blockFetchFailed
		s.decision = AccessDecision{Stage: StageBlocked}
		s.timeVerified = true

	case eventFetchResult:
		if ev.snapshot == nil {
			s.snapshot = nil
			s.reason = blockNotFound
			s.decision = AccessDecision{Stage: StageBlocked}
			s.timeVerified = true
			break
		}
		s.resolveLocked(ev.snapshot, now)

	case eventUpdate:
		// A live record supersedes a not-found or failed fetch, but the
		// policy decides the stage; an already-expired stay stays expired.
		s.resolveLocked(ev.snapshot, now)

	case eventTick:
		if s.snapshot == nil {
			s.mu.Unlock()
			return
		}
		s.resolveLocked(s.snapshot, now)
	}

	current := s.decision
	listeners := s.listeners
	s.mu.Unlock()

	if previous != current.Stage {
		s.log.WithFields(logrus.Fields{
			"session":     s.id,
			"reservation": s.reservationID,
			"from":        previous,
			"to":          current.Stage,
		}).Info("Stage transition")

		for _, listener := range listeners {
			listener(previous, current.Stage, current)
		}
	}
}

// resolveLocked re-runs the policy against a snapshot. Callers hold s.mu and
// supply an instant obtained before locking.
func (s *Session) resolveLocked(snapshot *ReservationSnapshot, now time.Time) {
	s.snapshot = snapshot
	s.reason = blockNone
	s.decision = s.evaluator.Resolve(snapshot, now)
	s.timeVerified = true
}

// Close tears the session down: the subscription is released and any events
// still in flight are discarded on arrival.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
	})
}

// ID returns the portal session identifier.
func (s *Session) ID() string {
	return s.id
}

// ReservationID returns the reservation this session resolves.
func (s *Session) ReservationID() string {
	return s.reservationID
}

// Decision returns the current access decision.
func (s *Session) Decision() AccessDecision {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.decision
}

// Stage returns the current stage.
func (s *Session) Stage() Stage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.decision.Stage
}

// IsTimeVerified reports whether at least one evaluation has completed.
// Until then the stage is still the loading placeholder and should not be
// presented as a final determination.
func (s *Session) IsTimeVerified() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timeVerified
}

// Snapshot returns a copy of the current reservation snapshot, or nil when
// none is resolved.
func (s *Session) Snapshot() *ReservationSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return nil
	}
	copied := *s.snapshot
	return &copied
}

// AddStageListener registers a listener for stage transitions.
func (s *Session) AddStageListener(listener StageListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, listener)
}

// Touch records guest activity, deferring idle cleanup.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccess = time.Now()
}

// IdleSince returns the time of the last guest activity.
func (s *Session) IdleSince() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAccess
}
