package stay

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultIdleTimeout is how long a session may go untouched before the
// sweeper reclaims it.
const DefaultIdleTimeout = 30 * time.Minute

// Registry tracks every live guest session. Sessions are created per rendered
// guest visit and reclaimed explicitly or after the idle timeout.
type Registry struct {
	provider    Provider
	clock       Clock
	evaluator   *Evaluator
	log         *logrus.Logger
	idleTimeout time.Duration

	// onStage, when set, is attached to every new session before its first
	// event is applied.
	onStage func(session *Session, previous, current Stage, decision AccessDecision)

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates a session registry.
func NewRegistry(provider Provider, clock Clock, evaluator *Evaluator, log *logrus.Logger) *Registry {
	if evaluator == nil {
		evaluator = NewEvaluator()
	}
	return &Registry{
		provider:    provider,
		clock:       clock,
		evaluator:   evaluator,
		log:         log,
		idleTimeout: DefaultIdleTimeout,
		sessions:    make(map[string]*Session),
	}
}

// SetIdleTimeout overrides the idle reclamation window.
func (r *Registry) SetIdleTimeout(d time.Duration) {
	if d > 0 {
		r.idleTimeout = d
	}
}

// OnStageChange registers a hook attached to every session created afterwards.
func (r *Registry) OnStageChange(fn func(session *Session, previous, current Stage, decision AccessDecision)) {
	r.onStage = fn
}

// Open creates and starts a session for a reservation. The subscription
// begins immediately; the one-shot fetch races it and the session's event
// loop serializes whichever lands first.
func (r *Registry) Open(reservationID string) *Session {
	id := uuid.NewString()
	session := newSession(id, reservationID, r.provider, r.clock, r.evaluator,
		r.log.WithField("session", id))

	if r.onStage != nil {
		hook := r.onStage
		session.AddStageListener(func(previous, current Stage, decision AccessDecision) {
			hook(session, previous, current, decision)
		})
	}

	r.mu.Lock()
	r.sessions[id] = session
	r.mu.Unlock()

	session.start()

	r.log.WithFields(logrus.Fields{
		"session":     id,
		"reservation": reservationID,
	}).Info("Guest session opened")

	return session
}

// Get returns a session by id, or nil when unknown.
func (r *Registry) Get(id string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

// Close tears down one session and removes it from the registry.
func (r *Registry) Close(id string) {
	r.mu.Lock()
	session := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if session != nil {
		session.Close()
		r.log.WithField("session", id).Info("Guest session closed")
	}
}

// CloseAll tears down every session. Used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep re-evaluates every live session and reclaims idle ones. The minute
// tick is what moves a session left open across midnight from one stage to
// the next without a reload; it re-polls the time source, not the store.
func (r *Registry) Sweep() {
	cutoff := time.Now().Add(-r.idleTimeout)

	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		sessions = append(sessions, session)
	}
	r.mu.RUnlock()

	for _, session := range sessions {
		if session.IdleSince().Before(cutoff) {
			r.Close(session.ID())
			continue
		}
		session.requestTick()
	}
}
