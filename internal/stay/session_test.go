package stay_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guest-stay-portal/backend/internal/stay"
)

// fakeProvider is an in-memory stand-in for the reservation store.
type fakeProvider struct {
	mu            sync.Mutex
	snapshot      *stay.ReservationSnapshot
	fetchErr      error
	fetchDelay    time.Duration
	immediateFire bool
	subscribers   []func(*stay.ReservationSnapshot)
	released      int
}

func newFakeProvider(snapshot *stay.ReservationSnapshot) *fakeProvider {
	return &fakeProvider{snapshot: snapshot, immediateFire: true}
}

func (p *fakeProvider) FetchOnce(ctx context.Context, reservationID string) (*stay.ReservationSnapshot, error) {
	if p.fetchDelay > 0 {
		select {
		case <-time.After(p.fetchDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	return p.snapshot, nil
}

func (p *fakeProvider) Subscribe(reservationID string, fn func(*stay.ReservationSnapshot)) (func(), error) {
	p.mu.Lock()
	p.subscribers = append(p.subscribers, fn)
	current := p.snapshot
	fire := p.immediateFire && p.fetchErr == nil
	p.mu.Unlock()

	if fire {
		fn(current)
	}

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.released++
	}, nil
}

// push delivers a remote change to every subscriber, like an admin write.
func (p *fakeProvider) push(snapshot *stay.ReservationSnapshot) {
	p.mu.Lock()
	p.snapshot = snapshot
	subscribers := append([]func(*stay.ReservationSnapshot){}, p.subscribers...)
	p.mu.Unlock()

	for _, fn := range subscribers {
		fn(snapshot)
	}
}

func (p *fakeProvider) releaseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now(ctx context.Context) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func testRegistry(t *testing.T, provider stay.Provider, clk stay.Clock) *stay.Registry {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	registry := stay.NewRegistry(provider, clk, stay.NewEvaluatorWithLocation(time.UTC), log)
	t.Cleanup(registry.CloseAll)
	return registry
}

func midStayInstant() time.Time {
	return time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
}

func TestSessionResolvesAfterFetch(t *testing.T) {
	provider := newFakeProvider(snapshotJuneStay())
	clk := &fakeClock{now: midStayInstant()}
	registry := testRegistry(t, provider, clk)

	session := registry.Open("res-1")

	require.Eventually(t, func() bool {
		return session.Stage() == stay.StageMiddle
	}, time.Second, 5*time.Millisecond)

	assert.True(t, session.IsTimeVerified())
	assert.True(t, session.Decision().CredentialsReleased)
	require.NotNil(t, session.Snapshot())
	assert.Equal(t, "4821", session.Snapshot().LockCode)
}

func TestSessionBlockedWhenNotFound(t *testing.T) {
	provider := newFakeProvider(nil)
	registry := testRegistry(t, provider, &fakeClock{now: midStayInstant()})

	session := registry.Open("missing")

	require.Eventually(t, func() bool {
		return session.Stage() == stay.StageBlocked
	}, time.Second, 5*time.Millisecond)

	assert.True(t, session.IsTimeVerified())
	assert.False(t, session.Decision().CredentialsReleased)
	assert.Nil(t, session.Snapshot())
}

func TestSessionBlockedOnFetchErrorThenRecovers(t *testing.T) {
	provider := newFakeProvider(snapshotJuneStay())
	provider.fetchErr = errors.New("connection refused")
	registry := testRegistry(t, provider, &fakeClock{now: midStayInstant()})

	session := registry.Open("res-1")

	require.Eventually(t, func() bool {
		return session.Stage() == stay.StageBlocked
	}, time.Second, 5*time.Millisecond)

	// A live subscription update carrying a real record supersedes the
	// failed fetch.
	provider.mu.Lock()
	provider.fetchErr = nil
	provider.mu.Unlock()
	provider.push(snapshotJuneStay())

	require.Eventually(t, func() bool {
		return session.Stage() == stay.StageMiddle
	}, time.Second, 5*time.Millisecond)
}

func TestFetchErrorAfterUpdateStaysBlockedAcrossSweep(t *testing.T) {
	provider := newFakeProvider(snapshotJuneStay())
	provider.fetchDelay = 200 * time.Millisecond
	registry := testRegistry(t, provider, &fakeClock{now: midStayInstant()})

	session := registry.Open("res-1")

	// The one-shot fetch is still in flight; make it fail once it lands.
	provider.mu.Lock()
	provider.fetchErr = errors.New("connection refused")
	provider.mu.Unlock()

	// The subscription's immediate fire resolves the stay first.
	require.Eventually(t, func() bool {
		return session.Stage() == stay.StageMiddle
	}, time.Second, 5*time.Millisecond)

	// The later fetch failure wins, arrival order over freshness of data.
	require.Eventually(t, func() bool {
		return session.Stage() == stay.StageBlocked
	}, time.Second, 5*time.Millisecond)

	// A sweep tick re-evaluates from cached state only; it must not lift the
	// block, that takes a live update carrying a real record.
	registry.Sweep()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stay.StageBlocked, session.Stage())
	assert.Nil(t, session.Snapshot())

	provider.push(snapshotJuneStay())

	require.Eventually(t, func() bool {
		return session.Stage() == stay.StageMiddle
	}, time.Second, 5*time.Millisecond)
}

func TestDeletionIsTerminal(t *testing.T) {
	provider := newFakeProvider(snapshotJuneStay())
	registry := testRegistry(t, provider, &fakeClock{now: midStayInstant()})

	session := registry.Open("res-1")

	require.Eventually(t, func() bool {
		return session.Stage() == stay.StageMiddle
	}, time.Second, 5*time.Millisecond)

	provider.push(nil)

	require.Eventually(t, func() bool {
		return session.Stage() == stay.StageBlocked
	}, time.Second, 5*time.Millisecond)

	// No later event, not even a restored record or a sweep, resurrects a
	// deleted reservation's session.
	provider.push(snapshotJuneStay())
	registry.Sweep()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stay.StageBlocked, session.Stage())
	assert.Nil(t, session.Snapshot())
}

func TestUpdateRefreshesCredentials(t *testing.T) {
	provider := newFakeProvider(snapshotJuneStay())
	registry := testRegistry(t, provider, &fakeClock{now: midStayInstant()})

	session := registry.Open("res-1")

	require.Eventually(t, func() bool {
		return session.Stage() == stay.StageMiddle
	}, time.Second, 5*time.Millisecond)

	changed := snapshotJuneStay()
	changed.LockCode = "7777"
	provider.push(changed)

	require.Eventually(t, func() bool {
		snapshot := session.Snapshot()
		return snapshot != nil && snapshot.LockCode == "7777"
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, stay.StageMiddle, session.Stage())
}

func TestSweepMovesStageAcrossMidnight(t *testing.T) {
	provider := newFakeProvider(snapshotJuneStay())
	clk := &fakeClock{now: time.Date(2024, 5, 31, 23, 59, 0, 0, time.UTC)}
	registry := testRegistry(t, provider, clk)

	session := registry.Open("res-1")

	require.Eventually(t, func() bool {
		return session.Stage() == stay.StagePreCheckin
	}, time.Second, 5*time.Millisecond)

	// Midnight rolls over while the page stays open; the sweep re-polls the
	// time source and advances the stage without any data refetch.
	clk.Set(time.Date(2024, 6, 1, 0, 1, 0, 0, time.UTC))
	registry.Sweep()

	require.Eventually(t, func() bool {
		return session.Stage() == stay.StageCheckin
	}, time.Second, 5*time.Millisecond)
}

func TestCloseReleasesSubscription(t *testing.T) {
	provider := newFakeProvider(snapshotJuneStay())
	registry := testRegistry(t, provider, &fakeClock{now: midStayInstant()})

	session := registry.Open("res-1")
	registry.Close(session.ID())

	assert.Equal(t, 1, provider.releaseCount())
	assert.Nil(t, registry.Get(session.ID()))
}

func TestLateFetchDiscardedAfterClose(t *testing.T) {
	provider := newFakeProvider(snapshotJuneStay())
	provider.immediateFire = false
	provider.fetchDelay = 50 * time.Millisecond
	registry := testRegistry(t, provider, &fakeClock{now: midStayInstant()})

	session := registry.Open("res-1")
	registry.Close(session.ID())

	// The in-flight fetch lands after teardown and must be dropped.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, stay.StageLoading, session.Stage())
	assert.False(t, session.IsTimeVerified())
}

func TestStageChangeHookFires(t *testing.T) {
	provider := newFakeProvider(snapshotJuneStay())
	registry := testRegistry(t, provider, &fakeClock{now: midStayInstant()})

	var mu sync.Mutex
	var transitions [][2]stay.Stage
	registry.OnStageChange(func(session *stay.Session, previous, current stay.Stage, decision stay.AccessDecision) {
		mu.Lock()
		transitions = append(transitions, [2]stay.Stage{previous, current})
		mu.Unlock()
	})

	registry.Open("res-1")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(transitions) > 0
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, [2]stay.Stage{stay.StageLoading, stay.StageMiddle}, transitions[0])
}

func TestSweepReclaimsIdleSessions(t *testing.T) {
	provider := newFakeProvider(snapshotJuneStay())
	registry := testRegistry(t, provider, &fakeClock{now: midStayInstant()})
	registry.SetIdleTimeout(time.Millisecond)

	session := registry.Open("res-1")

	time.Sleep(10 * time.Millisecond)
	registry.Sweep()

	assert.Nil(t, registry.Get(session.ID()))
	assert.Equal(t, 1, provider.releaseCount())
}
