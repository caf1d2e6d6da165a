package store_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guest-stay-portal/backend/internal/stay"
	"github.com/guest-stay-portal/backend/internal/store"
	"github.com/guest-stay-portal/backend/internal/store/models"
)

func newTestStore(t *testing.T) *store.ReservationStore {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	db, err := store.NewDB(t.TempDir() + "/portal.db")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, store.RunMigrations(db, log))

	return store.NewReservationStore(db, log)
}

func strPtr(s string) *string { return &s }

func sampleReservation() *models.Reservation {
	return &models.Reservation{
		GuestName:    "Ada Lovelace",
		LockCode:     "4821",
		SafeCode:     "9900",
		CheckInDate:  strPtr("2024-06-01"),
		CheckOutDate: strPtr("2024-06-05"),
	}
}

// collector gathers subscription callbacks for assertions.
type collector struct {
	mu        sync.Mutex
	snapshots []*stay.ReservationSnapshot
}

func (c *collector) fn(snapshot *stay.ReservationSnapshot) {
	c.mu.Lock()
	c.snapshots = append(c.snapshots, snapshot)
	c.mu.Unlock()
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.snapshots)
}

func (c *collector) last() *stay.ReservationSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.snapshots) == 0 {
		return nil
	}
	return c.snapshots[len(c.snapshots)-1]
}

func (c *collector) all() []*stay.ReservationSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*stay.ReservationSnapshot{}, c.snapshots...)
}

func TestFetchOnceRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	res := sampleReservation()
	require.NoError(t, st.CreateReservation(ctx, res))
	require.NotEmpty(t, res.ID)

	snapshot, err := st.FetchOnce(ctx, res.ID)
	require.NoError(t, err)
	require.NotNil(t, snapshot)

	assert.Equal(t, "Ada Lovelace", snapshot.GuestName)
	assert.Equal(t, "4821", snapshot.LockCode)
	assert.Equal(t, "9900", snapshot.SafeCode)
	assert.Equal(t, "2024-06-01", snapshot.CheckInDate)
	assert.Equal(t, "2024-06-05", snapshot.CheckoutDate)
	assert.Equal(t, stay.DefaultCheckInTime, snapshot.CheckInTime)
	assert.Equal(t, stay.DefaultCheckOutTime, snapshot.CheckOutTime)
}

func TestFetchOnceNotFound(t *testing.T) {
	st := newTestStore(t)

	snapshot, err := st.FetchOnce(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, snapshot)
}

func TestSubscribeFiresImmediatelyWithCurrentState(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	res := sampleReservation()
	require.NoError(t, st.CreateReservation(ctx, res))

	var c collector
	release, err := st.Subscribe(res.ID, c.fn)
	require.NoError(t, err)
	defer release()

	require.Eventually(t, func() bool { return c.count() == 1 }, time.Second, 5*time.Millisecond)
	require.NotNil(t, c.last())
	assert.Equal(t, "4821", c.last().LockCode)
}

func TestSubscribeSeesUpdateAndDeletion(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	res := sampleReservation()
	require.NoError(t, st.CreateReservation(ctx, res))

	var c collector
	release, err := st.Subscribe(res.ID, c.fn)
	require.NoError(t, err)
	defer release()

	require.Eventually(t, func() bool { return c.count() == 1 }, time.Second, 5*time.Millisecond)

	res.LockCode = "7777"
	require.NoError(t, st.UpdateReservation(ctx, res))

	require.Eventually(t, func() bool { return c.count() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "7777", c.last().LockCode)

	require.NoError(t, st.DeleteReservation(ctx, res.ID))

	require.Eventually(t, func() bool { return c.count() == 3 }, time.Second, 5*time.Millisecond)
	assert.Nil(t, c.last())
}

func TestSubscribeInitialFireSequencedWithWrites(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// Subscribe while a write is in flight, repeatedly. The initial fire runs
	// under the same lock as change delivery, so a listener must never see the
	// old code after the new one, whichever lands first.
	for i := 0; i < 20; i++ {
		res := sampleReservation()
		require.NoError(t, st.CreateReservation(ctx, res))

		var c collector
		release, err := st.Subscribe(res.ID, c.fn)
		require.NoError(t, err)

		res.LockCode = "7777"
		require.NoError(t, st.UpdateReservation(ctx, res))

		require.Eventually(t, func() bool {
			last := c.last()
			return last != nil && last.LockCode == "7777"
		}, time.Second, time.Millisecond)

		release()

		sawNew := false
		for _, snapshot := range c.all() {
			require.NotNil(t, snapshot)
			if snapshot.LockCode == "7777" {
				sawNew = true
				continue
			}
			assert.False(t, sawNew, "stale snapshot delivered after newer state")
		}
	}
}

func TestReleasedSubscriptionStopsDelivering(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	res := sampleReservation()
	require.NoError(t, st.CreateReservation(ctx, res))

	var c collector
	release, err := st.Subscribe(res.ID, c.fn)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return c.count() == 1 }, time.Second, 5*time.Millisecond)

	release()
	release() // releasing twice is fine

	res.LockCode = "0000"
	require.NoError(t, st.UpdateReservation(ctx, res))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, c.count())
}

func TestSafeCodeOverrideAppliedToSnapshots(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	res := sampleReservation()
	require.NoError(t, st.CreateReservation(ctx, res))

	require.NoError(t, st.UpdateSettings(ctx, &models.PropertySettings{
		CheckInTime:      "15:00",
		CheckOutTime:     "10:00",
		SafeCodeOverride: "1234",
	}))

	snapshot, err := st.FetchOnce(ctx, res.ID)
	require.NoError(t, err)
	require.NotNil(t, snapshot)

	// The property-wide override replaces the per-reservation safe code and
	// the default times, transparently to the policy.
	assert.Equal(t, "1234", snapshot.SafeCode)
	assert.Equal(t, "15:00", snapshot.CheckInTime)
	assert.Equal(t, "10:00", snapshot.CheckOutTime)
}

func TestSettingsChangeRepublishesWatchedReservations(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	res := sampleReservation()
	require.NoError(t, st.CreateReservation(ctx, res))

	var c collector
	release, err := st.Subscribe(res.ID, c.fn)
	require.NoError(t, err)
	defer release()

	require.Eventually(t, func() bool { return c.count() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, st.UpdateSettings(ctx, &models.PropertySettings{
		CheckInTime:      stay.DefaultCheckInTime,
		CheckOutTime:     stay.DefaultCheckOutTime,
		SafeCodeOverride: "5555",
	}))

	require.Eventually(t, func() bool { return c.count() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "5555", c.last().SafeCode)
}

func TestReservationTimesOverrideSettings(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	res := sampleReservation()
	res.CheckInTime = strPtr("16:30")
	require.NoError(t, st.CreateReservation(ctx, res))

	snapshot, err := st.FetchOnce(ctx, res.ID)
	require.NoError(t, err)
	require.NotNil(t, snapshot)

	assert.Equal(t, "16:30", snapshot.CheckInTime)
	assert.Equal(t, stay.DefaultCheckOutTime, snapshot.CheckOutTime)
}
