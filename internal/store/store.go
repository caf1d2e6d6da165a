package store

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/guest-stay-portal/backend/internal/stay"
	"github.com/guest-stay-portal/backend/internal/store/models"
)

// ReservationStore is the persistence collaborator the stay core consumes.
// It layers change notification over the repositories and applies the
// property-wide safe-code override before a snapshot leaves the store, so the
// override is transparent to the access policy.
//
// All reservation writes must go through the store, not the repository
// directly, or live sessions won't hear about them.
type ReservationStore struct {
	reservations *ReservationRepository
	settings     *SettingsRepository
	notifier     *notifier
	log          *logrus.Logger
}

// NewReservationStore creates the store over an open database.
func NewReservationStore(db *DB, log *logrus.Logger) *ReservationStore {
	return &ReservationStore{
		reservations: NewReservationRepository(db),
		settings:     NewSettingsRepository(db),
		notifier:     newNotifier(),
		log:          log,
	}
}

// FetchOnce resolves the current snapshot for a reservation. A nil snapshot
// with a nil error means the record does not exist.
func (s *ReservationStore) FetchOnce(ctx context.Context, reservationID string) (*stay.ReservationSnapshot, error) {
	res, err := s.reservations.GetByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	return s.buildSnapshot(ctx, res)
}

// Subscribe registers for changes to one reservation and fires once
// immediately with the current state. The returned function releases the
// subscription.
func (s *ReservationStore) Subscribe(reservationID string, fn func(*stay.ReservationSnapshot)) (func(), error) {
	release := s.notifier.subscribe(reservationID, fn)

	// Initial fire with current state, sequenced with change events so a
	// write landing mid-fire cannot be followed by the older snapshot. A read
	// failure here is not a change event; the one-shot fetch path reports it.
	go func() {
		err := s.notifier.deliverCurrent(fn, func() (*stay.ReservationSnapshot, error) {
			return s.FetchOnce(context.Background(), reservationID)
		})
		if err != nil {
			s.log.WithError(err).WithField("reservation", reservationID).
				Warn("Initial subscription read failed")
		}
	}()

	return release, nil
}

// Settings returns the current property settings.
func (s *ReservationStore) Settings(ctx context.Context) (*models.PropertySettings, error) {
	return s.settings.Get(ctx)
}

// UpdateSettings writes the property settings and republishes every watched
// reservation, since the safe-code override and default times feed snapshots.
func (s *ReservationStore) UpdateSettings(ctx context.Context, settings *models.PropertySettings) error {
	if err := s.settings.Update(ctx, settings); err != nil {
		return err
	}

	for _, id := range s.notifier.topics() {
		snapshot, err := s.FetchOnce(ctx, id)
		if err != nil {
			s.log.WithError(err).WithField("reservation", id).
				Warn("Republish after settings change failed")
			continue
		}
		s.notifier.publish(id, snapshot)
	}

	return nil
}

// CreateReservation inserts a reservation and notifies watchers.
func (s *ReservationStore) CreateReservation(ctx context.Context, res *models.Reservation) error {
	if err := s.reservations.Create(ctx, res); err != nil {
		return err
	}
	s.publishCurrent(ctx, res.ID)
	return nil
}

// GetReservation returns the stored record, nil when not found.
func (s *ReservationStore) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	return s.reservations.GetByID(ctx, id)
}

// ListReservations returns all stored reservations.
func (s *ReservationStore) ListReservations(ctx context.Context) ([]models.Reservation, error) {
	return s.reservations.List(ctx)
}

// UpdateReservation updates a reservation and notifies watchers with the new
// snapshot.
func (s *ReservationStore) UpdateReservation(ctx context.Context, res *models.Reservation) error {
	if err := s.reservations.Update(ctx, res); err != nil {
		return err
	}
	s.publishCurrent(ctx, res.ID)
	return nil
}

// DeleteReservation removes a reservation and signals deletion to watchers.
func (s *ReservationStore) DeleteReservation(ctx context.Context, id string) error {
	if err := s.reservations.Delete(ctx, id); err != nil {
		return err
	}
	s.notifier.publish(id, nil)
	return nil
}

// CountReservations returns the number of stored reservations.
func (s *ReservationStore) CountReservations(ctx context.Context) (int, error) {
	return s.reservations.Count(ctx)
}

func (s *ReservationStore) publishCurrent(ctx context.Context, id string) {
	snapshot, err := s.FetchOnce(ctx, id)
	if err != nil {
		s.log.WithError(err).WithField("reservation", id).Warn("Publish after write failed")
		return
	}
	s.notifier.publish(id, snapshot)
}

// buildSnapshot converts a stored reservation into the immutable snapshot the
// stay core consumes, resolving settings-level overrides and defaults.
func (s *ReservationStore) buildSnapshot(ctx context.Context, res *models.Reservation) (*stay.ReservationSnapshot, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	snapshot := &stay.ReservationSnapshot{
		ID:             res.ID,
		GuestName:      res.GuestName,
		LockCode:       res.LockCode,
		SafeCode:       res.SafeCode,
		CheckInDate:    deref(res.CheckInDate),
		CheckoutDate:   deref(res.CheckOutDate),
		CheckInTime:    settings.CheckInTime,
		CheckOutTime:   settings.CheckOutTime,
		WelcomeMessage: settings.WelcomeMessage,
	}

	if settings.SafeCodeOverride != "" {
		snapshot.SafeCode = settings.SafeCodeOverride
	}
	if res.CheckInTime != nil && *res.CheckInTime != "" {
		snapshot.CheckInTime = *res.CheckInTime
	}
	if res.CheckOutTime != nil && *res.CheckOutTime != "" {
		snapshot.CheckOutTime = *res.CheckOutTime
	}
	if res.WelcomeMessage != nil && *res.WelcomeMessage != "" {
		snapshot.WelcomeMessage = *res.WelcomeMessage
	}

	return snapshot, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
