package stay

import (
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler drives the periodic re-evaluation of live sessions.
type Scheduler struct {
	cron     *cron.Cron
	registry *Registry
	log      *logrus.Logger
}

// NewScheduler creates a scheduler over the given registry.
func NewScheduler(registry *Registry, log *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		registry: registry,
		log:      log,
	}
}

// Start begins the sweep. Every minute each live session re-polls the time
// source and re-runs the access policy, catching midnight and hour-boundary
// transitions while a portal page stays open.
func (s *Scheduler) Start() {
	s.log.Info("Starting stay re-evaluation scheduler")

	s.cron.AddFunc("@every 1m", func() {
		s.registry.Sweep()
	})

	s.cron.Start()
}

// Stop gracefully shuts the scheduler down, waiting for an in-flight sweep.
func (s *Scheduler) Stop() {
	s.log.Info("Stopping stay re-evaluation scheduler")
	ctx := s.cron.Stop()
	<-ctx.Done()
}
