package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/amaumene/geowatch/internal/controllers"
	"github.com/amaumene/geowatch/internal/export"
	"github.com/amaumene/geowatch/internal/services/platform"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ErrRunInProgress is returned when a run is requested while another one is active
var ErrRunInProgress = errors.New("a scrape run is already in progress")

// Scheduler runs scrapes of every platform on a cron schedule, one run at a time
type Scheduler struct {
	cron     *cron.Cron
	schedule string
	scrape   *controllers.ScrapeController
	exporter *export.Exporter
	clients  []platform.Client
	logger   *logrus.Logger

	ctx     context.Context
	runMu   sync.Mutex
	running atomic.Bool

	lastMu   sync.RWMutex
	lastRuns map[string]controllers.RunSummary
}

// NewScheduler creates a new scheduler. exporter may be nil to skip exports.
func NewScheduler(schedule string, scrape *controllers.ScrapeController, exporter *export.Exporter, clients []platform.Client, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		schedule: schedule,
		scrape:   scrape,
		exporter: exporter,
		clients:  clients,
		logger:   logger,
		ctx:      context.Background(),
		lastRuns: make(map[string]controllers.RunSummary),
	}
}

// Start registers the scrape job and starts the cron loop.
// Runs started by the scheduler are cancelled with ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.WithField("schedule", s.schedule).Info("Starting scheduler")
	s.ctx = ctx

	_, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.RunOnce(ctx); errors.Is(err, ErrRunInProgress) {
			s.logger.Warn("Previous scrape run still in progress, skipping")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add scrape job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Scheduler started")
	return nil
}

// Stop stops the scheduler and waits for a running job to return,
// including one started by Trigger
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	<-s.cron.Stop().Done()
	s.runMu.Lock()
	defer s.runMu.Unlock()
}

// Trigger starts a run in the background
func (s *Scheduler) Trigger() error {
	if !s.runMu.TryLock() {
		return ErrRunInProgress
	}
	go func() {
		defer s.runMu.Unlock()
		s.runAll(s.ctx)
	}()
	return nil
}

// RunOnce scrapes every platform and exports the catalog, blocking until done
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if !s.runMu.TryLock() {
		return ErrRunInProgress
	}
	defer s.runMu.Unlock()
	return s.runAll(ctx)
}

// Running reports whether a run is active
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// LastRuns returns the summary of the last finished run of each platform
func (s *Scheduler) LastRuns() []controllers.RunSummary {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()

	runs := make([]controllers.RunSummary, 0, len(s.clients))
	for _, client := range s.clients {
		if summary, ok := s.lastRuns[client.Name()]; ok {
			runs = append(runs, summary)
		}
	}
	return runs
}

// runAll executes the scrape job
func (s *Scheduler) runAll(ctx context.Context) error {
	s.running.Store(true)
	defer s.running.Store(false)

	s.logger.Info("Running scheduled scrape")

	var errs []error
	for _, client := range s.clients {
		summary, err := s.scrape.Run(ctx, client, client.Sources())
		if summary != nil {
			s.lastMu.Lock()
			s.lastRuns[client.Name()] = *summary
			s.lastMu.Unlock()
		}
		if err != nil {
			s.logger.WithError(err).WithField("platform", client.Name()).Error("Scrape job failed")
			errs = append(errs, err)
			if ctx.Err() != nil {
				return errors.Join(errs...)
			}
		}
	}

	if s.exporter != nil {
		if err := s.exporter.ExportAll(ctx, ""); err != nil {
			s.logger.WithError(err).Error("Export failed")
			errs = append(errs, err)
		}
	}

	if len(errs) == 0 {
		s.logger.Info("Scrape job completed successfully")
	}
	return errors.Join(errs...)
}
