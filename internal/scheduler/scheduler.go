// Package scheduler runs the periodic jobs of the service: scheduled sync and retrying a pending write.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/roylee0704/gron"

	"listentier/internal/providers"
	"listentier/internal/services"
	"listentier/internal/structures"
)

const persistTimeout = 30 * time.Second

type SchedulerInterface interface {
	Init()
	Stop()
	Restore() error
	Persist() error
}

type Scheduler struct {
	config  *structures.Config
	logger  providers.Logger
	service services.HistoryServiceInterface
	cron    *gron.Cron
	opsMu   sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
}

func (s *Scheduler) Init() {
	s.cron = gron.New()

	if s.config.Sync.Enabled && s.config.Sync.Interval > 0 {
		s.cron.AddFunc(gron.Every(s.config.Sync.Interval), s.runSync)
		s.logger.Infof(providers.TypeSync, "Scheduled sync every %s", s.config.Sync.Interval)
	}
	if s.config.Persistence.RetryInterval > 0 {
		s.cron.AddFunc(gron.Every(s.config.Persistence.RetryInterval), s.retryPersist)
	}

	s.cron.Start()
}

func (s *Scheduler) runSync() {
	s.opsMu.Lock()
	defer s.opsMu.Unlock()

	s.logger.Infof(providers.TypeSync, "Scheduled sync...")
	report, err := s.service.Sync(s.ctx)
	if err != nil {
		s.logger.Errorf(providers.TypeSync, "Scheduled sync failed: %s", err)
		return
	}
	s.logger.Infof(providers.TypeSync, "Scheduled sync added %d plays (%d duplicates)", report.Added, report.Duplicates)
}

func (s *Scheduler) retryPersist() {
	if !s.service.HasPending() {
		return
	}
	s.opsMu.Lock()
	defer s.opsMu.Unlock()

	if err := s.service.RetryPersist(s.ctx); err != nil {
		s.logger.Errorf(providers.TypeApp, "Pending history still not persisted: %s", err)
		return
	}
	s.logger.Infof(providers.TypeApp, "Pending history persisted")
}

// Stop halts the jobs and cancels a sync in flight.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	s.cancel()
}

func (s *Scheduler) Restore() error {
	return s.service.Restore(context.Background())
}

// Persist flushes a pending write at shutdown.
func (s *Scheduler) Persist() error {
	s.opsMu.Lock()
	defer s.opsMu.Unlock()

	if !s.service.HasPending() {
		return nil
	}
	s.logger.Infof(providers.TypeApp, "Persisting pending history...")
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.service.RetryPersist(ctx); err != nil {
		s.logger.Errorf(providers.TypeApp, "Error while persisting data: %s", err)
		return err
	}
	return nil
}

func NewScheduler(config *structures.Config, logger providers.Logger, service services.HistoryServiceInterface) SchedulerInterface {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		config:  config,
		logger:  logger,
		service: service,
		ctx:     ctx,
		cancel:  cancel,
	}
}
