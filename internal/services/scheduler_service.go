// internal/services/scheduler_service.go
package services

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/dropmart/storefront-backend/internal/config"
	"github.com/dropmart/storefront-backend/internal/models"
)

// Scheduler drives the periodic integration tasks: token refresh, catalog
// resync, order-status polling and the credential health check. Every task is
// gated by "is the integration configured" and skips silently when it is not.
// Batch items are processed strictly sequentially; a per-item failure never
// aborts the batch.
type Scheduler struct {
	db      *gorm.DB
	cfg     *config.Config
	tokens  *TokenService
	catalog *CatalogService
	orders  *OrderService

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func NewScheduler(db *gorm.DB, cfg *config.Config, tokens *TokenService, catalog *CatalogService, orders *OrderService) *Scheduler {
	return &Scheduler{
		db:      db,
		cfg:     cfg,
		tokens:  tokens,
		catalog: catalog,
		orders:  orders,
		stop:    make(chan struct{}),
	}
}

// Start launches the background loops. Safe to call once.
func (s *Scheduler) Start() {
	if !s.cfg.Scheduler.Enabled {
		logrus.Info("Scheduler disabled by configuration")
		return
	}

	sched := s.cfg.Scheduler
	s.launch("token_refresh", time.Duration(sched.TokenRefreshInterval)*time.Minute, s.runTokenRefresh)
	s.launch("catalog_resync", time.Duration(sched.CatalogSyncInterval)*time.Minute, s.runCatalogResync)
	s.launch("order_status_poll", time.Duration(sched.OrderPollInterval)*time.Minute, s.runOrderPoll)
	s.launch("credential_health_check", time.Duration(sched.HealthCheckInterval)*time.Minute, s.runHealthCheck)

	logrus.Info("Scheduler started")
}

// Stop signals all loops and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
	logrus.Info("Scheduler stopped")
}

func (s *Scheduler) launch(name string, interval time.Duration, task func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				if !s.tokens.HasCredentialSource() {
					logrus.WithField("task", name).Debug("Integration not configured, skipping run")
					continue
				}
				task()
			}
		}
	}()
}

func (s *Scheduler) runTokenRefresh() {
	if _, err := s.tokens.GetValidToken(); err != nil {
		logrus.WithError(err).Error("Scheduled token refresh failed")
		return
	}
	logrus.Debug("Scheduled token refresh completed")
}

func (s *Scheduler) runCatalogResync() {
	run := s.startRun("catalog_resync")

	products, err := s.catalog.InStoreBatch(s.cfg.Scheduler.CatalogSyncBatchSize)
	if err != nil {
		logrus.WithError(err).Error("Catalog resync could not load batch")
		s.finishRun(run, err.Error())
		return
	}

	for i := range products {
		run.Processed++
		if _, err := s.catalog.SyncProduct(products[i].RemoteProductID, nil); err != nil {
			run.Failed++
			logrus.WithError(err).WithField("pid", products[i].RemoteProductID).
				Warn("Catalog resync item failed")
			continue
		}
		run.Succeeded++
	}

	s.finishRun(run, "")
	logrus.WithFields(logrus.Fields{
		"synced": run.Succeeded,
		"failed": run.Failed,
	}).Info("Catalog resync run completed")
}

func (s *Scheduler) runOrderPoll() {
	run := s.startRun("order_status_poll")

	mappings, err := s.orders.PollableBatch(s.cfg.Scheduler.OrderPollBatchSize)
	if err != nil {
		logrus.WithError(err).Error("Order poll could not load batch")
		s.finishRun(run, err.Error())
		return
	}

	for i := range mappings {
		run.Processed++
		if _, err := s.orders.PollStatus(mappings[i].OrderID); err != nil {
			run.Failed++
			logrus.WithError(err).WithField("order_id", mappings[i].OrderID).
				Warn("Order status poll item failed")
			continue
		}
		run.Succeeded++
	}

	s.finishRun(run, "")
	logrus.WithFields(logrus.Fields{
		"polled": run.Succeeded,
		"failed": run.Failed,
	}).Info("Order poll run completed")
}

func (s *Scheduler) runHealthCheck() {
	if _, err := s.tokens.GetValidToken(); err != nil {
		logrus.WithError(err).Error("Marketplace credential health check failed")
		return
	}
	logrus.Info("Marketplace credential health check passed")
}

func (s *Scheduler) startRun(task string) *models.SyncRun {
	return &models.SyncRun{
		TaskName:  task,
		StartedAt: time.Now(),
	}
}

func (s *Scheduler) finishRun(run *models.SyncRun, notes string) {
	now := time.Now()
	run.FinishedAt = &now
	run.Notes = notes
	if err := s.db.Create(run).Error; err != nil {
		logrus.WithError(err).Error("Failed to persist sync run summary")
	}
}
