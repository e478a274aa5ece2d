package scheduler

import (
	"github.com/hanbitlab/storefront-backend/config"
	"github.com/hanbitlab/storefront-backend/internal/app/service"
	"github.com/hanbitlab/storefront-backend/pkg/logger"
	"github.com/robfig/cron/v3"
)

// MaintenanceScheduler runs the background sweeps: abandoning stale
// carts, reclaiming expired reservation rows and purging expired
// idempotency records. None of these is needed for correctness, since
// availability queries already ignore expired holds. The sweeps keep
// the tables from growing without bound.
type MaintenanceScheduler struct {
	cron           *cron.Cron
	cfg            config.CartConfig
	cartService    service.CartService
	reservationSvc service.ReservationService
	idemService    service.IdempotencyService
}

func NewMaintenanceScheduler(
	cfg config.CartConfig,
	cartService service.CartService,
	reservationSvc service.ReservationService,
	idemService service.IdempotencyService,
) *MaintenanceScheduler {
	return &MaintenanceScheduler{
		cron:           cron.New(),
		cfg:            cfg,
		cartService:    cartService,
		reservationSvc: reservationSvc,
		idemService:    idemService,
	}
}

func (s *MaintenanceScheduler) Start() error {
	_, err := s.cron.AddFunc(s.cfg.ReaperCronSpec, func() {
		count, err := s.cartService.AbandonStaleCarts(s.cfg.AbandonTTL)
		if err != nil {
			logger.Error("Stale cart sweep failed", err, nil)
			return
		}
		if count > 0 {
			logger.Info("Stale cart sweep finished", map[string]interface{}{
				"abandoned": count,
			})
		}
	})
	if err != nil {
		logger.Error("Failed to schedule stale cart sweep", err, nil)
		return err
	}

	_, err = s.cron.AddFunc(s.cfg.ReclaimCronSpec, func() {
		count, err := s.reservationSvc.ReclaimExpired()
		if err != nil {
			logger.Error("Reservation reclaim failed", err, nil)
			return
		}
		if count > 0 {
			logger.Info("Reservation reclaim finished", map[string]interface{}{
				"reclaimed": count,
			})
		}
	})
	if err != nil {
		logger.Error("Failed to schedule reservation reclaim", err, nil)
		return err
	}

	_, err = s.cron.AddFunc(s.cfg.CleanupCronSpec, func() {
		count, err := s.idemService.CleanupExpired()
		if err != nil {
			logger.Error("Idempotency cleanup failed", err, nil)
			return
		}
		if count > 0 {
			logger.Info("Idempotency cleanup finished", map[string]interface{}{
				"deleted": count,
			})
		}
	})
	if err != nil {
		logger.Error("Failed to schedule idempotency cleanup", err, nil)
		return err
	}

	s.cron.Start()
	logger.Info("Maintenance scheduler started", map[string]interface{}{
		"reaper_cron":  s.cfg.ReaperCronSpec,
		"reclaim_cron": s.cfg.ReclaimCronSpec,
		"cleanup_cron": s.cfg.CleanupCronSpec,
	})
	return nil
}

func (s *MaintenanceScheduler) Stop() {
	logger.Info("Stopping maintenance scheduler", nil)
	s.cron.Stop()
}
