package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hanbitlab/storefront-backend/config"
	"github.com/hanbitlab/storefront-backend/internal/app/controller"
	"github.com/hanbitlab/storefront-backend/internal/app/repository"
	"github.com/hanbitlab/storefront-backend/internal/app/service"
	"github.com/hanbitlab/storefront-backend/internal/db"
	"github.com/hanbitlab/storefront-backend/internal/middleware"
	"github.com/hanbitlab/storefront-backend/internal/router"
	"github.com/hanbitlab/storefront-backend/internal/scheduler"
	"github.com/hanbitlab/storefront-backend/pkg/logger"
	"github.com/hanbitlab/storefront-backend/pkg/redis"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	// Initialize logger
	logLevel := "info"
	if cfg.Server.Environment == "development" {
		logLevel = "debug"
	}
	logger.Initialize(logger.Config{
		Level:       logLevel,
		Format:      "console", // Use "json" for production
		EnableColor: true,
	})

	logger.Info("Starting STOREFRONT Backend Server", map[string]interface{}{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"log_level":   logLevel,
	})

	// Initialize database
	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	// Run migrations
	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	// Redis backs request throttling; the API runs without it.
	if cfg.Redis.Enabled {
		if err := redis.Init(&cfg.Redis); err != nil {
			logger.Warn("Redis unavailable, request throttling disabled", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			defer func() {
				if err := redis.Close(); err != nil {
					logger.Error("Failed to close Redis connection", err)
				}
			}()
		}
	}

	// Initialize repositories
	cartRepo := repository.NewCartRepository(db.GetDB())
	productRepo := repository.NewProductRepository(db.GetDB())
	inventoryRepo := repository.NewInventoryRepository(db.GetDB())
	orderRepo := repository.NewOrderRepository(db.GetDB())

	// Initialize services
	reservationService := service.NewReservationService(db.GetDB(), inventoryRepo, cfg.Cart.ReservationTTL)
	cartService := service.NewCartService(db.GetDB(), cartRepo, productRepo, reservationService)
	checkoutService := service.NewCheckoutService(db.GetDB(), reservationService)
	idempotencyService := service.NewIdempotencyService(db.GetDB(), cfg.Cart.IdempotencyTTL)
	catalogService := service.NewCatalogService(productRepo)
	inventoryService := service.NewInventoryService(inventoryRepo, productRepo)
	orderService := service.NewOrderService(orderRepo)

	// Initialize controllers
	catalogController := controller.NewCatalogController(catalogService)
	inventoryController := controller.NewInventoryController(inventoryService)
	cartController := controller.NewCartController(cartService, checkoutService, idempotencyService)
	guestCartController := controller.NewGuestCartController(cartService)
	orderController := controller.NewOrderController(orderService)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	throttleMiddleware := middleware.NewThrottleMiddleware(cfg.Throttle)

	// Background sweeps: stale carts, expired reservations, idempotency
	maintenanceScheduler := scheduler.NewMaintenanceScheduler(
		cfg.Cart,
		cartService,
		reservationService,
		idempotencyService,
	)
	if err := maintenanceScheduler.Start(); err != nil {
		logger.Fatal("Failed to start maintenance scheduler", err)
	}
	defer maintenanceScheduler.Stop()

	// Setup router
	r := router.NewRouter(
		catalogController,
		inventoryController,
		cartController,
		guestCartController,
		orderController,
		authMiddleware,
		throttleMiddleware,
		cfg,
	)
	engine := r.Setup()

	// Start server in a goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		logger.Info("Server started successfully", map[string]interface{}{
			"address": addr,
			"pid":     os.Getpid(),
		})
		if err := engine.Run(addr); err != nil {
			logger.Fatal("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server gracefully...")
	logger.Info("Server stopped successfully")
}
