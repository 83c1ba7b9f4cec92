package main // Entry point package

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-seat-inventory/internal/config"
	"github.com/iliyamo/cinema-seat-inventory/internal/database"
	"github.com/iliyamo/cinema-seat-inventory/internal/handler"
	"github.com/iliyamo/cinema-seat-inventory/internal/middleware"
	"github.com/iliyamo/cinema-seat-inventory/internal/model"
	"github.com/iliyamo/cinema-seat-inventory/internal/payment"
	"github.com/iliyamo/cinema-seat-inventory/internal/queue"
	"github.com/iliyamo/cinema-seat-inventory/internal/repository"
	"github.com/iliyamo/cinema-seat-inventory/internal/repository/memstore"
	"github.com/iliyamo/cinema-seat-inventory/internal/router"
	"github.com/iliyamo/cinema-seat-inventory/internal/service"
	"github.com/iliyamo/cinema-seat-inventory/internal/utils"
	"github.com/iliyamo/cinema-seat-inventory/internal/worker"
)

const reclaimerLeaseKey = "cinema:reclaimer:lease"

func main() {
	_ = godotenv.Load() // .env is optional

	cfg := config.Load()
	bcfg := config.LoadBookingConfig()

	logger := newLogger(cfg.Env)
	defer logger.Sync()

	if err := run(cfg, bcfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(env string) *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if env == "prod" || env == "production" {
		l, err = zap.NewProduction()
	} else {
		l, err = zap.NewDevelopment()
	}
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func run(cfg config.Config, bcfg config.BookingConfig, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	gateway, err := newGateway(bcfg)
	if err != nil {
		return err
	}

	opts := []service.Option{
		service.WithLogger(logger),
		service.WithSideEffectTimeout(bcfg.SideEffectTimeout),
		service.WithCurrency(bcfg.PaymentCurrency),
	}
	if bcfg.NotifyQueueURL != "" {
		pub := queue.NewPublisher(bcfg.NotifyQueueURL, logger)
		defer pub.Close()
		opts = append(opts, service.WithNotifier(pub))
	} else {
		logger.Info("notifications disabled: no queue url configured")
	}

	inventory := service.NewInventoryService(store, opts...)
	if mem, ok := store.(*memstore.Store); ok {
		if err := seedDemo(ctx, mem, inventory, cfg.BcryptCost); err != nil {
			return fmt.Errorf("seed demo catalog: %w", err)
		}
	}

	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	} else {
		logger.Warn("redis unavailable: reclaimer runs unguarded, rate limiting disabled")
	}

	reclaimerOpts := []worker.ReclaimerOption{worker.WithLogger(logger)}
	if rdb != nil {
		reclaimerOpts = append(reclaimerOpts, worker.WithLease(worker.NewRedisLease(rdb, reclaimerLeaseKey, bcfg.CleanupLeaseTTL)))
	}
	reclaimer := worker.NewReclaimer(store, worker.ReclaimerConfig{
		Interval:  bcfg.CleanupInterval,
		BatchSize: bcfg.CleanupBatchSize,
	}, reclaimerOpts...)
	if err := reclaimer.Start(ctx); err != nil {
		return fmt.Errorf("start reclaimer: %w", err)
	}
	defer reclaimer.Stop()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	router.Register(e, router.Handlers{
		Auth: handler.NewAuthHandler(cfg, store),
		Seats: handler.NewSeatHandler(
			service.NewReservationService(store, opts...),
			service.NewCheckoutService(store, gateway, opts...),
			service.NewCancellationService(store, gateway, opts...),
			inventory,
			bcfg.HoldTTL,
		),
		Admin:     handler.NewAdminHandler(inventory, reclaimer),
		JWTSecret: cfg.JWTSecret,
		Limit:     middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
	})

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("store", cfg.StoreDriver))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (repository.Store, func(), error) {
	if cfg.StoreDriver == config.StoreMemory {
		logger.Warn("using in-memory store; state is lost on restart")
		return memstore.New(), func() {}, nil
	}
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return repository.NewMySQLStore(db), func() { _ = db.Close() }, nil
}

func newGateway(bcfg config.BookingConfig) (payment.Gateway, error) {
	switch bcfg.PaymentGateway {
	case "stripe":
		return payment.NewStripeGateway(bcfg.StripeSecretKey, bcfg.PaymentCurrency)
	case "mock", "":
		return payment.NewMockGateway(), nil
	}
	return nil, fmt.Errorf("unknown PAYMENT_GATEWAY %q", bcfg.PaymentGateway)
}

// seedDemo fills an empty in-memory catalog: one hall of 3x10 seats, a
// show three days out, a customer and an owner, both with password
// "password".
func seedDemo(ctx context.Context, store *memstore.Store, inv *service.InventoryService, cost int) error {
	hash, err := utils.HashPassword("password", cost)
	if err != nil {
		return err
	}
	store.AddUser(model.User{Email: "customer@example.com", PasswordHash: hash, Role: router.RoleCustomer, IsActive: true})
	store.AddUser(model.User{Email: "owner@example.com", PasswordHash: hash, Role: router.RoleOwner, IsActive: true})

	const hallID = 1
	for _, row := range []string{"A", "B", "C"} {
		for n := 1; n <= 10; n++ {
			store.AddSeat(model.Seat{HallID: hallID, RowLabel: row, SeatNumber: uint32(n), SeatType: "STANDARD"})
		}
	}
	starts := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Hour)
	show := store.AddShow(model.Show{
		HallID:         hallID,
		Title:          "Demo Screening",
		StartsAt:       starts,
		EndsAt:         starts.Add(2 * time.Hour),
		BasePriceCents: 1200,
		Status:         "SCHEDULED",
	})
	_, err = inv.ProvisionShow(ctx, show.ID)
	return err
}
