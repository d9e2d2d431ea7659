package main // Entry point package

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-scheduler/internal/config"
	"github.com/iliyamo/cinema-scheduler/internal/database"
	"github.com/iliyamo/cinema-scheduler/internal/handler"
	"github.com/iliyamo/cinema-scheduler/internal/logger"
	"github.com/iliyamo/cinema-scheduler/internal/middleware"
	"github.com/iliyamo/cinema-scheduler/internal/queue"
	"github.com/iliyamo/cinema-scheduler/internal/repository"
	"github.com/iliyamo/cinema-scheduler/internal/router"
	"github.com/iliyamo/cinema-scheduler/internal/service"
	"github.com/iliyamo/cinema-scheduler/internal/utils"
)

var _ handler.Catalog = (*repository.Store)(nil)

func main() {
	mint := flag.String("mint-token", "", "print a bearer token for ROLE:USER_ID[:EMAIL] and exit (dev only)")
	flag.Parse()

	cfg := config.Load() // Load environment config
	log := logger.New()
	logger.SetDefault(log)

	if *mint != "" {
		if err := mintToken(cfg, *mint); err != nil {
			log.WithError(err).Error("mint token")
			os.Exit(1)
		}
		return
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.WithError(err).Error("database connection failed")
		os.Exit(1)
	}
	defer db.Close()

	if cfg.DBMigrate {
		if err := database.Migrate(context.Background(), db); err != nil {
			log.WithError(err).Error("migration failed")
			os.Exit(1)
		}
		log.Info("schema applied")
	}

	// nil when redis is unreachable; the middlewares then pass through
	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		log.Warn("redis unavailable, rate limiting and caching disabled")
	} else {
		defer rdb.Close()
	}

	var notifier service.Notifier = service.LogNotifier{Log: log}
	if cfg.Notify.RabbitURL != "" {
		notifier = queue.NewPublisher(cfg.Notify, log)
	}

	clock := service.SystemClock{}
	st := repository.NewStore(db)
	scheduling := service.NewSchedulingService(st, cfg.Scheduling, clock, log)
	reservations := service.NewReservationService(st, cfg.Reservation, clock, notifier, log)
	cancellations := service.NewCancellationService(st, clock, notifier, log)
	sweeper := service.NewExpirySweeper(st, cfg.Sweeper, clock, log)
	if err := sweeper.Start(); err != nil {
		log.WithError(err).Error("sweeper start failed")
		os.Exit(1)
	}

	cacheCfg := config.LoadCacheConfig()
	purge := func(ctx context.Context) error { return middleware.PurgeCache(ctx, cacheCfg, rdb) }

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Use(middleware.RequestLogger(log))
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	router.Register(e, router.Deps{
		JWTSecret:     cfg.JWTSecret,
		WebhookSecret: cfg.WebhookSecret,
		DB:            db,
		Catalog:       handler.NewCatalogHandler(st, purge),
		Screenings: &handler.ScreeningHandler{
			Scheduler:    scheduling,
			Canceller:    cancellations,
			Reservations: reservations,
			Clock:        clock,
			Purge:        purge,
		},
		Reservations: &handler.ReservationHandler{Reservations: reservations, Catalog: st},
		Payments:     &handler.PaymentHandler{Reservations: reservations},
		Cache:        middleware.NewRedisCache(cacheCfg, rdb),
		HoldLimit:    middleware.NewTokenBucket(config.LoadHoldRateLimitConfig(), rdb),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	if cfg.Notify.ConsumerEnabled && cfg.Notify.RabbitURL != "" {
		for _, c := range queue.Consumers(cfg.Notify, log) {
			wg.Add(1)
			go func(c *queue.Consumer) {
				defer wg.Done()
				if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.WithError(err).Error("consumer stopped", "queue", c.Queue)
				}
			}(c)
		}
	}

	addr := ":" + cfg.Port
	go func() {
		log.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http shutdown")
	}
	if err := sweeper.Stop(); err != nil {
		log.WithError(err).Error("sweeper stop")
	}
	wg.Wait()
}

// mintToken prints a signed token so the API can be exercised without an
// identity provider.
func mintToken(cfg config.Config, arg string) error {
	role, userID, email, err := parseMintArg(arg)
	if err != nil {
		return err
	}
	tok, err := utils.NewAccessToken(cfg.JWTSecret, userID, role, email, 24*time.Hour)
	if err != nil {
		return err
	}
	fmt.Println(tok.Token)
	return nil
}

func parseMintArg(arg string) (role string, userID uint64, email string, err error) {
	var id string
	parts := strings.SplitN(arg, ":", 3)
	if len(parts) < 2 {
		return "", 0, "", fmt.Errorf("mint-token: want ROLE:USER_ID[:EMAIL], got %q", arg)
	}
	role, id = parts[0], parts[1]
	if len(parts) == 3 {
		email = parts[2]
	}
	if role != middleware.RoleStaff && role != middleware.RoleCustomer {
		return "", 0, "", fmt.Errorf("mint-token: unknown role %q", role)
	}
	if _, err := fmt.Sscan(id, &userID); err != nil || userID == 0 {
		return "", 0, "", fmt.Errorf("mint-token: bad user id %q", id)
	}
	return role, userID, email, nil
}
