package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/travelbooking/api"
	"github.com/Domenick1991/travelbooking/config"
	"github.com/Domenick1991/travelbooking/internal/bootstrap"
	"github.com/Domenick1991/travelbooking/internal/cache"
	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/Domenick1991/travelbooking/internal/kafka"
	applogger "github.com/Domenick1991/travelbooking/internal/logger"
	"github.com/Domenick1991/travelbooking/internal/mpesa"
	"github.com/Domenick1991/travelbooking/internal/repository"
	"github.com/Domenick1991/travelbooking/internal/service/booking"
	"github.com/Domenick1991/travelbooking/internal/service/capacity"
	"github.com/Domenick1991/travelbooking/internal/service/items"
	"github.com/Domenick1991/travelbooking/internal/service/payment"
	"github.com/Domenick1991/travelbooking/internal/service/pricing"
	"github.com/Domenick1991/travelbooking/internal/service/reschedule"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := applogger.New(cfg.Log.Environment, cfg.Log.Level)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	redisCache := cache.NewRedisCache(
		cfg.Redis,
		time.Duration(cfg.Booking.ItemsCacheTTL)*time.Second,
		time.Duration(cfg.Payment.StatusCacheSeconds)*time.Second,
	)
	defer redisCache.Close()
	if err := redisCache.Ping(ctx); err != nil {
		logger.Warn("redis not reachable at startup", zap.Error(err))
	}

	producer := kafka.NewProducer(cfg.Kafka.Brokers, logger)
	defer producer.Close()
	if err := producer.CheckConnection(ctx); err != nil {
		logger.Warn("kafka not reachable at startup", zap.Error(err))
	}

	itemRepo := repository.NewItemRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)
	paymentRepo := repository.NewPendingPaymentRepository(pool)

	ledger := capacity.NewLedger(cfg.Booking.LowCapacityThreshold)
	itemService := items.NewItemService(itemRepo, redisCache, ledger, domain.SystemClock, logger)

	orchestrator := payment.NewOrchestrator(
		paymentRepo,
		mpesa.NewClient(cfg.Mpesa, logger),
		redisCache,
		logger,
		payment.WithPolling(
			time.Duration(cfg.Payment.PollIntervalMS)*time.Millisecond,
			time.Duration(cfg.Payment.PollTimeoutSeconds)*time.Second,
		),
		payment.WithInitiationLock(time.Duration(cfg.Payment.InitiationLockSecs)*time.Second),
	)

	bookingService := booking.NewBookingService(
		bookingRepo,
		itemService,
		orchestrator,
		producer,
		pricing.NewCalculator(),
		ledger,
		logger,
		booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		booking.WithBookingEventsTopic(cfg.Kafka.BookingEventsTopic),
	)

	callbacks := payment.NewCallbackProcessor(
		paymentRepo,
		bookingService,
		redisCache,
		producer,
		cfg.Kafka.NotificationsTopic,
		logger,
	)

	validator := reschedule.NewValidator(
		bookingRepo,
		itemService,
		ledger,
		producer,
		logger,
		reschedule.WithMinNotice(time.Duration(cfg.Reschedule.MinNoticeHours)*time.Hour),
		reschedule.WithCalendarDays(cfg.Reschedule.CalendarDays),
		reschedule.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
	)

	handlers := bootstrap.Handlers{
		Items:    api.NewItemHandler(itemService),
		Bookings: api.NewBookingHandler(bookingService, validator),
		Payments: api.NewPaymentHandler(orchestrator, callbacks),
	}

	if err := bootstrap.Run(ctx, cfg, logger, handlers); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
