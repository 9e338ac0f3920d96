package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/travelbooking/config"
	"github.com/Domenick1991/travelbooking/internal/cache"
	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/Domenick1991/travelbooking/internal/email"
	"github.com/Domenick1991/travelbooking/internal/kafka"
	applogger "github.com/Domenick1991/travelbooking/internal/logger"
	"github.com/Domenick1991/travelbooking/internal/mpesa"
	"github.com/Domenick1991/travelbooking/internal/repository"
	"github.com/Domenick1991/travelbooking/internal/service/booking"
	"github.com/Domenick1991/travelbooking/internal/service/capacity"
	"github.com/Domenick1991/travelbooking/internal/service/payment"
	"github.com/Domenick1991/travelbooking/internal/service/pricing"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
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

	producer := kafka.NewProducer(cfg.Kafka.Brokers, logger)
	defer producer.Close()

	redisCache := cache.NewRedisCache(
		cfg.Redis,
		time.Duration(cfg.Booking.ItemsCacheTTL)*time.Second,
		time.Duration(cfg.Payment.StatusCacheSeconds)*time.Second,
	)
	defer redisCache.Close()

	itemRepo := repository.NewItemRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)
	paymentRepo := repository.NewPendingPaymentRepository(pool)
	mpesaClient := mpesa.NewClient(cfg.Mpesa, logger)

	bookingService := booking.NewBookingService(
		bookingRepo,
		itemRepo,
		nil,
		producer,
		pricing.NewCalculator(),
		capacity.NewLedger(cfg.Booking.LowCapacityThreshold),
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
	reconciler := payment.NewReconciler(
		paymentRepo,
		mpesaClient,
		callbacks,
		domain.SystemClock,
		time.Duration(cfg.Worker.StaleAfterMinutes)*time.Minute,
		logger,
	)

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic)
	defer consumer.Close()

	emailSender := email.NewSender(cfg.Email.From, cfg.Email.AdminEmail, logger)

	go func() {
		if err := consumer.Consume(ctx, kafka.NotificationHandler(logger, emailSender.Send)); err != nil && ctx.Err() == nil {
			logger.Error("consumer stopped", zap.Error(err))
			stop()
		}
	}()

	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	spec := fmt.Sprintf("@every %ds", cfg.Worker.ReconcileIntervalSeconds)
	if _, err := scheduler.AddFunc(spec, func() {
		resolved, err := reconciler.SweepStale(ctx)
		if err != nil {
			logger.Error("reconcile pending payments", zap.Error(err))
		}
		if resolved > 0 {
			logger.Info("reconciled pending payments", zap.Int("resolved", resolved))
		}

		created, err := reconciler.RetryUnmaterialized(ctx)
		if err != nil {
			logger.Error("retry unmaterialized payments", zap.Error(err))
			return
		}
		if created > 0 {
			logger.Info("materialized bookings for completed payments", zap.Int("created", created))
		}
	}); err != nil {
		logger.Fatal("schedule reconciler", zap.Error(err))
	}
	scheduler.Start()

	logger.Info("worker started",
		zap.String("topic", cfg.Kafka.NotificationsTopic),
		zap.String("reconcile_schedule", spec),
	)

	<-ctx.Done()
	logger.Info("worker shutting down")
	<-scheduler.Stop().Done()
}
