package appServer

import (
	"context"
	"crypto/tls"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Kodanda10/iConnect-sub000/config"
	repository "github.com/Kodanda10/iConnect-sub000/internal/database/postgres"
	runlock "github.com/Kodanda10/iConnect-sub000/internal/database/redis"
	"github.com/Kodanda10/iConnect-sub000/internal/dates"
	"github.com/Kodanda10/iConnect-sub000/internal/entity"
	"github.com/Kodanda10/iConnect-sub000/internal/service"
	"github.com/Kodanda10/iConnect-sub000/internal/transport"
	"github.com/Kodanda10/iConnect-sub000/internal/worker"
	"github.com/Kodanda10/iConnect-sub000/pkg/postgres"
	"github.com/Kodanda10/iConnect-sub000/pkg/queue"
	"github.com/Kodanda10/iConnect-sub000/pkg/redis"
	"github.com/Kodanda10/iConnect-sub000/pkg/scheduler"
	"github.com/Kodanda10/iConnect-sub000/pkg/sms"
	"github.com/Kodanda10/iConnect-sub000/pkg/telegram"
)

type Server struct {
	httpServer *http.Server
}

func (s *Server) Run(cfg *config.Config, handler http.Handler) error {
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		MaxHeaderBytes:    1 << 20,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout + 5*time.Second,
		IdleTimeout:       cfg.Server.Idle_timeout,
		ReadHeaderTimeout: 3 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
		ErrorLog:          log.New(os.Stderr, "SERVER ERROR: ", log.LstdFlags),
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func setupLogging(cfg *config.Config) {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

// newQueue picks the broadcast queue backend. It returns a nil queue when
// the backend is "none" or unusable; broadcasts then stay on the direct path.
func newQueue(cfg *config.Config, redisClient *goredis.Client) (queue.Queue, *transport.QueueHandler) {
	switch cfg.Queue.Backend {
	case "redis":
		if redisClient == nil {
			logrus.Warn("redis queue selected but redis is unavailable, continuing without queue")
			return nil, nil
		}
		retryManager := queue.NewRetryManager(cfg.Queue.MaxRetries, cfg.Queue.BaseDelay)
		q := queue.NewRedisQueue(redisClient, &queue.RedisQueueConfig{
			Prefix:     cfg.Queue.Prefix,
			MaxRetries: cfg.Queue.MaxRetries,
			BaseDelay:  cfg.Queue.BaseDelay,
			EnableDLQ:  true,
		}, retryManager, nil)
		return q, transport.NewQueueHandler(q, q.DLQ())

	case "rabbitmq":
		q, err := queue.NewRabbitQueue(queue.RabbitQueueConfig{
			URL:        cfg.Rabbit.DSN(),
			QueueName:  cfg.Rabbit.QueueName,
			MaxRetries: cfg.Queue.MaxRetries,
			BaseDelay:  cfg.Queue.BaseDelay,
		})
		if err != nil {
			logrus.Errorf("Failed to initialize RabbitMQ queue: %v. Continuing without queue...", err)
			return nil, nil
		}
		return q, nil

	default:
		logrus.Info("broadcast queue disabled")
		return nil, nil
	}
}

func newSender(cfg *config.Config) service.MessageSender {
	var push sms.PushSender
	if cfg.Telegram.BotToken != "" {
		push = telegram.NewBot(cfg.Telegram.BotToken, cfg.Telegram.Timeout)
		logrus.Info("Telegram bot initialized")
	} else {
		logrus.Warn("Telegram bot token not provided, push alerts are logged only")
	}

	var smsSender sms.SMSSender
	if cfg.SMS.Provider == "gateway" {
		gateway, err := sms.NewGateway(sms.GatewayConfig{
			BaseURL:  cfg.SMS.BaseURL,
			APIKey:   cfg.SMS.APIKey,
			SenderID: cfg.SMS.SenderID,
			Timeout:  cfg.SMS.Timeout,
		})
		if err != nil {
			logrus.Errorf("SMS gateway unusable, falling back to log-only sender: %v", err)
		} else {
			smsSender = gateway
		}
	}

	return sms.NewSender(push, smsSender)
}

func NewServer(cfg *config.Config) {

	setupLogging(cfg)

	loc, err := cfg.Schedule.Location()
	if err != nil {
		logrus.Fatalf("Invalid schedule config: %v", err)
	}
	scanHour, scanMinute, err := cfg.Schedule.DailyScanClock()
	if err != nil {
		logrus.Fatalf("Invalid schedule config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.NewPostgresDB(ctx, &cfg.Database)
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := postgres.RunMigrations(ctx, db); err != nil {
		logrus.Fatalf("Failed to run migrations: %v", err)
	}

	personRepo := repository.NewPersonRepository(db, loc)
	taskRepo := repository.NewTaskRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	userRepo := repository.NewUserRepository(db)
	broadcastRepo := repository.NewBroadcastRepository(db)

	redisClient, err := redis.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		logrus.Errorf("Failed to connect to redis: %v. Continuing without run lock and redis queue...", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	taskQueue, queueHandler := newQueue(cfg, redisClient)
	var publisher service.BatchPublisher
	if taskQueue != nil {
		defer taskQueue.Close()
		publisher = service.NewQueueAdapter(taskQueue, cfg.Queue.MaxRetries)
	}

	clock := dates.SystemClock
	sender := newSender(cfg)

	generator := service.NewTaskGenerator(clock, loc)
	notificationScheduler := service.NewNotificationScheduler(settingsRepo, userRepo, notificationRepo, clock, service.AlertSchedule{
		Location:      loc,
		ActionHour:    cfg.Schedule.ActionHour,
		HeadsUpHour:   cfg.Schedule.HeadsUpHour,
		SettingsDocID: cfg.Schedule.SettingsDocID,
		LeaderRole:    cfg.Schedule.LeaderRole,
	})
	scanService := service.NewScanService(personRepo, taskRepo, generator, notificationScheduler, clock, loc, cfg.Schedule.MaxRangeDays)
	personService := service.NewPersonService(personRepo)
	pushService := service.NewPushService(notificationRepo, userRepo, sender, clock, cfg.Schedule.PollPageSize, cfg.Schedule.MaxPushRetry)
	broadcastService := service.NewBroadcastService(broadcastRepo, personRepo, userRepo, notificationRepo, sender, publisher, clock, service.DispatchLimits{
		BatchSize:      cfg.Broadcast.BatchSize,
		Concurrency:    cfg.Broadcast.Concurrency,
		TimeBudget:     cfg.Broadcast.TimeBudget,
		MaxRecipients:  cfg.Broadcast.MaxRecipients,
		QueueThreshold: cfg.Broadcast.QueueThreshold,
		QueueBatchSize: cfg.Broadcast.QueueBatchSize,
		Language:       entity.Language(cfg.Broadcast.Language),
		EveningHour:    cfg.Schedule.HeadsUpHour,
		Location:       loc,
	})

	if taskQueue != nil {
		taskHandler := queue.NewTaskHandler(broadcastService, taskQueue)
		if err := taskQueue.Subscribe(ctx, taskHandler.HandleTask); err != nil {
			logrus.Errorf("Queue subscriber error: %v", err)
		} else {
			logrus.Info("Queue subscriber started")
		}
	}

	var lock scheduler.DayLock
	if redisClient != nil {
		lock = runlock.NewRunLock(redisClient, cfg.Queue.Prefix, cfg.Schedule.RunLockTTL)
	}
	dailyScan := scheduler.NewScheduler(func(ctx context.Context) error {
		_, err := scanService.RunDaily(ctx)
		return err
	}, lock, clock, loc, scanHour, scanMinute, cfg.Schedule.TickInterval)
	go dailyScan.Start(ctx)

	pushWorker := worker.NewPushWorker(pushService, cfg.Schedule.PollInterval)
	go pushWorker.Start(ctx)

	if cfg.Server.Env == "production" || cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := transport.InitRoutes(transport.Handlers{
		Scan:         transport.NewScanHandler(scanService),
		Person:       transport.NewPersonHandler(personService),
		Broadcast:    transport.NewBroadcastHandler(broadcastService),
		Notification: transport.NewNotificationHandler(pushService),
		Queue:        queueHandler,
	}, cfg.Server.AppVersion, cfg.Server.Timeout)

	srv := new(Server)
	go func() {
		if err := srv.Run(cfg, router); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("error occured while running http server: %s", err.Error())
		}
	}()

	logrus.WithField("port", cfg.Server.Port).Info("App Started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logrus.Info("App Shutting Down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("error occured on server shutting down: %s", err.Error())
	}
	cancel()
}
