package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nekogravitycat/space-reservation-backend/internal/api"
	"github.com/nekogravitycat/space-reservation-backend/internal/auth"
	"github.com/nekogravitycat/space-reservation-backend/internal/calendar"
	"github.com/nekogravitycat/space-reservation-backend/internal/comment"
	"github.com/nekogravitycat/space-reservation-backend/internal/config"
	"github.com/nekogravitycat/space-reservation-backend/internal/notification"
	"github.com/nekogravitycat/space-reservation-backend/internal/reservation"
	"github.com/nekogravitycat/space-reservation-backend/internal/space"
)

const retryBatchSize = 100

// Container holds the initialized components that are needed externally.
type Container struct {
	Router     *gin.Engine
	JWTManager *auth.JWTManager

	cfg         *config.Config
	logger      *slog.Logger
	outbox      *reservation.Outbox
	coordinator *reservation.SyncCoordinator
	broker      *notification.AMQPBroker
	calendarOn  bool

	cancel  context.CancelFunc
	workers sync.WaitGroup
}

// NewContainer initializes all modules and rebuilds the reservation interval index
// from the database. rdb may be nil when Redis is not configured.
func NewContainer(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, rdb *redis.Client, logger *slog.Logger) (*Container, error) {
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTokenTTL)

	// Space Module
	spaceRepo := space.NewPgxRepository(pool)
	spaceService := space.NewService(spaceRepo)

	// Notification Module
	var broker notification.Broker = notification.NoopBroker{}
	var amqpBroker *notification.AMQPBroker
	if cfg.RabbitMQ.URL != "" {
		amqpBroker = notification.NewAMQPBroker(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, logger)
		broker = amqpBroker
	}
	notificationService := notification.NewService(notification.NewPgxRepository(pool), broker, logger)

	// Calendar Provider
	var provider calendar.Provider = calendar.Disabled{}
	if cfg.Calendar.URL != "" {
		provider = calendar.NewHTTPProvider(cfg.Calendar.URL, cfg.Calendar.Token, cfg.Calendar.Timeout, nil)
	} else {
		logger.Info("calendar sync disabled: CALENDAR_URL is empty")
	}

	// Reservation Module
	reservationRepo := reservation.NewPgxRepository(pool)
	coordinator := reservation.NewSyncCoordinator(reservationRepo, provider, cfg.Calendar.Timeout, logger)
	outbox := reservation.NewOutbox(cfg.Sync.OutboxBuffer, logger,
		coordinator,
		reservation.NotifyHandler(notificationService),
	)

	index := reservation.NewIntervalIndex()
	if err := reservation.RebuildIndex(ctx, reservationRepo, index); err != nil {
		return nil, err
	}
	logger.Info("interval index rebuilt", "active_reservations", index.Len())

	reservationService := reservation.NewService(reservationRepo, spaceService, index, outbox, logger)

	// Comment Module
	commentService := comment.NewService(comment.NewPgxRepository(pool), spaceService)

	router := api.NewRouter(api.Dependencies{
		Config:              cfg,
		Logger:              logger,
		Redis:               rdb,
		JWTManager:          jwtManager,
		SpaceService:        spaceService,
		ReservationService:  reservationService,
		NotificationService: notificationService,
		CommentService:      commentService,
	})

	return &Container{
		Router:      router,
		JWTManager:  jwtManager,
		cfg:         cfg,
		logger:      logger,
		outbox:      outbox,
		coordinator: coordinator,
		broker:      amqpBroker,
		calendarOn:  cfg.Calendar.URL != "",
	}, nil
}

// Start launches the outbox worker and, when a calendar is configured, the sync
// retry loop. Workers run on their own context so in-flight side effects can finish
// during shutdown.
func (c *Container) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	c.outbox.Start(ctx)

	if c.calendarOn {
		c.workers.Add(1)
		go func() {
			defer c.workers.Done()
			c.coordinator.RetryLoop(ctx, c.cfg.Sync.RetryInterval, retryBatchSize)
		}()
	}
}

// Close drains pending reservation events, waits for in-flight calendar calls and
// releases the broker connection. The HTTP server must be stopped first.
func (c *Container) Close() error {
	c.outbox.Close()
	c.coordinator.Wait()

	if c.cancel != nil {
		c.cancel()
	}
	c.workers.Wait()

	if c.broker != nil {
		if err := c.broker.Close(); err != nil {
			return fmt.Errorf("close broker: %w", err)
		}
	}
	c.logger.Info("background workers stopped")
	return nil
}
