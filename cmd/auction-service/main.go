package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"player-auction/internal/api/handlers"
	apimw "player-auction/internal/api/middleware"
	"player-auction/internal/config"
	"player-auction/internal/domain"
	"player-auction/internal/infrastructure/leader"
	"player-auction/internal/infrastructure/memory"
	"player-auction/internal/infrastructure/mysql"
	"player-auction/internal/infrastructure/redis"
	"player-auction/internal/infrastructure/websocket"
	"player-auction/internal/services"
	"player-auction/pkg/logger"
	"player-auction/pkg/utils"

	redisClient "github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const queueSize = 1024

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	log = logger.NewWithLevel(cfg.Log.Level)
	if cfg.Instance.ID == "" {
		cfg.Instance.ID = "auction-" + uuid.NewString()
	}
	log.Info("Starting auction service", "config", cfg.GetConfigString())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize Redis
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	ledger, closeLedger, err := openLedger(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to open ledger", "driver", cfg.Ledger.Driver, "error", err)
		os.Exit(1)
	}
	defer closeLedger()

	rules := services.NewBiddingRuleDao(rdb,
		services.NewIncrementRule(cfg.Increment.Crossover, cfg.Increment.Small, cfg.Increment.Large))
	if err := rules.LoadRules(ctx); err != nil {
		log.Warn("Failed to load increment rules, using configured defaults", "error", err)
	}

	// Redis sinks are drained by a queue, off the coordinator lock.
	hub := websocket.NewConnectionManager(queueSize, log)
	wsNotifier := websocket.NewWebSocketNotifier(hub)
	stateCache := redis.NewRedisStateCache(rdb, cfg.Redis.SnapshotKey, cfg.Redis.SnapshotTTL)
	mirror := services.NewQueuedBroadcaster(services.FanoutBroadcaster{
		redis.NewEventPublisher(rdb, cfg.Redis.EventsChannel),
		services.NewSnapshotRecorder(stateCache),
	}, queueSize, log)

	coordinator := services.NewCoordinator(
		ledger,
		services.FanoutBroadcaster{wsNotifier, mirror},
		wsNotifier,
		rules,
		clockwork.NewRealClock(),
		services.CoordinatorConfig{
			OpeningWindow:   cfg.Auction.OpeningWindow,
			ContestedWindow: cfg.Auction.ContestedWindow,
			TickInterval:    cfg.Auction.TickInterval,
			InstanceID:      cfg.Instance.ID,
		},
		log,
	)

	leaderElection := leader.NewRedisLeaderElection(rdb, cfg.Leader.Key, cfg.Leader.TTL, log)
	scheduler := services.NewCronScheduler(leaderElection, coordinator, stateCache, services.SchedulerConfig{
		InstanceID:       cfg.Instance.ID,
		CampaignInterval: cfg.Leader.CampaignInterval,
		SnapshotRefresh:  cfg.Auction.SnapshotRefresh,
	}, log)

	stateProvider := services.NewStateProvider(coordinator, stateCache, scheduler.IsLeader, log)
	listener := services.NewEventListener(cfg.Instance.ID, hub, log)
	subscriber := redis.NewRedisEventSubscriber(rdb, cfg.Redis.EventsChannel, log)

	wsHandler := websocket.NewWebSocketHandler(hub, coordinator, stateProvider,
		websocket.DefaultConnectionConfig(), log)

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","method":"${method}","uri":"${uri}","status":${status},"error":"${error}","latency_human":"${latency_human}"}` + "\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.POST, echo.OPTIONS},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
		},
		MaxAge: 86400,
	}))

	auctionHandler := handlers.NewAuctionHandler(coordinator, stateProvider, log)
	auctionHandler.Register(e.Group("/api/v1"), apimw.RequireLeader(scheduler.IsLeader, log))

	e.GET("/ws/*", echo.WrapHandler(handlers.NewWebSocketRouter(wsHandler, log)))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":      "ok",
			"service":     "auction-service",
			"instance_id": cfg.Instance.ID,
			"leader":      scheduler.IsLeader(),
			"phase":       coordinator.Phase().String(),
			"connections": hub.Count(),
			"timestamp":   time.Now().Format(time.RFC3339),
		})
	})

	// Start background services
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	go hub.Start(bgCtx)
	go mirror.Run(bgCtx)
	go func() {
		if err := listener.Start(bgCtx, subscriber); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Event listener stopped", "error", err)
		}
	}()

	if err := scheduler.Start(bgCtx); err != nil {
		log.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("Starting auction server", "address", serverAddr)

	go func() {
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down auction service...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := scheduler.Stop(shutdownCtx); err != nil {
		log.Error("Failed to release leadership", "error", err)
	}
	coordinator.Close()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	stopBackground()

	log.Info("Auction service stopped")
}

func openLedger(ctx context.Context, cfg *config.Config, log logger.Logger) (domain.LedgerStore, func(), error) {
	switch cfg.Ledger.Driver {
	case config.LedgerDriverMemory:
		log.Info("Using in-memory ledger", "teams", len(cfg.Ledger.Seed.Teams), "players", len(cfg.Ledger.Seed.Players))
		return memory.NewLedgerFromSeed(cfg.Ledger.Seed), func() {}, nil
	default:
		db, err := utils.InitializeMysql(ctx, cfg.MySQL)
		if err != nil {
			return nil, nil, err
		}
		if err := mysql.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Info("Connected to MySQL")
		return mysql.NewMySQLLedgerRepository(db), func() {
			if err := db.Close(); err != nil {
				log.Error("Failed to close MySQL connection", "error", err)
			}
		}, nil
	}
}
