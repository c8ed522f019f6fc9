package app

import (
	"context"
	"fmt"
	"time"

	"chatviewer/internal/app/export"
	"chatviewer/internal/app/feed"
	"chatviewer/internal/app/health"
	"chatviewer/internal/app/render"
	"chatviewer/internal/app/transcript"
	"chatviewer/internal/config"
	"chatviewer/internal/db"
	"chatviewer/internal/providers/discord"
	"chatviewer/internal/providers/minio"
	"chatviewer/internal/providers/redis"
	"chatviewer/internal/router"
	"chatviewer/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

type Application struct {
	Router *router.Router
	DB     *gorm.DB
	Engine *feed.Engine

	cfg     *config.Config
	logger  *zap.Logger
	discord *discord.Provider
	redis   *redis.RedisProvider
	bus     *utils.EventBus
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewPersister builds the transcript persister selected by STORE_BACKEND.
// It returns a nil persister for the "none" backend.
func NewPersister(cfg *config.Config, logger *zap.Logger) (transcript.Persister, *gorm.DB, error) {
	switch cfg.StoreBackend {
	case config.BackendNone:
		return nil, nil, nil
	case config.BackendFile:
		return transcript.NewFilePersister(cfg.StoreFile), nil, nil
	case config.BackendPostgres:
		dbConn, err := db.Connect(cfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := db.Migrate(dbConn, logger); err != nil {
			return nil, nil, fmt.Errorf("failed to migrate: %w", err)
		}
		return transcript.NewRepository(dbConn, cfg.ChannelID), dbConn, nil
	case config.BackendMinio:
		provider, err := minio.NewMinioProvider(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return provider, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func Bootstrap(cfg *config.Config, logger *zap.Logger) (*Application, error) {
	sessionID := uuid.NewString()
	logger = logger.With(zap.String("session_id", sessionID))

	persister, dbConn, err := NewPersister(cfg, logger)
	if err != nil {
		return nil, err
	}

	var (
		redisProvider *redis.RedisProvider
		roleCache     discord.Cache
	)
	if cfg.RedisURL != "" {
		redisProvider = redis.NewRedisProvider(cfg.RedisURL, logger, cfg.RedisTTL)
		roleCache = redisProvider
	} else {
		roleCache = discord.NewMemoryCache(cfg.RedisTTL)
	}

	discordProvider, err := discord.NewDiscordProvider(cfg.Token, cfg.ChannelID, roleCache, logger)
	if err != nil {
		return nil, err
	}

	roleEmoji, err := cfg.LoadRoleEmoji()
	if err != nil {
		logger.Warn("Failed to load role emoji map, using defaults", zap.Error(err))
	}
	renderer, err := render.NewRenderer(render.NewColorAssigner(), roleEmoji, time.Local)
	if err != nil {
		return nil, err
	}

	store := transcript.NewStore(persister)
	engine := feed.NewEngine(discordProvider, store, logger, cfg.UpstreamTimeout)
	eventBus := utils.NewEventBus()
	engine.Subscribe(eventBus)

	feedService := feed.NewService(engine, discordProvider, cfg.PageSize, logger)
	feedHandler := feed.NewHandler(feedService, renderer, store.Get, feed.HandlerOptions{
		Title:          cfg.Title,
		PageSize:       cfg.PageSize,
		RefreshSeconds: cfg.RefreshSeconds,
	}, logger)
	exportHandler := export.NewHandler(feedService, renderer, logger)

	checker := &utils.HealthChecker{
		DB: dbConn,
		Probes: []utils.Probe{
			{Name: "Discord", Check: discordProvider.Ping},
			{Name: "Feed", Check: func(context.Context) error {
				if !engine.Synced() {
					return feed.ErrNotSynced
				}
				return nil
			}},
		},
	}
	if redisProvider != nil {
		checker.Redis = redisProvider.Client
	}
	healthHandler := health.NewHandler(health.NewService(checker))

	r := router.NewRouter(logger)
	r.RegisterHealthRoutes(healthHandler)
	r.RegisterMetricsRoutes()
	r.RegisterFeedRoutes(feedHandler)
	r.RegisterExportRoutes(exportHandler)

	return &Application{
		Router:  r,
		DB:      dbConn,
		Engine:  engine,
		cfg:     cfg,
		logger:  logger,
		discord: discordProvider,
		redis:   redisProvider,
		bus:     eventBus,
		done:    make(chan struct{}),
	}, nil
}

// Start loads the persisted transcript, connects to the gateway and runs the
// background sync loops until Stop is called.
func (a *Application) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	// A failed load is logged by the engine; the session starts empty.
	_ = a.Engine.LoadStore(ctx)

	go a.bus.Run(ctx)

	if err := a.discord.Open(ctx, a.bus); err != nil {
		a.cancel()
		close(a.done)
		return err
	}

	go func() {
		defer close(a.done)
		limiter := rate.NewLimiter(rate.Every(5*time.Second), 1)
		if err := a.Engine.RunInitialLoad(ctx, a.cfg.PageSize, limiter); err != nil {
			a.logger.Info("Initial load abandoned", zap.Error(err))
		}
		a.saveLoop(ctx)
	}()
	return nil
}

func (a *Application) saveLoop(ctx context.Context) {
	if a.cfg.StoreBackend == config.BackendNone || a.cfg.SaveInterval <= 0 {
		return
	}
	ticker := time.NewTicker(a.cfg.SaveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = a.Engine.SaveStore(ctx)
		}
	}
}

// Stop halts background work, writes a final snapshot and closes providers.
func (a *Application) Stop(ctx context.Context) {
	if a.cancel != nil {
		a.cancel()
		select {
		case <-a.done:
		case <-ctx.Done():
		}
	}

	if a.cfg.StoreBackend != config.BackendNone {
		if err := a.Engine.SaveStore(ctx); err == nil {
			a.logger.Info("Transcript saved", zap.Int("records", a.Engine.Store().Len()))
		}
	}

	if err := a.discord.Close(); err != nil {
		a.logger.Warn("Failed to close discord session", zap.Error(err))
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
