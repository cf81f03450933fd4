package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/fashionos/sponsor-crm/internal/agent"
	"github.com/fashionos/sponsor-crm/internal/auth"
	"github.com/fashionos/sponsor-crm/internal/config"
	"github.com/fashionos/sponsor-crm/internal/database"
	"github.com/fashionos/sponsor-crm/internal/handler"
	middlewarepkg "github.com/fashionos/sponsor-crm/internal/middleware"
	"github.com/fashionos/sponsor-crm/internal/realtime"
	"github.com/fashionos/sponsor-crm/internal/repository"
	"github.com/fashionos/sponsor-crm/internal/router"
	"github.com/fashionos/sponsor-crm/internal/service"
	"github.com/fashionos/sponsor-crm/internal/service/kanban"
	"github.com/fashionos/sponsor-crm/internal/service/pipeline"
	"github.com/fashionos/sponsor-crm/internal/service/provisioning"
	"github.com/fashionos/sponsor-crm/internal/storage"
)

const (
	pipelineLoadTimeout = 30 * time.Second
	maxLoadBackoff      = 30 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL, database.PoolOptions{
		ApplicationName: "sponsor-crm-api",
		MaxConns:        cfg.DatabaseMaxConns,
	})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer pool.Close()

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)

	usersRepo := repository.NewPGXUsersRepository(pool)
	sponsorsRepo := repository.NewPGXSponsorsRepository(pool)
	contactsRepo := repository.NewPGXContactsRepository(pool)
	interactionsRepo := repository.NewPGXInteractionsRepository(pool)
	eventsRepo := repository.NewPGXEventsRepository(pool)
	dealsRepo := repository.NewPGXDealsRepository(pool)
	deliverablesRepo := repository.NewPGXDeliverablesRepository(pool)
	packagesRepo := repository.NewPGXPackagesRepository(pool)
	activationsRepo := repository.NewPGXActivationsRepository(pool)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	provisioner := provisioning.New(dealsRepo, packagesRepo, deliverablesRepo, provisioning.Options{
		ReconcileInterval: cfg.ReconcileInterval,
	})
	provisioner.Start(workerCtx)

	store := pipeline.NewStore(dealsRepo, pipeline.Options{
		Provisioner: provisioner,
		Debounce:    cfg.RefreshDebounce,
	})
	defer store.Close()
	go loadPipeline(workerCtx, store)
	go store.Resync(workerCtx, cfg.ResyncInterval)

	listener, closeListener, err := openListener(workerCtx, cfg)
	if err != nil {
		log.Fatalf("failed to start realtime listener: %v", err)
	}
	defer closeListener()
	if listener != nil {
		handle, err := store.Watch(workerCtx, listener)
		if err != nil {
			log.Fatalf("failed to watch deals: %v", err)
		}
		defer handle.Close()
	}

	var uploader service.Uploader
	if cfg.StorageBucket != "" {
		gcsUploader, err := storage.NewGCSUploader(context.Background(), cfg.StorageBucket, cfg.StoragePrefix, cfg.StorageCredentialsFile)
		if err != nil {
			log.Fatalf("failed to create storage client: %v", err)
		}
		uploader = gcsUploader
	} else {
		log.Printf("storage: STORAGE_BUCKET not set, uploads disabled")
	}

	agentClient := agent.NewClient(agent.NewFunctionInvoker(nil, cfg.FunctionsBaseURL, cfg.FunctionsAPIKey, cfg.AITimeout))

	authService := service.NewAuthService(usersRepo, jwtManager)
	userService := service.NewUserService(usersRepo)
	sponsorsService := service.NewSponsorsService(sponsorsRepo, contactsRepo, interactionsRepo, service.NewContactProcessor(cfg.PhoneRegion), agentClient)
	dealsService := service.NewDealsService(dealsRepo, sponsorsRepo, store, provisioner)
	deliverablesService := service.NewDeliverablesService(deliverablesRepo, dealsRepo, sponsorsRepo, uploader, store)
	packagesService := service.NewPackagesService(packagesRepo)
	agentService := service.NewAgentService(agentClient, sponsorsService, dealsService, dealsRepo, activationsRepo, uploader)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middlewarepkg.RequestID())
	e.Use(middlewarepkg.Logging())
	e.Use(echoMiddleware.Recover())

	router.Register(e, cfg, jwtManager, router.Handlers{
		Health:       handler.NewHealthHandler(store),
		Auth:         handler.NewAuthHandler(authService),
		Users:        handler.NewUserAdminHandler(userService),
		Sponsors:     handler.NewSponsorsHandler(sponsorsService),
		Events:       handler.NewEventsHandler(eventsRepo),
		Deals:        handler.NewDealsHandler(dealsService),
		Deliverables: handler.NewDeliverablesHandler(deliverablesService),
		Packages:     handler.NewPackagesHandler(packagesService),
		Pipeline:     handler.NewPipelineHandler(kanban.NewSessions(store), store),
		Agent:        handler.NewAgentHandler(agentService),
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- e.Start(":" + cfg.Port)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("received signal %s, shutting down", sig)
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
		return
	}

	stopWorkers()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}

// loadPipeline populates the store, retrying until the first load succeeds.
// /healthz reports degraded meanwhile.
func loadPipeline(ctx context.Context, store *pipeline.Store) {
	backoff := time.Second
	for {
		loadCtx, cancel := context.WithTimeout(ctx, pipelineLoadTimeout)
		err := store.Load(loadCtx)
		cancel()
		if err == nil {
			log.Printf("pipeline: loaded deals=%d", len(store.Snapshot()))
			return
		}
		log.Printf("pipeline: initial load failed retry_in=%s err=%v", backoff, err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxLoadBackoff {
			backoff = maxLoadBackoff
		}
	}
}

// openListener starts the configured realtime backend. The returned listener is
// nil when realtime updates are disabled.
func openListener(ctx context.Context, cfg *config.Config) (realtime.Listener, func(), error) {
	switch cfg.RealtimeBackend {
	case config.RealtimeNone:
		log.Printf("realtime: disabled, the board refreshes on local writes only")
		return nil, func() {}, nil
	case config.RealtimeRedis:
		client, err := realtime.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		listener := realtime.NewRedisListener(client)
		go runListener(ctx, config.RealtimeRedis, listener.Run)
		return listener, func() { client.Close() }, nil
	default:
		listener := realtime.NewPostgresListener(cfg.DatabaseURL)
		go runListener(ctx, config.RealtimePostgres, listener.Run)
		return listener, func() {}, nil
	}
}

func runListener(ctx context.Context, backend string, run func(context.Context) error) {
	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("realtime: listener stopped backend=%s err=%v", backend, err)
	}
}
