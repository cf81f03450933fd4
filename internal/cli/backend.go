package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fashionos/sponsor-crm/internal/config"
	"github.com/fashionos/sponsor-crm/internal/database"
	"github.com/fashionos/sponsor-crm/internal/realtime"
	"github.com/fashionos/sponsor-crm/internal/repository"
	"github.com/fashionos/sponsor-crm/internal/service"
	"github.com/fashionos/sponsor-crm/internal/service/kanban"
	"github.com/fashionos/sponsor-crm/internal/service/pipeline"
	"github.com/fashionos/sponsor-crm/internal/service/provisioning"
)

// OpenPostgres loads the environment config and connects the database backend.
func OpenPostgres(ctx context.Context) (Backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	pool, err := database.Connect(ctx, cfg.DatabaseURL, database.PoolOptions{ApplicationName: "pipelinectl", MaxConns: 4})
	if err != nil {
		return nil, err
	}
	return &postgresBackend{cfg: cfg, pool: pool}, nil
}

type postgresBackend struct {
	cfg  *config.Config
	pool *pgxpool.Pool
}

func (b *postgresBackend) Close() {
	b.pool.Close()
}

func (b *postgresBackend) Migrate(ctx context.Context, file string) ([]string, error) {
	if file == "" {
		return database.Migrate(ctx, b.pool)
	}
	if err := database.RunMigrationFile(ctx, b.pool, file); err != nil {
		return nil, err
	}
	return []string{file}, nil
}

func (b *postgresBackend) Reconcile(ctx context.Context) (int, error) {
	provisioner := provisioning.New(
		repository.NewPGXDealsRepository(b.pool),
		repository.NewPGXPackagesRepository(b.pool),
		repository.NewPGXDeliverablesRepository(b.pool),
		provisioning.Options{},
	)
	return provisioner.Reconcile(ctx)
}

func (b *postgresBackend) SeedPackages(ctx context.Context, r io.Reader) (service.SeedSummary, error) {
	return service.NewPackagesService(repository.NewPGXPackagesRepository(b.pool)).Seed(ctx, r)
}

func (b *postgresBackend) Board(ctx context.Context) (kanban.Board, error) {
	store := pipeline.NewStore(repository.NewPGXDealsRepository(b.pool), pipeline.Options{})
	defer store.Close()
	if err := store.Load(ctx); err != nil {
		return kanban.Board{}, err
	}
	return kanban.BuildBoard(store.Snapshot()), nil
}

func (b *postgresBackend) Relay(ctx context.Context) error {
	if b.cfg.RedisURL == "" {
		return errors.New("REDIS_URL is required to relay changes")
	}
	client, err := realtime.NewRedisClient(ctx, b.cfg.RedisURL)
	if err != nil {
		return err
	}
	defer client.Close()

	listener := realtime.NewPostgresListener(b.cfg.DatabaseURL)
	relay := realtime.NewRelay(listener, client)

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- listener.Run(ctx)
	}()

	log.Printf("relay: forwarding database changes to redis")
	relayErr := relay.Run(ctx)
	if err := <-listenErr; err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("postgres listener: %w", err)
	}
	return relayErr
}
