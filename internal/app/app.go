// Package app wires configuration into a running engine. Both the API server
// and the cron runner build their dependencies here.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpapi "event-request-backend/internal/api/http"
	"event-request-backend/internal/cache"
	"event-request-backend/internal/capability"
	"event-request-backend/internal/config"
	"event-request-backend/internal/coverage"
	"event-request-backend/internal/geo"
	"event-request-backend/internal/jobs"
	"event-request-backend/internal/logger"
	"event-request-backend/internal/metrics"
	"event-request-backend/internal/notification"
	"event-request-backend/internal/repository"
	"event-request-backend/internal/repository/memory"
	"event-request-backend/internal/repository/natskv"
	"event-request-backend/internal/repository/postgres"
	"event-request-backend/internal/security"
	"event-request-backend/internal/service"
	"event-request-backend/internal/workflow"
)

type App struct {
	Config        *config.Config
	Requests      repository.EventRequestRepository
	Users         repository.UserRepository
	Notifications repository.NotificationRepository
	Engine        service.Engine
	NotificationS service.NotificationService
	Dispatcher    notification.Dispatcher
	Actions       *cache.Cache[[]workflow.Action]
	Tokens        security.TokenManager
	Registry      *prometheus.Registry

	queue   *notification.Queue
	closers []func()
}

// New opens every backing store named by cfg and builds the engine on top.
// Close releases whatever was opened, including on error.
func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	a := &App{Config: cfg, Registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	var pg *postgres.Store
	if cfg.Storage.Requests == config.StoragePostgres || cfg.Storage.Directory == config.DirectoryPostgres {
		if pg, err = openDatabase(ctx, cfg); err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { pg.Close() })
	}

	var nc *nats.Conn
	if cfg.Storage.Requests == config.StorageNATS || cfg.NATS.Publish {
		logger.Info("Connecting to NATS...", "url", cfg.NATS.URL)
		if nc, err = nats.Connect(cfg.NATS.URL, nats.Name("event-request-backend")); err != nil {
			return nil, fmt.Errorf("failed to connect to nats: %w", err)
		}
		a.closers = append(a.closers, nc.Close)
		logger.Info("NATS connection established")
	}

	if err = a.openRequests(ctx, pg, nc); err != nil {
		return nil, err
	}
	coordinators, err := a.openDirectory(pg)
	if err != nil {
		return nil, err
	}
	if pg != nil {
		a.Notifications = pg.Notifications
	} else {
		a.Notifications = memory.NewNotificationStore()
	}

	if err = a.buildDispatcher(ctx, nc); err != nil {
		return nil, err
	}

	hierarchy := geo.Provider(geo.Flat{})
	if cfg.Geo.HierarchyFile != "" {
		h, err := geo.LoadHierarchy(cfg.Geo.HierarchyFile)
		if err != nil {
			return nil, err
		}
		hierarchy = h
		logger.Info("Geo hierarchy loaded", "file", cfg.Geo.HierarchyFile)
	}

	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Actions = cache.New[[]workflow.Action](cfg.Cache.TTL)
	a.Engine = service.NewEngine(service.Deps{
		Requests:     a.Requests,
		Users:        a.Users,
		Coordinators: coordinators,
		Matcher: coverage.NewMatcher(coverage.Band{
			Min: cfg.Eligibility.AuthorityMin,
			Max: cfg.Eligibility.AuthorityMax,
		}),
		Capabilities:      capability.NewRoleTable(a.Users, cfg.Capabilities),
		Geo:               hierarchy,
		Notifier:          a.Dispatcher,
		Metrics:           metrics.NewPrometheus(a.Registry, ""),
		Actions:           a.Actions,
		AdminAuthorityMin: cfg.Eligibility.AdminAuthorityMin,
	})
	a.NotificationS = service.NewNotificationService(a.Notifications)
	a.Tokens = security.NewTokenManager(
		cfg.JWT.Secret,
		time.Duration(cfg.JWT.AccessTokenExpiry)*time.Minute,
		time.Duration(cfg.JWT.RefreshTokenExpiry)*time.Minute,
	)
	return a, nil
}

func openDatabase(ctx context.Context, cfg *config.Config) (*postgres.Store, error) {
	logger.Debug("Connecting to database...", "connection_string", fmt.Sprintf("%s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database))
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	store := postgres.NewStore(db)
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	logger.Info("Database connection established")
	return store, nil
}

func (a *App) openRequests(ctx context.Context, pg *postgres.Store, nc *nats.Conn) error {
	switch a.Config.Storage.Requests {
	case config.StoragePostgres:
		a.Requests = pg.Requests
	case config.StorageNATS:
		js, err := jetstream.New(nc)
		if err != nil {
			return fmt.Errorf("failed to open jetstream: %w", err)
		}
		store, err := natskv.Open(ctx, js, a.Config.NATS.Bucket, a.Config.NATS.Replicas)
		if err != nil {
			return err
		}
		a.Requests = store
	default:
		logger.Warn("Using in-memory request store; requests are lost on restart")
		a.Requests = memory.NewRequestStore()
	}
	logger.Info("Request store ready", "store", a.Config.Storage.Requests)
	return nil
}

func (a *App) openDirectory(pg *postgres.Store) (repository.CoordinatorRepository, error) {
	if a.Config.Storage.Directory == config.DirectoryPostgres {
		a.Users = pg.Users
		return pg.Coordinators, nil
	}
	dir := memory.NewDirectory()
	if path := a.Config.Storage.DirectoryFile; path != "" {
		loaded, err := memory.LoadDirectory(path)
		if err != nil {
			return nil, err
		}
		dir = loaded
		logger.Info("Directory loaded", "file", path)
	} else {
		logger.Warn("No directory file configured; every actor will be unknown")
	}
	a.Users = dir
	return dir, nil
}

// buildDispatcher fans transitions out to every configured channel behind
// an async queue that retries each channel on its own.
func (a *App) buildDispatcher(ctx context.Context, nc *nats.Conn) error {
	cfg := a.Config
	channels := notification.Multi{notification.NewInApp(a.Notifications)}
	if cfg.SendGrid.APIKey != "" {
		channels = append(channels, notification.NewEmail(a.Users, cfg.SendGrid.APIKey, cfg.SendGrid.FromEmail, cfg.SendGrid.FromName))
		logger.Info("Email notifications enabled", "from", cfg.SendGrid.FromEmail)
	}
	if cfg.Firebase.CredentialsFile != "" {
		client, err := notification.NewFirebaseMessaging(ctx, cfg.Firebase.CredentialsFile, cfg.Firebase.ProjectID)
		if err != nil {
			return err
		}
		channels = append(channels, notification.NewPush(a.Users, client))
		logger.Info("Push notifications enabled", "project", cfg.Firebase.ProjectID)
	}
	if cfg.NATS.Publish && nc != nil {
		channels = append(channels, notification.NewPublisher(nc, cfg.NATS.SubjectPrefix))
		logger.Info("Transition publishing enabled", "prefix", cfg.NATS.SubjectPrefix)
	}

	a.queue = notification.NewQueue(channels, cfg.Notification.Workers, cfg.Notification.QueueSize, cfg.Notification.MaxRetries)
	a.Dispatcher = a.queue
	return nil
}

// Start runs the notification workers until ctx is done.
func (a *App) Start(ctx context.Context) {
	a.queue.Start(ctx)
}

// Drain waits for queued notifications to be delivered.
func (a *App) Drain(ctx context.Context) error {
	return a.queue.Drain(ctx)
}

// Router returns the HTTP API with /metrics served from the app registry.
func (a *App) Router() *mux.Router {
	return httpapi.NewRouter(httpapi.RouterDeps{
		Engine:        a.Engine,
		Notifications: a.NotificationS,
		Tokens:        a.Tokens,
		Metrics:       promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}),
	})
}

// Jobs returns a job runner over the app's engine and stores.
func (a *App) Jobs() *jobs.JobRunner {
	return jobs.NewJobRunner(a.Requests, &jobs.Services{
		Engine:   a.Engine,
		Notifier: a.Dispatcher,
		Actions:  a.Actions,
	}, a.Config)
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
