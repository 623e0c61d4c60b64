package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/septivank/meter-field-ops/internal/archive"
	"github.com/septivank/meter-field-ops/internal/auth"
	"github.com/septivank/meter-field-ops/internal/cache"
	"github.com/septivank/meter-field-ops/internal/config"
	"github.com/septivank/meter-field-ops/internal/db"
	"github.com/septivank/meter-field-ops/internal/httpapi"
	"github.com/septivank/meter-field-ops/internal/importer"
	"github.com/septivank/meter-field-ops/internal/metrics"
	"github.com/septivank/meter-field-ops/internal/mq"
	"github.com/septivank/meter-field-ops/internal/repository"
	"github.com/septivank/meter-field-ops/internal/route"
	"github.com/septivank/meter-field-ops/internal/service"
	"github.com/septivank/meter-field-ops/internal/validator"
	"github.com/septivank/meter-field-ops/tools/cutoff"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func startServer(
	lc fx.Lifecycle,
	cfg *config.Config,
	handler *httpapi.Handler,
	jwtManager *auth.JWTManager,
	store repository.Gateway,
	m *metrics.Metrics,
	logger *zap.Logger,
) *http.Server {
	router := httpapi.NewRouter(
		handler,
		httpapi.NewAuthMiddleware(jwtManager, store, logger),
		m,
		cfg.HTTP.CorsAllowedOrigins,
		logger,
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServicePort),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return fmt.Errorf("[HTTP] cannot listen on %s: %w", srv.Addr, err)
			}
			logger.Info("http server listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("failed to shut down http server", zap.Error(err))
				return err
			}
			logger.Info("http server stopped gracefully")
			return nil
		},
	})

	return srv
}

// ProvideDBPool creates a new database pool instance
func ProvideDBPool(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*pgxpool.Pool, error) {
	return db.NewPool(lc, logger, cfg.Database.URL, cfg.Database.EnsureSchema)
}

// ProvideRepository creates a new repository instance
func ProvideRepository(pool *pgxpool.Pool, cfg *config.Config) *repository.Repository {
	return repository.NewRepository(pool, cfg.Import)
}

// ProvideGateway exposes the repository as the record store gateway
func ProvideGateway(repo *repository.Repository) repository.Gateway {
	return repo
}

// ProvideMQConnection creates a new RabbitMQ connection instance
func ProvideMQConnection(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*mq.Connection, error) {
	return mq.NewConnection(lc, logger, cfg.RabbitMQ.URL)
}

// ProvidePublisher creates a new publisher instance
func ProvidePublisher(lc fx.Lifecycle, conn *mq.Connection, cfg *config.Config, logger *zap.Logger) (*mq.Publisher, error) {
	timeout := time.Duration(cfg.RabbitMQ.PublishTimeoutSecond) * time.Second
	publisher, err := mq.NewPublisher(conn, cfg.RabbitMQ.EventsExchange, timeout, logger)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return publisher.Close()
		},
	})
	return publisher, nil
}

// ProvideRouteCache creates the redis route cache
func ProvideRouteCache(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) *cache.RouteCache {
	c := cache.NewRouteCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.RouteTTL, logger)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return c.Close()
		},
	})
	return c
}

// ProvideArchive creates the upload archive store
func ProvideArchive(cfg *config.Config, logger *zap.Logger) (*archive.Store, error) {
	return archive.NewStore(context.Background(), cfg.Archive, logger)
}

func ProvideMetrics() *metrics.Metrics {
	return metrics.New()
}

// ProvideEntryValidator creates the batch entry validator
func ProvideEntryValidator(cfg *config.Config) (*validator.Validator, error) {
	return validator.NewValidator(cfg.Entry.MaxLines, cfg.Entry.ValidPrefixes)
}

// ProvideCutoffWindow creates the month-end cutoff window
func ProvideCutoffWindow(cfg *config.Config) (*cutoff.Window, error) {
	e := cfg.Entry
	return cutoff.NewWindow(e.CutoffStartDay, e.CutoffStartHour, e.CutoffEndDay, e.CutoffEndHour, e.Timezone)
}

func ProvideAuthService(store repository.Gateway, cfg *config.Config, logger *zap.Logger) *auth.Service {
	return auth.NewService(store, cfg.Auth, logger)
}

func ProvideJWTManager(cfg *config.Config) *auth.JWTManager {
	return auth.NewJWTManager(cfg.Auth)
}

func ProvideResolver(store repository.Gateway, logger *zap.Logger) *route.Resolver {
	return route.NewResolver(store, logger)
}

func ProvideFilter(store repository.Gateway, routes *cache.RouteCache, logger *zap.Logger) *route.Filter {
	return route.NewFilter(store, routes, logger)
}

// ProvideLoader creates the bulk loader
func ProvideLoader(
	store repository.Gateway,
	archiveStore *archive.Store,
	routes *cache.RouteCache,
	publisher *mq.Publisher,
	m *metrics.Metrics,
	cfg *config.Config,
	logger *zap.Logger,
) *importer.Loader {
	return importer.NewLoader(importer.LoaderConfig{
		Store:      store,
		Registry:   importer.NewRegistry(),
		Import:     cfg.Import,
		Archive:    archiveStore,
		Routes:     routes,
		Publisher:  publisher,
		RoutingKey: cfg.RabbitMQ.ImportRoutingKey,
		Metrics:    m,
		Logger:     logger,
	})
}

// ProvideEntryService creates the batch entry service
func ProvideEntryService(
	store repository.Gateway,
	v *validator.Validator,
	gate *cutoff.Window,
	publisher *mq.Publisher,
	m *metrics.Metrics,
	cfg *config.Config,
	logger *zap.Logger,
) *service.EntryService {
	return service.NewEntryService(store, v, gate, publisher, cfg.RabbitMQ.EntryRoutingKey, m, logger)
}

func ProvideArrearsService(store repository.Gateway, logger *zap.Logger) *service.ArrearsService {
	return service.NewArrearsService(store, logger)
}

func ProvideAdminService(store repository.Gateway, routes *cache.RouteCache, loader *importer.Loader, logger *zap.Logger) *service.AdminService {
	return service.NewAdminService(store, routes, loader, logger)
}

// ProvideHandler assembles the HTTP handlers
func ProvideHandler(
	repo *repository.Repository,
	authService *auth.Service,
	jwtManager *auth.JWTManager,
	resolver *route.Resolver,
	filter *route.Filter,
	entries *service.EntryService,
	arrears *service.ArrearsService,
	admin *service.AdminService,
	loader *importer.Loader,
	cfg *config.Config,
	logger *zap.Logger,
) (*httpapi.Handler, error) {
	validate, err := httpapi.NewValidate()
	if err != nil {
		return nil, err
	}

	return httpapi.NewHandler(httpapi.Deps{
		Auth:           authService,
		JWT:            jwtManager,
		Resolver:       resolver,
		Filter:         filter,
		Entries:        entries,
		Arrears:        arrears,
		Admin:          admin,
		Loader:         loader,
		Validate:       validate,
		MaxUploadBytes: cfg.HTTP.MaxUploadBytes,
		StoreReady:     repo.Configured,
		Logger:         logger,
	}), nil
}
