package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/scholaraid/apiserver/config"
	"github.com/scholaraid/apiserver/internal/db"
	"github.com/scholaraid/apiserver/internal/handlers"
	"github.com/scholaraid/apiserver/internal/identity"
	"github.com/scholaraid/apiserver/internal/metrics"
	"github.com/scholaraid/apiserver/internal/mq"
	"github.com/scholaraid/apiserver/internal/pipeline"
	"github.com/scholaraid/apiserver/internal/services"
	"github.com/scholaraid/apiserver/internal/storage"
	"github.com/scholaraid/apiserver/internal/store"
	"go.uber.org/zap"
)

const maxRequestBytes = 12 << 20

// ProfileStore is the profile persistence shared by auth, accounts and
// administration.
type ProfileStore interface {
	services.ProfileRepository
	services.AccountProfiles
}

// Dependencies are the collaborators the HTTP layer is built from.
type Dependencies struct {
	Provider      identity.Provider
	Profiles      ProfileStore
	Scholarships  services.ScholarshipRepository
	Applications  services.ApplicationRepository
	Documents     services.DocumentRepository
	Notifications services.NotificationRepository
	// Storage is nil when document uploads are disabled.
	Storage *storage.Storage
	// Events is nil when the event bus is disabled.
	Events services.EventPublisher
	Logger *zap.Logger
}

// NewHandler wires services and routes into the API handler.
func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	notifications := services.NewNotificationService(deps.Notifications, deps.Events, logger)
	accounts := services.NewAccountService(deps.Provider, deps.Profiles, notifications, logger)
	profiles := services.NewProfileService(deps.Profiles)
	scholarships := services.NewScholarshipService(deps.Scholarships)
	applications := services.NewApplicationService(deps.Applications, deps.Scholarships, deps.Documents, notifications)
	documents := services.NewDocumentService(deps.Documents, applications, deps.Storage, logger)
	applications.WithDocumentCleanup(documents)
	admin := services.NewAdminService(deps.Profiles, deps.Scholarships, deps.Applications)

	errs := pipeline.NewErrorHandler(logger, cfg.IsProduction(), cfg.IsDevelopment())
	builder := pipeline.NewBuilder(
		pipeline.NewAuthenticator(deps.Provider, deps.Profiles),
		pipeline.NewValidator(cfg.IsProduction()),
		errs,
	)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		requestLogger(logger),
		metrics.InstrumentHandler,
		corsHandler(cfg.CORSOrigins),
		securityHeaders(!cfg.IsProduction()),
		middleware.RequestSize(maxRequestBytes),
	)
	router.NotFound(pipeline.NotFoundHandler)
	router.MethodNotAllowed(pipeline.NotFoundHandler)

	router.Handle("/metrics", metrics.Handler())

	limiter := NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	router.Route("/api", func(r chi.Router) {
		handlers.HealthRouter(r, builder, cfg.Env)
		r.Route("/auth", func(r chi.Router) {
			r.Use(limiter.Handler)
			handlers.AuthRouter(r, builder, accounts)
		})
		r.Route("/profiles", func(r chi.Router) {
			handlers.ProfileRouter(r, builder, profiles)
		})
		r.Route("/scholarships", func(r chi.Router) {
			handlers.ScholarshipRouter(r, builder, scholarships)
		})
		r.Route("/applications", func(r chi.Router) {
			handlers.ApplicationRouter(r, builder, applications, documents)
		})
		r.Route("/notifications", func(r chi.Router) {
			handlers.NotificationRouter(r, builder, notifications)
		})
		r.Route("/admin", func(r chi.Router) {
			handlers.AdminRouter(r, builder, admin, scholarships, applications)
		})
	})

	return router
}

// Server wraps the HTTP server and the resources it owns.
type Server struct {
	httpServer *http.Server
	db         *sql.DB
	storage    *storage.Storage
	bus        *mq.MQ
	logger     *zap.Logger
}

// New connects the database, identity provider, object storage and event
// bus selected by cfg and builds the HTTP server.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	dbConn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	provider, err := NewProvider(cfg, store.NewCredentialRepository(dbConn), logger)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	bus, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		if objects != nil {
			_ = objects.Close()
		}
		return nil, fmt.Errorf("open mq: %w", err)
	}

	deps := Dependencies{
		Provider:      provider,
		Profiles:      store.NewProfileRepository(dbConn),
		Scholarships:  store.NewScholarshipRepository(dbConn),
		Applications:  store.NewApplicationRepository(dbConn),
		Documents:     store.NewDocumentRepository(dbConn),
		Notifications: store.NewNotificationRepository(dbConn),
		Storage:       objects,
		Logger:        logger,
	}
	if bus != nil {
		deps.Events = mq.NewNotificationPublisher(bus, cfg.MQ.NotificationsChannel)
	}

	port := cfg.ServerPort
	if port == 0 {
		port = 4000
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      NewHandler(cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		db:         dbConn,
		storage:    objects,
		bus:        bus,
		logger:     logger,
	}, nil
}

// NewProvider builds the identity provider selected by cfg. Credentials are
// only used by the local provider.
func NewProvider(cfg config.Config, credentials identity.CredentialStore, logger *zap.Logger) (identity.Provider, error) {
	switch cfg.AuthProvider {
	case config.AuthProviderLocal:
		return identity.NewLocal(credentials, cfg.JWTSecret, logger)
	case config.AuthProviderSupabase, "":
		return identity.NewSupabase(identity.SupabaseConfig{
			URL:            cfg.Supabase.URL,
			AnonKey:        cfg.Supabase.AnonKey,
			ServiceRoleKey: cfg.Supabase.ServiceRoleKey,
		})
	default:
		return nil, fmt.Errorf("unknown auth provider %q", cfg.AuthProvider)
	}
}

// Addr is the address the server listens on.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections, drains in-flight requests and then
// releases the database, storage and event bus.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.bus != nil {
		if cerr := s.bus.Close(); cerr != nil {
			s.logger.Warn("failed to close mq", zap.Error(cerr))
		}
	}
	if s.storage != nil {
		if cerr := s.storage.Close(); cerr != nil {
			s.logger.Warn("failed to close storage", zap.Error(cerr))
		}
	}
	if s.db != nil {
		if cerr := s.db.Close(); cerr != nil {
			s.logger.Warn("failed to close database", zap.Error(cerr))
		}
	}
	return err
}
