// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sis-teknik/servicedesk/internal/config"
	"github.com/sis-teknik/servicedesk/internal/domain"
	"github.com/sis-teknik/servicedesk/internal/identity"
	"github.com/sis-teknik/servicedesk/internal/identity/jwt"
	identitypostgres "github.com/sis-teknik/servicedesk/internal/identity/postgres"
	"github.com/sis-teknik/servicedesk/internal/installation"
	installationpostgres "github.com/sis-teknik/servicedesk/internal/installation/postgres"
	"github.com/sis-teknik/servicedesk/internal/intake"
	"github.com/sis-teknik/servicedesk/internal/invoice"
	invoicepostgres "github.com/sis-teknik/servicedesk/internal/invoice/postgres"
	intakepostgres "github.com/sis-teknik/servicedesk/internal/intake/postgres"
	"github.com/sis-teknik/servicedesk/internal/live"
	"github.com/sis-teknik/servicedesk/internal/notifications"
	notificationspostgres "github.com/sis-teknik/servicedesk/internal/notifications/postgres"
	"github.com/sis-teknik/servicedesk/internal/notifications/sms"
	"github.com/sis-teknik/servicedesk/internal/pkg/ctxlog"
	"github.com/sis-teknik/servicedesk/internal/pkg/httputil"
	"github.com/sis-teknik/servicedesk/internal/pkg/metrics"
	"github.com/sis-teknik/servicedesk/internal/pkg/phonecrypt"
	"github.com/sis-teknik/servicedesk/internal/pkg/postgres"
	"github.com/sis-teknik/servicedesk/internal/version"
)

const (
	collectInterval       = 15 * time.Second
	defaultRequestTimeout = 60 * time.Second
	connectAttemptTimeout = 10 * time.Second
)

// App represents the application instance.
type App struct {
	config             *config.Config
	logger             *slog.Logger
	db                 *pgxpool.Pool
	server             *http.Server
	metricsServer      *http.Server
	metricsCancel      context.CancelFunc
	workerCancel       context.CancelFunc
	notificationWorker *notifications.Worker
	hub                *live.Hub
	intakeService      *intake.Service
	installService     *installation.Service
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	if cfg.Database.MigrateOnStart {
		if err := postgres.Migrate(cfg.Database.URL, cfg.Database.MigrationsDir); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
		AttemptTimeout:  connectAttemptTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	metricsCtx, metricsCancel := context.WithCancel(context.Background())

	app := &App{
		config:        cfg,
		logger:        logger,
		db:            db,
		metricsCancel: metricsCancel,
		hub:           live.NewHub(),
	}

	go app.collectDBMetrics(metricsCtx)

	router, err := app.setupRouter(metricsCtx)
	if err != nil {
		app.stopBackground()
		db.Close()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the HTTP servers and blocks until the main server stops.
func (a *App) Run() error {
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
		"version", version.String(),
	)

	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	a.stopBackground()

	// Hijacked websocket connections are not tracked by http.Server.
	a.hub.Close()

	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	a.intakeService.Wait()
	a.installService.Wait()

	a.db.Close()

	return errors.Join(errs...)
}

// stopBackground stops the queue worker and then cancels its context, so a
// send in flight completes and is recorded before the pool goes away.
func (a *App) stopBackground() {
	if a.notificationWorker != nil {
		a.notificationWorker.Stop()
	}
	if a.workerCancel != nil {
		a.workerCancel()
	}
	a.metricsCancel()
}

func (a *App) collectDBMetrics(ctx context.Context) {
	metrics.RecordDBPoolMetrics(a.db)

	ticker := time.NewTicker(collectInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordDBPoolMetrics(a.db)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) collectQueueMetrics(ctx context.Context, service *notifications.Service) {
	service.CollectStats(ctx)

	ticker := time.NewTicker(collectInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			service.CollectStats(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// NotificationWorker returns the queue worker instance.
// Returns nil if notifications are disabled.
func (a *App) NotificationWorker() *notifications.Worker {
	return a.notificationWorker
}

// Hub returns the live-update hub.
func (a *App) Hub() *live.Hub {
	return a.hub
}

func (a *App) setupRouter(ctx context.Context) (*chi.Mux, error) {
	cfg := a.config

	cipher, err := phonecrypt.New(cfg.Crypto.PhoneKey)
	if err != nil {
		return nil, fmt.Errorf("create phone cipher: %w", err)
	}

	queueRepo := notificationspostgres.NewRepository(a.db, cfg.Notifications.Worker.ClaimTTL)
	queueService := notifications.NewService(queueRepo)

	slog.Info("notifications configured",
		"enabled", cfg.Notifications.Enabled,
		"status_delay", cfg.Notifications.StatusDelay,
	)

	// A nil sender keeps queueing status SMS but disables delivery.
	var sender notifications.Sender
	if cfg.Notifications.Enabled {
		gateway, err := sms.NewGateway(sms.Config{
			URL:                cfg.SMS.URL,
			Username:           cfg.SMS.Username,
			Password:           cfg.SMS.Password,
			Sender:             cfg.SMS.Sender,
			Title:              cfg.SMS.Title,
			Timeout:            cfg.SMS.Timeout,
			InsecureSkipVerify: cfg.SMS.InsecureSkipVerify,
			RateLimit:          cfg.SMS.RateLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("create sms gateway: %w", err)
		}
		sender = gateway

		a.notificationWorker = notifications.NewWorker(notifications.WorkerConfig{
			BatchSize:    cfg.Notifications.Worker.BatchSize,
			PollInterval: cfg.Notifications.Worker.PollInterval,
			RetryDelay:   cfg.Notifications.Worker.RetryDelay,
		}, queueRepo, gateway)

		workerCtx, workerCancel := context.WithCancel(context.Background())
		a.workerCancel = workerCancel
		a.notificationWorker.Start(workerCtx)
	} else {
		slog.Warn("sms delivery is disabled: status messages will queue but not be sent")
	}

	go a.collectQueueMetrics(ctx, queueService)

	identityRepo := identitypostgres.NewRepository(a.db)
	jwtAuth, err := jwt.NewAuthenticator(jwt.Config{
		SecretKey:     cfg.JWT.SecretKey,
		TokenDuration: cfg.JWT.TokenDuration,
	})
	if err != nil {
		return nil, fmt.Errorf("create authenticator: %w", err)
	}
	identityService := identity.NewService(identityRepo, jwtAuth)

	bootstrapCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := identityService.EnsureBootstrapAdmin(bootstrapCtx, cfg.Auth.BootstrapAdminPassword); err != nil {
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}

	a.intakeService = intake.NewService(intakepostgres.NewRepository(a.db), queueRepo, sender, cipher, intake.Config{
		PublicURL:   cfg.Notifications.PublicURL,
		StatusDelay: cfg.Notifications.StatusDelay,
	})
	a.installService = installation.NewService(installationpostgres.NewRepository(a.db), sender, cipher, installation.Config{
		PublicURL: cfg.Notifications.PublicURL,
	})

	// Without a secret, uploads rely on the unguessable id and the rate limit.
	var captcha invoice.CaptchaVerifier
	if cfg.Invoice.TurnstileSecret != "" {
		captcha = invoice.NewTurnstile(cfg.Invoice.TurnstileSecret, cfg.Invoice.TurnstileURL)
	} else {
		slog.Warn("invoice uploads are not captcha protected")
	}
	invoiceService := invoice.NewService(invoicepostgres.NewRepository(a.db), captcha, invoice.Config{
		MaxBytes:  cfg.Invoice.MaxBytes,
		RateLimit: cfg.Invoice.RateLimit,
		Burst:     cfg.Invoice.Burst,
	})

	identityHandler := identity.NewHandler(identityService)
	invoiceHandler := invoice.NewHandler(invoiceService)
	intakeHandler := intake.NewHandler(a.intakeService)
	installationHandler := installation.NewHandler(a.installService)
	queueHandler := notifications.NewHandler(queueService)
	liveHandler := live.NewHandler(a.hub, cfg.Live.OriginPatterns)

	requestTimeout := cfg.Server.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}

	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		http.ServeFile(w, r, "api/openapi/openapi.yaml")
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Long-lived: must stay outside the request timeout.
		liveHandler.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))

			identityHandler.RegisterRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(a.hub.PublishOnMutation)
				invoiceHandler.RegisterPublicRoutes(r)
			})

			r.Group(func(r chi.Router) {
				r.Use(httputil.AuthMiddleware(jwtAuth))
				r.Use(a.hub.PublishOnMutation)

				identityHandler.RegisterProtectedRoutes(r)
				installationHandler.RegisterRoutes(r)

				r.Group(func(r chi.Router) {
					r.Use(httputil.RequireRole(domain.RoleTechnician))
					intakeHandler.RegisterRoutes(r)
					installationHandler.RegisterManagementRoutes(r)
					invoiceHandler.RegisterRoutes(r)
				})

				r.Group(func(r chi.Router) {
					r.Use(httputil.RequireRole(domain.RoleAdmin))
					intakeHandler.RegisterAdminRoutes(r)
					identityHandler.RegisterAdminRoutes(r)
					queueHandler.RegisterRoutes(r)
				})
			})
		})
	})

	return r, nil
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
