package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/Amund211/viewcache/internal/adapters/cache"
	"github.com/Amund211/viewcache/internal/adapters/database"
	"github.com/Amund211/viewcache/internal/adapters/viewloader"
	"github.com/Amund211/viewcache/internal/app"
	"github.com/Amund211/viewcache/internal/config"
	"github.com/Amund211/viewcache/internal/logging"
	"github.com/Amund211/viewcache/internal/ports"
	"github.com/Amund211/viewcache/internal/reporting"
	"github.com/Amund211/viewcache/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	_ "golang.org/x/crypto/x509roots/fallback"
)

func main() {
	ctx := context.Background()

	instanceID := uuid.New().String()
	bootLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("instanceID", instanceID)

	fail := func(logger *slog.Logger, msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	conf, err := config.ConfigFromEnv()
	if err != nil {
		fail(bootLogger, "Failed to load config", "error", err.Error())
	}

	logger := slog.New(
		logging.NewGoogleCloudTracingLogHandler(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logging.ParseLevel(conf.LogLevel())}),
			conf.GCPProject(),
		),
	).With("instanceID", instanceID)
	logger.Info("Loaded config", "config", conf.NonSensitiveString())

	shutdownOTel, err := telemetry.SetupOTelSDK(ctx, "viewcache")
	if err != nil {
		fail(logger, "Failed to initialize OpenTelemetry", "error", err.Error())
	}
	defer func() {
		err := shutdownOTel(context.Background())
		if err != nil {
			logger.Error("Failed to shut down OpenTelemetry", "error", err.Error())
		}
	}()
	logger.Info("Initialized OpenTelemetry")

	sentryMiddleware, flush, err := reporting.NewSentryMiddlewareOrMock(conf)
	if err != nil {
		fail(logger, "Failed to initialize Sentry", "error", err.Error())
	}
	defer flush()
	logger.Info("Initialized Sentry middleware")

	var loader cache.Loader
	switch conf.ViewSource() {
	case config.PostgresSource:
		logger.Info("Initializing database connection")
		db, err := database.NewCloudsqlPostgresDatabase(conf)
		if err != nil {
			fail(logger, "Failed to initialize database", "error", err.Error())
		}
		logger.Info("Initialized database connection")

		schemaName := database.GetSchemaName(!conf.IsProduction())

		err = database.NewDatabaseMigrator(db, logger.With("component", "migrator")).Migrate(ctx, schemaName)
		if err != nil {
			fail(logger, "Failed to migrate database", "error", err.Error())
		}

		loader = viewloader.NewPostgres(db, schemaName)
		logger.Info("Loading views from postgres", "schema", schemaName)
	default:
		loader = viewloader.NewFilesystem()
		logger.Info("Loading views from the filesystem", "root", conf.ViewsRoot())
	}

	views, err := app.NewViews(
		conf.ViewsRoot(),
		app.WithDefaultExtension(conf.ViewsExtension()),
		app.WithCache(conf.CacheViews()),
		app.WithDiagnostics(conf.ViewDiagnostics()),
		app.WithLoader(loader),
	)
	if err != nil {
		fail(logger, "Failed to initialize views", "error", err.Error())
	}

	allowedOrigins, err := ports.NewDomainSuffixes(conf.AllowedOrigins()...)
	if err != nil {
		fail(logger, "Failed to initialize allowed origins", "error", err.Error())
	}

	mux := http.NewServeMux()

	mux.HandleFunc(
		"OPTIONS /v1/views/{path...}",
		ports.BuildCORSHandler(allowedOrigins),
	)
	mux.HandleFunc(
		"GET /v1/views/{path...}",
		ports.MakeRenderViewHandler(
			views.Render,
			allowedOrigins,
			logger.With("port", "renderview"),
			sentryMiddleware,
		),
	)

	mux.HandleFunc("GET /healthz", ports.MakeHealthzHandler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", conf.Port()),
		Handler:           otelhttp.NewHandler(mux, "viewcache"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Init complete")
	err = server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		logger.Info("Server shutdown")
	} else {
		fail(logger, "Server error", "error", err.Error())
	}
}
