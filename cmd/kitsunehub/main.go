package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/log/global"
	"golang.org/x/sync/errgroup"

	"github.com/eagraf/kitsune-hub/internal/api"
	"github.com/eagraf/kitsune-hub/internal/batch"
	"github.com/eagraf/kitsune-hub/internal/config"
	"github.com/eagraf/kitsune-hub/internal/hub"
	"github.com/eagraf/kitsune-hub/internal/installer"
	"github.com/eagraf/kitsune-hub/internal/logging"
	"github.com/eagraf/kitsune-hub/internal/logstore"
	"github.com/eagraf/kitsune-hub/internal/pubsub"
	"github.com/eagraf/kitsune-hub/internal/registry"
	"github.com/eagraf/kitsune-hub/internal/script"
	"github.com/eagraf/kitsune-hub/internal/server"
	"github.com/eagraf/kitsune-hub/internal/telemetry"
)

func main() {
	cmd := &cli.Command{
		Name:   "kitsunehub",
		Usage:  "Serve the installer catalog API",
		Flags:  getFlags(),
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("error running command")
	}
}

func run(_ context.Context, cmd *cli.Command) error {
	hubConfig, err := config.NewHubConfig(overrides(cmd))
	if err != nil {
		log.Fatal().Err(err).Msg("error loading hub config")
	}

	// ctx.Done() returns when SIGINT is called or cancel() is called.
	// calling cancel() unregisters the signal trapping.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var logWriters []io.Writer
	if hubConfig.OpenTelemetryEnabled() {
		otelClose, err := telemetry.SetupOpenTelemetry(ctx, hubConfig.Environment())
		if err != nil {
			log.Fatal().Err(err).Msg("failed setting up open telemetry for metric/trace/log collection")
		}
		defer otelClose(context.Background())
		logWriters = append(logWriters, telemetry.NewOtelLogWriter(global.GetLoggerProvider().Logger("zerolog")))
	}
	logger := logging.NewLogger(hubConfig.LogLevel(), logWriters...)
	zerolog.SetGlobalLevel(hubConfig.LogLevel())

	scriptConfig, err := hubConfig.Script()
	if err != nil {
		log.Fatal().Err(err).Msg("error reading script config")
	}
	runner := script.NewProcessRunner(scriptConfig.Interpreter, scriptConfig.MaxConcurrent)

	logs, err := logstore.Open(hubConfig.LogBackend(), hubConfig.LogsPath(), hubConfig.LogDSN())
	if err != nil {
		log.Fatal().Err(err).Msg("error opening installer log store")
	}

	reg := registry.New(hubConfig.InstallersPath(), runner, registry.WithPollInterval(hubConfig.PollInterval()))
	// A broken installers directory is retried by the watch loop, so it does not stop startup.
	err = reg.LoadAll()
	if err != nil {
		log.Error().Err(err).Msgf("error loading installers from %s", reg.Dir())
	}
	log.Info().Msgf("Loaded %d installers from %s", reg.Len(), reg.Dir())

	catalog := hub.NewCatalog(installer.Builtins(), reg, logs)
	batches := batch.NewOrchestrator(catalog, logs, batch.WithObserver(catalog.ObserveBatch))

	// egCtx is cancelled if any function called with eg.Go() returns an error.
	eg, egCtx := errgroup.WithContext(ctx)

	reloads := pubsub.NewChannel(
		reg.Reloads(),
		[]pubsub.Subscriber[registry.ReloadEvent]{
			registry.NewReloadLogger(logger),
		},
	)
	eg.Go(func() error {
		return reloads.Listen(egCtx)
	})
	eg.Go(func() error {
		return reg.Watch(egCtx)
	})

	hubServer := server.NewServer(catalog, batches)
	router := api.NewRouter(
		hubServer.GetRoutes(),
		logger,
		otelhttp.NewMiddleware("kitsunehub"),
		api.CORSMiddleware,
	)
	apiServer := &http.Server{
		Addr:    hubConfig.Addr(),
		Handler: router,
	}
	certFile, keyFile := hubConfig.TLSFiles()
	eg.Go(server.ServeFn(apiServer, "api-server", server.WithTLS(certFile, keyFile)))

	// Gracefully shutdown server when context is cancelled
	eg.Go(func() error {
		<-egCtx.Done()
		log.Info().Msg("shutting down server")
		return apiServer.Shutdown(context.Background())
	})

	err = eg.Wait()
	if err != nil {
		log.Err(err).Msgf("server shut down returned an error")
	}
	return err
}
