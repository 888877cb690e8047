// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command openkit-example demonstrates wiring an OpenKit instance: a
// session opens, enters an action, traces a web request, and the process
// exposes a local diagnostics HTTP surface until interrupted.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/openkit-go/openkit"
	"github.com/openkit-go/openkit/internal/config"
	"github.com/openkit-go/openkit/internal/log"
	defaultprovider "github.com/openkit-go/openkit/internal/providers/default"
	"github.com/openkit-go/openkit/internal/telemetry"
)

func main() {
	endpointURL := flag.String("endpoint", "https://example.invalid/mbeacon", "beacon endpoint URL")
	applicationID := flag.String("application-id", "openkit-example", "application id")
	diagAddr := flag.String("diag-addr", "127.0.0.1:9090", "diagnostics HTTP listen address")
	otlpEndpoint := flag.String("otlp-endpoint", "", "OTLP collector endpoint; empty disables tracing")
	flag.Parse()

	logger := log.WithComponent("openkit-example")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracerProvider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:      *otlpEndpoint != "",
		ServiceName:  "openkit-example",
		ExporterType: "http",
		Endpoint:     *otlpEndpoint,
		SamplingRate: 1.0,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialize telemetry provider")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("shut down telemetry provider")
		}
	}()

	cfg := config.NewConfiguration(*endpointURL, *applicationID, deviceID())
	cfg.ApplicationName = "OpenKit Example"
	cfg.ApplicationVersion = "1.0.0"
	cfg.Device = config.Device{OS: "linux", Manufacturer: "openkit", ModelID: "example-agent"}
	cfg.BeaconCache = config.BeaconCacheConfig{
		MaxRecordAgeMs:        2 * 60 * 60 * 1000,
		LowerMemoryBoundBytes: 80 * 1024,
		UpperMemoryBoundBytes: 100 * 1024,
	}

	ok := openkit.New(
		cfg,
		defaultprovider.NewSystemTimingProvider(),
		defaultprovider.NewHTTPClientProvider(),
		defaultprovider.NewSessionIDProvider(),
		defaultprovider.NewThreadIDProvider(),
		os.Getenv("OPENKIT_CRASH_DUMP_DIR"),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return ok.Run(gctx) })

	diagServer := &http.Server{Addr: *diagAddr, Handler: ok.Diagnostics()}
	g.Go(func() error {
		logger.Info().Str("addr", *diagAddr).Msg("diagnostics server listening")
		if err := diagServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return diagServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		runDemoWorkload(ok, logger)
		return nil
	})

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")
	ok.Shutdown()

	if err := g.Wait(); err != nil {
		logger.Warn().Err(err).Msg("openkit-example exited with error")
	}
}

func runDemoWorkload(ok *openkit.OpenKit, logger zerolog.Logger) {
	session := ok.CreateSession()
	defer session.End()

	session.IdentifyUser("demo-user@example.invalid")

	root := session.EnterAction("checkout")
	root.ReportValueString("cart_id", "cart-42")

	tracer := root.TraceWebRequest("https://example.invalid/api/checkout")
	tracer.Start()
	tracer.SetResponseCode(200)
	tracer.SetBytesSent(128)
	tracer.SetBytesReceived(512)
	tracer.Stop()

	root.LeaveAction()
}

func deviceID() uint64 {
	return uint64(os.Getpid())
}
