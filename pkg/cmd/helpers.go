// Package cmd provides common initialization for the opsweep binaries.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/opsweep/opsweep/pkg/channels/gochannel"
	"github.com/opsweep/opsweep/pkg/eventbus"
	"github.com/opsweep/opsweep/pkg/otelhelper"
	"github.com/opsweep/opsweep/pkg/persistence"
	"github.com/opsweep/opsweep/pkg/persistence/file"
)

// NewEventBus builds the in-process event bus every binary uses.
func NewEventBus(logger *slog.Logger) eventbus.EventBus {
	pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
	if err != nil {
		panic(fmt.Errorf("failed to create event channel: %w", err))
	}

	return eventbus.NewWatermillEventBus(pub, sub)
}

// NewPersistence resolves a database URL to a store. Only file:// roots are
// supported; a bare path is treated as one.
func NewPersistence(databaseURL string) persistence.Persistence {
	return file.NewPersistence(databaseURL)
}

// SetupTracing installs the OTLP trace provider when an exporter endpoint is
// configured; without one the package tracers stay no-ops.
func SetupTracing(ctx context.Context, serviceName string, logger *slog.Logger) {
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == "" {
		return
	}

	if _, err := otelhelper.NewTracer(ctx, serviceName); err != nil {
		logger.WarnContext(ctx, "Failed to set up tracing", "error", err)
	}
}
