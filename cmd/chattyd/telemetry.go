package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"chattysync/internal/components/telemetry"
	"chattysync/lib/osutil"
)

// initTelemetry returns the api every component reports to. When a
// telemetry.json5 can be found, reports are also exported over otlp.
func initTelemetry(ctx context.Context, verbose bool) (telemetry.API, telemetry.MessageOutput) {
	telemetry.InitSlog(verbose)
	if verbose {
		slog.DebugContext(ctx, "verbose logging enabled")
	}

	var tel telemetry.API = telemetry.SlogAPI{}
	exporters, err := telemetry.SetupFromEnv(ctx, "chattyd")
	switch {
	case errors.Is(err, os.ErrNotExist):
		slog.Info("no telemetry.json5 found, only logging locally")
	case err != nil:
		osutil.Fatal("setup telemetry", err)
	default:
		go func() {
			<-ctx.Done()
			exporters.Shutdown(context.Background())
		}()
		tel = telemetry.NewOtelAPI(tel)
	}
	telemetry.InstrumentPerfStats(ctx, tel)

	if !verbose {
		return tel, nil
	}
	output, err := telemetry.NewFilesystemOutput(".dev/resty/upstream")
	if err != nil {
		osutil.Fatal("create resty output", err)
	}
	return tel, output
}
