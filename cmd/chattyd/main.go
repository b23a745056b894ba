package main

import (
	"errors"
	"flag"
	"log/slog"
	"os"

	"chattysync/internal/components/chrono"
	"chattysync/internal/download"
	"chattysync/internal/provider"
	"chattysync/internal/scrape"
	"chattysync/internal/shack"
	"chattysync/internal/store"
	"chattysync/lib/osutil"
)

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging/instrumentation.")
	configPath := flag.String("config", "config.json5", "The path to the config file.")
	flag.Parse()

	ctx := osutil.SignalContext()
	tel, output := initTelemetry(ctx, *verbose)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		osutil.Fatal("load config", err)
	}

	dl, err := download.New(download.Options{
		Client: download.ClientOptions{
			BaseUrl:          cfg.Upstream.BaseUrl,
			Timeout:          cfg.Timeout(),
			CloudflareBypass: cfg.Upstream.CloudflareBypass,
			Output:           output,
		},
		Username:          cfg.SharedLogin.Username,
		Password:          cfg.SharedLogin.Password,
		RequestsPerSecond: cfg.Upstream.RequestsPerSecond,
	}, tel)
	if err != nil {
		osutil.Fatal("create downloader", err)
	}
	client := shack.NewClient(dl, tel)

	fileStore := store.NewFileStore(cfg.Storage.DataPath, tel)
	state, err := fileStore.Load()
	if errors.Is(err, os.ErrNotExist) {
		slog.Info("no saved state, starting empty")
	} else if err != nil {
		slog.Warn("could not load saved state, starting empty", "err", err)
	}

	var archive scrape.EventArchive
	if cfg.Storage.ArchivePath != "" {
		opened, err := store.OpenArchive(cfg.Storage.ArchivePath)
		if err != nil {
			osutil.Fatal("open event archive", err)
		}
		defer opened.Close()
		archive = opened
	}

	clock := chrono.NewStandardTime()
	p := provider.New(client, state.Events, provider.Options{
		Capacity: cfg.Events.Capacity,
		MaxWait:  cfg.MaxWait(),
	}, clock, tel)
	if len(state.Chatty.Threads) > 0 {
		// serve the restored snapshot until the first cycle completes
		p.Publish(state.Chatty, state.LolCounts, nil)
	}

	scheduler := chrono.NewCronScheduler(tel)
	err = scheduler.Schedule("cycle-connections", "@every 5m", dl.CloseIdleConnections)
	if err != nil {
		osutil.Fatal("schedule maintenance", err)
	}
	defer scheduler.Stop()

	scraper := scrape.New(client, p, fileStore, archive, state, scrape.Options{
		Interval:        cfg.Interval(),
		ExpiryAge:       cfg.ExpiryAge(),
		ParallelPages:   cfg.Scrape.ParallelPages,
		BackfillWorkers: cfg.Scrape.BackfillWorkers,
		BaseUrl:         cfg.Upstream.BaseUrl,
		Events:          cfg.EventOptions(),
	}, clock, tel)

	slog.Info(
		"scraping",
		"upstream", cfg.Upstream.BaseUrl,
		"threads", len(state.Chatty.Threads),
		"last_event_id", p.GetLastEventID(),
	)
	scraper.Run(ctx)

	// read status updates since the last cycle are not in the scraper state
	final := scraper.State()
	final.Events = p.Events()
	err = fileStore.Save(final)
	if err != nil {
		slog.Warn("could not save state on shutdown", "err", err)
	}
	slog.Info("stopped")
}
