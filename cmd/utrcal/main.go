package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"utrcal/internal/capture"
	"utrcal/internal/config"
	"utrcal/internal/ics"
	appLog "utrcal/internal/log"
	"utrcal/internal/notify"
	"utrcal/internal/store"
	"utrcal/internal/timetable"
	"utrcal/internal/web"
)

type flagConfig struct {
	configPath string
	dotenv     string
	listen     string
	exportPath string
	importSrc  string
	snapshot   string
	debug      bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if err := conf.ApplyEnv(flags.dotenv); err != nil {
		appLog.Error("failed to read env file", err, "path", flags.dotenv)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}

	appLog.Info("utrcal starting", "version", "0.1.0")
	appLog.Info("effective config",
		"listen", conf.Listen,
		"store_path", conf.StorePath,
		"locale", conf.Locale,
		"strict", conf.Editor.Strict,
		"notify", conf.Notify.Enabled,
		"dispatch", conf.Notify.Dispatch,
		"cancel_on_delete", conf.Notify.CancelOnDelete,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	local := notify.NewLocalNotifier(notify.LogSink{})
	sch := notify.NewScheduler(local, conf.Notify.Sound)
	if conf.Notify.Enabled {
		sch.Authorize(ctx, notify.AllowAll)
	} else {
		sch.Authorize(ctx, notify.DenyAll)
	}

	svc := timetable.New(
		store.NewEntryStore(store.NewFileSlot(conf.StorePath)),
		sch,
		timetable.WithStrict(conf.Editor.Strict),
		timetable.WithCancelOnRemove(conf.Notify.CancelOnDelete),
	)
	svc.Load()

	if err := runOneShot(ctx, conf, flags, svc); err != nil {
		appLog.Error("command failed", err)
		os.Exit(1)
	}
	if flags.exportPath != "" || flags.importSrc != "" || flags.snapshot != "" {
		return
	}

	svc.ScheduleAll(ctx)
	if conf.Notify.Enabled {
		if err := local.Start(ctx, conf.Notify.Dispatch); err != nil {
			appLog.Error("failed to start alert dispatcher", err, "schedule", conf.Notify.Dispatch)
			os.Exit(1)
		}
	}

	srv := web.NewServer(conf, svc, local)
	if err := srv.Run(ctx); err != nil {
		appLog.Error("http server failed", err)
		os.Exit(1)
	}
	appLog.Info("utrcal exiting")
}

// runOneShot handles -import, -export and -snapshot. Import runs first so
// that an export or snapshot in the same invocation includes it.
func runOneShot(ctx context.Context, conf *config.Config, flags flagConfig, svc *timetable.Service) error {
	if flags.importSrc != "" {
		if err := importFeed(ctx, conf, flags.importSrc, svc); err != nil {
			return err
		}
	}
	if flags.exportPath != "" {
		body, err := ics.Export(svc.Entries(), time.Now())
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		if err := config.WriteFileAtomic(flags.exportPath, body); err != nil {
			return fmt.Errorf("export: %w", err)
		}
		appLog.Info("timetable exported", "path", flags.exportPath, "entries", len(svc.Entries()))
	}
	if flags.snapshot != "" {
		return snapshot(ctx, conf, flags.snapshot, svc)
	}
	return nil
}

func importFeed(ctx context.Context, conf *config.Config, src string, svc *timetable.Service) error {
	var (
		body []byte
		err  error
	)
	if ics.IsURL(src) {
		cacheDir := filepath.Join(filepath.Dir(conf.StorePath), "ics-cache")
		body, err = ics.NewFetcher(cacheDir).Fetch(ctx, src)
	} else {
		body, err = os.ReadFile(src)
	}
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	items, err := ics.Import(body)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	created, replaced := 0, 0
	for _, it := range items {
		_, isNew, err := svc.Upsert(ctx, it.UID, it.Draft)
		if err != nil {
			appLog.Warn("import: event rejected", "uid", it.UID, "err", err.Error())
			continue
		}
		if isNew {
			created++
		} else {
			replaced++
		}
	}
	appLog.Info("timetable imported", "created", created, "replaced", replaced)
	return nil
}

// snapshot serves the grid page on a loopback port just long enough for
// headless Chromium to capture it.
func snapshot(ctx context.Context, conf *config.Config, out string, svc *timetable.Service) error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	serveCtx, stop := context.WithCancel(ctx)
	defer stop()

	srv := web.NewServer(conf, svc, nil)
	done := make(chan error, 1)
	go func() { done <- srv.Serve(serveCtx, ln) }()

	opts := capture.Options{
		URL:        "http://" + ln.Addr().String() + "/grid",
		OutputPath: out,
	}
	if conf.BasicAuth != nil {
		opts.Username = conf.BasicAuth.Username
		opts.Password = conf.BasicAuth.Password
	}
	captureErr := capture.CaptureGridPNG(ctx, opts)

	stop()
	if err := <-done; err != nil {
		appLog.Error("snapshot server failed", err)
	}
	return captureErr
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./config.yaml", "Path to config file")
	flag.StringVar(&cfg.dotenv, "env-file", ".env", "Optional dotenv file with UTRCAL_* overrides")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.exportPath, "export", "", "Write the timetable as iCalendar to this file and exit")
	flag.StringVar(&cfg.importSrc, "import", "", "Import classes from an iCalendar file or http(s) URL and exit")
	flag.StringVar(&cfg.snapshot, "snapshot", "", "Render the weekly grid to this PNG file and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
