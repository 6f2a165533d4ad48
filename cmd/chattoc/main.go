// Command chattoc keeps a live outline of the questions asked in a chat
// page open in Chrome.
//
// Usage:
//
//	chattoc                               # terminal overlay over chatgpt.com
//	chattoc -ui serve -config chattoc.yaml   # HTTP and MCP control surface
//	chattoc -ui lines                     # JSON lines on stdout
//	chattoc -file saved.html              # print the outline of a saved page
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/chattoc/dom"
	"github.com/hazyhaar/chattoc/dom/memdom"
	"github.com/hazyhaar/chattoc/dom/roddom"
	"github.com/hazyhaar/chattoc/export"
	"github.com/hazyhaar/chattoc/internal/browser"
	"github.com/hazyhaar/chattoc/internal/config"
	"github.com/hazyhaar/chattoc/outline"
	"github.com/hazyhaar/chattoc/profile"
	"github.com/hazyhaar/chattoc/render"
	"github.com/hazyhaar/chattoc/render/tui"
	"github.com/hazyhaar/chattoc/schedule"
	"github.com/hazyhaar/chattoc/server"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to chattoc.yaml")
	pageURL := flag.String("url", "", "chat page to open (overrides config)")
	remote := flag.String("remote", "", "DevTools WebSocket URL of a running Chrome")
	file := flag.String("file", "", "print the outline of a saved HTML page and exit")
	ui := flag.String("ui", "tui", "front end: tui, serve, lines")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	logFile := flag.String("log-file", "", "log destination (default stderr, discarded in tui mode)")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stderr
	switch {
	case *logFile != "":
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "chattoc: open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	case *ui == "tui" && *file == "":
		out = io.Discard
	}
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *pageURL, *remote, *file, *ui); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("chattoc: fatal", "error", err)
		fmt.Fprintf(os.Stderr, "chattoc: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, pageURL, remote, file, ui string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if pageURL != "" {
		cfg.Page.URL = pageURL
	}
	if remote != "" {
		cfg.Browser.Remote = remote
	}

	if file != "" {
		return runFile(cfg, logger, file)
	}
	switch ui {
	case "tui", "serve", "lines":
	default:
		return fmt.Errorf("unknown -ui %q (want tui, serve or lines)", ui)
	}
	return runLive(ctx, cfg, logger, ui)
}

// runFile renders a saved page once.
func runFile(cfg *config.Config, logger *slog.Logger, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	opts, err := cfg.OutlineOptions()
	if err != nil {
		return err
	}
	v := schedule.NewVirtual(time.Now())
	doc, err := memdom.Parse(f, memdom.WithPoster(v.Post), memdom.WithLocation(cfg.Page.URL))
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	eng := outline.New(outline.Config{
		Document:  doc,
		Scheduler: v,
		Renderer:  render.NewText(os.Stdout),
		Options:   opts,
		Logger:    logger,
	})
	if err := eng.Start(); err != nil {
		return err
	}
	eng.Stop()
	return nil
}

func runLive(ctx context.Context, cfg *config.Config, logger *slog.Logger, ui string) error {
	opts, err := cfg.OutlineOptions()
	if err != nil {
		return err
	}

	var store *profile.Store
	var base []dom.Selector
	if cfg.Profiles.Path != "" {
		store, err = profile.Open(cfg.Profiles.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		base = opts.Predicates
		if len(base) == 0 {
			base, _ = dom.ParseSelectors(outline.DefaultPredicates)
		}
		applyProfile(ctx, store, cfg, &opts, logger)
	}

	mode, err := browser.ParseMode(cfg.Browser.Mode)
	if err != nil {
		return err
	}
	mgr := browser.NewManager(browser.Config{
		RemoteURL:        cfg.Browser.Remote,
		Mode:             mode,
		UserDataDir:      cfg.Browser.UserDataDir,
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		Logger:           logger,
	})
	if _, err := mgr.Start(ctx); err != nil {
		return err
	}
	defer mgr.Close()

	page, err := mgr.OpenTab(ctx, cfg.Page.URL)
	if err != nil {
		return err
	}

	loop := schedule.NewLoop(schedule.LoopConfig{Frame: cfg.Outline.Frame, Logger: logger})
	highlight := opts.HighlightClass
	if highlight == "" {
		highlight = "cgpt-highlight"
	}
	doc := roddom.New(roddom.Config{
		Page:         page,
		Container:    cfg.Page.Container,
		HighlightCSS: roddom.HighlightStyle(highlight),
		Post:         loop.Post,
		Logger:       logger,
	})
	defer doc.Close()

	router := render.NewRouter(logger)
	var notifier outline.Notifier
	var program *tea.Program
	ctl := &controls{ctx: ctx, loop: loop}

	switch ui {
	case "tui":
		// The model needs the controls and the renderer needs the program,
		// so both exist before the engine does.
		program = tea.NewProgram(tui.NewModel(ctl), tea.WithAltScreen(), tea.WithContext(ctx))
		r := tui.NewRenderer(program)
		router.Add(r)
		notifier = r
	case "lines":
		j := render.NewJSONLines(os.Stdout)
		router.Add(j)
		notifier = j
	case "serve":
		tx := render.NewText(os.Stderr).WithLogger(logger)
		router.Add(tx)
		notifier = tx
	}

	var hook *render.Webhook
	if cfg.Webhook.URL != "" {
		hook = render.NewWebhook(cfg.Webhook.URL,
			render.WithWebhookRetries(cfg.Webhook.Retries),
			render.WithWebhookLogger(logger),
		)
		router.Add(hook)
	}

	exp := export.New(export.Config{
		Title:    cfg.Export.Title,
		Detailed: cfg.Export.Detailed,
		Notifier: notifier,
		Logger:   logger,
	})
	eng := outline.New(outline.Config{
		Document:  doc,
		Scheduler: loop,
		Renderer:  router,
		Notifier:  notifier,
		Exporter:  exp,
		Options:   opts,
		Logger:    logger,
	})
	ctl.eng = eng

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return loop.Run(gctx) })
	g.Go(func() error {
		var startErr error
		if err := loop.Do(gctx, func() { startErr = eng.Start() }); err != nil {
			return err
		}
		return startErr
	})
	if hook != nil {
		g.Go(func() error {
			hook.Run(gctx)
			return nil
		})
	}
	if store != nil {
		w := profile.NewWatcher(store, profile.WatchOptions{
			Interval: cfg.Profiles.PollInterval,
			Debounce: cfg.Profiles.Debounce,
			Logger:   logger,
		})
		g.Go(func() error {
			w.Run(gctx, &tabProfiles{loop: loop, eng: eng, doc: doc, base: base, logger: logger})
			return nil
		})
	}

	switch ui {
	case "tui":
		g.Go(func() error {
			defer cancel()
			_, err := program.Run()
			if errors.Is(err, tea.ErrProgramKilled) {
				return nil
			}
			return err
		})
	case "serve":
		srv := server.New(server.Config{
			Engine:  eng,
			Runner:  loop,
			MCP:     cfg.Server.MCP,
			Version: version,
			Logger:  logger,
		})
		g.Go(func() error { return serve(gctx, cfg.Server.Addr, srv.Handler(), logger) })
	}

	err = g.Wait()
	// The loop has exited: nothing else touches the engine now.
	eng.Stop()
	if errors.Is(err, context.Canceled) || errors.Is(err, schedule.ErrClosed) {
		return nil
	}
	return err
}

func serve(ctx context.Context, addr string, h http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("chattoc: listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		return err
	}
	return ctx.Err()
}

// applyProfile overrides the configured selectors with the profile for
// the start page's host, if one exists.
func applyProfile(ctx context.Context, store *profile.Store, cfg *config.Config, opts *outline.Options, logger *slog.Logger) {
	p, err := store.Lookup(ctx, profile.HostOf(cfg.Page.URL))
	if errors.Is(err, profile.ErrNotFound) {
		return
	}
	if err != nil {
		logger.Warn("chattoc: profile lookup failed", "error", err)
		return
	}
	sels, err := p.Selectors()
	if err != nil {
		logger.Warn("chattoc: profile ignored", "host", p.Host, "error", err)
		return
	}
	opts.Predicates = sels
	if p.SecondaryAttr != "" {
		opts.SecondaryAttr = p.SecondaryAttr
	}
	if p.Container != "" {
		cfg.Page.Container = p.Container
	}
	logger.Info("chattoc: profile applied", "host", p.Host, "predicates", len(sels))
}

// tabProfiles lets the profile watcher read the tab's host and swap the
// engine's predicates, both on the loop.
type tabProfiles struct {
	loop   *schedule.Loop
	eng    *outline.Engine
	doc    *roddom.Document
	base   []dom.Selector
	logger *slog.Logger
}

func (t *tabProfiles) Host(ctx context.Context) (string, error) {
	var loc string
	var locErr error
	if err := t.loop.Do(ctx, func() { loc, locErr = t.doc.Location() }); err != nil {
		return "", err
	}
	if locErr != nil {
		return "", locErr
	}
	return profile.HostOf(loc), nil
}

// Apply installs p's predicates, or the configured ones when p is nil.
// A profile with bad selectors is logged and skipped, not retried.
func (t *tabProfiles) Apply(ctx context.Context, p *profile.Profile) error {
	sels := t.base
	if p != nil {
		ps, err := p.Selectors()
		if err != nil {
			t.logger.Warn("chattoc: profile ignored", "host", p.Host, "error", err)
			return nil
		}
		sels = ps
	}
	return t.loop.Do(ctx, func() { t.eng.SetPredicates(sels) })
}

// controls runs the overlay's buttons on the loop.
type controls struct {
	ctx  context.Context
	loop *schedule.Loop
	eng  *outline.Engine
}

func (c *controls) Select(id string) error {
	return c.loop.Do(c.ctx, func() { c.eng.Select(id) })
}

func (c *controls) Refresh() error {
	return c.loop.Do(c.ctx, c.eng.Refresh)
}

func (c *controls) Export() error {
	var exportErr error
	if err := c.loop.Do(c.ctx, func() { exportErr = c.eng.Export(c.ctx) }); err != nil {
		return err
	}
	return exportErr
}
