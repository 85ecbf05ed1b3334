package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/LineConcierge/internal/flow"
	"github.com/BTreeMap/LineConcierge/internal/genai"
	"github.com/BTreeMap/LineConcierge/internal/messaging"
	"github.com/BTreeMap/LineConcierge/internal/notify"
	"github.com/BTreeMap/LineConcierge/internal/scheduler"
	"github.com/BTreeMap/LineConcierge/internal/store"
)

// AppOpts holds options that shape the dispatcher rather than the HTTP layer.
type AppOpts struct {
	CatalogFile    string
	CommunityURL   string
	DedupEnabled   bool
	PruneSchedule  string
	DedupRetention time.Duration
}

// AppOption configures the assembled application.
type AppOption func(*AppOpts)

// WithCatalogFile merges article overrides from a YAML file into the built-in catalog.
func WithCatalogFile(path string) AppOption {
	return func(o *AppOpts) {
		o.CatalogFile = path
	}
}

// WithCommunityURL sets the invite link shown in conclusions and the community command.
func WithCommunityURL(url string) AppOption {
	return func(o *AppOpts) {
		o.CommunityURL = url
	}
}

// WithDedupEnabled turns webhook event dedup on or off.
func WithDedupEnabled(enabled bool) AppOption {
	return func(o *AppOpts) {
		o.DedupEnabled = enabled
	}
}

// WithDedupPruning sets the cron schedule and retention for pruning dedup
// records in the long-running server. Empty or zero values keep the defaults.
func WithDedupPruning(schedule string, retention time.Duration) AppOption {
	return func(o *AppOpts) {
		if schedule != "" {
			o.PruneSchedule = schedule
		}
		if retention > 0 {
			o.DedupRetention = retention
		}
	}
}

// App is a fully wired server plus the resources it owns.
type App struct {
	Server *Server
	Store  store.Store
}

// Close releases the store.
func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	return a.Store.Close()
}

// Build wires the flow table, store, reply channel, text tool and notifier
// into a ready server.
func Build(storeOpts []store.Option, genaiOpts []genai.Option, lineOpts []messaging.Option, notifyOpts []notify.Option, apiOpts []Option, appOpts ...AppOption) (*App, error) {
	var cfg AppOpts
	for _, opt := range appOpts {
		opt(&cfg)
	}

	engine, err := buildEngine(cfg)
	if err != nil {
		return nil, err
	}

	st, err := store.New(storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	channel, err := messaging.NewLineChannel(lineOpts...)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create LINE channel: %w", err)
	}

	dispatcherOpts := []messaging.DispatcherOption{messaging.WithMemberLinks(st)}
	if cfg.DedupEnabled {
		dispatcherOpts = append(dispatcherOpts, messaging.WithDedup(st))
	}

	tool, err := genai.NewClient(genaiOpts...)
	switch {
	case errors.Is(err, genai.ErrMissingAPIKey):
		slog.Warn("Build: no OpenAI API key, text tools disabled")
	case err != nil:
		st.Close()
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	default:
		dispatcherOpts = append(dispatcherOpts, messaging.WithTextTool(tool))
	}

	notifier, err := notify.New(notifyOpts...)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create notifier: %w", err)
	}
	dispatcherOpts = append(dispatcherOpts, messaging.WithNotifier(notifier))

	dispatcher := messaging.NewDispatcher(engine, st, channel, dispatcherOpts...)
	srv, err := NewServer(dispatcher, engine.Table(), apiOpts...)
	if err != nil {
		st.Close()
		return nil, err
	}
	slog.Info("Build: application wired",
		"flows", len(engine.Table().Keywords()),
		"dedup", cfg.DedupEnabled,
		"text_tools", tool != nil,
		"addr", srv.Addr())
	return &App{Server: srv, Store: st}, nil
}

func buildEngine(cfg AppOpts) (*flow.Engine, error) {
	var catalog *flow.StaticCatalog
	if cfg.CatalogFile != "" {
		c, err := flow.LoadCatalogFile(cfg.CatalogFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog: %w", err)
		}
		catalog = c
	} else {
		catalog = flow.NewStaticCatalog(flow.DefaultArticles())
	}

	table := flow.DefaultTable()
	if err := table.Validate(catalog); err != nil {
		return nil, fmt.Errorf("flow table failed validation: %w", err)
	}
	slog.Debug("Build: flow table validated", "articles", catalog.Len())
	return flow.NewEngine(table, catalog, flow.NewBuilder(cfg.CommunityURL)), nil
}

// Run builds the application and serves until ctx is cancelled. With dedup
// enabled it also prunes old dedup records on a schedule.
func Run(ctx context.Context, storeOpts []store.Option, genaiOpts []genai.Option, lineOpts []messaging.Option, notifyOpts []notify.Option, apiOpts []Option, appOpts ...AppOption) error {
	cfg := AppOpts{PruneSchedule: scheduler.DefaultPruneSchedule, DedupRetention: scheduler.DefaultDedupRetention}
	for _, opt := range appOpts {
		opt(&cfg)
	}

	app, err := Build(storeOpts, genaiOpts, lineOpts, notifyOpts, apiOpts, appOpts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			slog.Warn("Run: failed to close store", "error", err)
		}
	}()

	if cfg.DedupEnabled && cfg.PruneSchedule != "" {
		sched := scheduler.NewScheduler()
		defer sched.Stop()
		if err := sched.ScheduleDedupPrune(cfg.PruneSchedule, app.Store, cfg.DedupRetention); err != nil {
			return err
		}
	}
	return app.Server.Run(ctx)
}
