// wildtaled is the long-running wildtale daemon. It wires the agent
// roster, rules engine, connectors and HTTP API together from a single
// config and runs until signalled.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wildtale-io/wildtale/internal/agent"
	apiPkg "github.com/wildtale-io/wildtale/internal/api"
	"github.com/wildtale-io/wildtale/internal/archive"
	"github.com/wildtale-io/wildtale/internal/config"
	"github.com/wildtale-io/wildtale/internal/connector"
	slack "github.com/wildtale-io/wildtale/internal/connector/slack"
	"github.com/wildtale-io/wildtale/internal/connector/telegram"
	"github.com/wildtale-io/wildtale/internal/connector/webhook"
	"github.com/wildtale-io/wildtale/internal/dex"
	"github.com/wildtale-io/wildtale/internal/game"
	"github.com/wildtale-io/wildtale/internal/provider"
	"github.com/wildtale-io/wildtale/internal/scheduler"
	"github.com/wildtale-io/wildtale/internal/style"
	"github.com/wildtale-io/wildtale/internal/tracelog"
	"github.com/wildtale-io/wildtale/pkg/protocol"
)

// version is stamped by the build.
var version = "dev"

// wellKnownConfigs are tried in order when -config is not given.
var wellKnownConfigs = []string{"./wildtale.json", "/etc/wildtale/config.json"}

func main() {
	configPath := flag.String("config", "", "Path to config JSON file")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))

	// Load config (3 modes: explicit file, well-known file, env)
	var cfg *config.Config
	var err error
	switch {
	case *configPath != "":
		cfg, err = config.Load(*configPath)
	default:
		found := ""
		for _, p := range wellKnownConfigs {
			if _, statErr := os.Stat(p); statErr == nil {
				found = p
				break
			}
		}
		if found != "" {
			logger.Info("loading config", "path", found)
			cfg, err = config.Load(found)
		} else {
			cfg, err = config.LoadFromEnv()
		}
	}
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("wildtaled starting", "version", version, "provider", cfg.Provider.Type)

	// 1. Initialize the completion provider
	completer, err := buildProvider(cfg.Provider)
	if err != nil {
		logger.Error("failed to init provider", "error", err)
		os.Exit(1)
	}
	logger.Info("provider initialized", "type", cfg.Provider.Type, "model", cfg.Provider.Model)

	// 2. Dex client + lore hinter
	var dexOpts []dex.Option
	if cfg.Dex.CacheSize > 0 {
		dexOpts = append(dexOpts, dex.WithCacheSize(cfg.Dex.CacheSize))
	}
	if cfg.Dex.CacheTTL > 0 {
		dexOpts = append(dexOpts, dex.WithCacheTTL(time.Duration(cfg.Dex.CacheTTL)*time.Second))
	}
	dexClient := dex.New(cfg.Dex.BaseURL, dexOpts...)
	hinter := dex.NewHinter(dexClient, logger.With("component", "dex"),
		dex.WithLoreArticles(cfg.Dex.LoreURLs...))

	// 3. Style packs
	styles := style.Load(cfg.Game.StylesDir)
	logger.Info("style packs loaded", "dir", cfg.Game.StylesDir, "count", len(styles.All()))

	// 4. Trace collector
	traces := tracelog.New(cfg.Game.TraceCapacity)

	// 5. Session archive (optional)
	var store *archive.Store
	if cfg.Archive.Enabled() {
		store, err = archive.NewStore(cfg.Archive.Path)
		if err != nil {
			logger.Error("failed to open archive", "path", cfg.Archive.Path, "error", err)
			os.Exit(1)
		}
		defer store.Close()
		logger.Info("archive opened", "path", cfg.Archive.Path)
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 6. Game service
	gameOpts := []game.Option{
		game.WithStyles(styles),
		game.WithLore(hinter),
		game.WithTraces(traces),
		game.WithLogger(logger),
	}
	if cfg.Game.VoteTimeout > 0 {
		gameOpts = append(gameOpts, game.WithVoteTimeout(time.Duration(cfg.Game.VoteTimeout)*time.Second))
	}
	if cfg.Game.AccordRounds > 0 {
		gameOpts = append(gameOpts, game.WithAccordRounds(cfg.Game.AccordRounds))
	}
	svc := game.New(completer, gameOpts...)

	// Sessions started through any surface land in the archive.
	var played connector.GameService = svc
	if store != nil {
		played = &archivingGame{svc: svc, store: store, logger: logger.With("component", "archive")}
	}

	// 7. Connectors
	if cfg.Connectors.Telegram != nil {
		pm := connector.NewPlayManager(played, nil, logger.With("connector", "telegram"))
		tgConn, tgErr := telegram.New(
			telegram.Config{
				Token:     cfg.Connectors.Telegram.Token,
				AllowFrom: cfg.Connectors.Telegram.AllowFrom,
			},
			nil,
			logger.With("connector", "telegram"),
		)
		if tgErr != nil {
			logger.Error("failed to init telegram connector", "error", tgErr)
			os.Exit(1)
		}
		tgConn.SetHandler(pm.Handler(tgConn.Send))
		go safeGo(logger, "telegram", func() { tgConn.Start(ctx) })
		logger.Info("telegram connector started")
	}

	if cfg.Connectors.Slack != nil {
		pm := connector.NewPlayManager(played, nil, logger.With("connector", "slack"))
		slConn, slErr := slack.New(
			slack.Config{
				BotToken: cfg.Connectors.Slack.BotToken,
				AppToken: cfg.Connectors.Slack.AppToken,
				Channels: cfg.Connectors.Slack.Channels,
			},
			nil,
			logger.With("connector", "slack"),
		)
		if slErr != nil {
			logger.Error("failed to init slack connector", "error", slErr)
			os.Exit(1)
		}
		slConn.SetHandler(pm.Handler(slConn.Send))
		go safeGo(logger, "slack", func() { slConn.Start(ctx) })
		logger.Info("slack connector started")
	}

	var webhookHandler http.Handler
	if cfg.Connectors.Webhook != nil && len(cfg.Connectors.Webhook.Endpoints) > 0 {
		pm := connector.NewPlayManager(played, nil, logger.With("connector", "webhook"))
		endpoints := make(map[string]webhook.EndpointConfig, len(cfg.Connectors.Webhook.Endpoints))
		for name, ep := range cfg.Connectors.Webhook.Endpoints {
			endpoints[name] = webhook.EndpointConfig{
				Secret:      ep.Secret,
				BearerToken: ep.BearerToken,
			}
		}
		// Webhook replies travel back in the HTTP response body.
		send := func(ctx context.Context, msg connector.OutboundMessage) error {
			webhook.Reply(ctx, msg.Content)
			return nil
		}
		webhookHandler = webhook.New(
			webhook.Config{Endpoints: endpoints},
			pm.Handler(send),
			logger.With("connector", "webhook"),
		)
		logger.Info("webhook endpoints configured", "count", len(endpoints))
	}

	// 8. API server
	var replay apiPkg.Replay
	if store != nil {
		replay = store
	}
	apiSrv := apiPkg.NewServer(played, apiPkg.Config{
		Host:    cfg.API.Host,
		Port:    cfg.API.Port,
		Key:     cfg.API.Key,
		Version: version,
	}, logger.With("component", "api"), traces, replay, webhookHandler)

	go safeGo(logger, "api-server", func() { apiSrv.Start(ctx) })
	logger.Info("api server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// 9. Maintenance jobs
	sched := scheduler.New(logger.With("component", "scheduler"))
	if store != nil {
		retention := time.Duration(cfg.Archive.RetentionDays) * 24 * time.Hour
		err = sched.AddJob("archive-prune", cfg.Scheduler.PruneSpec, func(ctx context.Context) {
			n, pruneErr := store.Prune(time.Now().UTC().Add(-retention))
			if pruneErr != nil {
				logger.Error("archive prune failed", "error", pruneErr)
				return
			}
			if n > 0 {
				logger.Info("archive pruned", "sessions", n)
			}
		})
		if err != nil {
			logger.Error("failed to schedule archive prune", "error", err)
			os.Exit(1)
		}
		err = sched.AddJob("archive-flush", "@every 1m", func(ctx context.Context) {
			flushTraces(store, traces, logger)
		})
		if err != nil {
			logger.Error("failed to schedule archive flush", "error", err)
			os.Exit(1)
		}
	}
	err = sched.AddJob("dex-sweep", cfg.Scheduler.SweepSpec, func(ctx context.Context) {
		if n := dexClient.Sweep(); n > 0 {
			logger.Info("dex cache swept", "expired", n)
		}
	})
	if err != nil {
		logger.Error("failed to schedule dex sweep", "error", err)
		os.Exit(1)
	}
	go safeGo(logger, "scheduler", func() { sched.Start(ctx) })

	// 10. Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()
	if store != nil {
		flushTraces(store, traces, logger)
	}
	logger.Info("wildtaled stopped")
}

// safeGo runs fn with panic recovery.
func safeGo(logger *slog.Logger, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("goroutine panicked", "name", name, "panic", fmt.Sprintf("%v", r))
		}
	}()
	fn()
}

// buildProvider constructs the configured completion provider.
func buildProvider(cfg config.ProviderConfig) (agent.Completer, error) {
	switch cfg.Type {
	case "anthropic":
		var opts []provider.AnthropicOption
		if cfg.BaseURL != "" {
			opts = append(opts, provider.WithAnthropicBaseURL(cfg.BaseURL))
		}
		if cfg.Model != "" {
			opts = append(opts, provider.WithAnthropicModel(cfg.Model))
		}
		return provider.NewAnthropic(cfg.APIKey, opts...), nil
	case "openai", "":
		var opts []provider.OpenAIOption
		if cfg.BaseURL != "" {
			opts = append(opts, provider.WithBaseURL(cfg.BaseURL))
		}
		if cfg.Model != "" {
			opts = append(opts, provider.WithModel(cfg.Model))
		}
		return provider.NewOpenAI(cfg.APIKey, opts...), nil
	default:
		return nil, fmt.Errorf("wildtaled: unknown provider type %q", cfg.Type)
	}
}

// archivingGame records every successfully started session in the
// archive. Recording is best-effort; a write failure never blocks play.
type archivingGame struct {
	svc    *game.Service
	store  *archive.Store
	logger *slog.Logger
}

func (a *archivingGame) StartSession(ctx context.Context, team []protocol.Combatant, styleSlug string, seed int64) (*game.StartResult, error) {
	res, err := a.svc.StartSession(ctx, team, styleSlug, seed)
	if err != nil {
		return nil, err
	}
	rec := archive.SessionRecord{
		ID:         res.SessionID,
		Style:      styleSlug,
		Seed:       res.Seed,
		QuestTitle: res.Quest.Title,
		Difficulty: res.Quest.Difficulty,
		CreatedAt:  time.Now().UTC(),
	}
	if saveErr := a.store.SaveSession(rec); saveErr != nil {
		a.logger.Error("failed to archive session", "session", res.SessionID, "error", saveErr)
	}
	return res, nil
}

func (a *archivingGame) AdvanceEvent(ctx context.Context, state protocol.GameState) (*protocol.EventBundle, error) {
	return a.svc.AdvanceEvent(ctx, state)
}

func (a *archivingGame) ResolveChoice(ctx context.Context, state protocol.GameState, event protocol.Event, choice protocol.Choice) (*protocol.Resolution, error) {
	return a.svc.ResolveChoice(ctx, state, event, choice)
}

// flushTraces copies the collector's current entries into the archive,
// grouped by session. Appends are idempotent, so overlapping flush
// windows are harmless.
func flushTraces(store *archive.Store, traces *tracelog.Collector, logger *slog.Logger) {
	bySession := make(map[string][]tracelog.Entry)
	for _, e := range traces.Query(tracelog.Filter{}) {
		if e.Session == "" {
			continue
		}
		bySession[e.Session] = append(bySession[e.Session], e)
	}
	for session, entries := range bySession {
		if err := store.AppendTraces(session, entries); err != nil {
			logger.Error("failed to flush traces", "session", session, "error", err)
		}
	}
}
