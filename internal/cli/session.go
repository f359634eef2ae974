package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"mailbridge/internal/automation"
	"mailbridge/internal/automation/memory"
	"mailbridge/internal/automation/ole"
	"mailbridge/internal/bridge"
	"mailbridge/internal/config"
)

// dialerFor picks the automation backend. Tests replace it.
var dialerFor = func(cfg config.Config) (automation.Dialer, error) {
	switch cfg.Bridge.Backend {
	case config.BackendOLE, "":
		return ole.NewDialer(cfg.Bridge.Location()), nil
	case config.BackendMemory:
		app := memory.New(memory.WithLocation(cfg.Bridge.Location()))
		if cfg.Bridge.SeedDir != "" {
			if _, err := app.LoadDir(cfg.Bridge.SeedDir); err != nil {
				return nil, fmt.Errorf("seed memory backend: %w", err)
			}
		}
		return app.Dial, nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Bridge.Backend)
}

func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	options := &slog.HandlerOptions{
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().Format("2006-01-02 15:04:05.999"))
			}
			return a
		},
		Level: parseLevel(cfg.Level),
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, options)
	} else {
		handler = slog.NewTextHandler(w, options)
	}
	return slog.New(handler)
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func bridgeOptions(cfg config.Config, logger *slog.Logger) []bridge.Option {
	collision, ok := bridge.ParseCollision(cfg.Defaults.AttachmentCollision)
	if !ok {
		collision = bridge.CollisionRename
	}
	return []bridge.Option{
		bridge.WithLogger(logger),
		bridge.WithLocation(cfg.Bridge.Location()),
		bridge.WithCollision(collision),
		bridge.WithLimits(bridge.Limits{
			Emails:       cfg.Defaults.EmailLimit,
			Search:       cfg.Defaults.SearchLimit,
			CalendarDays: cfg.Defaults.CalendarDays,
			Tasks:        cfg.Defaults.TaskLimit,
		}),
	}
}

// openBridge connects to the configured backend and waits for it to answer.
// The returned func closes the connection.
func openBridge(ctx context.Context, cfg config.Config, logger *slog.Logger) (*bridge.Bridge, func(), error) {
	if err := config.Validate(cfg); err != nil {
		return nil, nil, err
	}
	dial, err := dialerFor(cfg)
	if err != nil {
		return nil, nil, err
	}

	opts := bridgeOptions(cfg, logger)
	conn, err := bridge.Connect(ctx, dial, opts...)
	if err != nil {
		return nil, nil, err
	}
	if err := conn.Warmup(ctx, cfg.Bridge.WarmupRetries, cfg.Bridge.WarmupDelay); err != nil {
		_ = conn.Close()
		return nil, nil, err
	}

	closeFn := func() {
		if err := conn.Close(); err != nil {
			logger.Warn("close connection", "error", err)
		}
	}
	return bridge.New(conn, opts...), closeFn, nil
}

// withBridge runs fn against a freshly opened bridge.
func withBridge(ctx context.Context, app *appContext, fn func(*bridge.Bridge) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if app.backend != "" {
		cfg.Bridge.Backend = app.backend
	}
	logger := newLogger(app.errOut, cfg.Log)
	b, closeFn, err := openBridge(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(b)
}
