package cli

import (
	"os"
	"os/signal"
	"syscall"

	"mailbridge/internal/config"
	"mailbridge/internal/server"

	"github.com/spf13/cobra"
)

func newServeCmd(app *appContext) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose the operations over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if app.backend != "" {
				cfg.Bridge.Backend = app.backend
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if err := config.ValidateServer(cfg.Config, cfg.Auth.Token); err != nil {
				return err
			}

			logger := newLogger(app.errOut, cfg.Log)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			b, closeFn, err := openBridge(ctx, cfg.Config, logger)
			if err != nil {
				return err
			}
			defer closeFn()

			if cfg.Auth.Token == "" {
				logger.Warn("authentication disabled by server.insecure_no_auth")
			} else {
				logger.Info("authentication enabled", "token_source", cfg.TokenSource)
			}

			srv := server.New(b, server.Options{
				Addr:           cfg.Server.Addr,
				AllowedOrigins: cfg.Server.AllowedOrigins,
				Token:          cfg.Auth.Token,
				RateLimit:      cfg.Server.RateLimit,
				Burst:          cfg.Server.Burst,
				MaxBodyBytes:   cfg.Server.MaxBodyBytes,
				Logger:         logger,
				Location:       cfg.Bridge.Location(),
			})
			return srv.Serve(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from server.addr)")

	return cmd
}

