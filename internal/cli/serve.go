package cli

import (
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/johnwards/stagetrack/internal/config"
	"github.com/johnwards/stagetrack/internal/server"
)

// ServeCmd returns the serve command.
func ServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := open(ctx, v)
			if err != nil {
				return err
			}
			defer a.close()

			srv := &http.Server{
				Addr:              a.cfg.Addr,
				Handler:           server.Handler(a.cfg, a.store, a.engine, a.registry),
				ReadHeaderTimeout: 10 * time.Second,
			}
			return server.Run(ctx, srv)
		},
	}

	cmd.Flags().String("addr", "", "listen address (STAGETRACK_ADDR)")
	cmd.Flags().String("auth-token", "", "require this Bearer token on API requests (STAGETRACK_AUTH_TOKEN)")
	cmd.Flags().Int("cancelled-retention", 0, "cancelled records shown beside unfiltered listings (STAGETRACK_CANCELLED_RETENTION)")
	cmd.Flags().Int("error-sample", 0, "failure reasons returned per batch (STAGETRACK_ERROR_SAMPLE)")
	_ = v.BindPFlag(config.KeyAddr, cmd.Flags().Lookup("addr"))
	_ = v.BindPFlag(config.KeyAuthToken, cmd.Flags().Lookup("auth-token"))
	_ = v.BindPFlag(config.KeyCancelledRetention, cmd.Flags().Lookup("cancelled-retention"))
	_ = v.BindPFlag(config.KeyErrorSample, cmd.Flags().Lookup("error-sample"))
	return cmd
}
