package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/always-cache/always-fetch/pkg/gateway"
)

const shutdownTimeout = 10 * time.Second

func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve GET /retrieve?url= over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = c.config.Server.Addr
			}
			client, err := c.openClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			server := &http.Server{
				Handler:           gateway.New(client, &c.Logger),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx := cmd.Context()
			stop := context.AfterFunc(ctx, func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				server.Shutdown(shutdownCtx)
			})
			defer stop()

			c.Logger.Info().Str("addr", ln.Addr().String()).Msg("Serving")
			if err := server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			c.Logger.Info().Msg("Stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Address to listen on (overrides config)")
	return cmd
}
