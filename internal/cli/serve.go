package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/server"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat over WebSocket",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, a.Close()) }()

			engine, err := a.engine()
			if err != nil {
				return err
			}
			srv, err := server.New(server.Config{Handler: engine})
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.config.Addr
			}

			printHeader(cmd, "Memory chat server")
			fmt.Fprintf(cmd.OutOrStdout(), "WebSocket: ws://localhost%s/ws?user_id=<id>\n", addr)
			fmt.Fprintf(cmd.OutOrStdout(), "Health:    http://localhost%s/health\n", addr)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if a.config.IdleEvict > 0 {
				go sweepIdle(ctx, a.registry, a.config.IdleEvict)
			}
			if err := srv.Run(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			log.Printf("[SERVER] Shut down")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default $NIM_ADDR or :8080)")
	return cmd
}

// sweepIdle saves and unloads stores of users idle for longer than idle.
func sweepIdle(ctx context.Context, registry *memory.Registry, idle time.Duration) {
	ticker := time.NewTicker(min(idle, time.Minute))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := registry.EvictIdle(idle)
			if err != nil {
				log.Printf("[REGISTRY] Idle sweep: %v", err)
			}
			if n > 0 {
				log.Printf("[REGISTRY] Idle sweep unloaded %d stores", n)
			}
		}
	}
}
