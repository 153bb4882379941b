package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jarvis-hq/jarvis/internal/app"
	"github.com/jarvis-hq/jarvis/internal/jerr"
	"github.com/jarvis-hq/jarvis/internal/transport"
)

func newMCPCmd(a *app.App) *cobra.Command {
	mcp := &cobra.Command{
		Use:   "mcp",
		Short: "Run the tool server transport",
	}
	mcp.AddCommand(newMCPServerCmd(a))
	return mcp
}

func newMCPServerCmd(a *app.App) *cobra.Command {
	var transportName string
	var address string

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Serve the tool protocol over stdio or WebSocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			switch transportName {
			case "stdio", "":
				return serveStdio(ctx, a)
			case "ws":
				return serveWS(ctx, a, address)
			default:
				return jerr.New(jerr.BadArgs, "cli", "mcp server", fmt.Sprintf("unknown transport %q (want stdio or ws)", transportName))
			}
		},
	}
	cmd.Flags().StringVar(&transportName, "transport", "stdio", "transport to serve on: stdio or ws")
	cmd.Flags().StringVar(&address, "address", "127.0.0.1:9131", "listen address for the ws transport")
	return cmd
}

func serveStdio(ctx context.Context, a *app.App) error {
	t := transport.NewStdioTransport(os.Stdin, os.Stdout, transport.FramingLine)
	return t.Serve(ctx, a.Registry, a.Log)
}

func serveWS(ctx context.Context, a *app.App, address string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		conn, err := transport.Upgrade(w, r)
		if err != nil {
			a.Log.Warn("mcp/ws: upgrade failed", "error", err)
			return
		}
		t := transport.NewWSTransport(conn, a.Log)
		if err := t.Serve(r.Context(), a.Registry); err != nil {
			a.Log.Info("mcp/ws: session ended", "error", err)
		}
	})

	srv := &http.Server{Addr: address, Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errCh:
		return err
	}
}
