package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/scbrown/terse/internal/server"
	"github.com/scbrown/terse/internal/store"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start an HTTP server exposing the terse ledger",
	Long: `Start an HTTP server that wraps the local SQLite ledger and exposes it over
HTTP. This lets proxies running in containers or on other machines append to
and query one shared ledger.

The server provides a JSON API at /api/v1/ with endpoints for appending and
listing invocations (/invocations), savings totals (/gain, /gain/tools,
/gain/daily) and rule discovery (/discover). A health check is available at
/api/v1/health.

Use terse config to set store_mode=remote and remote_url to point other terse
instances at this server instead of a local ledger.`,
	Example: `  # Start server on default port
  terse serve

  # Start on a custom address
  terse serve --addr :9090

  # Start with a specific ledger
  terse serve --db /path/to/ledger.db --addr localhost:7274`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := store.New(dbPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer s.Close()

		srv := server.New(s)

		// Listen first so we can report the actual address.
		ln, err := net.Listen("tcp", serveAddr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", serveAddr, err)
		}

		fmt.Fprintf(os.Stderr, "terse serve listening on %s\n", ln.Addr())

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Serve(ln)
		}()

		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "shutting down...")
			return srv.Shutdown(context.Background())
		case err := <-errCh:
			return err
		}
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":7274", "address to listen on (host:port)")
	rootCmd.AddCommand(serveCmd)
}
