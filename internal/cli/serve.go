package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	marsrover "github.com/iaimans/mars-rover-ai-jam"
	"github.com/iaimans/mars-rover-ai-jam/internal/obstacle"
	"github.com/iaimans/mars-rover-ai-jam/internal/storage"
	"github.com/iaimans/mars-rover-ai-jam/internal/transport/ws"
)

var (
	serveAddr     string
	serveNoRecord bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve rovers over websocket",
	Long: `Start a websocket server on which every connection drives its own rover
over one shared obstacle field.

Clients send JSON messages:
  {"type":"command","command":"F"}
  {"type":"script","script":"repeat 4 { F 3; R }"}
  {"type":"state"}
  {"type":"obstacles","face":"TOP"}
  {"type":"ack"}

After a successful move the rover is in flight until the client sends an
ack or the in-flight window passes; commands sent meanwhile are answered
with {"type":"busy"}.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: from config)")
	serveCmd.Flags().BoolVar(&serveNoRecord, "no-record", false, "Do not record connections as sessions")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Serve.Addr = serveAddr
	}
	inFlight, err := cfg.InFlightDuration()
	if err != nil {
		return err
	}
	opts, err := cfg.Options()
	if err != nil {
		return err
	}

	// Build one mission only to generate the shared field.
	base, err := marsrover.New(opts...)
	if err != nil {
		return err
	}
	field := base.Field()
	if field.Strategy() == obstacle.StrategyRejection && field.Shortfall() > 0 {
		klog.Warningf("serving a field %d obstacles short of its target", field.Shortfall())
	}

	var db *storage.DB
	if !serveNoRecord {
		if db, err = openDB(); err != nil {
			return err
		}
		defer db.Close()
	}

	srv := ws.NewServer(ws.Config{
		Field: field,
		// Every connection reports the field's seed.
		Options:        append(opts, marsrover.WithSeed(base.Settings().Seed)),
		InFlight:       inFlight,
		MaxConnections: cfg.Serve.MaxConnections,
		DB:             db,
	})
	httpSrv := &http.Server{
		Addr:              cfg.Serve.Addr,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := base.Settings()
	fmt.Printf("Serving %dx%d %s cube (seed %d, %d obstacles) on ws://%s/ws\n",
		s.GridSize, s.GridSize, s.Topology, s.Seed, field.Len(), cfg.Serve.Addr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		klog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	if n := srv.Active(); n > 0 {
		klog.Infof("%d connections open at exit", n)
	}
	return nil
}
