package cmd

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

	"github.com/Tiliavir/showrun/internal/httpapi"
	"github.com/Tiliavir/showrun/internal/model"
	"github.com/Tiliavir/showrun/internal/playback"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the playback engine and the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, os.Stderr, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer a.Close()

	a.engine.OnLifecycle(func(key model.Lifecycle, snap playback.Snapshot) {
		if key == model.OnUpdate || key == model.OnClock {
			return
		}
		id := ""
		if snap.EventNow != nil {
			id = snap.EventNow.ID
		}
		a.log.Info("%s: status=%s event=%q", key, snap.Status, id)
	})

	addr := a.cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpapi.NewServer(a.engine, a.log).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go a.engine.Run(ctx, a.cfg.TickInterval())

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("showrun listening on %s (data in %s)", addr, a.base)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server: %v", err)
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Warning("http shutdown: %v", err)
	}
	a.log.Info("showrun stopped")
	return nil
}
