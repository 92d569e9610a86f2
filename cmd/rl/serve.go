package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"raceline/internal/app"
	"raceline/internal/server"
)

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the live feed, the event log and webhooks",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			o := overrides()
			o.Live = true
			a, err := app.Open(ctx, viper.GetString("workspace"), o)
			if err != nil {
				return err
			}
			defer a.Close()
			if addr == "" {
				addr = a.Config.Broadcast.Listen
			}
			handler, err := server.New(server.Config{
				Engine:   a.Engine,
				Hub:      a.Hub,
				LivePath: a.Config.Broadcast.Path,
				Log:      a.Log.Named("http"),
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			hooks := server.NewWebhookDispatcher(a.Engine.Repos.Events, a.Config.Webhooks, a.Log.Named("webhooks"))

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				a.Hub.Run(gctx)
				return nil
			})
			g.Go(func() error { return hooks.Run(gctx) })
			g.Go(func() error {
				<-gctx.Done()
				shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdown)
			})
			g.Go(func() error {
				a.Log.Infow("serving", "addr", addr, "live", a.Config.Broadcast.Path, "webhooks", hooks.Active())
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from raceline.yml)")
	return cmd
}
