package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/shift-selector/pkg/core/recounter"
	"github.com/jakechorley/shift-selector/pkg/core/services"
	"github.com/jakechorley/shift-selector/pkg/server"
)

const shutdownTimeout = 10 * time.Second

// ServeCmd creates the serve command
func ServeCmd(app *AppContext) *cobra.Command {
	var origins []string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the shift claim API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(app.Ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := app.Recounts.Start(ctx); err != nil {
				return fmt.Errorf("failed to start recount queue: %w", err)
			}
			defer app.Recounts.Stop()

			if app.Cfg.Reconcile.RRule != "" {
				sweep, err := recounter.NewSweep(app.Cfg.Reconcile.RRule, func(ctx context.Context) error {
					_, err := services.RecountAll(ctx, app.SheetsClient, app.Directory, app.Cfg, app.Logger)
					return err
				}, app.Logger)
				if err != nil {
					return err
				}
				app.Logger.Info("Reconcile scheduled", zap.Time("next", sweep.NextRun(time.Now())))
				go sweep.Run(ctx)
			}

			var opts []server.Options
			if len(origins) > 0 {
				opts = append(opts, server.WithAllowedOrigins(origins...))
			}
			srv := &http.Server{
				Addr:              app.Cfg.ListenAddr,
				Handler:           server.New(app.Directory, app.Engine, app.Cfg.Schedule, app.Logger, opts...),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				app.Logger.Info("Listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("server failed: %w", err)
				}
			case <-ctx.Done():
				app.Logger.Info("Shutting down")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("failed to shut down server: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&origins, "allow-origin", nil, "Restrict CORS to these origins (default: any)")
	return cmd
}
