package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-formwizard/internal/sink"
)

const shutdownGrace = 5 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reference submission sink",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listen == "" {
				listen = a.cfg.ListenAddr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			repo, closeRepo, err := a.repository(ctx)
			if err != nil {
				return err
			}
			defer closeRepo()

			registry, err := a.forms()
			if err != nil {
				return err
			}
			ids := make([]string, 0, registry.Len())
			for _, id := range registry.IDs() {
				form, _ := registry.Form(id)
				ids = append(ids, path.Base(form.Endpoint))
			}

			svc, err := sink.NewService(ctx, repo, sink.WithLogger(a.logger), sink.WithForms(ids...))
			if err != nil {
				return err
			}
			srv := &http.Server{
				Addr:              listen,
				Handler:           svc.Handler(a.cfg.AllowedOrigins),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				a.logger.Info("sink listening", zap.String("addr", listen), zap.Strings("forms", ids))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
				defer cancel()
				a.logger.Info("sink shutting down")
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default from config)")
	return cmd
}

// repository returns PostgreSQL storage when database_url is set and
// in-memory storage otherwise.
func (a *app) repository(ctx context.Context) (sink.Repository, func(), error) {
	if a.cfg.DatabaseURL == "" {
		a.logger.Warn("database_url not set, quotes are kept in memory")
		return sink.NewMemoryRepository(), func() {}, nil
	}
	pool, err := sink.Connect(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	repo := sink.NewPostgresRepository(pool)
	if err := repo.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return repo, pool.Close, nil
}
