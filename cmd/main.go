package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dpow-project/chain"
	"dpow-project/config"
	"dpow-project/db"
	"dpow-project/dpow"
	"dpow-project/handlers"
	"dpow-project/logger"
	"dpow-project/repository"
	"dpow-project/routers"
	"dpow-project/wallet"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "dpowd",
		Short:        "Serve dPoW-adjusted confirmation queries",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := viper.New()
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			cfg, err := config.Load(v, configPath)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return run(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", config.DefaultPath, "path to the config file")
	cmd.Flags().Int("server.port", 8080, "HTTP listen port")
	cmd.Flags().String("log.level", "info", "log level (debug|info|warn|error)")
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	if err := logger.InitLogger(cfg.Log.AppLogFile, cfg.Log.Level); err != nil {
		return errors.Wrap(err, "initialize logger")
	}
	defer logger.Logger.Sync()

	logger.Logger.Info("Starting dPoW node...")

	// Connect to LevelDB
	ldb, err := db.NewLevelDB(cfg.LevelDB.Path)
	if err != nil {
		return err
	}
	defer ldb.Close()

	repo := repository.NewRepository(ldb)

	tracker := dpow.NewTracker(repo)
	c := chain.NewChain(repo, tracker)
	if err := c.Load(); err != nil {
		return err
	}

	// Restore the last accepted notarization before any block or query
	cp, err := repo.GetLatestCheckpoint()
	if err != nil {
		return errors.Wrap(err, "load checkpoint")
	}
	if err := c.RestoreCheckpoint(cp); err != nil {
		return err
	}

	w := wallet.NewService(repo, c, tracker)

	h := handlers.NewHandler(c, w, cfg.Wallet.DefaultMinConf)
	r := mux.NewRouter()
	routers.RegisterRoutes(r, h)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	info := w.GetInfo()
	logger.Logger.Info("Server running on port",
		zap.Int("port", cfg.Server.Port),
		zap.Int64("tip", info.Blocks),
		zap.Int64p("notarized", info.Notarized))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Logger.Info("Shutdown signal received, exiting...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
