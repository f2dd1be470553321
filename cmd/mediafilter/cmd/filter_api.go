package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solatis/mediafilter/internal/core/api"
	"github.com/solatis/mediafilter/internal/core/auth"
	"github.com/solatis/mediafilter/internal/core/config"
	"github.com/solatis/mediafilter/internal/core/db"
	"github.com/solatis/mediafilter/internal/core/server"
	"github.com/solatis/mediafilter/internal/events"
	"github.com/solatis/mediafilter/internal/filter"
)

const Version = "0.1.0"

var filterAPICmd = &cobra.Command{
	Use:   "filter-api",
	Short: "Start gRPC filter API service",
	RunE:  runFilterAPI,
}

func init() {
	rootCmd.AddCommand(filterAPICmd)
	filterAPICmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	filterAPICmd.Flags().Int("port", 50061, "gRPC server port")
	filterAPICmd.Flags().String("data-dir", "./data", "directory for the default SQLite database")
	filterAPICmd.Flags().String("nats-url", "", "NATS server URL for cross-instance filter updates")
	filterAPICmd.Flags().Int("max-sessions", 10000, "maximum open filter sessions")
}

func runFilterAPI(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfigWithFlags(configFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.MigrateUp(database); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	queries, err := db.LoadQueries(database)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}

	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	if len(secrets) == 0 {
		return fmt.Errorf("no HMAC secrets configured (set MF_HMAC_SECRET environment variable)")
	}

	authenticator := auth.NewAuthenticator(secrets, queries, logger.Named("auth"))
	engine := filter.NewEngine(cfg.MaxSessions, logger.Named("filter"))

	var publisher events.Publisher = &events.NoopPublisher{}
	if cfg.NATSURL != "" {
		natsPub, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			return err
		}
		publisher = natsPub
	}
	defer publisher.Close()

	service, err := api.NewFilterService(engine, db.NewRepository(queries), publisher, cfg, logger.Named("api"))
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	if cfg.NATSURL != "" {
		sub, err := events.NewNATSSubscriber(cfg.NATSURL,
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				logger.Warn("NATS disconnected", zap.Error(err))
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
			}))
		if err != nil {
			return err
		}
		defer sub.Close()

		err = sub.SubscribeFilterUpdates(ctx,
			func(ev events.FilterUpdated) { service.HandleFilterUpdated(ctx, ev) },
			func(err error) { logger.Warn("dropping filter update", zap.Error(err)) })
		if err != nil {
			return err
		}
	}

	grpcServer, err := server.NewGRPCServer(cfg, service, authenticator, logger.Named("server"))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.Info("starting mediafilter filter API",
		zap.String("version", Version),
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.Bool("nats", cfg.NATSURL != ""))

	errChan := make(chan error, 1)
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
		logger.Info("shutting down gracefully")
		return grpcServer.Shutdown(ctx)
	}
}
