package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruteri/delegate-upgrade-registry/api/migrationhandler"
	"github.com/ruteri/delegate-upgrade-registry/cmd/flags"
	"github.com/ruteri/delegate-upgrade-registry/common"
	"github.com/ruteri/delegate-upgrade-registry/cryptoutils"
	"github.com/ruteri/delegate-upgrade-registry/httpserver"
	"github.com/ruteri/delegate-upgrade-registry/interfaces"
	"github.com/ruteri/delegate-upgrade-registry/metrics"
	"github.com/ruteri/delegate-upgrade-registry/migration"
	"github.com/ruteri/delegate-upgrade-registry/registry"
	"github.com/ruteri/delegate-upgrade-registry/storage"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:    "registry-server",
		Usage:   "Serve the delegate upgrade registry",
		Version: common.Version,
		Flags:   flags.ServerFlags,
		Before:  flags.LoadConfigFile(),
		Action:  runCli,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runCli(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	cfg := flags.ConfigureServer(cCtx, logger, cCtx.String(flags.ListenAddrFlag.Name))

	kv, err := setupStorage(logger, cCtx.StringSlice(flags.StorageFlag.Name))
	if err != nil {
		return err
	}
	defer closeStorage(logger, kv)

	metricsSrv, err := metrics.New(common.PackageName, cfg.MetricsAddr)
	if err != nil {
		return fmt.Errorf("could not set up metrics: %w", err)
	}

	reg := registry.NewRegistry(
		registry.NewMappingStore(kv, logger),
		metrics.NewRegistryMetrics(metricsSrv.Namespace(), metricsSrv.Registerer()),
		logger,
	)

	if cCtx.Bool(flags.SelfMigrateFlag.Name) {
		if err := selfMigrate(cCtx.Context, logger, reg); err != nil {
			return err
		}
	}

	attester, tlsConfig, err := setupOrigin(cCtx)
	if err != nil {
		return err
	}
	cfg.TLSConfig = tlsConfig

	handler := migrationhandler.NewHandler(reg, attester, logger)

	srv, err := httpserver.New(cfg, metricsSrv, handler)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
	srv.RunInBackground()
	<-exit

	srv.Shutdown()
	return nil
}

func setupStorage(logger *slog.Logger, uris []string) (interfaces.KVStore, error) {
	if len(uris) == 0 {
		return nil, errors.New("at least one --storage location is required")
	}

	locations := make([]interfaces.StorageBackendLocation, 0, len(uris))
	for _, uri := range uris {
		location, err := interfaces.NewStorageBackendLocation(uri)
		if err != nil {
			return nil, err
		}
		locations = append(locations, location)
	}

	kv, err := storage.NewStorageBackendFactory(logger).CreateMultiBackend(locations)
	if err != nil {
		return nil, fmt.Errorf("could not set up storage: %w", err)
	}
	logger.Info("storage configured", "location", kv.LocationURI())
	return kv, nil
}

func closeStorage(logger *slog.Logger, kv interfaces.KVStore) {
	closer, ok := kv.(io.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		logger.Error("closing storage", "err", err)
	}
}

// selfMigrate records the running binary's identity under ServerSelfOrigin,
// so that an operator can tell which build last served this storage.
func selfMigrate(ctx context.Context, logger *slog.Logger, reg *registry.Registry) error {
	current, err := migration.IdentityOfExecutable(nil)
	if err != nil {
		return fmt.Errorf("could not identify server binary: %w", err)
	}
	current.Name = common.Version

	known, err := migration.EmbeddedVersions()
	if err != nil {
		return err
	}

	upgrader := migration.NewUpgrader(
		migration.NewLocalRegistry(reg, migration.ServerSelfOrigin),
		interfaces.DefaultNamespace(),
		current,
		known,
		logger,
	)

	plan, err := upgrader.Run(ctx, func(ctx context.Context, previous migration.Version) error {
		logger.Info("server identity changed", "previous", previous.String(), "current", current.String())
		return nil
	})
	if err != nil {
		return fmt.Errorf("self migration failed: %w", err)
	}

	logger.Info("self migration complete", "current", plan.Current.String(), "upToDate", plan.UpToDate, "source", plan.Source)
	return nil
}

func setupOrigin(cCtx *cli.Context) (interfaces.OriginAttester, *tls.Config, error) {
	switch mode := cCtx.String(flags.OriginModeFlag.Name); mode {
	case "header":
		return cryptoutils.NewHeaderOriginAttester(), nil, nil
	case "tls":
		caPath := cCtx.String(flags.TLSClientCAFlag.Name)
		if caPath == "" {
			return nil, nil, errors.New("--tls-client-ca is required in tls origin mode")
		}
		clientCAs, err := cryptoutils.LoadCertPool(caPath)
		if err != nil {
			return nil, nil, err
		}

		var serverCert tls.Certificate
		certPath, keyPath := cCtx.String(flags.TLSCertFlag.Name), cCtx.String(flags.TLSKeyFlag.Name)
		if certPath != "" || keyPath != "" {
			serverCert, err = tls.LoadX509KeyPair(certPath, keyPath)
		} else {
			serverCert, err = cryptoutils.RandomCert()
		}
		if err != nil {
			return nil, nil, fmt.Errorf("could not load server certificate: %w", err)
		}

		return cryptoutils.NewTLSOriginAttester(), &tls.Config{
			Certificates: []tls.Certificate{serverCert},
			ClientAuth:   tls.RequireAndVerifyClientCert,
			ClientCAs:    clientCAs,
			MinVersion:   tls.VersionTLS12,
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown origin mode %q", mode)
	}
}
