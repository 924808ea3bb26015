package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/delegate-upgrade-registry/api"
	"github.com/ruteri/delegate-upgrade-registry/common"
	"github.com/urfave/cli/v2"
	"github.com/urfave/cli/v2/altsrc"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String(LogServiceFlag.Name)

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger, listenAddr string) *api.HTTPServerConfig {
	metricsAddr := cCtx.String(MetricsAddrFlag.Name)
	enablePprof := cCtx.Bool(PprofFlag.Name)
	drainDuration := time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second

	return &api.HTTPServerConfig{
		ListenAddr:               listenAddr,
		MetricsAddr:              metricsAddr,
		Log:                      logger,
		EnablePprof:              enablePprof,
		DrainDuration:            drainDuration,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}
}

var ConfigFlag = &cli.StringFlag{
	Name:    "config",
	EnvVars: []string{"REGISTRY_CONFIG"},
	Usage:   "YAML file with values for any of the other flags",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:    "log-json",
	Value:   false,
	EnvVars: []string{"LOG_JSON"},
	Usage:   "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:    "log-debug",
	Value:   false,
	EnvVars: []string{"LOG_DEBUG"},
	Usage:   "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:    "log-uid",
	Value:   false,
	EnvVars: []string{"LOG_UID"},
	Usage:   "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:    "log-service",
	Value:   common.PackageName,
	EnvVars: []string{"LOG_SERVICE"},
	Usage:   "add 'service' tag to logs",
}

var PprofFlag = &cli.BoolFlag{
	Name:    "pprof",
	Value:   false,
	EnvVars: []string{"PPROF"},
	Usage:   "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:    "drain-seconds",
	Value:   45,
	EnvVars: []string{"DRAIN_SECONDS"},
	Usage:   "seconds to wait after marking the server not ready before shutting down",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:    "metrics-addr",
	Value:   "127.0.0.1:8090",
	EnvVars: []string{"METRICS_ADDR"},
	Usage:   "address to listen on for Prometheus metrics",
}

var ListenAddrFlag = &cli.StringFlag{
	Name:    "listen-addr",
	Value:   "127.0.0.1:8080",
	EnvVars: []string{"LISTEN_ADDR"},
	Usage:   "address to listen on for API",
}
var StorageFlag = &cli.StringSliceFlag{
	Name:    "storage",
	Value:   cli.NewStringSlice("file://./data"),
	EnvVars: []string{"STORAGE"},
	Usage:   "storage backend URI (memory://, file://, sqlite://, s3://, ipfs://, vault://); repeat for redundant storage",
}
var OriginModeFlag = &cli.StringFlag{
	Name:    "origin-mode",
	Value:   "header",
	EnvVars: []string{"ORIGIN_MODE"},
	Usage:   "how callers are identified: 'header' (attested proxy header) or 'tls' (verified client certificate)",
}
var TLSCertFlag = &cli.StringFlag{
	Name:    "tls-cert",
	EnvVars: []string{"TLS_CERT"},
	Usage:   "PEM certificate for the API listener; a random self-signed one is used in tls mode if unset",
}
var TLSKeyFlag = &cli.StringFlag{
	Name:    "tls-key",
	EnvVars: []string{"TLS_KEY"},
	Usage:   "PEM private key for --tls-cert",
}
var TLSClientCAFlag = &cli.StringFlag{
	Name:    "tls-client-ca",
	EnvVars: []string{"TLS_CLIENT_CA"},
	Usage:   "PEM bundle of CAs trusted to issue client certificates, required in tls mode",
}
var SelfMigrateFlag = &cli.BoolFlag{
	Name:    "self-migrate",
	Value:   true,
	EnvVars: []string{"SELF_MIGRATE"},
	Usage:   "record the server's own identity in the registry at startup",
}

// ServerFlags are the registry server flags. All of them can be set from the
// --config YAML file.
var ServerFlags = []cli.Flag{
	ConfigFlag,
	altsrc.NewBoolFlag(LogJsonFlag),
	altsrc.NewBoolFlag(LogDebugFlag),
	altsrc.NewBoolFlag(LogUidFlag),
	altsrc.NewStringFlag(LogServiceFlag),
	altsrc.NewBoolFlag(PprofFlag),
	altsrc.NewInt64Flag(DrainSecondsFlag),
	altsrc.NewStringFlag(MetricsAddrFlag),
	altsrc.NewStringFlag(ListenAddrFlag),
	altsrc.NewStringSliceFlag(StorageFlag),
	altsrc.NewStringFlag(OriginModeFlag),
	altsrc.NewStringFlag(TLSCertFlag),
	altsrc.NewStringFlag(TLSKeyFlag),
	altsrc.NewStringFlag(TLSClientCAFlag),
	altsrc.NewBoolFlag(SelfMigrateFlag),
}

// LoadConfigFile returns a Before hook reading ServerFlags from --config when set.
func LoadConfigFile() cli.BeforeFunc {
	load := altsrc.InitInputSourceWithContext(ServerFlags, altsrc.NewYamlSourceFromFlagFunc(ConfigFlag.Name))
	return func(cCtx *cli.Context) error {
		if cCtx.String(ConfigFlag.Name) == "" {
			return nil
		}
		return load(cCtx)
	}
}
