/*
Package httpserver runs the registry's HTTP API.

It mounts the API handlers (api/migrationhandler) next to the operational
endpoints and serves Prometheus metrics on a separate address.

# Endpoints

  - POST /api/attested/migration - registry protocol
  - GET /livez - liveness
  - GET /readyz - readiness, 503 while draining
  - GET /drain, /undrain - toggle readiness
  - /debug/pprof - when EnablePprof is set

Every API request is logged through the flashbots go-utils slog middleware.

# TLS

When HTTPServerConfig.TLSConfig is set the API listener serves TLS. With
tls.RequireAndVerifyClientCert the server can be paired with
cryptoutils.TLSOriginAttester so the verified client key is the caller origin.

# Shutdown

Shutdown marks the server not ready, waits DrainDuration and then shuts the API
and metrics servers down within GracefulShutdownDuration.
*/
package httpserver
