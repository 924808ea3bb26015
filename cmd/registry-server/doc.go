// Package main (cmd/registry-server) runs the delegate upgrade registry.
//
// The server exposes POST /api/attested/migration together with the usual
// /livez, /readyz, /drain and /undrain endpoints, and Prometheus metrics on a
// separate listener. Records are kept in one or more storage backends given as
// --storage URIs; with several, reads fall through and a write must
// reach all of them.
//
// Caller origins come either from the attested origin header of a trusted
// proxy (--origin-mode=header) or from verified client certificates
// (--origin-mode=tls). Every flag can also be read from the environment or
// from the YAML file given with --config.
//
// At startup the server records its own binary identity under a reserved
// origin, unless --self-migrate=false.
package main
