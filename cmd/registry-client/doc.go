// Package main (cmd/registry-client) implements a command-line client for the
// delegate upgrade registry.
//
// Commands:
//
//	get     - Print the identity recorded for the caller's namespace.
//	set     - Record a delegate key and code hash for the caller's namespace.
//	upgrade - Derive the identity of a delegate binary, look up its predecessor
//	          (falling back to a YAML manifest of earlier versions) and record
//	          the new identity. Prints the resulting plan.
//
// The caller's origin is established by the transport: a client certificate
// for servers in tls origin mode, or the attested origin header set by the
// proxy in front of the server. For development, --debug-origin sets that
// header directly.
//
// Omitting --namespace selects the default namespace; --namespace="" is a
// separate, named namespace.
package main
