// Package cryptoutils provides the origin attesters of the registry server and
// the certificate helpers used by TLS origin mode.
//
// The registry never verifies a caller itself. An attester only reports the
// origin established by something else:
//
//   - HeaderOriginAttester reads the base58 X-Flashbots-Attested-Origin header
//     set by the attested reverse proxy in front of the server.
//   - TLSOriginAttester uses the client certificate already verified by the
//     TLS stack. The origin is sha256(SubjectPublicKeyInfo) of the leaf.
//
// Both fail closed with interfaces.ErrMissingOrigin.
package cryptoutils
