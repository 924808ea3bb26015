package cryptoutils

import (
	"crypto/sha256"
	"crypto/x509"
	"fmt"
	"net/http"

	"github.com/ruteri/delegate-upgrade-registry/interfaces"
)

// TLSOriginAttester identifies callers by the client certificate the TLS
// stack has already verified. The origin is the SHA-256 of the leaf
// certificate's SubjectPublicKeyInfo, so it survives certificate renewal with
// the same key.
//
// The server must be configured with tls.RequireAndVerifyClientCert; this
// attester only reads VerifiedChains and never inspects unverified peers.
type TLSOriginAttester struct{}

func NewTLSOriginAttester() *TLSOriginAttester {
	return &TLSOriginAttester{}
}

func (a *TLSOriginAttester) AttestedOrigin(r *http.Request) (interfaces.Origin, error) {
	if r.TLS == nil {
		return nil, fmt.Errorf("%w: connection is not TLS", interfaces.ErrMissingOrigin)
	}
	if len(r.TLS.VerifiedChains) == 0 || len(r.TLS.VerifiedChains[0]) == 0 {
		return nil, fmt.Errorf("%w: no verified client certificate", interfaces.ErrMissingOrigin)
	}

	return OriginFromCertificate(r.TLS.VerifiedChains[0][0])
}

// OriginFromCertificate returns the origin a TLSOriginAttester assigns to cert.
func OriginFromCertificate(cert *x509.Certificate) (interfaces.Origin, error) {
	if cert == nil || len(cert.RawSubjectPublicKeyInfo) == 0 {
		return nil, fmt.Errorf("%w: certificate has no public key", interfaces.ErrMissingOrigin)
	}
	digest := sha256.Sum256(cert.RawSubjectPublicKeyInfo)
	return interfaces.Origin(digest[:]), nil
}
