package cryptoutils

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ruteri/delegate-upgrade-registry/interfaces"
)

// AttestedOriginHeader carries the base58-encoded origin of the caller.
// It is set by the fronting attested proxy after verifying the caller and must
// be stripped from any request that did not pass through that proxy.
const AttestedOriginHeader = "X-Flashbots-Attested-Origin"

// HeaderOriginAttester trusts the origin header set by the attested proxy.
// Currently implementation assumes the origin is verified by cvm-reverse-proxy
// and the correct (and valid) header has been set.
type HeaderOriginAttester struct {
	Header string
}

// NewHeaderOriginAttester returns an attester reading AttestedOriginHeader.
func NewHeaderOriginAttester() *HeaderOriginAttester {
	return &HeaderOriginAttester{Header: AttestedOriginHeader}
}

// AttestedOrigin extracts the origin from the request header.
func (a *HeaderOriginAttester) AttestedOrigin(r *http.Request) (interfaces.Origin, error) {
	header := a.Header
	if header == "" {
		header = AttestedOriginHeader
	}

	values := r.Header.Values(header)
	if len(values) == 0 || values[0] == "" {
		return nil, fmt.Errorf("%w: header %s not set", interfaces.ErrMissingOrigin, header)
	}
	if len(values) > 1 {
		return nil, fmt.Errorf("%w: header %s set more than once", interfaces.ErrMissingOrigin, header)
	}

	origin, err := interfaces.NewOriginFromBase58(values[0])
	if err != nil {
		if errors.Is(err, interfaces.ErrMissingOrigin) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", interfaces.ErrMissingOrigin, err)
	}
	if origin.IsReserved() {
		return nil, fmt.Errorf("%w: header %s carries a reserved origin", interfaces.ErrMissingOrigin, header)
	}
	return origin, nil
}
