package cryptoutils

import (
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/ruteri/delegate-upgrade-registry/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderOriginAttester(t *testing.T) {
	attester := NewHeaderOriginAttester()
	raw := []byte("attested-caller")

	tests := []struct {
		name    string
		values  []string
		want    interfaces.Origin
		wantErr bool
	}{
		{name: "valid", values: []string{base58.Encode(raw)}, want: interfaces.Origin(raw)},
		{name: "missing", values: nil, wantErr: true},
		{name: "empty", values: []string{""}, wantErr: true},
		{name: "not base58", values: []string{"0OIl"}, wantErr: true},
		{name: "repeated", values: []string{base58.Encode(raw), base58.Encode([]byte("other"))}, wantErr: true},
		{name: "reserved", values: []string{base58.Encode(interfaces.ServerSelfOrigin)}, wantErr: true},
		{name: "leading zero byte", values: []string{base58.Encode(append([]byte{0}, raw...))}, want: interfaces.Origin(append([]byte{0}, raw...))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", nil)
			for _, v := range tt.values {
				r.Header.Add(AttestedOriginHeader, v)
			}

			origin, err := attester.AttestedOrigin(r)
			if tt.wantErr {
				assert.ErrorIs(t, err, interfaces.ErrMissingOrigin)
				assert.Nil(t, origin)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, origin)
		})
	}
}

func TestTLSOriginAttester_FailsClosed(t *testing.T) {
	attester := NewTLSOriginAttester()

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	_, err := attester.AttestedOrigin(r)
	assert.ErrorIs(t, err, interfaces.ErrMissingOrigin)

	// Peer certificates alone are not verified chains
	ca, err := NewCertificateAuthority("test-ca", time.Hour)
	require.NoError(t, err)
	r.TLS = &tls.ConnectionState{PeerCertificates: []*x509.Certificate{ca.Cert}}
	_, err = attester.AttestedOrigin(r)
	assert.ErrorIs(t, err, interfaces.ErrMissingOrigin)

	_, err = OriginFromCertificate(nil)
	assert.ErrorIs(t, err, interfaces.ErrMissingOrigin)
}

func TestTLSOriginAttester_VerifiedClient(t *testing.T) {
	ca, err := NewCertificateAuthority("test-ca", time.Hour)
	require.NoError(t, err)
	clientCert, err := ca.IssueClientCert("delegate", time.Hour)
	require.NoError(t, err)

	attester := NewTLSOriginAttester()
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin, err := attester.AttestedOrigin(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		w.Write([]byte(origin.String()))
	}))
	srv.TLS = &tls.Config{
		ClientAuth: tls.RequireAndVerifyClientCert,
		ClientCAs:  ca.CertPool(),
	}
	srv.StartTLS()
	defer srv.Close()

	client := srv.Client()
	transport := client.Transport.(*http.Transport)
	transport.TLSClientConfig.Certificates = []tls.Certificate{clientCert}

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	digest := sha256.Sum256(clientCert.Leaf.RawSubjectPublicKeyInfo)
	assert.Equal(t, interfaces.Origin(digest[:]).String(), string(body))
}

func TestRandomCert(t *testing.T) {
	cert, err := RandomCert()
	require.NoError(t, err)
	assert.Len(t, cert.Certificate, 1)
}
