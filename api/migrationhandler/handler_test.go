package migrationhandler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/mr-tron/base58"
	"github.com/ruteri/delegate-upgrade-registry/api"
	"github.com/ruteri/delegate-upgrade-registry/cryptoutils"
	"github.com/ruteri/delegate-upgrade-registry/interfaces"
	"github.com/ruteri/delegate-upgrade-registry/registry"
	"github.com/ruteri/delegate-upgrade-registry/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockProcessor implements Processor for testing
type MockProcessor struct {
	mock.Mock
}

func (m *MockProcessor) Process(ctx context.Context, origin interfaces.Origin, req api.Request) (api.Response, error) {
	args := m.Called(ctx, origin, req)
	return args.Get(0).(api.Response), args.Error(1)
}

// fakeAttester returns a fixed origin, or ErrMissingOrigin when none is set.
type fakeAttester struct {
	origin interfaces.Origin
}

func (a fakeAttester) AttestedOrigin(r *http.Request) (interfaces.Origin, error) {
	if len(a.origin) == 0 {
		return nil, interfaces.ErrMissingOrigin
	}
	return a.origin, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, processor Processor, attester interfaces.OriginAttester) *httptest.Server {
	t.Helper()
	handler := NewHandler(processor, attester, testLogger())
	router := chi.NewRouter()
	handler.RegisterRoutes(router)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func newRegistryServer(t *testing.T) *httptest.Server {
	t.Helper()
	kv := storage.NewMemoryBackend(testLogger())
	reg := registry.NewRegistry(registry.NewMappingStore(kv, testLogger()), nil, testLogger())
	return newTestServer(t, reg, cryptoutils.NewHeaderOriginAttester())
}

func clientFor(server *httptest.Server, origin string) *Client {
	client := NewClient(server.URL)
	client.Client = server.Client()
	client.DebugOriginHeader = base58.Encode([]byte(origin))
	return client
}

func post(t *testing.T, server *httptest.Server, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, server.URL+MigrationPath, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set(cryptoutils.AttestedOriginHeader, base58.Encode([]byte("raw-origin")))

	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func TestHandleMigration_ExampleScenario(t *testing.T) {
	ctx := context.Background()
	server := newRegistryServer(t)
	a := clientFor(server, "origin-a")
	b := clientFor(server, "origin-b")

	k1 := interfaces.DelegateKey{0x01}
	h1 := interfaces.CodeHash{0x11}

	prev, err := a.GetPreviousKey(ctx, interfaces.DefaultNamespace())
	require.NoError(t, err)
	assert.Nil(t, prev.DelegateKey)
	assert.Nil(t, prev.CodeHash)

	updated, err := a.SetCurrentKey(ctx, interfaces.DefaultNamespace(), interfaces.MappingRecord{DelegateKey: k1, CodeHash: h1})
	require.NoError(t, err)
	assert.True(t, updated.Namespace.IsDefault())

	prev, err = a.GetPreviousKey(ctx, interfaces.DefaultNamespace())
	require.NoError(t, err)
	require.NotNil(t, prev.DelegateKey)
	assert.Equal(t, k1, *prev.DelegateKey)
	assert.Equal(t, h1, *prev.CodeHash)

	prev, err = b.GetPreviousKey(ctx, interfaces.DefaultNamespace())
	require.NoError(t, err)
	assert.Nil(t, prev.DelegateKey)

	prev, err = a.GetPreviousKey(ctx, interfaces.NamedNamespace("app2"))
	require.NoError(t, err)
	assert.Nil(t, prev.DelegateKey)
	assert.Equal(t, interfaces.NamedNamespace("app2"), prev.Namespace)
}

func TestHandleMigration_WireFormat(t *testing.T) {
	server := newRegistryServer(t)
	hexKey := strings.Repeat("ab", 32)
	hexHash := strings.Repeat("cd", 32)

	resp, body := post(t, server, `{"GetPreviousKey":{"namespace":null}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, `{"PreviousKey":{"namespace":null,"delegate_key":null,"code_hash":null}}`, body)

	resp, body = post(t, server, `{"SetCurrentKey":{"namespace":"","delegate_key":"`+hexKey+`","code_hash":"`+hexHash+`"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, `{"KeyUpdated":{"namespace":""}}`, body)

	resp, body = post(t, server, `{"GetPreviousKey":{"namespace":""}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, `{"PreviousKey":{"namespace":"","delegate_key":"`+hexKey+`","code_hash":"`+hexHash+`"}}`, body)

	// The default namespace is untouched by the write to ""
	resp, body = post(t, server, `{"GetPreviousKey":{"namespace":null}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, `{"PreviousKey":{"namespace":null,"delegate_key":null,"code_hash":null}}`, body)
}

func TestHandleMigration_MalformedRequest(t *testing.T) {
	processor := &MockProcessor{}
	server := newTestServer(t, processor, fakeAttester{origin: interfaces.Origin("o")})

	for _, body := range []string{
		``,
		`not json`,
		`{"GetPreviousKey":{"namespace":null},"extra":{}}`,
		`{"SetCurrentKey":{"namespace":null,"delegate_key":"00"}}`,
	} {
		resp, _ := post(t, server, body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}

	processor.AssertNotCalled(t, "Process", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleMigration_MissingOrigin(t *testing.T) {
	processor := &MockProcessor{}
	server := newTestServer(t, processor, fakeAttester{})

	resp, err := server.Client().Post(server.URL+MigrationPath, "application/json", strings.NewReader(`{"GetPreviousKey":{"namespace":null}}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// The header attester rejects a request with no header the same way
	headerServer := newRegistryServer(t)
	client := NewClient(headerServer.URL)
	_, err = client.GetPreviousKey(context.Background(), interfaces.DefaultNamespace())
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)

	processor.AssertNotCalled(t, "Process", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleMigration_ReservedOrigin(t *testing.T) {
	processor := &MockProcessor{}
	server := newTestServer(t, processor, fakeAttester{origin: interfaces.ServerSelfOrigin})

	resp, err := server.Client().Post(server.URL+MigrationPath, "application/json", strings.NewReader(`{"GetPreviousKey":{"namespace":null}}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	processor.AssertNotCalled(t, "Process", mock.Anything, mock.Anything, mock.Anything)

	// The server's own record stays out of reach of a forged header
	kv := storage.NewMemoryBackend(testLogger())
	reg := registry.NewRegistry(registry.NewMappingStore(kv, testLogger()), nil, testLogger())
	_, err = reg.SetCurrentKey(context.Background(), interfaces.ServerSelfOrigin, interfaces.DefaultNamespace(), interfaces.MappingRecord{DelegateKey: interfaces.DelegateKey{1}})
	require.NoError(t, err)

	headerServer := newTestServer(t, reg, cryptoutils.NewHeaderOriginAttester())
	client := NewClient(headerServer.URL)
	client.Client = headerServer.Client()
	client.DebugOriginHeader = base58.Encode(interfaces.ServerSelfOrigin)
	_, err = client.GetPreviousKey(context.Background(), interfaces.DefaultNamespace())
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
}

func TestHandleMigration_BodyTooLarge(t *testing.T) {
	processor := &MockProcessor{}
	router := chi.NewRouter()
	NewHandler(processor, fakeAttester{origin: interfaces.Origin("o")}, testLogger()).RegisterRoutes(router)

	padding := strings.Repeat(" ", api.MaxRequestSize)
	req := httptest.NewRequest(http.MethodPost, MigrationPath,
		bytes.NewReader([]byte(`{"GetPreviousKey":{"namespace":null}}`+padding)))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	processor.AssertNotCalled(t, "Process", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleMigration_ErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: s3: timeout", interfaces.ErrStorageFailure), http.StatusBadGateway},
		{fmt.Errorf("%w: short value", interfaces.ErrCorruptRecord), http.StatusBadGateway},
		{interfaces.ErrMissingOrigin, http.StatusUnauthorized},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			origin := interfaces.Origin("o")
			processor := &MockProcessor{}
			processor.On("Process", mock.Anything, origin, mock.Anything).Return(api.Response{}, tt.err)
			server := newTestServer(t, processor, fakeAttester{origin: origin})

			client := NewClient(server.URL)
			client.Client = server.Client()
			_, err := client.GetPreviousKey(context.Background(), interfaces.DefaultNamespace())

			var statusErr *StatusError
			require.True(t, errors.As(err, &statusErr))
			assert.Equal(t, tt.status, statusErr.StatusCode)
			assert.Contains(t, statusErr.Message, tt.err.Error())
			processor.AssertExpectations(t)
		})
	}
}

func TestClient_RejectsMismatchedEcho(t *testing.T) {
	processor := &MockProcessor{}
	processor.On("Process", mock.Anything, mock.Anything, mock.Anything).Return(api.Response{
		PreviousKey: api.NewPreviousKey(interfaces.NamedNamespace("other"), nil),
	}, nil)
	server := newTestServer(t, processor, fakeAttester{origin: interfaces.Origin("o")})

	client := NewClient(server.URL)
	client.Client = server.Client()
	_, err := client.GetPreviousKey(context.Background(), interfaces.DefaultNamespace())
	assert.ErrorIs(t, err, ErrNamespaceMismatch)
}

func TestClient_SetCurrentKeyMismatchedEchoReturnsAck(t *testing.T) {
	processor := &MockProcessor{}
	processor.On("Process", mock.Anything, mock.Anything, mock.Anything).Return(api.Response{
		KeyUpdated: &api.KeyUpdated{Namespace: interfaces.NamedNamespace("other")},
	}, nil)
	server := newTestServer(t, processor, fakeAttester{origin: interfaces.Origin("o")})

	client := NewClient(server.URL)
	client.Client = server.Client()
	ack, err := client.SetCurrentKey(context.Background(), interfaces.DefaultNamespace(), interfaces.MappingRecord{})
	assert.ErrorIs(t, err, ErrNamespaceMismatch)
	require.NotNil(t, ack)
	assert.True(t, ack.Namespace.Equal(interfaces.NamedNamespace("other")))
	processor.AssertExpectations(t)
}
