package migrationhandler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/delegate-upgrade-registry/api"
	"github.com/ruteri/delegate-upgrade-registry/interfaces"
)

// MigrationPath is the single endpoint of the registry protocol.
const MigrationPath = "/api/attested/migration"

// Processor executes a decoded request on behalf of an attested origin.
// registry.Registry implements it.
type Processor interface {
	Process(ctx context.Context, origin interfaces.Origin, req api.Request) (api.Response, error)
}

// Handler serves the registry protocol over HTTP.
type Handler struct {
	processor Processor
	attester  interfaces.OriginAttester
	log       *slog.Logger
}

// NewHandler creates a new HTTP request handler with the specified dependencies.
func NewHandler(processor Processor, attester interfaces.OriginAttester, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		processor: processor,
		attester:  attester,
		log:       log,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post(MigrationPath, h.HandleMigration)
}

// HandleMigration processes one registry request.
//
// URL format: POST /api/attested/migration
// Body: a JSON request envelope, at most api.MaxRequestSize bytes
//
// The origin is taken from the attester before the body is read; a request
// without an origin is rejected with 401 and never reaches the store.
//
// Response: the JSON response envelope
func (h *Handler) HandleMigration(w http.ResponseWriter, r *http.Request) {
	origin, err := h.attester.AttestedOrigin(r)
	if err == nil && origin.IsReserved() {
		err = fmt.Errorf("%w: reserved origin", interfaces.ErrMissingOrigin)
	}
	if err != nil {
		h.log.Debug("rejected request without attested origin", "err", err)
		http.Error(w, fmt.Errorf("could not attest origin: %w", err).Error(), http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, api.MaxRequestSize))
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			http.Error(w, fmt.Sprintf("request exceeds %d bytes", maxBytesErr.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, fmt.Errorf("could not read request: %w", err).Error(), http.StatusBadRequest)
		return
	}

	req, err := api.DecodeRequest(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := h.processor.Process(r.Context(), origin, req)
	if err != nil {
		status := StatusForError(err)
		if status >= http.StatusInternalServerError {
			h.log.Error("could not process request", slog.String("origin", origin.String()), "err", err)
		}
		http.Error(w, fmt.Errorf("could not process request: %w", err).Error(), status)
		return
	}

	data, err := api.EncodeResponse(resp)
	if err != nil {
		h.log.Error("could not encode response", "err", err)
		http.Error(w, fmt.Errorf("could not encode response: %w", err).Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// StatusForError maps registry errors to HTTP status codes.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, interfaces.ErrMissingOrigin):
		return http.StatusUnauthorized
	case errors.Is(err, interfaces.ErrMalformedRequest):
		return http.StatusBadRequest
	case errors.Is(err, interfaces.ErrStorageFailure),
		errors.Is(err, interfaces.ErrCorruptRecord),
		errors.Is(err, interfaces.ErrBackendUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
