package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ruteri/delegate-upgrade-registry/api"
	"github.com/ruteri/delegate-upgrade-registry/interfaces"
	"github.com/ruteri/delegate-upgrade-registry/metrics"
	"github.com/ruteri/delegate-upgrade-registry/partition"
)

// Registry answers migration requests for attested origins.
// It holds no state between calls apart from what is in the MappingStore.
type Registry struct {
	store   interfaces.MappingStore
	metrics *metrics.RegistryMetrics
	log     *slog.Logger
}

// NewRegistry creates a registry over store. m may be nil.
func NewRegistry(store interfaces.MappingStore, m *metrics.RegistryMetrics, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		store:   store,
		metrics: m,
		log:     log,
	}
}

// GetPreviousKey returns the mapping recorded for (origin, ns), echoing ns.
// An unwritten partition yields a response with both key fields nil.
func (r *Registry) GetPreviousKey(ctx context.Context, origin interfaces.Origin, ns interfaces.Namespace) (resp *api.PreviousKey, err error) {
	start := time.Now()
	outcome := metrics.OutcomeError
	defer func() {
		r.metrics.ObserveOperation(metrics.OperationGetPreviousKey, outcomeFor(err, outcome), time.Since(start))
	}()

	pk, err := partition.Derive(origin, ns)
	if err != nil {
		return nil, err
	}

	rec, ok, err := r.store.Get(ctx, pk)
	if err != nil {
		r.log.Error("Failed to read mapping",
			slog.String("origin", origin.String()),
			slog.String("namespace", ns.String()),
			"err", err)
		return nil, err
	}

	if !ok {
		outcome = metrics.OutcomeAbsent
		r.log.Debug("No previous key recorded",
			slog.String("origin", origin.String()),
			slog.String("namespace", ns.String()))
		return api.NewPreviousKey(ns, nil), nil
	}

	outcome = metrics.OutcomeFound
	r.log.Debug("Returning previous key",
		slog.String("origin", origin.String()),
		slog.String("namespace", ns.String()),
		slog.String("delegate_key", rec.DelegateKey.String()),
		slog.String("code_hash", rec.CodeHash.String()))
	return api.NewPreviousKey(ns, &rec), nil
}

// SetCurrentKey unconditionally records rec for (origin, ns), echoing ns.
// Recording the same record again is a plain overwrite.
func (r *Registry) SetCurrentKey(ctx context.Context, origin interfaces.Origin, ns interfaces.Namespace, rec interfaces.MappingRecord) (resp *api.KeyUpdated, err error) {
	start := time.Now()
	outcome := metrics.OutcomeError
	defer func() {
		r.metrics.ObserveOperation(metrics.OperationSetCurrentKey, outcomeFor(err, outcome), time.Since(start))
	}()

	pk, err := partition.Derive(origin, ns)
	if err != nil {
		return nil, err
	}

	if err := r.store.Put(ctx, pk, rec); err != nil {
		r.log.Error("Failed to record mapping",
			slog.String("origin", origin.String()),
			slog.String("namespace", ns.String()),
			"err", err)
		return nil, err
	}

	outcome = metrics.OutcomeUpdated
	r.log.Debug("Recorded current key",
		slog.String("origin", origin.String()),
		slog.String("namespace", ns.String()),
		slog.String("delegate_key", rec.DelegateKey.String()),
		slog.String("code_hash", rec.CodeHash.String()))
	return &api.KeyUpdated{Namespace: ns}, nil
}

// Process dispatches a decoded request. Each call performs exactly one store operation.
func (r *Registry) Process(ctx context.Context, origin interfaces.Origin, req api.Request) (api.Response, error) {
	switch {
	case req.GetPreviousKey != nil && req.SetCurrentKey != nil:
		return api.Response{}, fmt.Errorf("%w: request sets more than one variant", interfaces.ErrMalformedRequest)

	case req.GetPreviousKey != nil:
		resp, err := r.GetPreviousKey(ctx, origin, req.GetPreviousKey.Namespace)
		if err != nil {
			return api.Response{}, err
		}
		return api.Response{PreviousKey: resp}, nil

	case req.SetCurrentKey != nil:
		resp, err := r.SetCurrentKey(ctx, origin, req.SetCurrentKey.Namespace, req.SetCurrentKey.Record())
		if err != nil {
			return api.Response{}, err
		}
		return api.Response{KeyUpdated: resp}, nil

	default:
		return api.Response{}, fmt.Errorf("%w: request sets no variant", interfaces.ErrMalformedRequest)
	}
}

func outcomeFor(err error, success string) string {
	switch {
	case err == nil:
		return success
	case errors.Is(err, interfaces.ErrMissingOrigin):
		return metrics.OutcomeMissingOrigin
	case errors.Is(err, interfaces.ErrCorruptRecord):
		return metrics.OutcomeCorruptRecord
	case errors.Is(err, interfaces.ErrStorageFailure):
		return metrics.OutcomeStorageFailure
	default:
		return metrics.OutcomeError
	}
}
