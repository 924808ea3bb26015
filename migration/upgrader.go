package migration

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ruteri/delegate-upgrade-registry/api"
	"github.com/ruteri/delegate-upgrade-registry/interfaces"
)

// KeyRegistry is the registry as seen by a delegate: the two protocol
// operations, with the origin supplied by the transport.
// migrationhandler.Client and LocalRegistry implement it.
type KeyRegistry interface {
	GetPreviousKey(ctx context.Context, ns interfaces.Namespace) (*api.PreviousKey, error)
	SetCurrentKey(ctx context.Context, ns interfaces.Namespace, rec interfaces.MappingRecord) (*api.KeyUpdated, error)
}

// AttestedRegistry is a registry that takes the origin explicitly.
// registry.Registry implements it.
type AttestedRegistry interface {
	GetPreviousKey(ctx context.Context, origin interfaces.Origin, ns interfaces.Namespace) (*api.PreviousKey, error)
	SetCurrentKey(ctx context.Context, origin interfaces.Origin, ns interfaces.Namespace, rec interfaces.MappingRecord) (*api.KeyUpdated, error)
}

// ServerSelfOrigin is the origin under which the registry server records its
// own identity. The HTTP handler and the header attester refuse it.
var ServerSelfOrigin = interfaces.ServerSelfOrigin

// LocalRegistry binds an in-process registry to one origin.
type LocalRegistry struct {
	registry AttestedRegistry
	origin   interfaces.Origin
}

func NewLocalRegistry(registry AttestedRegistry, origin interfaces.Origin) *LocalRegistry {
	return &LocalRegistry{registry: registry, origin: origin}
}

func (l *LocalRegistry) GetPreviousKey(ctx context.Context, ns interfaces.Namespace) (*api.PreviousKey, error) {
	return l.registry.GetPreviousKey(ctx, l.origin, ns)
}

func (l *LocalRegistry) SetCurrentKey(ctx context.Context, ns interfaces.Namespace, rec interfaces.MappingRecord) (*api.KeyUpdated, error) {
	return l.registry.SetCurrentKey(ctx, l.origin, ns, rec)
}

const (
	SourceNone     = ""
	SourceRegistry = "registry"
	SourceManifest = "manifest"
)

// Plan describes what an Upgrader run found and did.
type Plan struct {
	Current Version
	// Previous is the identity whose state should be carried over, nil if none.
	Previous *Version
	// Source tells where Previous came from.
	Source string
	// UpToDate is set when the registry already held the current identity.
	UpToDate bool
	// Migrated is set once a non-nil MigrateFunc has returned successfully.
	Migrated bool
	Recorded bool
}

// MigrateFunc moves state from the previous identity. The registry never
// copies data itself.
type MigrateFunc func(ctx context.Context, previous Version) error

// Upgrader runs the upgrade protocol for one delegate identity.
type Upgrader struct {
	registry  KeyRegistry
	namespace interfaces.Namespace
	current   Version
	known     []Version
	log       *slog.Logger
}

// NewUpgrader creates an upgrader for current. known are earlier versions,
// oldest first, consulted when the registry holds no record.
func NewUpgrader(registry KeyRegistry, ns interfaces.Namespace, current Version, known []Version, log *slog.Logger) *Upgrader {
	if log == nil {
		log = slog.Default()
	}
	return &Upgrader{
		registry:  registry,
		namespace: ns,
		current:   current,
		known:     known,
		log:       log,
	}
}

// Run looks up the previous identity, calls migrate if it differs from the
// current one and records the current identity. When the registry already
// holds the current identity nothing is migrated or written.
// A failed migrate leaves the registry untouched so the run can be retried.
func (u *Upgrader) Run(ctx context.Context, migrate MigrateFunc) (*Plan, error) {
	plan := &Plan{Current: u.current}

	prev, err := u.registry.GetPreviousKey(ctx, u.namespace)
	if err != nil {
		return nil, fmt.Errorf("could not look up previous key: %w", err)
	}
	if prev == nil {
		return nil, fmt.Errorf("registry returned no response for %s", u.namespace)
	}

	if rec, ok := prev.Record(); ok {
		if rec.Equal(u.current.Record()) {
			plan.UpToDate = true
			u.log.Debug("Current identity already recorded",
				slog.String("namespace", u.namespace.String()),
				slog.String("delegate_key", u.current.DelegateKey.String()))
			return plan, nil
		}
		previous := u.nameOf(rec)
		plan.Previous = &previous
		plan.Source = SourceRegistry
	} else if previous, ok := u.newestKnown(); ok {
		plan.Previous = &previous
		plan.Source = SourceManifest
	}

	if plan.Previous != nil {
		u.log.Info("Migrating from previous identity",
			slog.String("namespace", u.namespace.String()),
			slog.String("previous", plan.Previous.String()),
			slog.String("source", plan.Source),
			slog.String("current", u.current.String()))

		if migrate != nil {
			if err := migrate(ctx, *plan.Previous); err != nil {
				return plan, fmt.Errorf("migration from %s failed: %w", plan.Previous, err)
			}
			plan.Migrated = true
		}
	}

	// A registry may acknowledge the write and still report an error
	// about the acknowledgement itself.
	ack, err := u.registry.SetCurrentKey(ctx, u.namespace, u.current.Record())
	if ack != nil {
		plan.Recorded = true
	}
	if err != nil {
		if plan.Recorded {
			return plan, fmt.Errorf("current key recorded with an invalid acknowledgement: %w", err)
		}
		return plan, fmt.Errorf("could not record current key: %w", err)
	}
	if ack == nil {
		return plan, fmt.Errorf("registry returned no acknowledgement for %s", u.namespace)
	}

	u.log.Info("Recorded current identity",
		slog.String("namespace", u.namespace.String()),
		slog.String("current", u.current.String()))
	return plan, nil
}

// newestKnown returns the newest known version that is not the current one.
func (u *Upgrader) newestKnown() (Version, bool) {
	for i := len(u.known) - 1; i >= 0; i-- {
		if !u.known[i].SameIdentity(u.current) {
			return u.known[i], true
		}
	}
	return Version{}, false
}

// nameOf attaches a manifest name to a recorded identity when one matches.
func (u *Upgrader) nameOf(rec interfaces.MappingRecord) Version {
	version := Version{DelegateKey: rec.DelegateKey, CodeHash: rec.CodeHash}
	for _, known := range u.known {
		if known.SameIdentity(version) {
			return known
		}
	}
	return version
}
