// Package migration is the delegate side of the upgrade registry.
//
// A delegate derives its current identity (IdentityFromBinary), asks the
// registry for the identity recorded before it, migrates its own state when the
// two differ and records the current identity for the next upgrade:
//
//	client := migrationhandler.NewClient(url)
//	current := migration.IdentityFromBinary(code, params)
//	known, _ := migration.EmbeddedVersions()
//	plan, err := migration.NewUpgrader(client, ns, current, known, log).Run(ctx, migrate)
//
// When the registry holds no record, the newest entry of the embedded
// previous-versions manifest that differs from the current identity is used.
// The registry server runs the same protocol for itself at startup through a
// LocalRegistry bound to a reserved origin.
package migration
