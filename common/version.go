// Package common holds build metadata and logger setup shared by the binaries.
package common

// PackageName is used as the log service tag and metrics namespace.
const PackageName = "delegate-upgrade-registry"

// Version is set at build time with
// -ldflags "-X github.com/ruteri/delegate-upgrade-registry/common.Version=..."
var Version = "dev"
