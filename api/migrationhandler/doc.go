// Package migrationhandler serves the registry protocol over HTTP and provides
// the matching client.
//
// # Endpoint
//
//	POST /api/attested/migration
//
// Status codes:
//
//   - 200 with the JSON response envelope on success
//   - 400 for a malformed request
//   - 401 when the origin cannot be attested; the store is not touched
//   - 413 when the body exceeds api.MaxRequestSize
//   - 502 when the storage backend fails or returns a corrupt record
//   - 500 for anything else
//
// The error body is plain text.
package migrationhandler
