// Package tripstore is the dashcam's sole durable state store: trips, GPS
// track, landmark encounters, recorded clips, quality-upgrade audit log, and
// out-of-band external videos. Every other component reaches the trip
// database only through this package.
//
// It follows the teacher pack's banshee-data-velocity.report SQLite
// convention: a thin *sql.DB wrapper opened against modernc.org/sqlite
// (pure Go, no cgo), schema owned by golang-migrate/migrate/v4 embedded
// migration files, and writes wrapped in a bounded exponential-backoff
// retry for SQLITE_BUSY, surfaced to callers as dashcamerrors.StorageBusy
// once the retry budget is exhausted.
package tripstore
