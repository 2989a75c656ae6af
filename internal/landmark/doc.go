// Package landmark is the Landmark Index (spec.md §4.D): a read-only,
// in-memory spatial index loaded once from a JSON or SQLite source file,
// plus the per-landmark notify-cooldown that guarantees at most one
// notification per landmark per 300-second window per process lifetime.
//
// Grounded on original_source/backend/landmarks_db.py's schema (id, name,
// lat, lon, radius_m default 500, category) for the Landmark shape, and on
// the teacher pack's structured-logging conventions for the loader's
// diagnostics.
package landmark
