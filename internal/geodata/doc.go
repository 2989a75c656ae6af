// Package geodata implements the Geodata Downloader (spec.md §4.I): a
// long-running, pause/cancel-capable background job that enumerates a grid
// of points around a trip's waypoints (or a single optimized center),
// performs rate-limited reverse-geocoding lookups against
// internal/geocode, and persists enriched records to internal/geostore's
// offline geocoding database.
package geodata
