// Package geostore persists the offline reverse-geocoding records produced
// by the Geodata Downloader (spec.md §4.I) into geocoding_offline.db, a
// SQLite database separate from the Trip Store per spec.md §6's filesystem
// layout. It reuses the embed-schema-at-open / golang-migrate wiring
// internal/tripstore established for recordings.db.
package geostore
