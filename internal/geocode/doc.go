// Package geocode is the shared reverse-geocoding HTTP client used by both
// the Capture Manager's per-clip lookup (spec.md §4.G step 4) and the
// Geodata Downloader's bulk grid sweep (spec.md §4.I). Both callers share
// the wire contract (the public Nominatim /reverse endpoint, a descriptive
// User-Agent, a 10 s timeout) and differ only in pacing: the client takes
// a caller-supplied rate.Limiter so each caller can set its own interval
// (spec.md §6: ">= 1 s" for on-behalf-of-a-user lookups, "100 ms" for bulk
// prep), grounded in original_source/backend/geocoding/downloader/
// nominatim_api.py and reverse_geocoding_service.py.
package geocode
