// Package gpsreader is the GPS Reader (spec.md §4.C): it owns a serial/USB
// NMEA-0183 channel, parses $GPGGA and $GPRMC sentences, and exposes the
// most recent fix as a cheap, non-blocking snapshot. Consumers never block
// on a read; a missing or stale fix simply yields no value.
//
// Grounded on the teacher pack's go.bug.st/serial usage in
// banshee-data-velocity.report's radar serial reader: serial.Open with an
// explicit serial.Mode, a background goroutine scanning lines with
// bufio.Scanner, and a context-cancellable read loop.
package gpsreader
