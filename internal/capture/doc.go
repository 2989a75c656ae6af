// Package capture implements the Capture Manager (spec.md §4.G): the
// component that glues the camera drivers, the recording engine, the GPS
// reader, the landmark index, and the trip store together. It owns camera
// ownership arbitration between recording and preview, runs the
// background GPS-logging task, and enriches every completed clip with
// GPS bounds, nearby-landmark metadata, and (optionally) reverse-geocoded
// location text before persisting it.
package capture
