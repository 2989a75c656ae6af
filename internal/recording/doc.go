// Package recording implements the clip-rolling state machine that drives
// both camera drivers through a recording session: Idle → Recording →
// Stopping → Idle, 60 s clips, and a completed-clip callback whose
// exceptions are logged, never propagated. It owns nothing above the
// camera pair — trip lifecycle, GPS logging, and landmark handling belong
// to the Capture Manager that wraps this engine.
package recording
