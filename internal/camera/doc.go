// Package camera implements the two fixed camera drivers (road-facing and
// interior) behind one capability interface: initialize/release,
// capture_frame, start_recording/stop_recording, and the optional native
// MJPEG byte stream. Both drivers share the same single-consumer contract
// and 5-consecutive-failure reset policy; only device acquisition and
// encoder invocation differ.
package camera
