// Package mjpeg implements the MJPEG Fan-out Engine (spec.md §4.H): a
// single shared capture loop per camera that multiplexes JPEG frames to
// many HTTP clients with adaptive FPS/quality, per-client bounded queues,
// saturation-aware frame dropping, and idle-client reaping.
package mjpeg
