// Package controlapi implements the dashcam's control-plane API: a
// JSON-RPC 2.0 protocol served over a gorilla/websocket connection,
// distinct from the plain net/http MJPEG multipart video path in
// internal/mjpeg. Authenticated clients (a companion mobile app, a
// diagnostics tool) call methods like apply_settings, start_recording,
// stop_recording, get_active_trip, get_calendar, and the geodata job
// controls (start/pause/resume/cancel/progress).
//
// Adapted from the teacher's internal/websocket package: the same
// request/response/notification envelope and connection-handling shape,
// re-pointed at this process's domain methods and internal/security's
// JWT/RBAC/rate-limit collaborators.
package controlapi
