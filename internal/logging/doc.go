// Package logging provides structured logging with correlation ID support
// for the dashcam control software.
//
// It wraps Logrus with component tagging, correlation-ID propagation via
// context.Context, and configurable console/rotating-file output
// (lumberjack). Every long-lived subsystem — the recording engine, the
// GPS logger task, the MJPEG capture worker, the geodata downloader —
// holds its own component-tagged *Logger acquired through GetLogger.
package logging
