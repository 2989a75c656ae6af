// Package config loads the dashcam control software's narrow YAML
// configuration file and watches that same file for hot-reload, per
// SPEC_FULL.md §A. It models only the sections this process consumes
// (logging, camera, gps, landmark, geodata, security, api_keys, health,
// http); storage paths come from the env-var overrides internal/paths
// resolves, and storage_settings.json is handled by internal/diskmanager,
// not by this package.
//
// Built on the teacher's loader.go/hot_reload.go viper+fsnotify pattern
// (github.com/spf13/viper, github.com/fsnotify/fsnotify), with the
// teacher's MediaMTX/RTSP/WebRTC/codec schema replaced entirely by the
// dashcam's own settings.
package config
