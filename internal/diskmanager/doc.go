// Package diskmanager implements the Disk/USB Manager (spec.md §4.J):
// block-device enumeration with removable-device detection, a mount plan
// with filesystem probing and a sudo-fallback chain, safe-eject, and
// disk-usage-driven retention cleanup of old video clips.
package diskmanager
