// Package paths is the single source of truth for where the dashcam control
// software reads and writes files on disk. It resolves data_path, db_path,
// landmarks_path, and the videos/thumbnails/offline_maps subdirectories
// beneath it, the way the teacher's mediamtx.GetMediaMTXPathName and
// PathValidator centralized MediaMTX path naming and validation, adapted
// here to the dashcam's fixed filesystem layout instead of MediaMTX's
// per-stream naming scheme.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	envDataPath     = "DASHCAM_DATA_PATH"
	envDBPath       = "DASHCAM_DB_PATH"
	envSettingsPath = "DASHCAM_SETTINGS_PATH"

	defaultDataPath = "/var/lib/dashcam/data"

	tripDBFileName      = "recordings.db"
	offlineGeoFileName  = "geocoding_offline.db"
	settingsFileName    = "storage_settings.json"
	videosDirName       = "videos"
	thumbnailsDirName   = "thumbnails"
	offlineMapsDirName  = "offline_maps"
	landmarksDBFileName = "landmarks.db"
)

// Layout resolves every filesystem location the dashcam control software
// touches. All returned paths are absolute. Directories are created lazily
// by the Ensure* methods, never at construction time, so a read-only probe
// (e.g. a CLI "where" subcommand) never mutates disk.
type Layout struct {
	dataPath     string
	dbPath       string
	settingsPath string
}

// New resolves a Layout rooted at dataPath. Pass "" to fall back to
// defaultDataPath. DBPath and SettingsPath default to locations beneath
// dataPath but can be overridden independently, matching the three
// environment variables the dashcam process honors.
func New(dataPath, dbPath, settingsPath string) (*Layout, error) {
	if dataPath == "" {
		dataPath = defaultDataPath
	}
	abs, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("paths: resolve data path %q: %w", dataPath, err)
	}
	l := &Layout{dataPath: abs}

	if dbPath == "" {
		l.dbPath = filepath.Join(abs, tripDBFileName)
	} else {
		absDB, err := filepath.Abs(dbPath)
		if err != nil {
			return nil, fmt.Errorf("paths: resolve db path %q: %w", dbPath, err)
		}
		l.dbPath = absDB
	}

	if settingsPath == "" {
		l.settingsPath = filepath.Join(abs, settingsFileName)
	} else {
		absSettings, err := filepath.Abs(settingsPath)
		if err != nil {
			return nil, fmt.Errorf("paths: resolve settings path %q: %w", settingsPath, err)
		}
		l.settingsPath = absSettings
	}

	return l, nil
}

// NewFromEnvironment resolves a Layout using DASHCAM_DATA_PATH,
// DASHCAM_DB_PATH, and DASHCAM_SETTINGS_PATH as overrides over the supplied
// defaults, the same override-by-environment-variable convention the
// teacher's config manager uses for CAMERA_SERVICE_* variables.
func NewFromEnvironment(defaultDataPath, defaultDBPath, defaultSettingsPath string) (*Layout, error) {
	dataPath := envOr(envDataPath, defaultDataPath)
	dbPath := envOr(envDBPath, defaultDBPath)
	settingsPath := envOr(envSettingsPath, defaultSettingsPath)
	return New(dataPath, dbPath, settingsPath)
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// DataPath returns the root data directory.
func (l *Layout) DataPath() string { return l.dataPath }

// DBPath returns the Trip Store's SQLite file path.
func (l *Layout) DBPath() string { return l.dbPath }

// SettingsPath returns storage_settings.json's path.
func (l *Layout) SettingsPath() string { return l.settingsPath }

// OfflineGeocodingDBPath returns the offline reverse-geocoding SQLite file
// path, rooted at DataPath regardless of DBPath overrides: the two stores
// are independent engines and only the Trip Store honors DASHCAM_DB_PATH.
func (l *Layout) OfflineGeocodingDBPath() string {
	return filepath.Join(l.dataPath, offlineGeoFileName)
}

// LandmarksDBPath returns the landmark index's SQLite file path.
func (l *Layout) LandmarksDBPath() string {
	return filepath.Join(l.dataPath, landmarksDBFileName)
}

// VideosDir returns the root of the videos/YYYY-MM-DD/ tree.
func (l *Layout) VideosDir() string {
	return filepath.Join(l.dataPath, videosDirName)
}

// VideosDirForDate returns videos/YYYY-MM-DD for the given calendar day,
// formatted as "2006-01-02".
func (l *Layout) VideosDirForDate(date string) string {
	return filepath.Join(l.VideosDir(), date)
}

// ThumbnailsDir returns the thumbnails/ root, populated lazily as
// thumbnails are generated.
func (l *Layout) ThumbnailsDir() string {
	return filepath.Join(l.dataPath, thumbnailsDirName)
}

// OfflineMapsDir returns the offline_maps/ root for mbtiles archives.
func (l *Layout) OfflineMapsDir() string {
	return filepath.Join(l.dataPath, offlineMapsDirName)
}

// EnsureDataPath creates the data root if absent.
func (l *Layout) EnsureDataPath() error {
	return ensureDir(l.dataPath)
}

// EnsureVideosDirForDate creates videos/YYYY-MM-DD on demand, as clips for
// that day start recording.
func (l *Layout) EnsureVideosDirForDate(date string) (string, error) {
	dir := l.VideosDirForDate(date)
	if err := ensureDir(dir); err != nil {
		return "", err
	}
	return dir, nil
}

// EnsureThumbnailsDir creates thumbnails/ on first thumbnail generation.
func (l *Layout) EnsureThumbnailsDir() error {
	return ensureDir(l.ThumbnailsDir())
}

// EnsureOfflineMapsDir creates offline_maps/ on first mbtiles import.
func (l *Layout) EnsureOfflineMapsDir() error {
	return ensureDir(l.OfflineMapsDir())
}

// EnsureDBDir creates the parent directory of DBPath, needed when DBPath
// has been overridden to a location outside DataPath.
func (l *Layout) EnsureDBDir() error {
	return ensureDir(filepath.Dir(l.dbPath))
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("paths: create directory %q: %w", dir, err)
	}
	return nil
}

// ClipFileName builds the bit-exact video file name for a recorded clip:
// HH-MM-SS_seq{03d}_{HQ|NQ}_{road|interior}.mp4.
func ClipFileName(hour, minute, second, sequence int, quality, camera string) string {
	return fmt.Sprintf("%02d-%02d-%02d_seq%03d_%s_%s.mp4",
		hour, minute, second, sequence, quality, camera)
}

// SidecarGPXPath returns the .gpx sidecar path sharing clipPath's stem.
func SidecarGPXPath(clipPath string) string {
	return swapExt(clipPath, ".gpx")
}

// SidecarMetadataPath returns the _metadata.json sidecar path sharing
// clipPath's stem.
func SidecarMetadataPath(clipPath string) string {
	ext := filepath.Ext(clipPath)
	stem := clipPath[:len(clipPath)-len(ext)]
	return stem + "_metadata.json"
}

func swapExt(path, newExt string) string {
	ext := filepath.Ext(path)
	return path[:len(path)-len(ext)] + newExt
}
