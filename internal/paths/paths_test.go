package paths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResolvesDefaultsBeneathDataPath(t *testing.T) {
	l, err := New("/data/dashcam", "", "")
	require.NoError(t, err)

	assert.Equal(t, "/data/dashcam", l.DataPath())
	assert.Equal(t, "/data/dashcam/recordings.db", l.DBPath())
	assert.Equal(t, "/data/dashcam/storage_settings.json", l.SettingsPath())
	assert.Equal(t, "/data/dashcam/geocoding_offline.db", l.OfflineGeocodingDBPath())
	assert.Equal(t, "/data/dashcam/videos", l.VideosDir())
	assert.Equal(t, "/data/dashcam/videos/2026-07-31", l.VideosDirForDate("2026-07-31"))
	assert.Equal(t, "/data/dashcam/thumbnails", l.ThumbnailsDir())
	assert.Equal(t, "/data/dashcam/offline_maps", l.OfflineMapsDir())
}

func TestNewHonorsIndependentOverrides(t *testing.T) {
	l, err := New("/data/dashcam", "/mnt/fast/recordings.db", "/etc/dashcam/storage_settings.json")
	require.NoError(t, err)

	assert.Equal(t, "/mnt/fast/recordings.db", l.DBPath())
	assert.Equal(t, "/etc/dashcam/storage_settings.json", l.SettingsPath())
	// OfflineGeocodingDBPath stays rooted at DataPath regardless of DBPath override.
	assert.Equal(t, "/data/dashcam/geocoding_offline.db", l.OfflineGeocodingDBPath())
}

func TestNewFromEnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv(envDataPath, "/override/data")
	t.Setenv(envDBPath, "")
	t.Setenv(envSettingsPath, "")

	l, err := NewFromEnvironment("/default/data", "", "")
	require.NoError(t, err)

	assert.Equal(t, "/override/data", l.DataPath())
	assert.Equal(t, "/override/data/recordings.db", l.DBPath())
}

func TestEnsureVideosDirForDateCreatesDirectoryLazily(t *testing.T) {
	tmp := t.TempDir()
	l, err := New(tmp, "", "")
	require.NoError(t, err)

	target := l.VideosDirForDate("2026-07-31")
	_, statErr := os.Stat(target)
	assert.True(t, os.IsNotExist(statErr))

	dir, err := l.EnsureVideosDirForDate("2026-07-31")
	require.NoError(t, err)
	assert.Equal(t, target, dir)

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestClipFileNameIsBitExact(t *testing.T) {
	name := ClipFileName(14, 5, 9, 3, "HQ", "road")
	assert.Equal(t, "14-05-09_seq003_HQ_road.mp4", name)
}

func TestSidecarPathsShareStem(t *testing.T) {
	clip := filepath.Join("/data/videos/2026-07-31", "14-05-09_seq003_HQ_road.mp4")

	assert.Equal(t, "/data/videos/2026-07-31/14-05-09_seq003_HQ_road.gpx", SidecarGPXPath(clip))
	assert.Equal(t, "/data/videos/2026-07-31/14-05-09_seq003_HQ_road_metadata.json", SidecarMetadataPath(clip))
}
