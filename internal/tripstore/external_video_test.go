package tripstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExternalVideoRoundTripsByDateRange(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.InsertExternalVideo(ctx, ExternalVideo{
		Date: "2026-07-30", FilePath: "/uploads/a.mp4", Source: "dashcam-app", Tags: `["scenic"]`,
	})
	require.NoError(t, err)
	_, err = store.InsertExternalVideo(ctx, ExternalVideo{
		Date: "2026-08-01", FilePath: "/uploads/b.mp4",
	})
	require.NoError(t, err)

	videos, err := store.ListExternalVideosByDateRange(ctx, "2026-07-01", "2026-07-31")
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Equal(t, "/uploads/a.mp4", videos[0].FilePath)
	assert.Equal(t, `["scenic"]`, videos[0].Tags)
}
