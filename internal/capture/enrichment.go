package capture

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dashcamv2/control-go/internal/camera"
	"github.com/dashcamv2/control-go/internal/landmark"
	"github.com/dashcamv2/control-go/internal/paths"
	"github.com/dashcamv2/control-go/internal/recording"
	"github.com/dashcamv2/control-go/internal/tripstore"
)

// dashcamSystemTag is the fixed dashcam_system metadata field (spec.md §6).
const dashcamSystemTag = "dashcam-v2"

// trackSampleStride is the "every 10th point" compression spec.md §6
// names for the gps_track metadata field, distinct from gpsSampleStride
// (every 5th row) used for landmark sampling.
const trackSampleStride = 10

// enrichClip builds the persisted ClipRecord for a just-completed clip,
// per spec.md §4.G's clip-completed callback steps 1-5: GPS bounds,
// landmark sampling, optional reverse geocoding, and metadata
// injection/sidecar fallback. Step 6 (persistence) is the caller's job.
func (m *Manager) enrichClip(ctx context.Context, tripID int64, clip recording.ClipRecord) tripstore.ClipRecord {
	record := tripstore.ClipRecord{
		StartTime:         clip.StartTime,
		EndTime:           clip.EndTime,
		SequenceNum:       clip.SequenceNum,
		Quality:           qualityFor(clip.Quality),
		RoadVideoFile:     clip.Files[recording.CameraRoad],
		InteriorVideoFile: clip.Files[recording.CameraInterior],
	}

	gps, err := m.store.GPSTrackInRange(ctx, tripID, clip.StartTime, clip.EndTime)
	if err != nil {
		m.logger.WithError(err).Warn("clip enrichment: GPS track lookup failed")
		gps = nil
	}
	if len(gps) > 0 {
		first, last := gps[0], gps[len(gps)-1]
		record.StartLat, record.StartLon = &first.Latitude, &first.Longitude
		record.EndLat, record.EndLon = &last.Latitude, &last.Longitude
	}

	m.applyLandmarkSampling(gps, &record)
	m.applyPendingMark(clip, &record)

	if m.geocoder != nil && record.StartLat != nil && record.StartLon != nil {
		if loc, err := m.geocoder.ReverseGeocode(ctx, *record.StartLat, *record.StartLon); err != nil {
			m.logger.WithError(err).Debug("clip enrichment: reverse geocode failed")
		} else if loc != nil {
			loc.Timestamp = time.Now()
			if blob, err := json.Marshal(loc); err == nil {
				record.Location = string(blob)
			}
		}
	}

	m.injectOrSidecar(clip, gps, record)
	return record
}

// applyLandmarkSampling implements step 3: "sample the track at every
// 5th row; for each sample, query the Landmark Index; build a
// deduplicated list, preferring any priority landmark".
func (m *Manager) applyLandmarkSampling(gps []tripstore.GpsCoordinate, record *tripstore.ClipRecord) {
	var best *landmark.Hit
	seen := make(map[string]bool)

	for i := 0; i < len(gps); i += gpsSampleStride {
		hit := m.index.Nearby(gps[i].Latitude, gps[i].Longitude)
		if hit == nil || seen[hit.Landmark.ID] {
			continue
		}
		seen[hit.Landmark.ID] = true
		if best == nil {
			best = hit
			continue
		}
		if landmark.IsPriorityCategory(hit.Landmark.Category) && !landmark.IsPriorityCategory(best.Landmark.Category) {
			best = hit
		}
	}
	if best == nil {
		return
	}
	record.NearLandmark = true
	record.LandmarkID = best.Landmark.ID
	record.LandmarkType = landmarkTypeFor(best.Landmark.Category)
}

// applyPendingMark consumes the ≤100 m auto-start mark left by
// handleLandmarkApproach, if it falls within this clip's time window, and
// overrides the sampled landmark fields with it: the explicit proximity
// event is a stronger signal than the every-5th-row sample.
func (m *Manager) applyPendingMark(clip recording.ClipRecord, record *tripstore.ClipRecord) {
	m.mu.Lock()
	mark := m.pendingMark
	consumed := mark != nil && !mark.at.Before(clip.StartTime) && mark.at.Before(clip.EndTime)
	if consumed {
		m.pendingMark = nil
	}
	m.mu.Unlock()
	if !consumed {
		return
	}
	record.NearLandmark = true
	record.LandmarkID = mark.landmarkID
	record.LandmarkType = mark.landmarkType
}

func qualityFor(q camera.Quality) tripstore.ClipQuality {
	if q == camera.QualityHigh {
		return tripstore.ClipQualityHigh
	}
	return tripstore.ClipQualityNormal
}

// injectOrSidecar implements step 5: inject container metadata if a
// MetadataInjector is available and succeeds; otherwise write the .gpx
// and _metadata.json sidecar files.
func (m *Manager) injectOrSidecar(clip recording.ClipRecord, gps []tripstore.GpsCoordinate, record tripstore.ClipRecord) {
	videoPath := clip.Files[recording.CameraRoad]
	if videoPath == "" {
		videoPath = clip.Files[recording.CameraInterior]
	}
	if videoPath == "" {
		return // both cameras failed this clip; nothing to annotate
	}

	fields := buildMetadataFields(gps, clip, record)

	if m.injector != nil {
		err := m.injector.Inject(videoPath, fields)
		if err == nil {
			return
		}
		m.logger.WithError(err).Warn("metadata injection failed, falling back to sidecar files")
	}

	if err := writeGPXSidecar(paths.SidecarGPXPath(videoPath), gps); err != nil {
		m.logger.WithError(err).Warn("write GPX sidecar failed")
	}
	if err := writeJSONSidecar(paths.SidecarMetadataPath(videoPath), fields); err != nil {
		m.logger.WithError(err).Warn("write metadata sidecar failed")
	}
}

// buildMetadataFields builds spec.md §6's exact field list, shared by both
// the container-tag injector and the sidecar fallback.
func buildMetadataFields(gps []tripstore.GpsCoordinate, clip recording.ClipRecord, record tripstore.ClipRecord) map[string]string {
	fields := map[string]string{
		"clip_sequence":      fmt.Sprintf("%d", clip.SequenceNum),
		"recording_quality":  string(record.Quality),
		"landmark_nearby":    fmt.Sprintf("%t", record.NearLandmark),
		"clip_start_time":    clip.StartTime.UTC().Format(time.RFC3339),
		"clip_end_time":      clip.EndTime.UTC().Format(time.RFC3339),
		"gps_injection_time": time.Now().UTC().Format(time.RFC3339),
		"dashcam_system":     dashcamSystemTag,
		"gps_point_count":    fmt.Sprintf("%d", len(gps)),
		"gps_track":          compressTrack(gps),
	}
	if record.LandmarkID != "" {
		fields["landmark_id"] = record.LandmarkID
		fields["landmark_type"] = string(record.LandmarkType)
	}
	if record.StartLat != nil {
		fields["gps_start_lat"] = fmt.Sprintf("%.6f", *record.StartLat)
	}
	if record.StartLon != nil {
		fields["gps_start_lon"] = fmt.Sprintf("%.6f", *record.StartLon)
	}
	if record.EndLat != nil {
		fields["gps_end_lat"] = fmt.Sprintf("%.6f", *record.EndLat)
	}
	if record.EndLon != nil {
		fields["gps_end_lon"] = fmt.Sprintf("%.6f", *record.EndLon)
	}
	return fields
}

// compressTrack is the "compressed list: every 10th point as lat,lon
// joined by |" format spec.md §6 names for the gps_track field.
func compressTrack(gps []tripstore.GpsCoordinate) string {
	var parts []string
	for i := 0; i < len(gps); i += trackSampleStride {
		parts = append(parts, fmt.Sprintf("%.6f,%.6f", gps[i].Latitude, gps[i].Longitude))
	}
	return strings.Join(parts, "|")
}

type gpxFile struct {
	XMLName xml.Name `xml:"gpx"`
	Version string   `xml:"version,attr"`
	Creator string   `xml:"creator,attr"`
	Trk     gpxTrack `xml:"trk"`
}

type gpxTrack struct {
	Seg gpxSegment `xml:"trkseg"`
}

type gpxSegment struct {
	Points []gpxPoint `xml:"trkpt"`
}

type gpxPoint struct {
	Lat  float64 `xml:"lat,attr"`
	Lon  float64 `xml:"lon,attr"`
	Time string  `xml:"time"`
}

// writeGPXSidecar writes a minimal GPX 1.1 track file, the fallback path
// spec.md §6 names when no metadata injector is available.
func writeGPXSidecar(path string, gps []tripstore.GpsCoordinate) error {
	doc := gpxFile{Version: "1.1", Creator: dashcamSystemTag}
	for _, g := range gps {
		doc.Trk.Seg.Points = append(doc.Trk.Seg.Points, gpxPoint{
			Lat:  g.Latitude,
			Lon:  g.Longitude,
			Time: g.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal gpx: %w", err)
	}
	out = append([]byte(xml.Header), out...)
	return os.WriteFile(path, out, 0o644)
}

func writeJSONSidecar(path string, fields map[string]string) error {
	out, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata sidecar: %w", err)
	}
	return os.WriteFile(path, out, 0o644)
}
