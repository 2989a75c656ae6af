package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dashcamv2/control-go/internal/capture"
	"github.com/dashcamv2/control-go/internal/geocode"
	"github.com/dashcamv2/control-go/internal/geodata"
	"github.com/dashcamv2/control-go/internal/geostore"
	"github.com/dashcamv2/control-go/internal/mjpeg"
	"github.com/dashcamv2/control-go/internal/tripstore"
)

// tripWaypointSource adapts *tripstore.Store to geodata.WaypointSource.
// Both the start/end fix and a stride-sampled slice of the trip's logged
// GPS track become the ordered waypoints a downloader job walks, the same
// gpsSampleStride convention internal/capture uses for its own track
// sampling.
type tripWaypointSource struct {
	store *tripstore.Store
}

const waypointSampleStride = 5

func (s tripWaypointSource) Waypoints(ctx context.Context, tripID int64) ([]geodata.Waypoint, error) {
	details, err := s.store.GetTripWithDetails(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("dashcamd: resolve waypoints for trip %d: %w", tripID, err)
	}

	var waypoints []geodata.Waypoint
	if details.Trip.StartLat != nil && details.Trip.StartLon != nil {
		waypoints = append(waypoints, geodata.Waypoint{Lat: *details.Trip.StartLat, Lon: *details.Trip.StartLon, Name: "start"})
	}
	for i, p := range details.GpsTrack {
		if i == 0 || i%waypointSampleStride != 0 {
			continue
		}
		waypoints = append(waypoints, geodata.Waypoint{Lat: p.Latitude, Lon: p.Longitude})
	}
	if details.Trip.EndLat != nil && details.Trip.EndLon != nil {
		waypoints = append(waypoints, geodata.Waypoint{Lat: *details.Trip.EndLat, Lon: *details.Trip.EndLon, Name: "end"})
	}
	return waypoints, nil
}

// geodataGeocoderAdapter adapts *geocode.Client to geodata.Geocoder.
type geodataGeocoderAdapter struct {
	client *geocode.Client
}

func (a geodataGeocoderAdapter) Reverse(ctx context.Context, lat, lon float64) (*geodata.GeocodeResponse, error) {
	resp, err := a.client.Reverse(ctx, lat, lon)
	if err != nil {
		return nil, err
	}
	return &geodata.GeocodeResponse{
		DisplayName: resp.DisplayName,
		Road:        resp.Address.Road,
		City:        resp.Address.City,
		State:       resp.Address.State,
		Country:     resp.Address.Country,
		CountryCode: resp.Address.CountryCode,
		Postcode:    resp.Address.Postcode,
		BoundingBox: resp.BoundingBox,
		Raw:         string(resp.Raw),
	}, nil
}

// captureGeocoderAdapter adapts *geocode.Client to capture.Geocoder, the
// distinct reverse-geocoding interface the Capture Manager uses for clip
// metadata injection.
type captureGeocoderAdapter struct {
	client *geocode.Client
}

func (a captureGeocoderAdapter) ReverseGeocode(ctx context.Context, lat, lon float64) (*capture.GeocodeResult, error) {
	resp, err := a.client.Reverse(ctx, lat, lon)
	if err != nil {
		return nil, err
	}
	return &capture.GeocodeResult{
		DisplayName: resp.DisplayName,
		City:        resp.Address.City,
		Town:        resp.Address.Town,
		Village:     resp.Address.Village,
		State:       resp.Address.State,
		Country:     resp.Address.Country,
		CountryCode: resp.Address.CountryCode,
		Timestamp:   time.Now(),
	}, nil
}

// geostoreRecordStore adapts *geostore.Store to geodata.RecordStore,
// converting between the two packages' distinct persisted-record types at
// the wiring boundary only.
type geostoreRecordStore struct {
	store *geostore.Store
}

func (s geostoreRecordStore) Upsert(ctx context.Context, r geodata.StoredRecord) error {
	return s.store.Upsert(ctx, geostore.Record{
		TripID:       r.TripID,
		Lat:          r.Lat,
		Lon:          r.Lon,
		LocationType: r.LocationType,
		DisplayName:  r.DisplayName,
		Road:         r.Road,
		City:         r.City,
		State:        r.State,
		Country:      r.Country,
		CountryCode:  r.CountryCode,
		Postcode:     r.Postcode,
		BoundingBox:  r.BoundingBox,
		RawResponse:  r.RawResponse,
	})
}

// previewFrameSource adapts *capture.Manager.GetPreviewFrame to
// mjpeg.FrameSource for one fixed camera slot.
type previewFrameSource struct {
	manager *capture.Manager
	slot    capture.CameraSlot
}

func (s previewFrameSource) CaptureFrame(ctx context.Context) (*mjpeg.Frame, error) {
	frame, err := s.manager.GetPreviewFrame(ctx, s.slot)
	if err != nil {
		return nil, err
	}
	return &mjpeg.Frame{JPEG: frame.Data, Timestamp: frame.Timestamp}, nil
}
