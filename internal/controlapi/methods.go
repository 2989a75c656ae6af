package controlapi

import (
	"context"
	"fmt"
	"time"

	"github.com/dashcamv2/control-go/internal/camera"
	"github.com/dashcamv2/control-go/internal/geodata"
)

// Bind attaches the domain collaborators and registers every RPC method
// that needs them. Methods registered before Bind (ping, authenticate)
// keep working without a Bind call; everything else returns
// ErrMethodNotFound until Bind has run. Split out from New so the server
// can be constructed with only its security collaborators and the domain
// collaborators attached afterwards.
func (s *Server) Bind(capture CaptureManager, trips TripStore, jobs GeodataJobs) {
	s.registerMethod("get_active_trip", s.methodGetActiveTrip(trips))
	s.registerMethod("get_trip", s.methodGetTrip(trips))
	s.registerMethod("get_calendar", s.methodGetCalendar(trips))
	s.registerMethod("start_recording", s.methodStartRecording(capture))
	s.registerMethod("stop_recording", s.methodStopRecording(capture))
	s.registerMethod("apply_settings", s.methodApplySettings(capture))
	s.registerMethod("geodata_start", s.methodGeodataStart(jobs))
	s.registerMethod("geodata_pause", s.methodGeodataPause(jobs))
	s.registerMethod("geodata_resume", s.methodGeodataResume(jobs))
	s.registerMethod("geodata_cancel", s.methodGeodataCancel(jobs))
	s.registerMethod("geodata_progress", s.methodGeodataProgress(jobs))
}

func (s *Server) registerBuiltinMethods() {
	s.registerMethod("ping", s.methodPing)
	s.registerMethod("authenticate", s.methodAuthenticate)
}

func (s *Server) methodPing(params map[string]interface{}, c *client) (interface{}, error) {
	return "pong", nil
}

func (s *Server) methodAuthenticate(params map[string]interface{}, c *client) (interface{}, error) {
	token, _ := params["auth_token"].(string)
	if token == "" {
		return nil, fmt.Errorf("auth_token parameter is required")
	}
	if s.jwtHandler == nil {
		return nil, fmt.Errorf("authentication is not configured")
	}
	claims, err := s.jwtHandler.ValidateToken(token)
	if err != nil {
		return nil, fmt.Errorf("invalid or expired token: %w", err)
	}
	c.authenticated = true
	c.userID = claims.UserID
	c.role = claims.Role

	return map[string]interface{}{
		"authenticated": true,
		"role":          claims.Role,
		"expires_at":    time.Unix(claims.EXP, 0).Format(time.RFC3339),
		"session_id":    c.id,
	}, nil
}

func requireInt64(params map[string]interface{}, key string) (int64, error) {
	v, ok := params[key]
	if !ok {
		return 0, fmt.Errorf("%s parameter is required", key)
	}
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("%s must be a number", key)
	}
}

func (s *Server) methodGetActiveTrip(trips TripStore) methodHandler {
	return func(params map[string]interface{}, c *client) (interface{}, error) {
		trip, err := trips.GetActiveTrip(context.Background())
		if err != nil {
			return nil, err
		}
		if trip == nil {
			return nil, &rpcDomainError{code: ErrNoActiveTrip}
		}
		return trip, nil
	}
}

func (s *Server) methodGetTrip(trips TripStore) methodHandler {
	return func(params map[string]interface{}, c *client) (interface{}, error) {
		tripID, err := requireInt64(params, "trip_id")
		if err != nil {
			return nil, err
		}
		details, err := trips.GetTripWithDetails(context.Background(), tripID)
		if err != nil {
			return nil, err
		}
		if details == nil {
			return nil, &rpcDomainError{code: ErrTripNotFound}
		}
		return details, nil
	}
}

func (s *Server) methodGetCalendar(trips TripStore) methodHandler {
	return func(params map[string]interface{}, c *client) (interface{}, error) {
		year, err := requireInt64(params, "year")
		if err != nil {
			return nil, err
		}
		month, err := requireInt64(params, "month")
		if err != nil {
			return nil, err
		}
		return trips.GetCalendar(context.Background(), int(year), int(month))
	}
}

func (s *Server) methodStartRecording(capture CaptureManager) methodHandler {
	return func(params map[string]interface{}, c *client) (interface{}, error) {
		quality := camera.QualityNormal
		if q, ok := params["quality"].(string); ok && q != "" {
			quality = camera.Quality(q)
		}
		if err := capture.StartRecording(context.Background(), quality); err != nil {
			return nil, err
		}
		return map[string]interface{}{"status": "recording", "quality": string(quality)}, nil
	}
}

func (s *Server) methodStopRecording(capture CaptureManager) methodHandler {
	return func(params map[string]interface{}, c *client) (interface{}, error) {
		clips, err := capture.StopRecording(context.Background())
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"status": "stopped", "clips": clips}, nil
	}
}

func (s *Server) methodApplySettings(capture CaptureManager) methodHandler {
	return func(params map[string]interface{}, c *client) (interface{}, error) {
		if err := capture.ApplySettings(params); err != nil {
			return nil, err
		}
		return map[string]interface{}{"applied": true}, nil
	}
}

func (s *Server) methodGeodataStart(jobs GeodataJobs) methodHandler {
	return func(params map[string]interface{}, c *client) (interface{}, error) {
		tripID, err := requireInt64(params, "trip_id")
		if err != nil {
			return nil, err
		}
		opts := geodata.Options{}
		if useSingle, ok := params["use_single_center"].(bool); ok {
			opts.UseSingleCenter = useSingle
		}
		if lat, ok := params["center_lat"].(float64); ok {
			opts.CenterLat = lat
		}
		if lon, ok := params["center_lon"].(float64); ok {
			opts.CenterLon = lon
		}
		if radius, ok := params["center_radius_km"].(float64); ok {
			opts.CenterRadiusKm = radius
		}
		if err := jobs.Start(context.Background(), tripID, opts); err != nil {
			return nil, err
		}
		return map[string]interface{}{"trip_id": tripID, "status": "downloading"}, nil
	}
}

func (s *Server) methodGeodataPause(jobs GeodataJobs) methodHandler {
	return func(params map[string]interface{}, c *client) (interface{}, error) {
		tripID, err := requireInt64(params, "trip_id")
		if err != nil {
			return nil, err
		}
		if err := jobs.Pause(tripID); err != nil {
			return nil, err
		}
		return map[string]interface{}{"trip_id": tripID, "status": "paused"}, nil
	}
}

func (s *Server) methodGeodataResume(jobs GeodataJobs) methodHandler {
	return func(params map[string]interface{}, c *client) (interface{}, error) {
		tripID, err := requireInt64(params, "trip_id")
		if err != nil {
			return nil, err
		}
		if err := jobs.Resume(tripID); err != nil {
			return nil, err
		}
		return map[string]interface{}{"trip_id": tripID, "status": "downloading"}, nil
	}
}

func (s *Server) methodGeodataCancel(jobs GeodataJobs) methodHandler {
	return func(params map[string]interface{}, c *client) (interface{}, error) {
		tripID, err := requireInt64(params, "trip_id")
		if err != nil {
			return nil, err
		}
		if err := jobs.Cancel(tripID); err != nil {
			return nil, err
		}
		return map[string]interface{}{"trip_id": tripID, "status": "stopped"}, nil
	}
}

func (s *Server) methodGeodataProgress(jobs GeodataJobs) methodHandler {
	return func(params map[string]interface{}, c *client) (interface{}, error) {
		tripID, err := requireInt64(params, "trip_id")
		if err != nil {
			return nil, err
		}
		progress, err := jobs.Progress(tripID)
		if err != nil {
			return nil, &rpcDomainError{code: ErrGeodataJobNotFound}
		}
		return progress, nil
	}
}

// rpcDomainError lets a handler request a specific JSON-RPC error code
// instead of the generic ErrInternalError dispatch wraps plain errors in.
type rpcDomainError struct {
	code int
}

func (e *rpcDomainError) Error() string { return ErrorMessages[e.code] }
