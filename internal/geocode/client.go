package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/dashcamv2/control-go/internal/dashcamerrors"
)

const (
	nominatimReverseURL = "https://nominatim.openstreetmap.org/reverse"
	requestTimeout      = 10 * time.Second
)

// Address is the subset of Nominatim's "address" object the dashcam
// persists as flat fields, per spec.md §3's OfflineGeocodingRecord and
// §6's clip-metadata field list.
type Address struct {
	Road        string `json:"road"`
	HouseNumber string `json:"house_number"`
	City        string `json:"city"`
	Town        string `json:"town"`
	Village     string `json:"village"`
	Suburb      string `json:"suburb"`
	County      string `json:"county"`
	State       string `json:"state"`
	Country     string `json:"country"`
	CountryCode string `json:"country_code"`
	Postcode    string `json:"postcode"`
}

// Response is one reverse-geocoding lookup result: the flat fields the
// dashcam stores plus the complete raw response, as
// geodata_downloader.py's "Store the complete Nominatim response for
// enhanced storage" requires.
type Response struct {
	DisplayName string          `json:"display_name"`
	Address     Address         `json:"address"`
	BoundingBox []string        `json:"boundingbox"`
	Lat         string          `json:"lat"`
	Lon         string          `json:"lon"`
	Raw         json.RawMessage `json:"-"`
}

// Client is a rate-limited HTTP client over the public Nominatim reverse
// endpoint. Callers supply their own limiter so the single wire contract
// can be paced differently by different collaborators.
type Client struct {
	httpClient *http.Client
	userAgent  string
	limiter    *rate.Limiter
	baseURL    string // overridable in tests; defaults to the public Nominatim endpoint
}

// New builds a Client that waits on limiter before each request. Pass
// rate.NewLimiter(rate.Every(time.Second), 1) for the >=1s
// acting-on-behalf-of-a-user pace, or rate.NewLimiter(rate.Every(100*time.Millisecond), 1)
// for bulk preparation.
func New(userAgent string, limiter *rate.Limiter) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		userAgent:  userAgent,
		limiter:    limiter,
		baseURL:    nominatimReverseURL,
	}
}

// Reverse performs one reverse-geocoding lookup at (lat, lon), honoring
// the client's rate limiter and the 10 s request timeout (spec.md §4.I).
// A transport-level failure is wrapped as dashcamerrors.NetworkTransient;
// callers that need to detect a sustained outage track consecutive
// failures themselves (spec.md §7's NetworkFatal is a caller-side policy,
// not a property of a single request).
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("geocode: parse url: %w", err)
	}
	q := u.Query()
	q.Set("lat", fmt.Sprintf("%.6f", lat))
	q.Set("lon", fmt.Sprintf("%.6f", lon))
	q.Set("format", "json")
	q.Set("addressdetails", "1")
	q.Set("extratags", "1")
	q.Set("namedetails", "1")
	q.Set("zoom", "18")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("geocode: build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &dashcamerrors.NetworkTransient{URL: u.String(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &dashcamerrors.NetworkTransient{URL: u.String(), Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &dashcamerrors.NetworkTransient{URL: u.String(), Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var parsed Response
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &dashcamerrors.NetworkTransient{URL: u.String(), Err: fmt.Errorf("parse response: %w", err)}
	}
	if parsed.DisplayName == "" {
		return nil, nil
	}
	parsed.Raw = raw
	return &parsed, nil
}

// DefaultUserAgent is the descriptive User-Agent spec.md §6 and
// original_source/backend/geocoding/downloader/geodata_downloader.py both
// use for outbound Nominatim requests.
const DefaultUserAgent = "DashCam-TripPlanner/1.0 (offline geocoding preparation)"
