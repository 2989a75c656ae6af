package config

import (
	"time"

	"github.com/dashcamv2/control-go/internal/logging"
)

// Config is the complete set of tunables the dashcam process reads from
// config/default.yaml (plus DASHCAM_-prefixed environment overrides).
// Filesystem locations are deliberately not part of this struct: those
// are internal/paths's job per spec.md §4.A and §6's three environment
// variables, resolved independently of this file.
type Config struct {
	Logging  logging.LoggingConfig `mapstructure:"logging"`
	Camera   CameraConfig          `mapstructure:"camera"`
	GPS      GPSConfig             `mapstructure:"gps"`
	Landmark LandmarkConfig        `mapstructure:"landmark"`
	Geodata  GeodataConfig         `mapstructure:"geodata"`
	Security SecurityConfig        `mapstructure:"security"`
	APIKeys  APIKeyManagementConfig `mapstructure:"api_keys"`
	Health   HTTPHealthConfig       `mapstructure:"health"`
	HTTP     HTTPConfig             `mapstructure:"http"`
}

// CameraConfig names the two capture devices. Quality bitrates/resolutions
// are fixed per spec.md §4.E's table (camera.RoadQualityConfig and
// camera.InteriorQualityConfig), not configurable here.
type CameraConfig struct {
	RoadDevicePath      string `mapstructure:"road_device_path"`
	InteriorDeviceIndex int    `mapstructure:"interior_device_index"`
}

// GPSConfig names the serial port the GPS reader owns.
type GPSConfig struct {
	SerialPort string `mapstructure:"serial_port"`
	BaudRate   int    `mapstructure:"baud_rate"`
}

// LandmarkConfig points at the landmark source file, per spec.md §4.D.
type LandmarkConfig struct {
	SourcePath string `mapstructure:"source_path"`
	Format     string `mapstructure:"format"` // "json" or "sqlite"
}

// GeodataConfig configures the reverse-geocoding collaborator, per
// spec.md §4.I and §6.
type GeodataConfig struct {
	UserAgent           string        `mapstructure:"user_agent"`
	BaseURL             string        `mapstructure:"base_url"` // override for tests; "" uses the public Nominatim endpoint
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
	InterRequestDelay   time.Duration `mapstructure:"inter_request_delay"`
	InteractiveMinDelay time.Duration `mapstructure:"interactive_min_delay"`
}

// SecurityConfig configures JWT auth and rate limiting for the
// control-plane JSON-RPC API (SPEC_FULL.md §B), not the MJPEG video path.
type SecurityConfig struct {
	JWTSecretKey      string        `mapstructure:"jwt_secret_key"`
	JWTExpiryHours    int           `mapstructure:"jwt_expiry_hours"`
	RateLimitRequests int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow   time.Duration `mapstructure:"rate_limit_window"`
}

// HTTPConfig is the listen address for the combined MJPEG + control-plane
// HTTP surface cmd/dashcamd binds.
type HTTPConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// HTTPHealthConfig configures internal/health's readiness/liveness HTTP
// endpoints, used by process supervisors (systemd, a container runtime)
// to detect a wedged capture loop or database.
type HTTPHealthConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	Host             string `mapstructure:"host"`
	Port             int    `mapstructure:"port"`
	ReadTimeout      string `mapstructure:"read_timeout"`
	WriteTimeout     string `mapstructure:"write_timeout"`
	IdleTimeout      string `mapstructure:"idle_timeout"`
	BasicEndpoint    string `mapstructure:"basic_endpoint"`
	DetailedEndpoint string `mapstructure:"detailed_endpoint"`
	ReadyEndpoint    string `mapstructure:"ready_endpoint"`
	LiveEndpoint     string `mapstructure:"live_endpoint"`
}

// APIKeyManagementConfig configures internal/security's API-key store,
// used for service-to-service control-plane calls (e.g. a companion
// mobile app polling trip status) alongside per-session JWTs.
type APIKeyManagementConfig struct {
	StoragePath    string `mapstructure:"storage_path"`
	KeyLength      int    `mapstructure:"key_length"`
	KeyPrefix      string `mapstructure:"key_prefix"`
	KeyFormat      string `mapstructure:"key_format"` // "hex" or "base64url"
	MaxKeysPerRole int    `mapstructure:"max_keys_per_role"`
	UsageTracking  bool   `mapstructure:"usage_tracking"`
	AuditLogging   bool   `mapstructure:"audit_logging"`
	EncryptionKey  string `mapstructure:"encryption_key"`
}
