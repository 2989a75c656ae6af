package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "DASHCAM"

// Loader reads config/default.yaml with github.com/spf13/viper, the way
// the teacher's ConfigLoader does, with DASHCAM_-prefixed environment
// variables overriding any key (e.g. DASHCAM_GEODATA_USER_AGENT).
type Loader struct {
	viper *viper.Viper
}

// NewLoader builds a Loader with defaults pre-populated.
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{viper: v}
}

// Load reads configPath, falling back to built-in defaults for any key
// the file and environment don't set. A missing file is not an error —
// the device ships with defaults and an operator-supplied override file
// is optional.
func (l *Loader) Load(configPath string) (*Config, error) {
	setDefaults(l.viper)

	if configPath != "" {
		l.viper.SetConfigFile(configPath)
		if err := l.viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s: %w", configPath, err)
			}
		}
	}

	var cfg Config
	if err := l.viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load is a convenience wrapper around NewLoader().Load for callers that
// don't need to reuse the viper instance (hot-reload does).
func Load(configPath string) (*Config, error) {
	return NewLoader().Load(configPath)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.console_enabled", true)
	v.SetDefault("logging.file_enabled", false)
	v.SetDefault("logging.max_file_size", 10*1024*1024)
	v.SetDefault("logging.backup_count", 5)

	v.SetDefault("camera.road_device_path", "/dev/video0")
	v.SetDefault("camera.interior_device_index", 1)

	v.SetDefault("gps.serial_port", "/dev/ttyUSB0")
	v.SetDefault("gps.baud_rate", 9600)

	v.SetDefault("landmark.source_path", "landmarks.json")
	v.SetDefault("landmark.format", "json")

	v.SetDefault("geodata.user_agent", "dashcam-v2-geodata/1.0 (+https://example.invalid/contact)")
	v.SetDefault("geodata.base_url", "")
	v.SetDefault("geodata.request_timeout", 10*time.Second)
	v.SetDefault("geodata.inter_request_delay", 100*time.Millisecond)
	v.SetDefault("geodata.interactive_min_delay", time.Second)

	v.SetDefault("security.jwt_secret_key", "dashcam-dev-secret-change-in-production")
	v.SetDefault("security.jwt_expiry_hours", 24)
	v.SetDefault("security.rate_limit_requests", 100)
	v.SetDefault("security.rate_limit_window", time.Minute)

	v.SetDefault("api_keys.storage_path", "api_keys.json")
	v.SetDefault("api_keys.key_length", 32)
	v.SetDefault("api_keys.key_prefix", "dck_")
	v.SetDefault("api_keys.key_format", "base64url")
	v.SetDefault("api_keys.max_keys_per_role", 10)
	v.SetDefault("api_keys.usage_tracking", true)
	v.SetDefault("api_keys.audit_logging", true)

	v.SetDefault("health.enabled", true)
	v.SetDefault("health.host", "0.0.0.0")
	v.SetDefault("health.port", 8003)
	v.SetDefault("health.read_timeout", "5s")
	v.SetDefault("health.write_timeout", "5s")
	v.SetDefault("health.idle_timeout", "30s")
	v.SetDefault("health.basic_endpoint", "/health")
	v.SetDefault("health.detailed_endpoint", "/health/detailed")
	v.SetDefault("health.ready_endpoint", "/health/ready")
	v.SetDefault("health.live_endpoint", "/health/live")

	v.SetDefault("http.listen_addr", ":8080")
}
