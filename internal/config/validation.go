package config

import "fmt"

// Validate applies the same meaningful-error-message discipline as the
// teacher's validateConfig, scoped to the keys this package actually
// owns.
func Validate(cfg *Config) error {
	if cfg.Camera.RoadDevicePath == "" {
		return fmt.Errorf("config: camera.road_device_path must not be empty")
	}
	if cfg.Camera.InteriorDeviceIndex < 0 {
		return fmt.Errorf("config: camera.interior_device_index must be >= 0")
	}
	if cfg.GPS.SerialPort == "" {
		return fmt.Errorf("config: gps.serial_port must not be empty")
	}
	if cfg.Landmark.Format != "json" && cfg.Landmark.Format != "sqlite" {
		return fmt.Errorf("config: landmark.format must be \"json\" or \"sqlite\", got %q", cfg.Landmark.Format)
	}
	if cfg.Geodata.RequestTimeout <= 0 {
		return fmt.Errorf("config: geodata.request_timeout must be positive")
	}
	if cfg.Geodata.InterRequestDelay < 0 {
		return fmt.Errorf("config: geodata.inter_request_delay must not be negative")
	}
	if cfg.Security.JWTSecretKey == "" {
		return fmt.Errorf("config: security.jwt_secret_key must not be empty")
	}
	if cfg.HTTP.ListenAddr == "" {
		return fmt.Errorf("config: http.listen_addr must not be empty")
	}
	return nil
}
