package utils

import (
	"time"

	"github.com/OsiaDev/core/pkg/file"
)

// Config represents the structure of the configuration file.
type Config struct {
	MQTT struct {
		Broker        string `yaml:"broker"`         // MQTT broker address
		ClientID      string `yaml:"client_id"`      // MQTT client ID
		Username      string `yaml:"username"`       // Broker username (optional)
		Password      string `yaml:"password"`       // Broker password
		CACertificate string `yaml:"ca_certificate"` // Path to the CA certificate (optional)
		QOS           int    `yaml:"qos"`            // QoS level for all gateway messages
	} `yaml:"mqtt"`

	UCS struct {
		Host     string `yaml:"host"`     // UCS server host
		Port     int    `yaml:"port"`     // UCS server port
		Username string `yaml:"username"` // UCS login
		Password string `yaml:"password"` // UCS password

		Reconnect struct {
			Enabled      bool          `yaml:"enabled"`       // Retry failed connections
			InitialDelay time.Duration `yaml:"initial_delay"` // First backoff delay
			MaxDelay     time.Duration `yaml:"max_delay"`     // Backoff ceiling
		} `yaml:"reconnect"`
	} `yaml:"ucs"`

	Topics struct {
		Commands        string `yaml:"commands"`         // Inbound command requests
		Missions        string `yaml:"missions"`         // Inbound mission requests
		Telemetry       string `yaml:"telemetry"`        // Outbound telemetry events
		CommandResults  string `yaml:"command_results"`  // Outbound command results
		VehicleStatus   string `yaml:"vehicle_status"`   // Outbound status events
		MissionComplete string `yaml:"mission_complete"` // Outbound mission-complete events
	} `yaml:"topics"`

	Mission struct {
		DefaultSpeed     float64       `yaml:"default_speed"`     // m/s applied when a route has none
		DefaultAltitude  float64       `yaml:"default_altitude"`  // meters AGL
		AcceptanceRadius float64       `yaml:"acceptance_radius"` // meters
		CommandTimeout   time.Duration `yaml:"command_timeout"`   // Per-command deadline
		ExecutionTimeout time.Duration `yaml:"execution_timeout"` // Whole-mission deadline
	} `yaml:"mission"`

	Cache struct {
		Backend string `yaml:"backend"` // "memory" or "redis"

		Redis struct {
			Address   string        `yaml:"address"`    // host:port
			Password  string        `yaml:"password"`   // Optional auth
			DB        int           `yaml:"db"`         // Redis database index
			KeyPrefix string        `yaml:"key_prefix"` // Telemetry key prefix
			TTL       time.Duration `yaml:"ttl"`        // 0 keeps entries until overwrite
		} `yaml:"redis"`
	} `yaml:"cache"`

	Health struct {
		Enabled  bool          `yaml:"enabled"`  // Enable/disable gateway health reports
		Interval time.Duration `yaml:"interval"` // Interval between health reports
	} `yaml:"health"`

	Workers int `yaml:"workers"` // Notification-processing pool size
}

// LoadConfig loads the YAML configuration from the specified file.
// It returns a pointer to the Config struct and an error if loading fails.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config
	err := fileClient.ReadYamlFile(filename, &config)
	if err != nil {
		return nil, err
	}

	return &config, nil
}
