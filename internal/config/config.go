package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/oliveres/byd-lvs-monitor/internal/file"
	"github.com/oliveres/byd-lvs-monitor/internal/mqtt"
	"github.com/oliveres/byd-lvs-monitor/internal/remotewrite"
	"github.com/oliveres/byd-lvs-monitor/internal/sns"
	"github.com/oliveres/byd-lvs-monitor/internal/solace"
)

type Config struct {
	Monitor MonitorConfiguration `yaml:"monitor"`
}

type MonitorConfiguration struct {
	HTTPPort    int                       `yaml:"httpPort"`
	Debug       bool                      `yaml:"debug"`
	DeviceID    string                    `yaml:"deviceId"`
	TopicPrefix string                    `yaml:"topicPrefix"`
	BMU         BMUConfiguration          `yaml:"bmu"`
	Mqtt        mqtt.Configuration        `yaml:"mqtt"`
	Solace      solace.Configuration      `yaml:"solace"`
	File        file.Configuration        `yaml:"file"`
	Sns         sns.Configuration         `yaml:"sns"`
	RemoteWrite remotewrite.Configuration `yaml:"remoteWrite"`
}

// BMUConfiguration carries the connection and scan parameters for the
// battery management unit.
type BMUConfiguration struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	SlaveID        int    `yaml:"slaveId"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`

	// Modules overrides auto-detection when > 0
	Modules int `yaml:"modules"`
	Towers  int `yaml:"towers"`

	ScanPeriodSeconds int `yaml:"scanPeriodSeconds"`
}

// Load parses and validates configuration from YAML bytes.
// This is a pure function for testing - it doesn't read files or exit the process.
func Load(data []byte) (Config, error) {
	var config Config

	err := yaml.Unmarshal(data, &config)
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Apply defaults
	config.applyDefaults()

	// Validate configuration
	if err := config.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// applyDefaults sets default values for optional configuration fields
func (c *Config) applyDefaults() {
	if c.Monitor.DeviceID == "" {
		c.Monitor.DeviceID = "bmu-1"
	}

	if c.Monitor.TopicPrefix == "" {
		c.Monitor.TopicPrefix = "battery"
	}

	if c.Monitor.BMU.Port == 0 {
		c.Monitor.BMU.Port = 8080
	}

	if c.Monitor.BMU.SlaveID == 0 {
		c.Monitor.BMU.SlaveID = 1
	}

	if c.Monitor.BMU.TimeoutSeconds == 0 {
		c.Monitor.BMU.TimeoutSeconds = 10
	}

	if c.Monitor.BMU.Towers == 0 {
		c.Monitor.BMU.Towers = 1
	}

	if c.Monitor.BMU.ScanPeriodSeconds == 0 {
		c.Monitor.BMU.ScanPeriodSeconds = 60
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Monitor.HTTPPort <= 0 || c.Monitor.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d (must be 1-65535)", c.Monitor.HTTPPort)
	}

	// Validate BMU configuration
	if c.Monitor.BMU.Host == "" {
		return fmt.Errorf("bmu host is required")
	}
	if c.Monitor.BMU.Port <= 0 || c.Monitor.BMU.Port > 65535 {
		return fmt.Errorf("invalid bmu port: %d (must be 1-65535)", c.Monitor.BMU.Port)
	}
	if c.Monitor.BMU.SlaveID < 0 || c.Monitor.BMU.SlaveID > 247 {
		return fmt.Errorf("invalid bmu slave ID: %d (must be 0-247)", c.Monitor.BMU.SlaveID)
	}
	if c.Monitor.BMU.Modules < 0 {
		return fmt.Errorf("bmu module count cannot be negative")
	}
	if c.Monitor.BMU.Towers < 1 {
		return fmt.Errorf("bmu tower count must be at least 1")
	}
	if c.Monitor.BMU.ScanPeriodSeconds <= 0 {
		return fmt.Errorf("bmu scan period must be positive")
	}

	// Validate MQTT configuration if enabled
	if c.Monitor.Mqtt.Enabled {
		if c.Monitor.Mqtt.Host == "" {
			return fmt.Errorf("MQTT host is required when MQTT is enabled")
		}
	}

	// Validate Solace configuration if enabled
	if c.Monitor.Solace.Enabled {
		if c.Monitor.Solace.Host == "" {
			return fmt.Errorf("solace host is required when Solace is enabled")
		}
		if c.Monitor.Solace.VpnName == "" {
			return fmt.Errorf("solace VPN name is required when Solace is enabled")
		}
	}

	// Validate File configuration if enabled
	if c.Monitor.File.Enabled {
		if c.Monitor.File.Filename == "" {
			return fmt.Errorf("file filename is required when File publisher is enabled")
		}
	}

	// Validate SNS configuration if enabled
	if c.Monitor.Sns.Enabled {
		if c.Monitor.Sns.TopicArn == "" {
			return fmt.Errorf("SNS topic ARN is required when SNS is enabled")
		}
		if c.Monitor.Sns.Region == "" {
			return fmt.Errorf("SNS region is required when SNS is enabled")
		}
	}

	// RemoteWrite validates itself (URL format, auth exclusivity)
	if err := c.Monitor.RemoteWrite.Validate(); err != nil {
		return err
	}

	return nil
}
