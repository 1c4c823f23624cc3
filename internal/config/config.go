package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config holds all application configuration values.
type Config struct {
	// Serial
	SerialPort     string // device path, "auto" or "sim"
	SerialBaudRate int
	SerialDriver   string // "jacobsa" or "bugst"
	ReadTimeoutMS  int

	// Acquisition
	CaptureDurationS float64
	SampleRateHz     float64
	WindowsPerSecond float64
	SkipHeaderLines  int // file mode only

	// Calibration
	CalibrationFile string

	// MQTT, empty broker disables publication
	MQTTBroker          string
	MQTTClientIDCapture string
	MQTTClientIDConsole string
	MQTTClientIDWeb     string

	// Topics
	TopicReport string

	// Storage, empty path disables it
	DBPath string

	// Web Server
	WebServerPort int

	// Logging
	LogLevel string
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only reachable through InitGlobal and Get.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: write lock for initialization, read lock for Get().
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the configuration used when no file sets a key.
func Default() *Config {
	return &Config{
		SerialPort:          "auto",
		SerialBaudRate:      115200,
		SerialDriver:        "jacobsa",
		ReadTimeoutMS:       1000,
		CaptureDurationS:    60,
		SampleRateHz:        200,
		WindowsPerSecond:    10,
		SkipHeaderLines:     1,
		CalibrationFile:     "calibration.json",
		MQTTClientIDCapture: "imu-capture",
		MQTTClientIDConsole: "imu-console",
		MQTTClientIDWeb:     "imu-web",
		TopicReport:         "imu/report",
		WebServerPort:       8080,
		LogLevel:            "info",
	}
}

// Load reads the configuration file and returns a Config struct.
// Keys absent from the file keep their Default value.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads KEY=VALUE lines from r on top of the defaults.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		if err := cfg.setValue(strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// Serial
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SERIAL_BAUD_RATE %q: %w", value, err)
		}
		c.SerialBaudRate = rate
	case "SERIAL_DRIVER":
		c.SerialDriver = strings.ToLower(value)
	case "READ_TIMEOUT_MS":
		ms, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid READ_TIMEOUT_MS %q: %w", value, err)
		}
		if ms < 100 || ms > 25500 {
			return fmt.Errorf("READ_TIMEOUT_MS must be 100-25500, got %d", ms)
		}
		c.ReadTimeoutMS = ms

	// Acquisition
	case "CAPTURE_DURATION_S":
		d, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid CAPTURE_DURATION_S %q: %w", value, err)
		}
		c.CaptureDurationS = d
	case "SAMPLE_RATE_HZ":
		hz, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid SAMPLE_RATE_HZ %q: %w", value, err)
		}
		c.SampleRateHz = hz
	case "WINDOWS_PER_SECOND":
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid WINDOWS_PER_SECOND %q: %w", value, err)
		}
		c.WindowsPerSecond = n
	case "SKIP_HEADER_LINES":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SKIP_HEADER_LINES %q: %w", value, err)
		}
		if n < 0 {
			return fmt.Errorf("SKIP_HEADER_LINES must not be negative, got %d", n)
		}
		c.SkipHeaderLines = n

	// Calibration
	case "CALIBRATION_FILE":
		c.CalibrationFile = value

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_CAPTURE":
		c.MQTTClientIDCapture = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value

	// Topics
	case "TOPIC_REPORT":
		c.TopicReport = value

	// Storage
	case "DB_PATH":
		c.DBPath = value

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	// Logging
	case "LOG_LEVEL":
		c.LogLevel = strings.ToLower(value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// Validate checks the values that have no usable fallback.
func (c *Config) Validate() error {
	if c.SerialPort == "" {
		return fmt.Errorf("SERIAL_PORT is required")
	}
	if c.SerialBaudRate <= 0 {
		return fmt.Errorf("SERIAL_BAUD_RATE must be positive")
	}
	if c.SerialDriver != "jacobsa" && c.SerialDriver != "bugst" {
		return fmt.Errorf("SERIAL_DRIVER must be jacobsa or bugst, got %q", c.SerialDriver)
	}
	if c.CaptureDurationS <= 0 {
		return fmt.Errorf("CAPTURE_DURATION_S must be positive")
	}
	if c.SampleRateHz <= 0 {
		return fmt.Errorf("SAMPLE_RATE_HZ must be positive")
	}
	if c.WindowsPerSecond <= 0 {
		return fmt.Errorf("WINDOWS_PER_SECOND must be positive")
	}
	if c.TopicReport == "" {
		return fmt.Errorf("TOPIC_REPORT is required")
	}
	if c.WebServerPort <= 0 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT must be 1-65535, got %d", c.WebServerPort)
	}
	return nil
}

// ReadTimeout is READ_TIMEOUT_MS as a duration.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMS) * time.Millisecond
}

// CaptureDuration is CAPTURE_DURATION_S as a duration.
func (c *Config) CaptureDuration() time.Duration {
	return time.Duration(c.CaptureDurationS * float64(time.Second))
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
// An empty path installs the defaults.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		if configPath == "" {
			globalConfig = Default()
			return
		}
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
