package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/sebader/iotedge-end2end/internal/logging"
)

// Transport protocol selector values. Any other value falls back to the
// default with a logged warning.
const (
	ProtocolMQTT    = "mqtt"
	ProtocolAMQP    = "amqp"
	DefaultProtocol = ProtocolMQTT
)

// Config holds all configuration for both binaries.
// Values are loaded from environment variables; see each cmd's printUsage()
// for the full list.
type Config struct {
	// Cloud side (e2emonitor)
	Destinations string `json:"destinations"`
	HubAPIURL    string `json:"hub_api_url"`
	HubSASToken  string `json:"-"`

	InvokeTimeout       time.Duration `json:"-"`
	InvokeTimeoutStr    string        `json:"invoke_timeout"`
	ResponseTimeout     time.Duration `json:"-"`
	ResponseTimeoutStr  string        `json:"response_timeout"`
	TriggerInterval     time.Duration `json:"-"`
	TriggerIntervalStr  string        `json:"trigger_interval"`

	// TriggerSchedule is an optional cron expression (seconds granularity).
	// When set it takes precedence over TriggerInterval.
	TriggerSchedule string `json:"trigger_schedule,omitempty"`

	// MessageText is the payload text sent on every cycle.
	MessageText string `json:"message_text"`

	HTTPAddr               string        `json:"http_addr"`
	HTTPShutdownTimeout    time.Duration `json:"-"`
	HTTPShutdownTimeoutStr string        `json:"http_shutdown_timeout"`

	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsPath    string `json:"metrics_path"`
	MetricsPort    string `json:"metrics_port"`

	RedisAddr      string        `json:"redis_addr,omitempty"`
	RedisRetention time.Duration `json:"-"`
	RedisRetentionStr string     `json:"redis_retention"`

	DatabaseURL    string        `json:"database_url,omitempty"`
	DBOpTimeout    time.Duration `json:"-"`
	DBOpTimeoutStr string        `json:"db_op_timeout"`

	EventBusBufferSize int `json:"eventbus_buffer_size"`

	RoundTripThreshold    time.Duration `json:"-"`
	RoundTripThresholdStr string        `json:"roundtrip_threshold"`
	SweepInterval         time.Duration `json:"-"`
	SweepIntervalStr      string        `json:"sweep_interval"`

	// Edge side (messageforwarder)
	EdgeListenAddr        string        `json:"edge_listen_addr"`
	HubIngestURL          string        `json:"hub_ingest_url"`
	ForwardTimeout        time.Duration `json:"-"`
	ForwardTimeoutStr     string        `json:"forward_timeout"`

	// ConnFailureThreshold: consecutive forward failures before the
	// connection is reported as retry-expired. 0 disables the check.
	ConnFailureThreshold int `json:"conn_failure_threshold"`

	// Shared
	TransportProtocol string     `json:"transport_protocol"`
	LogLevelStr       string     `json:"log_level"`
	LogLevel          slog.Level `json:"-"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	cfg := Config{
		Destinations:           os.Getenv("DESTINATIONS"),
		HubAPIURL:              os.Getenv("HUB_API_URL"),
		HubSASToken:            os.Getenv("HUB_SAS_TOKEN"),
		InvokeTimeoutStr:       os.Getenv("INVOKE_TIMEOUT"),
		ResponseTimeoutStr:     os.Getenv("RESPONSE_TIMEOUT"),
		TriggerIntervalStr:     os.Getenv("TRIGGER_INTERVAL"),
		TriggerSchedule:        os.Getenv("TRIGGER_SCHEDULE"),
		MessageText:            os.Getenv("MESSAGE_TEXT"),
		HTTPAddr:               os.Getenv("HTTP_ADDR"),
		HTTPShutdownTimeoutStr: os.Getenv("HTTP_SHUTDOWN_TIMEOUT"),
		MetricsEnabled:         os.Getenv("METRICS_ENABLED") == "true",
		MetricsPath:            os.Getenv("METRICS_PATH"),
		MetricsPort:            os.Getenv("METRICS_PORT"),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisRetentionStr:      os.Getenv("REDIS_RETENTION"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		DBOpTimeoutStr:         os.Getenv("DB_OP_TIMEOUT"),
		RoundTripThresholdStr:  os.Getenv("ROUNDTRIP_THRESHOLD"),
		SweepIntervalStr:       os.Getenv("SWEEP_INTERVAL"),
		EdgeListenAddr:         os.Getenv("EDGE_LISTEN_ADDR"),
		HubIngestURL:           os.Getenv("HUB_INGEST_URL"),
		ForwardTimeoutStr:      os.Getenv("FORWARD_TIMEOUT"),
		TransportProtocol:      os.Getenv("TRANSPORT_PROTOCOL"),
		LogLevelStr:            os.Getenv("LOG_LEVEL"),
	}

	if bufStr := os.Getenv("EVENTBUS_BUFFER_SIZE"); bufStr != "" {
		if n, err := strconv.Atoi(bufStr); err == nil && n > 0 {
			cfg.EventBusBufferSize = n
		} else {
			slog.Warn("config: invalid EVENTBUS_BUFFER_SIZE, using default 100", "value", bufStr)
		}
	}
	if cfg.EventBusBufferSize == 0 {
		cfg.EventBusBufferSize = 100
	}

	if thStr := os.Getenv("CONN_FAILURE_THRESHOLD"); thStr != "" {
		if n, err := strconv.Atoi(thStr); err == nil && n >= 0 {
			cfg.ConnFailureThreshold = n
		} else {
			slog.Warn("config: invalid CONN_FAILURE_THRESHOLD, using default 5", "value", thStr)
		}
	}
	if cfg.ConnFailureThreshold == 0 && os.Getenv("CONN_FAILURE_THRESHOLD") == "" {
		cfg.ConnFailureThreshold = 5
	}

	// The transport selector tolerates unrecognized values: default applies
	// with a logged warning rather than a validation error.
	switch cfg.TransportProtocol {
	case "":
		cfg.TransportProtocol = DefaultProtocol
	case ProtocolMQTT, ProtocolAMQP:
	default:
		slog.Warn("config: unrecognized TRANSPORT_PROTOCOL, using default",
			"value", cfg.TransportProtocol, "default", DefaultProtocol)
		cfg.TransportProtocol = DefaultProtocol
	}

	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.EdgeListenAddr == "" {
		cfg.EdgeListenAddr = ":8081"
	}
	if cfg.MessageText == "" {
		cfg.MessageText = "e2e test message"
	}
	if cfg.InvokeTimeoutStr == "" {
		cfg.InvokeTimeoutStr = "10s"
	}
	if cfg.ResponseTimeoutStr == "" {
		cfg.ResponseTimeoutStr = "10s"
	}
	if cfg.TriggerIntervalStr == "" {
		cfg.TriggerIntervalStr = "1m"
	}
	if cfg.HTTPShutdownTimeoutStr == "" {
		cfg.HTTPShutdownTimeoutStr = "10s"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.MetricsPort == "" {
		cfg.MetricsPort = "9090"
	}
	if cfg.RedisRetentionStr == "" {
		cfg.RedisRetentionStr = "24h"
	}
	if cfg.DBOpTimeoutStr == "" {
		cfg.DBOpTimeoutStr = "5s"
	}
	if cfg.RoundTripThresholdStr == "" {
		cfg.RoundTripThresholdStr = "5m"
	}
	if cfg.SweepIntervalStr == "" {
		cfg.SweepIntervalStr = "1m"
	}
	if cfg.ForwardTimeoutStr == "" {
		cfg.ForwardTimeoutStr = "10s"
	}

	// Parse durations; validation is handled separately by Validate().
	if d, err := time.ParseDuration(cfg.InvokeTimeoutStr); err == nil {
		cfg.InvokeTimeout = d
	}
	if d, err := time.ParseDuration(cfg.ResponseTimeoutStr); err == nil {
		cfg.ResponseTimeout = d
	}
	if d, err := time.ParseDuration(cfg.TriggerIntervalStr); err == nil {
		cfg.TriggerInterval = d
	}
	if d, err := time.ParseDuration(cfg.HTTPShutdownTimeoutStr); err == nil {
		cfg.HTTPShutdownTimeout = d
	}
	if d, err := time.ParseDuration(cfg.RedisRetentionStr); err == nil {
		cfg.RedisRetention = d
	}
	if d, err := time.ParseDuration(cfg.DBOpTimeoutStr); err == nil {
		cfg.DBOpTimeout = d
	}
	if d, err := time.ParseDuration(cfg.RoundTripThresholdStr); err == nil {
		cfg.RoundTripThreshold = d
	}
	if d, err := time.ParseDuration(cfg.SweepIntervalStr); err == nil {
		cfg.SweepInterval = d
	}
	if d, err := time.ParseDuration(cfg.ForwardTimeoutStr); err == nil {
		cfg.ForwardTimeout = d
	}

	// An unrecognized level falls back to info; Validate reports it.
	if level, err := logging.ParseLevel(cfg.LogLevelStr); err == nil {
		cfg.LogLevel = level
	} else {
		cfg.LogLevel = logging.DefaultLevel
	}

	return cfg
}

// MaskedJSON returns the configuration as JSON with secrets masked.
func (c Config) MaskedJSON() ([]byte, error) {
	masked := struct {
		Config
		HubSASToken string `json:"hub_sas_token,omitempty"`
		DatabaseURL string `json:"database_url,omitempty"`
	}{
		Config:      c,
		HubSASToken: maskSecret(c.HubSASToken),
		DatabaseURL: maskSecret(c.DatabaseURL),
	}
	return json.MarshalIndent(masked, "", "  ")
}

// maskSecret masks a secret value, preserving only the URI scheme if present.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if len(s) >= len(scheme) && s[:len(scheme)] == scheme {
			return scheme + "***"
		}
	}
	return "***"
}
