package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the directory passed to Load.
const FileName = "crashsight.cfg.json"

// SimConfig holds the animation loop tunables.
type SimConfig struct {
	FPS                int     `json:"fps" mapstructure:"fps"`
	CollisionThreshold float64 `json:"collisionThreshold" mapstructure:"collisionThreshold"`
	Gravity            float64 `json:"gravity" mapstructure:"gravity"`
	Seed               uint64  `json:"seed" mapstructure:"seed"` // 0 seeds from the clock
}

// UIConfig holds UI shell settings.
type UIConfig struct {
	DefaultScenario string        `json:"defaultScenario" mapstructure:"defaultScenario"`
	AlertDuration   time.Duration `json:"alertDuration" mapstructure:"alertDuration"`
}

// AudioConfig holds alert tone settings.
type AudioConfig struct {
	Enabled   bool    `json:"enabled" mapstructure:"enabled"`
	Frequency float64 `json:"frequency" mapstructure:"frequency"`
}

// MonitorConfig holds status monitor settings.
type MonitorConfig struct {
	Enabled    bool          `json:"enabled" mapstructure:"enabled"`
	Interval   time.Duration `json:"interval" mapstructure:"interval"`
	StatusFile string        `json:"statusFile" mapstructure:"statusFile"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled        bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName    string        `json:"serviceName" mapstructure:"serviceName"`
	ExportInterval time.Duration `json:"exportInterval" mapstructure:"exportInterval"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. Defaults stay in effect
// when the file cannot be read.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./crashsight-logs")
	viper.SetDefault("logBackend", "slog")

	viper.SetDefault("sim.fps", 60)
	viper.SetDefault("sim.collisionThreshold", 3.0)
	viper.SetDefault("sim.gravity", 0.01)
	viper.SetDefault("sim.seed", 0)

	viper.SetDefault("scene.defaultScenario", "head-on")
	viper.SetDefault("ui.alertDuration", "3s")

	viper.SetDefault("audio.enabled", false)
	viper.SetDefault("audio.frequency", 880.0)

	viper.SetDefault("monitor.enabled", true)
	viper.SetDefault("monitor.interval", "1s")
	viper.SetDefault("monitor.statusFile", "status.json")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "crashsight")
	viper.SetDefault("otel.exportInterval", "10s")

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// GetSimConfig returns the animation loop settings.
func GetSimConfig() SimConfig {
	return SimConfig{
		FPS:                viper.GetInt("sim.fps"),
		CollisionThreshold: viper.GetFloat64("sim.collisionThreshold"),
		Gravity:            viper.GetFloat64("sim.gravity"),
		Seed:               viper.GetUint64("sim.seed"),
	}
}

// GetUIConfig returns the UI shell settings.
func GetUIConfig() UIConfig {
	return UIConfig{
		DefaultScenario: viper.GetString("scene.defaultScenario"),
		AlertDuration:   viper.GetDuration("ui.alertDuration"),
	}
}

// GetAudioConfig returns the alert tone settings.
func GetAudioConfig() AudioConfig {
	return AudioConfig{
		Enabled:   viper.GetBool("audio.enabled"),
		Frequency: viper.GetFloat64("audio.frequency"),
	}
}

// GetMonitorConfig returns the status monitor settings.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Enabled:    viper.GetBool("monitor.enabled"),
		Interval:   viper.GetDuration("monitor.interval"),
		StatusFile: viper.GetString("monitor.statusFile"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		ExportInterval: viper.GetDuration("otel.exportInterval"),
	}
}
