package seed

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Location is the fixed position of a seeded bin.
type Location struct {
	DeviceID string  `mapstructure:"device_id"`
	Lat      float64 `mapstructure:"lat"`
	Lon      float64 `mapstructure:"lon"`
}

// Config controls the shape of the generated history.
type Config struct {
	Devices       []string `mapstructure:"devices"`
	Days          int      `mapstructure:"days"`
	EntriesPerDay int      `mapstructure:"entries_per_day"`
	BinHeightCM   float64  `mapstructure:"bin_height_cm"`

	MinFillStep  int `mapstructure:"min_fill_step"`
	MaxFillStep  int `mapstructure:"max_fill_step"`
	MinStartFill int `mapstructure:"min_start_fill"`
	MaxStartFill int `mapstructure:"max_start_fill"`

	MinTempC       float64 `mapstructure:"min_temp_c"`
	MaxTempC       float64 `mapstructure:"max_temp_c"`
	MinHumidityPct float64 `mapstructure:"min_humidity_pct"`
	MaxHumidityPct float64 `mapstructure:"max_humidity_pct"`

	Locations []Location `mapstructure:"locations"`
}

var defaultLocations = []Location{
	{DeviceID: "ESP32_BIN_01", Lat: 5.314, Lon: 100.312},
	{DeviceID: "ESP32_BIN_02", Lat: 5.316, Lon: 100.315},
	{DeviceID: "ESP32_BIN_03", Lat: 5.318, Lon: 100.310},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("devices", []string{"ESP32_BIN_01", "ESP32_BIN_02", "ESP32_BIN_03"})
	v.SetDefault("days", 30)
	v.SetDefault("entries_per_day", 4)
	v.SetDefault("bin_height_cm", 25)
	v.SetDefault("min_fill_step", 1)
	v.SetDefault("max_fill_step", 8)
	v.SetDefault("min_start_fill", 5)
	v.SetDefault("max_start_fill", 20)
	v.SetDefault("min_temp_c", 24.0)
	v.SetDefault("max_temp_c", 32.0)
	v.SetDefault("min_humidity_pct", 40.0)
	v.SetDefault("max_humidity_pct", 70.0)
}

// LoadConfig reads seed.yaml from the given directories (if present) and
// SEED_* environment variables on top of the defaults.
func LoadConfig(paths ...string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("seed")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix("SEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if len(paths) > 0 {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("failed to read seed config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode seed config: %w", err)
	}
	if len(cfg.Locations) == 0 {
		cfg.Locations = append([]Location(nil), defaultLocations...)
	}
	return cfg, cfg.Validate()
}

// DefaultConfig returns the built-in parameters without reading files or env.
func DefaultConfig() Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	cfg.Locations = append([]Location(nil), defaultLocations...)
	return cfg
}

func (c Config) Validate() error {
	switch {
	case len(c.Devices) == 0:
		return errors.New("seed: no devices configured")
	case c.Days <= 0 || c.EntriesPerDay <= 0:
		return fmt.Errorf("seed: days (%d) and entries_per_day (%d) must be positive", c.Days, c.EntriesPerDay)
	case c.MinFillStep < 1:
		return fmt.Errorf("seed: min_fill_step %d must be at least 1", c.MinFillStep)
	case c.MinFillStep > c.MaxFillStep:
		return fmt.Errorf("seed: min_fill_step %d exceeds max_fill_step %d", c.MinFillStep, c.MaxFillStep)
	case c.MinStartFill < 0 || c.MaxStartFill > 100:
		return fmt.Errorf("seed: start fill range %d..%d must lie within 0..100", c.MinStartFill, c.MaxStartFill)
	case c.MinStartFill > c.MaxStartFill:
		return fmt.Errorf("seed: min_start_fill %d exceeds max_start_fill %d", c.MinStartFill, c.MaxStartFill)
	case c.BinHeightCM <= 0:
		return errors.New("seed: bin_height_cm must be positive")
	}
	return nil
}

func (c Config) location(deviceID string) (Location, bool) {
	for _, l := range c.Locations {
		if l.DeviceID == deviceID {
			return l, true
		}
	}
	return Location{DeviceID: deviceID}, false
}
