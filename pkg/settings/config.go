package settings

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/mso/pkg/channel"
	"github.com/mso/pkg/ratetable"
)

// Config is the engine configuration, as opposed to the user Settings.
type Config struct {
	Engine      EngineConfig    `mapstructure:"engine"`
	Calibration Calibration     `mapstructure:"calibration"`
	Simulator   SimulatorConfig `mapstructure:"simulator"`
	Server      ServerConfig    `mapstructure:"server"`
	Board       BoardConfig     `mapstructure:"board"`
}

type EngineConfig struct {
	Rate       int           `mapstructure:"rate"`
	QueueDepth int           `mapstructure:"queue_depth"`
	TickPeriod time.Duration `mapstructure:"tick_period"`
	// SettingsFile is where the 'd' command saves the user settings.
	SettingsFile string `mapstructure:"settings_file"`
}

// Calibration holds the per-channel offset tables, indexed by rate bucket
// then gain, and the 16-bit DC offsets used by the meter.
type Calibration struct {
	CH1Offsets [][]int `mapstructure:"ch1_offsets"`
	CH2Offsets [][]int `mapstructure:"ch2_offsets"`
	CH1DC      int     `mapstructure:"ch1_dc"`
	CH2DC      int     `mapstructure:"ch2_dc"`
}

// Offset returns the calibration offset of channel ch (0 or 1).
func (c *Calibration) Offset(ch int, rate, gain uint8) int8 {
	table := c.CH1Offsets
	if ch == 1 {
		table = c.CH2Offsets
	}
	bucket := ratetable.Lookup(rate).CalibrationBucket()
	if bucket >= len(table) || int(gain) >= len(table[bucket]) {
		return 0
	}
	v := table[bucket][gain]
	if v > 127 {
		v = 127
	}
	if v < -128 {
		v = -128
	}
	return int8(v)
}

// DCOffset returns the DC calibration of channel ch.
func (c *Calibration) DCOffset(ch int) int16 {
	if ch == 1 {
		return int16(c.CH2DC)
	}
	return int16(c.CH1DC)
}

// Wave describes one simulated analog input.
type Wave struct {
	Shape     string  `mapstructure:"shape"`
	Frequency float64 `mapstructure:"frequency"`
	Amplitude float64 `mapstructure:"amplitude"`
	Offset    float64 `mapstructure:"offset"`
}

type SimulatorConfig struct {
	CH1 Wave `mapstructure:"ch1"`
	CH2 Wave `mapstructure:"ch2"`
	// DigitalFrequency is the toggle rate of digital line 0; line n runs at
	// DigitalFrequency/2^n.
	DigitalFrequency float64 `mapstructure:"digital_frequency"`
	Noise            float64 `mapstructure:"noise"`
	// CounterFrequency is the signal seen by the frequency counter.
	CounterFrequency float64 `mapstructure:"counter_frequency"`
}

// BoardConfig describes how a conversion stream device is completed by
// host GPIO lines.
type BoardConfig struct {
	// DigitalPins names the GPIO lines read as digital inputs 0..7. An
	// empty name leaves that line low. When set, the pins replace the
	// digital byte of the conversion records.
	DigitalPins []string `mapstructure:"digital_pins"`
	// DigitalPull is "float", "down" or "up".
	DigitalPull string `mapstructure:"digital_pull"`
}

type ServerConfig struct {
	Port   int `mapstructure:"port"`
	MaxFPS int `mapstructure:"max_fps"`
}

// SetDefaults installs defaults for every configuration key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("engine.rate", 4)
	v.SetDefault("engine.queue_depth", 8)
	v.SetDefault("engine.tick_period", "40960us")
	v.SetDefault("engine.settings_file", "mso-settings.json")

	zero := make([][]int, 8)
	for i := range zero {
		zero[i] = make([]int, channel.MaxGain+1)
	}
	v.SetDefault("calibration.ch1_offsets", zero)
	v.SetDefault("calibration.ch2_offsets", zero)
	v.SetDefault("calibration.ch1_dc", 0)
	v.SetDefault("calibration.ch2_dc", 0)

	v.SetDefault("simulator.ch1.shape", "sine")
	v.SetDefault("simulator.ch1.frequency", 1000.0)
	v.SetDefault("simulator.ch1.amplitude", 60.0)
	v.SetDefault("simulator.ch1.offset", 0.0)
	v.SetDefault("simulator.ch2.shape", "square")
	v.SetDefault("simulator.ch2.frequency", 250.0)
	v.SetDefault("simulator.ch2.amplitude", 40.0)
	v.SetDefault("simulator.ch2.offset", 0.0)
	v.SetDefault("simulator.digital_frequency", 2000.0)
	v.SetDefault("simulator.noise", 1.0)
	v.SetDefault("simulator.counter_frequency", 1000.0)

	v.SetDefault("board.digital_pins", []string{})
	v.SetDefault("board.digital_pull", "down")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_fps", 30)
}

// LoadConfig reads the configuration from path, or searches for mso.* in
// /etc/mso and the working directory when path is empty. A missing config
// file during the search is not an error; defaults are used.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("mso")
		v.AddConfigPath("/etc/mso")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}
