package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	bmh "github.com/zing-dev/bmh-sdk"
)

type Config struct {
	Serial      SerialConfig      `yaml:"serial"`
	Transaction TransactionConfig `yaml:"transaction"`
	Profile     ProfileConfig     `yaml:"profile"`
	Mode        string            `yaml:"mode"` // hand, foot or keep
	Cycle       CycleConfig       `yaml:"cycle"`
	Log         LogConfig         `yaml:"log"`
	Monitor     MonitorConfig     `yaml:"monitor"`
	Redis       RedisConfig       `yaml:"redis"`
}

type SerialConfig struct {
	Address     string        `yaml:"address"`
	BaudRate    int           `yaml:"baud_rate"`
	DataBits    int           `yaml:"data_bits"`
	StopBits    int           `yaml:"stop_bits"`
	Parity      string        `yaml:"parity"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	Settle      time.Duration `yaml:"settle"`
}

type TransactionConfig struct {
	Timeout        time.Duration `yaml:"timeout"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	VerifyChecksum bool          `yaml:"verify_checksum"`
}

type ProfileConfig struct {
	Age    int     `yaml:"age"`
	Gender string  `yaml:"gender"`
	Height int     `yaml:"height"`
	Weight float64 `yaml:"weight"`
}

type CycleConfig struct {
	Interval    time.Duration `yaml:"interval"`
	StatusPolls int           `yaml:"status_polls"`
	PollDelay   time.Duration `yaml:"poll_delay"`
	Count       int           `yaml:"count"` // 0 runs until interrupted
}

type LogConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MonitorConfig struct {
	Enabled     bool `yaml:"enabled"`
	MetricsPort int  `yaml:"metrics_port"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Channel  string `yaml:"channel"`
}

// LoadConfig 加载配置文件, 未出现的字段保持默认值
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	config := GetDefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// GetDefaultConfig 返回默认配置
func GetDefaultConfig() *Config {
	return &Config{
		Serial: SerialConfig{
			Address:     "/dev/ttyUSB0",
			BaudRate:    9600,
			DataBits:    8,
			StopBits:    1,
			Parity:      "N",
			ReadTimeout: 10 * time.Millisecond,
			IdleTimeout: 60 * time.Second,
			Settle:      time.Second,
		},
		Transaction: TransactionConfig{
			Timeout:      500 * time.Millisecond,
			PollInterval: time.Millisecond,
		},
		Profile: ProfileConfig{
			Age:    21,
			Gender: "male",
			Height: 175,
			Weight: 64.0,
		},
		Mode: "keep",
		Cycle: CycleConfig{
			Interval:    5 * time.Second,
			StatusPolls: 10,
			PollDelay:   500 * time.Millisecond,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Monitor: MonitorConfig{
			Enabled:     false,
			MetricsPort: 9090,
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			PoolSize: 4,
			Channel:  "bmh_measurements",
		},
	}
}

// Validate 检查用户信息和测量模式
func (c *Config) Validate() error {
	if _, err := c.Profile.UserProfile(); err != nil {
		return fmt.Errorf("profile: %w", err)
	}
	if c.Mode != "keep" {
		if _, err := bmh.ParseMode(c.Mode); err != nil {
			return fmt.Errorf("mode: %w", err)
		}
	}
	if c.Cycle.StatusPolls < 1 {
		return fmt.Errorf("cycle: status_polls must be at least 1, got %d", c.Cycle.StatusPolls)
	}
	return nil
}

// UserProfile converts the configured person into the driver's profile.
func (p ProfileConfig) UserProfile() (bmh.UserProfile, error) {
	profile := bmh.UserProfile{Age: p.Age, Height: p.Height, Weight: p.Weight}
	switch p.Gender {
	case "male":
		profile.Gender = bmh.Male
	case "female":
		profile.Gender = bmh.Female
	default:
		return profile, fmt.Errorf("%w: gender %q", bmh.ErrInvalidInput, p.Gender)
	}
	return profile, profile.Validate()
}
