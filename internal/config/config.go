package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode          string        `mapstructure:"mode"`
	Port          int           `mapstructure:"port"`
	LogLevel      string        `mapstructure:"log_level"`
	ReadLimit     int64         `mapstructure:"read_limit"`
	PingPeriod    time.Duration `mapstructure:"ping_period"`
	SendBuffer    int           `mapstructure:"send_buffer"`
	GraceWindow   time.Duration `mapstructure:"grace_window"`
	Secret        string        `mapstructure:"secret"`
	InternalToken string        `mapstructure:"internal_token"`

	Rate     RateConfig     `mapstructure:"rate"`
	RTC      RTCConfig      `mapstructure:"rtc"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Database DatabaseConfig `mapstructure:"database"`
}

type RateConfig struct {
	MessagesPerSecond float64       `mapstructure:"messages_per_second"`
	Burst             int           `mapstructure:"burst"`
	AnnounceLimit     int           `mapstructure:"announce_limit"`
	AnnounceInterval  time.Duration `mapstructure:"announce_interval"`
}

type RTCConfig struct {
	ListenIP       string        `mapstructure:"listen_ip"`
	AnnouncedIP    string        `mapstructure:"announced_ip"`
	UDPPort        int           `mapstructure:"udp_port"`
	MinPort        uint16        `mapstructure:"min_port"`
	MaxPort        uint16        `mapstructure:"max_port"`
	STUNURLs       []string      `mapstructure:"stun_urls"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type EngineConfig struct {
	ExitDelay time.Duration `mapstructure:"exit_delay"`
}

type DatabaseConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("grace_window", "5m")
	v.SetDefault("secret", "classroom-dev-secret")
	v.SetDefault("internal_token", "")

	v.SetDefault("rate.messages_per_second", 50)
	v.SetDefault("rate.burst", 100)
	v.SetDefault("rate.announce_limit", 5)
	v.SetDefault("rate.announce_interval", "10s")

	v.SetDefault("rtc.listen_ip", "0.0.0.0")
	v.SetDefault("rtc.announced_ip", "")
	v.SetDefault("rtc.udp_port", 10000)
	v.SetDefault("rtc.min_port", 10000)
	v.SetDefault("rtc.max_port", 10100)
	v.SetDefault("rtc.stun_urls", []string{})
	v.SetDefault("rtc.connect_timeout", "15s")

	v.SetDefault("engine.exit_delay", "2s")

	v.SetDefault("database.url", "")
	v.SetDefault("database.timeout", "5s")
}

// Load reads .env (if any), then config/config.<CONFIG_ENV>.yaml, then
// CLASSROOM_* environment overrides.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Str("module", "config").Msg("failed to read .env")
	}

	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)
	v.SetConfigFile(fileName)

	setDefaults(v)
	v.SetEnvPrefix("CLASSROOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Int("udp_port", cfg.RTC.UDPPort).
		Dur("grace_window", cfg.GraceWindow).
		Bool("database", cfg.Database.URL != "").
		Msg("config ready")
	return &cfg, nil
}
