package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds server configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Database struct {
		Path string
	}
	Session struct {
		TTL           time.Duration
		SweepInterval time.Duration
	}
	Push struct {
		Interval    time.Duration
		AuthTimeout time.Duration
	}
	RateLimit struct {
		RPS       float64
		Burst     int
		CacheSize int
		TTL       time.Duration
	}
	Storage struct {
		Bucket    string
		KeyPrefix string
		Region    string
		Endpoint  string
	}
	AWS struct {
		Profile string
	}
	Log struct {
		Level string
	}
}

// ClientConfig holds CLI client settings.
type ClientConfig struct {
	Server struct {
		URL string
	}
	Session struct {
		File string
	}
}

// Load reads server configuration from environment variables and optional config files.
func Load() (Config, error) {
	loadDotEnv()

	v := newViper()
	v.SetDefault("server.addr", "0.0.0.0:3000")
	v.SetDefault("database.path", "data/timers.db")
	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.sweepinterval", 24*time.Hour)
	v.SetDefault("push.interval", time.Second)
	v.SetDefault("push.authtimeout", 10*time.Second)
	v.SetDefault("ratelimit.rps", 5.0)
	v.SetDefault("ratelimit.burst", 10)
	v.SetDefault("ratelimit.cachesize", 1024)
	v.SetDefault("ratelimit.ttl", 10*time.Minute)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.keyprefix", "timer-exports")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("aws.profile", "")
	v.SetDefault("log.level", "info")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// LoadClient reads CLI settings. SERVER_URL is honored when TIMERS_SERVER_URL is unset.
func LoadClient() (ClientConfig, error) {
	loadDotEnv()

	v := newViper()
	if err := v.BindEnv("server.url", "TIMERS_SERVER_URL", "SERVER_URL"); err != nil {
		return ClientConfig{}, fmt.Errorf("bind server url: %w", err)
	}
	v.SetDefault("server.url", "http://localhost:3000")
	v.SetDefault("session.file", DefaultSessionFile())

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("failed to unmarshal client config: %w", err)
	}
	cfg.Server.URL = strings.TrimRight(cfg.Server.URL, "/")

	return cfg, nil
}

// DefaultSessionFile is the per-user token file in the home directory.
func DefaultSessionFile() string {
	name := ".sb-timers-session"
	if runtime.GOOS == "windows" {
		name = "_sb-timers-session"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(home, name)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("TIMERS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func loadDotEnv() {
	file, err := os.Open(".env")
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		idx := strings.Index(line, "=")
		if idx <= 0 {
			continue
		}

		key := strings.TrimSpace(line[:idx])
		value := strings.Trim(strings.TrimSpace(line[idx+1:]), `"'`)
		if key == "" {
			continue
		}

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
