// Package config loads ShapeBoard settings from a TOML file and the
// environment.
//
// Values are resolved in three layers: built-in defaults, then the TOML file
// (optional; a missing file is not an error), then SHAPEBOARD_* environment
// variables.
//
//	mode = "api"
//
//	[client]
//	api_url = "http://192.168.1.20:8888"
//
//	[server]
//	storage = "redis"
//	redis_addr = "localhost:6379"
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Gateway modes.
const (
	ModeFile = "file"
	ModeAPI  = "api"
)

// Server storage backends.
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
	StorageMongo  = "mongo"
)

// Duration is a time.Duration written as a Go duration string ("30s").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the full application configuration.
type Config struct {
	Mode   string       `toml:"mode"`
	Client ClientConfig `toml:"client"`
	Server ServerConfig `toml:"server"`
}

// ClientConfig configures the desktop app and the CLI client commands.
type ClientConfig struct {
	APIURL    string   `toml:"api_url"`
	ExportDir string   `toml:"export_dir"`
	Timeout   Duration `toml:"timeout"`
	// SessionFile overrides where the CLI keeps its token.
	SessionFile string `toml:"session_file"`
}

// ServerConfig configures the drawing API server.
type ServerConfig struct {
	Addr           string   `toml:"addr"`
	Storage        string   `toml:"storage"`
	RedisAddr      string   `toml:"redis_addr"`
	RedisPassword  string   `toml:"redis_password"`
	RedisDB        int      `toml:"redis_db"`
	MongoURI       string   `toml:"mongo_uri"`
	MongoDatabase  string   `toml:"mongo_database"`
	JWTSecret      string   `toml:"jwt_secret"`
	TokenTTL       Duration `toml:"token_ttl"`
	Advertise      bool     `toml:"advertise"`
	AllowedOrigins []string `toml:"allowed_origins"`
	MaxBodyBytes   int64    `toml:"max_body_bytes"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Mode: ModeFile,
		Client: ClientConfig{
			APIURL:    "",
			ExportDir: "~/ShapeBoard",
			Timeout:   Duration{30 * time.Second},
		},
		Server: ServerConfig{
			Addr:           ":8888",
			Storage:        StorageMemory,
			RedisAddr:      "localhost:6379",
			MongoURI:       "mongodb://localhost:27017",
			MongoDatabase:  "shapeboard",
			TokenTTL:       Duration{24 * time.Hour},
			AllowedOrigins: []string{"*"},
			MaxBodyBytes:   1 << 20,
		},
	}
}

// DefaultPath returns ~/.config/shapeboard/config.toml (or the platform
// equivalent).
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "shapeboard", "config.toml"), nil
}

// Load reads path on top of the defaults and applies environment overrides.
// An empty path uses DefaultPath. Unknown keys in the file are an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		p, err := DefaultPath()
		if err == nil {
			path = p
		}
	}
	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		default:
			if undecoded := md.Undecoded(); len(undecoded) > 0 {
				keys := make([]string, len(undecoded))
				for i, k := range undecoded {
					keys[i] = k.String()
				}
				return Config{}, fmt.Errorf("parse %s: unknown keys: %s", path, strings.Join(keys, ", "))
			}
		}
	}

	applyEnv(&cfg, os.LookupEnv)
	cfg.Client.ExportDir = expandHome(cfg.Client.ExportDir)
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set("SHAPEBOARD_MODE", &cfg.Mode)
	set("SHAPEBOARD_API_URL", &cfg.Client.APIURL)
	set("SHAPEBOARD_EXPORT_DIR", &cfg.Client.ExportDir)
	set("SHAPEBOARD_ADDR", &cfg.Server.Addr)
	set("SHAPEBOARD_STORAGE", &cfg.Server.Storage)
	set("SHAPEBOARD_JWT_SECRET", &cfg.Server.JWTSecret)
	set("SHAPEBOARD_REDIS_ADDR", &cfg.Server.RedisAddr)
	set("SHAPEBOARD_MONGO_URI", &cfg.Server.MongoURI)
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// Validate checks the settings the client commands depend on.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeFile, ModeAPI:
	default:
		return fmt.Errorf("mode must be %q or %q, got %q", ModeFile, ModeAPI, c.Mode)
	}
	if c.Client.Timeout.Duration <= 0 {
		return fmt.Errorf("client.timeout must be positive")
	}
	return nil
}

// ValidateServer checks the settings the serve command depends on.
func (c Config) ValidateServer() error {
	switch c.Server.Storage {
	case StorageMemory, StorageRedis, StorageMongo:
	default:
		return fmt.Errorf("server.storage must be memory, redis or mongo, got %q", c.Server.Storage)
	}
	if c.Server.JWTSecret == "" {
		return fmt.Errorf("server.jwt_secret is required (or set SHAPEBOARD_JWT_SECRET)")
	}
	if c.Server.TokenTTL.Duration <= 0 {
		return fmt.Errorf("server.token_ttl must be positive")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}
	return nil
}
