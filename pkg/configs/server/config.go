package server

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("config: invalid")

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	LogLevel string         `yaml:"loglevel"`
	CORS     CORSConfig     `yaml:"cors"`
	Dolls    DollsConfig    `yaml:"dolls"`
	Database DatabaseConfig `yaml:"database"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Reload   ReloadConfig   `yaml:"reload"`
}

type ServerConfig struct {
	// Host is the interface to bind. "0.0.0.0" binds all interfaces.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// ShutdownTimeout bounds graceful shutdown of in-flight requests.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type CORSConfig struct {
	AllowOrigins []string `yaml:"allow_origins"`
	AllowMethods []string `yaml:"allow_methods"`
	AllowHeaders []string `yaml:"allow_headers"`
}

// Enabled tells CORS headers should be served.
func (c CORSConfig) Enabled() bool {
	return len(c.AllowOrigins) != 0
}

type DollsConfig struct {
	Enabled bool `yaml:"enabled"`

	// StorageDir is the directory where doll models and uploaded clothes are stored.
	StorageDir string `yaml:"storage_dir"`

	// PublicURL is the origin which clients reach this server at.
	// It is the prefix of file_url in doll records.
	PublicURL string `yaml:"public_url"`

	Generator GeneratorConfig `yaml:"generator"`
}

// GeneratorConfig holds argv templates of external commands building doll models.
//
// Each argument is a text/template. See package generator for fields available.
type GeneratorConfig struct {
	Create  []string      `yaml:"create"`
	Apply   []string      `yaml:"apply"`
	Timeout time.Duration `yaml:"timeout"`
}

type DatabaseConfig struct {
	// URI is a postgres connection string. Empty means in-memory store.
	URI string `yaml:"uri"`

	// ConnectAttempts is how many times connecting is tried on start.
	// Attempts are spaced by exponential backoff from 1 second.
	ConnectAttempts int `yaml:"connect_attempts"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type ReloadConfig struct {
	// Watch is the list of files or directories to be watched under --reload.
	Watch []string `yaml:"watch"`

	// Extensions limits watched files. Empty means any file.
	Extensions []string `yaml:"extensions"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ShutdownTimeout: 15 * time.Second,
		},
		LogLevel: "info",
		CORS: CORSConfig{
			AllowMethods: []string{"*"},
			AllowHeaders: []string{"*"},
		},
		Dolls: DollsConfig{
			StorageDir: "dolls",
			PublicURL:  "http://localhost:8000",
			Generator: GeneratorConfig{
				Create: []string{
					"python3", "create_doll.py",
					"--out", "{{.Out}}",
					"--gender", "{{.Gender}}",
					"--skin", "{{.SkinColor}}",
					"--model", "{{.ModelType}}",
					"--height", "{{.Height}}",
					"--weight", "{{.Weight}}",
				},
				Apply: []string{
					"python3", "apply_clothing.py",
					"--doll", "{{.Doll}}",
					"--img", "{{.Image}}",
					"--out", "{{.Out}}",
					"--type", "{{.ClothingType}}",
				},
				Timeout: 5 * time.Minute,
			},
		},
		Database: DatabaseConfig{ConnectAttempts: 5},
		Metrics:  MetricsConfig{Path: "/metrics"},
		Reload: ReloadConfig{
			Watch:      []string{"."},
			Extensions: []string{".go", ".yaml", ".yml"},
		},
	}
}

// Addr is host:port to listen.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

func (c Config) Validate() error {
	if c.Server.Port < 0 || 65535 < c.Server.Port {
		return fmt.Errorf("%w: server.port out of range: %d", ErrInvalidConfig, c.Server.Port)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("%w: server.shutdown_timeout is negative", ErrInvalidConfig)
	}

	if c.Database.ConnectAttempts < 1 {
		return fmt.Errorf("%w: database.connect_attempts should be positive", ErrInvalidConfig)
	}

	if c.Metrics.Enabled {
		if !path.IsAbs(c.Metrics.Path) || path.Clean(c.Metrics.Path) != c.Metrics.Path {
			return fmt.Errorf(
				"%w: metrics.path should be clean absolute path: %s",
				ErrInvalidConfig, c.Metrics.Path,
			)
		}
	}

	if c.Dolls.Enabled {
		d := c.Dolls
		if d.StorageDir == "" {
			return fmt.Errorf("%w: dolls.storage_dir is empty", ErrInvalidConfig)
		}
		if len(d.Generator.Create) == 0 {
			return fmt.Errorf("%w: dolls.generator.create is empty", ErrInvalidConfig)
		}
		if len(d.Generator.Apply) == 0 {
			return fmt.Errorf("%w: dolls.generator.apply is empty", ErrInvalidConfig)
		}
		if d.Generator.Timeout <= 0 {
			return fmt.Errorf("%w: dolls.generator.timeout should be positive", ErrInvalidConfig)
		}
		u, err := url.Parse(d.PublicURL)
		if err != nil {
			return fmt.Errorf("%w: dolls.public_url: %w", ErrInvalidConfig, err)
		}
		if !u.IsAbs() || u.Host == "" {
			return fmt.Errorf("%w: dolls.public_url is not absolute: %s", ErrInvalidConfig, d.PublicURL)
		}
	}

	return nil
}

// Load reads configuration from the file.
//
// Items not in the file take values from Default().
// When filepath is empty, it returns Default() as it is.
func Load(filepath string) (Config, error) {
	if filepath == "" {
		return Default(), nil
	}
	content, err := os.ReadFile(filepath)
	if err != nil {
		return Config{}, err
	}
	return Unmarshal(content)
}

func Unmarshal(content []byte) (Config, error) {
	out := Default()
	if err := yaml.Unmarshal(content, &out); err != nil {
		return Config{}, err
	}
	if err := out.Validate(); err != nil {
		return Config{}, err
	}
	return out, nil
}
