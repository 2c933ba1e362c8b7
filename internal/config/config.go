package config

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	appdefaults "github.com/lumivoice/voice-gateway/config"

	"github.com/lumivoice/voice-gateway/internal/logger"
	"github.com/spf13/viper"
)

// BackendConfig describes the upstream assistant backend connection.
type BackendConfig struct {
	URL                string `mapstructure:"url"`
	ClientID           string `mapstructure:"client_id"`
	DeviceID           string `mapstructure:"device_id"`
	AccessToken        string `mapstructure:"access_token"`
	DialTimeoutSeconds int    `mapstructure:"dial_timeout_seconds"`
	ListenMode         string `mapstructure:"listen_mode"`
}

// DialTimeout returns the configured dial timeout as a duration.
func (b BackendConfig) DialTimeout() time.Duration {
	if b.DialTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(b.DialTimeoutSeconds) * time.Second
}

// AudioConfig describes the PCM format spoken on the client socket.
type AudioConfig struct {
	SampleRate int `mapstructure:"sample_rate"`
}

// Config is the resolved gateway configuration.
type Config struct {
	RootDir          string        `mapstructure:"-"`
	HTTPAddr         string        `mapstructure:"http_addr"`
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	Backend          BackendConfig `mapstructure:"backend"`
	Audio            AudioConfig   `mapstructure:"audio"`
	ConversationsDir string        `mapstructure:"conversations_dir"`
	ProfilesDir      string        `mapstructure:"profiles_dir"`
	Profile          string        `mapstructure:"profile"`
	TLSCertPath      string        `mapstructure:"tls_cert_path"`
	TLSKeyPath       string        `mapstructure:"tls_key_path"`
	TLSRequired      bool          `mapstructure:"tls_required"`
	TLSDisable       bool          `mapstructure:"tls_disable"`
	Log              logger.Config `mapstructure:"log"`
}

// Load resolves configuration from the embedded defaults, a conf.yaml
// found at the root dir, and LUMI_* environment variables, in that
// order of precedence.
func Load() (Config, error) {
	rootDir, err := resolveRootDir()
	if err != nil {
		return Config{}, err
	}

	v := newViper()
	v.SetConfigName("conf")
	v.AddConfigPath(rootDir)

	if err := v.ReadConfig(bytes.NewReader(appdefaults.Default)); err != nil {
		return Config{}, fmt.Errorf("load embedded config: %w", err)
	}

	if err := v.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	return finalize(v, rootDir)
}

// LoadFile is Load with an explicit config file path. An empty path
// falls back to Load.
func LoadFile(configPath string) (Config, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		return Load()
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, err
	}

	rootDir := strings.TrimSpace(os.Getenv("LUMI_ROOT_DIR"))
	if rootDir == "" {
		rootDir = filepath.Dir(absPath)
		if filepath.Base(rootDir) == "config" {
			rootDir = filepath.Dir(rootDir)
		}
	}

	v := newViper()
	if err := v.ReadConfig(bytes.NewReader(appdefaults.Default)); err != nil {
		return Config{}, fmt.Errorf("load embedded config: %w", err)
	}

	v.SetConfigFile(absPath)
	if err := v.MergeInConfig(); err != nil {
		return Config{}, err
	}

	return finalize(v, rootDir)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("http_addr", "")
	v.SetDefault("backend.dial_timeout_seconds", 10)
	v.SetDefault("backend.listen_mode", "auto")
	v.SetDefault("audio.sample_rate", 16000)
	v.SetDefault("profile", "default")
	v.SetDefault("tls_required", false)
	v.SetDefault("tls_disable", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.stdout", true)
	v.SetDefault("log.file.enabled", true)
	v.SetDefault("log.file.path", "./data/logs")
	v.SetDefault("log.file.name", "voice-gateway.log")
	v.SetDefault("log.file.max_size_mb", 100)
	v.SetDefault("log.file.max_backups", 5)
	v.SetDefault("log.file.max_age_days", 30)
	v.SetDefault("log.file.compress", true)

	v.SetEnvPrefix("lumi")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

func finalize(v *viper.Viper, rootDir string) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	cfg.RootDir = rootDir
	deriveHTTPAddr(&cfg)
	derivePaths(&cfg)

	return cfg, nil
}

func deriveHTTPAddr(cfg *Config) {
	if cfg.HTTPAddr != "" {
		return
	}
	port := cfg.Port
	if port == 0 {
		port = 8100
	}
	if cfg.Host == "" {
		cfg.HTTPAddr = fmt.Sprintf(":%d", port)
		return
	}
	cfg.HTTPAddr = net.JoinHostPort(cfg.Host, strconv.Itoa(port))
}

func resolveRootDir() (string, error) {
	if root := strings.TrimSpace(os.Getenv("LUMI_ROOT_DIR")); root != "" {
		return filepath.Abs(root)
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := wd
	for i := 0; i < 6; i++ {
		if fileExists(filepath.Join(dir, "conf.yaml")) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return wd, nil
}

func derivePaths(cfg *Config) {
	cfg.ConversationsDir = resolvePath(cfg.RootDir, cfg.ConversationsDir, filepath.Join("data", "conversations"))
	cfg.ProfilesDir = resolvePath(cfg.RootDir, cfg.ProfilesDir, "profiles")
	cfg.TLSCertPath = resolvePath(cfg.RootDir, cfg.TLSCertPath, filepath.Join("certs", "server.crt"))
	cfg.TLSKeyPath = resolvePath(cfg.RootDir, cfg.TLSKeyPath, filepath.Join("certs", "server.key"))
}

func resolvePath(rootDir string, configured string, fallback string) string {
	path := strings.TrimSpace(configured)
	if path == "" {
		path = fallback
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(rootDir, path)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
