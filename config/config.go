package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// DefaultPath is where the node looks for its config file.
const DefaultPath = "config/config.yaml"

// Config is the node configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	LevelDB LevelDBConfig `mapstructure:"leveldb"`
	Wallet  WalletConfig  `mapstructure:"wallet"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	AppLogFile string `mapstructure:"app_log_file"`
	Level      string `mapstructure:"level"`
}

type LevelDBConfig struct {
	Path string `mapstructure:"path"`
}

type WalletConfig struct {
	// DefaultMinConf applies to wallet queries that do not pass minconf.
	DefaultMinConf int64 `mapstructure:"default_minconf"`
}

// Load reads the config file at path, falling back to defaults for missing
// keys. Any key can be overridden by an env var such as DPOW_SERVER_PORT.
func Load(v *viper.Viper, path string) (*Config, error) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("log.app_log_file", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("leveldb.path", "data/dpow")
	v.SetDefault("wallet.default_minconf", 1)

	v.SetEnvPrefix("dpow")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return nil, errors.Errorf("invalid server.port %d", cfg.Server.Port)
	}
	if cfg.LevelDB.Path == "" {
		return nil, errors.New("leveldb.path must be set")
	}
	if cfg.Wallet.DefaultMinConf < 0 {
		return nil, errors.Errorf("invalid wallet.default_minconf %d", cfg.Wallet.DefaultMinConf)
	}
	return &cfg, nil
}
