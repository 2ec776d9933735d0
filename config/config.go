// Package config loads backend configuration from defaults, an optional YAML
// file and ETHANI_* environment variables, in increasing precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/ethani/backend/chain"
)

// Database configures the SQLite store.
type Database struct {
	Path string `mapstructure:"path"`
}

// CORS configures allowed browser origins.
type CORS struct {
	Origins []string `mapstructure:"origins"`
}

// Config is the full backend configuration.
type Config struct {
	Host       string       `mapstructure:"host"`
	Port       int          `mapstructure:"port"`
	Database   Database     `mapstructure:"database"`
	CORS       CORS         `mapstructure:"cors"`
	Blockchain chain.Config `mapstructure:"blockchain"`
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8000)
	v.SetDefault("database.path", "ethani.db")
	v.SetDefault("cors.origins", []string{"http://localhost:3000", "http://localhost:8000"})
	v.SetDefault("blockchain.mode", string(chain.ModeReal))
	v.SetDefault("blockchain.rpc_url", chain.DefaultRPCURL)
	v.SetDefault("blockchain.pricing_address", "0xc92fd01c122821Eb2C911d16468B20b07E25abC0")
	v.SetDefault("blockchain.region_address", "0x5836cdDE4D05B0aBDB97AE556a0b9E3971a16143")
}

// Load reads configuration. path may be empty, in which case only defaults
// and environment variables apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ETHANI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
