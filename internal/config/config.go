// Package config holds node configuration. The platform fee recipient is
// deliberately injected here rather than hard-coded next to the pot logic,
// and is validated once at startup.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	// DefaultPotCreationFee is 0.1 native unit in base denomination.
	DefaultPotCreationFee uint64 = 100_000_000

	DefaultListenAddr = "tcp://127.0.0.1:26658"
	DefaultTransport  = "socket"

	configFile = "config.toml"
	envPrefix  = "OCL"
)

type Config struct {
	// DeveloperWallet is the fixed platform account paid the flat fee at
	// pot creation. create_pot fails unless the candidate fee recipient
	// equals this address.
	DeveloperWallet string `mapstructure:"developer_wallet"`

	// PotCreationFee is the flat fee, in base units of the native
	// currency, transferred from the pot authority to DeveloperWallet.
	PotCreationFee uint64 `mapstructure:"pot_creation_fee"`

	ListenAddr string `mapstructure:"listen_addr"`
	Transport  string `mapstructure:"transport"`
}

func Default() Config {
	return Config{
		PotCreationFee: DefaultPotCreationFee,
		ListenAddr:     DefaultListenAddr,
		Transport:      DefaultTransport,
	}
}

func (c Config) Validate() error {
	if c.DeveloperWallet == "" {
		return fmt.Errorf("developer_wallet must be set")
	}
	if c.PotCreationFee == 0 {
		return fmt.Errorf("pot_creation_fee must be > 0")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must be set")
	}
	switch c.Transport {
	case "socket", "grpc":
	default:
		return fmt.Errorf("transport must be socket or grpc, got %q", c.Transport)
	}
	return nil
}

// Load reads <home>/config.toml, applying defaults and OCL_* environment
// overrides. A missing file is fine; a missing developer wallet is not.
func Load(home string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(filepath.Join(home, configFile))
	v.SetConfigType("toml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	cfg := Default()
	v.SetDefault("developer_wallet", cfg.DeveloperWallet)
	v.SetDefault("pot_creation_fee", cfg.PotCreationFee)
	v.SetDefault("listen_addr", cfg.ListenAddr)
	v.SetDefault("transport", cfg.Transport)

	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	// Read keys explicitly: viper's Unmarshal does not consult
	// AutomaticEnv, per-key Get does.
	cfg.DeveloperWallet = v.GetString("developer_wallet")
	cfg.PotCreationFee = v.GetUint64("pot_creation_fee")
	cfg.ListenAddr = v.GetString("listen_addr")
	cfg.Transport = v.GetString("transport")
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
