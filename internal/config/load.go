package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// KILN_HARDWARE_MEMORY or KILN_STORAGE_NAME.
const EnvPrefix = "KILN"

// SetDefaults registers the built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("hardware.memory", 1024)
	v.SetDefault("hardware.cores", 2)
	v.SetDefault("hardware.sockets", 1)
	v.SetDefault("hardware.cpu", "host")
	v.SetDefault("network.bridge", "vmbr0")
	v.SetDefault("network.ipv4", "dhcp")
	v.SetDefault("network.ipv6", "auto")
	v.SetDefault("naming.prefix", "template")
	v.SetDefault("naming.start_id", 900)
	v.SetDefault("disk.size", "10G")
	v.SetDefault("storage.name", "")
	v.SetDefault("storage.snippets", "")
	v.SetDefault("policy", string(PolicyBestEffort))
	v.SetDefault("catalog", "")
	v.SetDefault("workdir", ".")
	v.SetDefault("checklist", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// NewViper returns a viper instance with defaults, environment overrides and
// config file search paths set up. When configFile is non-empty it is used
// instead of searching for kiln.yaml.
func NewViper(configFile string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("kiln")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/kiln/")
	}
	return v
}

// Load reads the config file (if any) into v and returns the normalized,
// validated configuration. A missing kiln.yaml is not an error; a missing
// explicitly named file is.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
