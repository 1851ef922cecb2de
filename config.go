package fantoccini

import (
	"fmt"

	"github.com/spf13/viper"
)

// LoadConfig reads endpoint/capabilities/UA/persist settings from a config
// file plus FANTOCCINI_-prefixed environment variables, following the same
// viper setup shape LanternOps-breeze's agent and grafana-k6 use for their
// own top-level config (file + env, env taking precedence). configPath may
// be empty, in which case only environment variables and defaults apply.
func LoadConfig(configPath string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FANTOCCINI")
	v.AutomaticEnv()

	v.SetDefault("endpoint", "http://localhost:4444")
	v.SetDefault("persistent", false)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("loading config %q: %w", configPath, err)
		}
	}

	cfg := Config{
		Endpoint:     v.GetString("endpoint"),
		UserAgent:    v.GetString("user_agent"),
		Persistent:   v.GetBool("persistent"),
		Capabilities: v.GetStringMap("capabilities"),
	}
	if cfg.Capabilities == nil {
		cfg.Capabilities = map[string]interface{}{}
	}
	return cfg, nil
}
