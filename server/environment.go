package server

import (
	"github.com/dekarrin/grocer"
	"github.com/dekarrin/grocer/internal/config"
)

// LoadConfig loads a configuration from file and then applies any GROCER_DB_*
// environment variable overrides to it. Defaults are not filled; New does that
// when the config is used.
func LoadConfig(file string) (grocer.Config, error) {
	cfg, err := config.Load(file)
	if err != nil {
		return cfg, err
	}
	return config.ApplyEnv(cfg)
}

// EnvConfig returns an empty config with only the GROCER_DB_* environment
// variable overrides applied, for use when there is no config file.
func EnvConfig() (grocer.Config, error) {
	return config.ApplyEnv(grocer.Config{})
}

// DumpConfig dumps the given config to bytes. If Format is not set on the
// Config, YAML is assumed.
func DumpConfig(cfg grocer.Config) []byte {
	return config.Dump(cfg)
}
