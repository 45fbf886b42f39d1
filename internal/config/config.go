// Package config loads server configuration from YAML, JSON, or TOML files and
// the environment.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dekarrin/grocer"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the database section of a loaded
// config. They are applied by ApplyEnv.
const (
	EnvDBHost     = "GROCER_DB_HOST"
	EnvDBPort     = "GROCER_DB_PORT"
	EnvDBName     = "GROCER_DB_NAME"
	EnvDBUser     = "GROCER_DB_USER"
	EnvDBPassword = "GROCER_DB_PASSWORD"
)

type marshaledDatabase struct {
	Type            string `yaml:"type" json:"type" toml:"type"`
	Dir             string `yaml:"dir,omitempty" json:"dir,omitempty" toml:"dir,omitempty"`
	Host            string `yaml:"host,omitempty" json:"host,omitempty" toml:"host,omitempty"`
	Port            int    `yaml:"port,omitempty" json:"port,omitempty" toml:"port,omitempty"`
	Name            string `yaml:"name,omitempty" json:"name,omitempty" toml:"name,omitempty"`
	User            string `yaml:"user,omitempty" json:"user,omitempty" toml:"user,omitempty"`
	Password        string `yaml:"password,omitempty" json:"password,omitempty" toml:"password,omitempty"`
	SSLMode         string `yaml:"sslmode,omitempty" json:"sslmode,omitempty" toml:"sslmode,omitempty"`
	MaxConns        int    `yaml:"max_conns,omitempty" json:"max_conns,omitempty" toml:"max_conns,omitempty"`
	MaxIdle         int    `yaml:"max_idle,omitempty" json:"max_idle,omitempty" toml:"max_idle,omitempty"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime,omitempty" json:"conn_max_lifetime,omitempty" toml:"conn_max_lifetime,omitempty"`
}

type marshaledLog struct {
	Enabled  bool   `yaml:"enabled" json:"enabled" toml:"enabled"`
	Provider string `yaml:"provider" json:"provider" toml:"provider"`
	File     string `yaml:"file,omitempty" json:"file,omitempty" toml:"file,omitempty"`
}

type marshaledErrors struct {
	HideDBErrors bool `yaml:"hide_db_errors" json:"hide_db_errors" toml:"hide_db_errors"`
}

type marshaledConfig struct {
	Listen  string            `yaml:"listen" json:"listen" toml:"listen"`
	Base    string            `yaml:"base" json:"base" toml:"base"`
	DB      marshaledDatabase `yaml:"db" json:"db" toml:"db"`
	Logging marshaledLog      `yaml:"logging" json:"logging" toml:"logging"`
	Errors  marshaledErrors   `yaml:"errors" json:"errors" toml:"errors"`
}

func decode(f grocer.Format, data []byte) (grocer.Config, error) {
	var cfg grocer.Config
	var mc marshaledConfig
	var err error

	switch f {
	case grocer.JSON:
		err = json.Unmarshal(data, &mc)
	case grocer.YAML:
		err = yaml.Unmarshal(data, &mc)
	case grocer.TOML:
		err = toml.Unmarshal(data, &mc)
	default:
		return cfg, fmt.Errorf("cannot unmarshal data in format %q", f.String())
	}

	if err != nil {
		return cfg, err
	}

	cfg.Format = f
	err = unmarshalConfig(&cfg, mc)
	return cfg, err
}

func encode(f grocer.Format, c grocer.Config) ([]byte, error) {
	mc := marshalConfig(c)
	var err error
	var data []byte

	switch f {
	case grocer.JSON:
		data, err = json.MarshalIndent(mc, "", "  ")
	case grocer.YAML:
		data, err = yaml.Marshal(mc)
	case grocer.TOML:
		var buf bytes.Buffer
		err = toml.NewEncoder(&buf).Encode(mc)
		data = buf.Bytes()
	default:
		return nil, fmt.Errorf("cannot marshal data in format %q", f.String())
	}

	return data, err
}

// SupportedFormats returns a list of formats that the config module supports
// decoding. Includes all but NoFormat.
func SupportedFormats() []grocer.Format {
	return []grocer.Format{grocer.JSON, grocer.YAML, grocer.TOML}
}

// DetectFormat detects the format of a given configuration file and returns the
// Format that can decode it. Returns NoFormat if the format could not be
// detected.
func DetectFormat(file string) grocer.Format {
	ext := strings.ToLower(filepath.Ext(file))
	ext = strings.TrimPrefix(ext, ".")

	for _, f := range SupportedFormats() {
		for _, checkedExt := range f.Extensions() {
			checkedExt = strings.ToLower(checkedExt)
			checkedExt = strings.TrimPrefix(checkedExt, ".")
			if ext == checkedExt {
				return f
			}
		}
	}

	return grocer.NoFormat
}

// Dump dumps the configuration into the bytes in a formatted file. This is the
// complete representation of the current state of the Config, and if parsed by
// Load, would result in an equivalent config.
//
// The config will be dumped in the same format it was loaded with, or will
// default to YAML if the cfg was created without loading from a data stream.
//
// This function will cause a panic if there is a problem marshaling the config
// data in its format.
func Dump(cfg grocer.Config) []byte {
	f := cfg.Format
	if f == grocer.NoFormat {
		f = grocer.YAML
	}
	b, err := encode(f, cfg)
	if err != nil {
		panic(fmt.Sprintf("format encoding failed: %v", err))
	}
	return b
}

// Load loads a configuration from a JSON, YAML, or TOML file. The format of the
// file is determined by examining its extension; files ending in .json are
// parsed as JSON files, files ending in .yaml or .yml are parsed as YAML files,
// and files ending in .toml are parsed as TOML files. Other extensions are not
// supported. The extension is not case-sensitive.
//
// The returned config has not had defaults filled or been validated.
func Load(file string) (grocer.Config, error) {
	f := DetectFormat(file)
	if f == grocer.NoFormat {
		var msg strings.Builder

		formats := SupportedFormats()
		for i, f := range formats {
			exts := f.Extensions()
			for j, ext := range exts {
				// if on the last ext of the last format and there was at least
				// one before, add a leading "or "
				if j+1 >= len(exts) && i+1 >= len(formats) && msg.Len() > 0 {
					msg.WriteString("or ")
				}

				msg.WriteRune('.')
				msg.WriteString(ext)

				// if there is at least one more extension, add an ", "
				if j+1 < len(exts) || i+1 < len(formats) {
					msg.WriteString(", ")
				}
			}
		}

		return grocer.Config{}, fmt.Errorf("%s: incompatible format; must be a %s file", file, msg.String())
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return grocer.Config{}, fmt.Errorf("%s: %w", file, err)
	}

	cfg, err := decode(f, data)
	if err != nil {
		return grocer.Config{}, fmt.Errorf("%s: %w", file, err)
	}
	return cfg, nil
}

// ApplyEnv returns a copy of cfg with the database settings replaced by any of
// the GROCER_DB_* environment variables that are set. Setting GROCER_DB_HOST
// while the config has no DB type selects PostgreSQL.
func ApplyEnv(cfg grocer.Config) (grocer.Config, error) {
	newCFG := cfg

	newCFG.DB.Host = getEnv(EnvDBHost, newCFG.DB.Host)
	newCFG.DB.Name = getEnv(EnvDBName, newCFG.DB.Name)
	newCFG.DB.User = getEnv(EnvDBUser, newCFG.DB.User)
	newCFG.DB.Password = getEnv(EnvDBPassword, newCFG.DB.Password)

	if portStr := getEnv(EnvDBPort, ""); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return cfg, fmt.Errorf("%s: %q is not a valid port number", EnvDBPort, portStr)
		}
		newCFG.DB.Port = port
	}

	noType := newCFG.DB.Type == grocer.DatabaseNone || newCFG.DB.Type == ""
	if noType && newCFG.DB.Host != "" {
		newCFG.DB.Type = grocer.DatabasePostgres
	}

	return newCFG, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// unmarshal completely replaces all attributes.
//
// does no validation except that which is required for parsing.
func unmarshalLog(log *grocer.LogConfig, m marshaledLog) error {
	var err error

	log.Enabled = m.Enabled
	log.Provider, err = grocer.ParseLogProvider(m.Provider)
	if err != nil {
		return fmt.Errorf("provider: %w", err)
	}
	log.File = m.File

	return nil
}

// marshal returns the marshaledLog that would re-create Log if passed to
// unmarshal.
func marshalLog(log grocer.LogConfig) marshaledLog {
	return marshaledLog{
		Enabled:  log.Enabled,
		Provider: log.Provider.String(),
		File:     log.File,
	}
}

// unmarshal completely replaces all attributes.
//
// does no validation except that which is required for parsing.
func unmarshalGlobals(cfg *grocer.Globals, m marshaledConfig) error {
	var err error

	// listen address part...
	if m.Listen != "" {
		bindParts := strings.SplitN(m.Listen, ":", 2)
		if len(bindParts) != 2 {
			return fmt.Errorf("listen: not in \"ADDRESS:PORT\" or \":PORT\" format")
		}
		cfg.Address = bindParts[0]
		cfg.Port, err = strconv.Atoi(bindParts[1])
		if err != nil {
			return fmt.Errorf("listen: %q is not a valid port number", bindParts[1])
		}
	}

	// ...and the rest
	cfg.URIBase = m.Base

	return nil
}

// marshalToConfig modifies the given marshaledConfig such that it would
// re-create cfg when it is passed to unmarshal.
func marshalGlobalsToConfig(cfg grocer.Globals, mc *marshaledConfig) {
	mc.Listen = fmt.Sprintf("%s:%d", cfg.Address, cfg.Port)
	mc.Base = cfg.URIBase
}

// unmarshal completely replaces all attributes with the values or missing
// values in the marshaledConfig.
//
// does no validation except that which is required for parsing.
func unmarshalConfig(cfg *grocer.Config, m marshaledConfig) error {
	if err := unmarshalGlobals(&cfg.Globals, m); err != nil {
		return err
	}
	if err := unmarshalDatabase(&cfg.DB, m.DB); err != nil {
		return fmt.Errorf("db: %w", err)
	}
	if err := unmarshalLog(&cfg.Log, m.Logging); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	cfg.HideDBErrors = m.Errors.HideDBErrors

	return nil
}

// marshal converts a config to the marshaledConfig that would recreate it if
// passed to unmarshal.
func marshalConfig(cfg grocer.Config) marshaledConfig {
	mc := marshaledConfig{
		DB:      marshalDatabase(cfg.DB),
		Logging: marshalLog(cfg.Log),
		Errors:  marshaledErrors{HideDBErrors: cfg.HideDBErrors},
	}

	marshalGlobalsToConfig(cfg.Globals, &mc)

	return mc
}

// unmarshal completely replaces all attributes with the values or missing
// values in the marshaledDatabase.
//
// does no validation except that which is required for parsing.
func unmarshalDatabase(db *grocer.DatabaseConfig, m marshaledDatabase) error {
	var err error

	db.Type, err = grocer.ParseDBType(m.Type)
	if err != nil {
		return fmt.Errorf("type: %w", err)
	}

	db.DataDir = m.Dir
	db.Host = m.Host
	db.Port = m.Port
	db.Name = m.Name
	db.User = m.User
	db.Password = m.Password
	db.SSLMode = m.SSLMode
	db.MaxConns = m.MaxConns
	db.MaxIdleConns = m.MaxIdle

	db.ConnMaxLifetime = 0
	if m.ConnMaxLifetime != "" {
		db.ConnMaxLifetime, err = time.ParseDuration(m.ConnMaxLifetime)
		if err != nil {
			return fmt.Errorf("conn_max_lifetime: %w", err)
		}
	}

	return nil
}

// marshal converts db to the marshaledDatabase that would recreate it if
// passed to unmarshal.
func marshalDatabase(db grocer.DatabaseConfig) marshaledDatabase {
	m := marshaledDatabase{
		Type:     db.Type.String(),
		Dir:      db.DataDir,
		Host:     db.Host,
		Port:     db.Port,
		Name:     db.Name,
		User:     db.User,
		Password: db.Password,
		SSLMode:  db.SSLMode,
		MaxConns: db.MaxConns,
		MaxIdle:  db.MaxIdleConns,
	}
	if db.ConnMaxLifetime != 0 {
		m.ConnMaxLifetime = db.ConnMaxLifetime.String()
	}
	return m
}
