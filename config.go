package grocer

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DBType is the type of a Database connection.
type DBType string

func (dbt DBType) String() string {
	if dbt == "" {
		return string(DatabaseNone)
	}
	return string(dbt)
}

const (
	DatabaseNone     DBType = "none"
	DatabaseSQLite   DBType = "sqlite"
	DatabasePostgres DBType = "postgres"
	DatabaseMySQL    DBType = "mysql"
)

// ParseDBType parses a string found in a connection string into a DBType.
func ParseDBType(s string) (DBType, error) {
	sLower := strings.ToLower(s)

	switch sLower {
	case DatabaseSQLite.String():
		return DatabaseSQLite, nil
	case DatabasePostgres.String(), "postgresql", "pg":
		return DatabasePostgres, nil
	case DatabaseMySQL.String():
		return DatabaseMySQL, nil
	case DatabaseNone.String(), "":
		return DatabaseNone, nil
	default:
		return DatabaseNone, fmt.Errorf("DB type not one of 'sqlite', 'postgres', or 'mysql': %q", s)
	}
}

// DatabaseConfig contains configuration settings for connecting to a
// persistence layer.
type DatabaseConfig struct {
	// Type is the type of database the config refers to. It also determines
	// which of its other fields are valid.
	Type DBType

	// DataDir is the path on disk to a directory to use to store data in. This
	// is only applicable for SQLite.
	DataDir string

	// Host is the hostname of the DB server. Only applicable for PostgreSQL
	// and MySQL.
	Host string

	// Port is the port of the DB server. Defaults to 5432 for PostgreSQL and
	// 3306 for MySQL.
	Port int

	// Name is the name of the database on the DB server.
	Name string

	// User is the user to log in to the DB server as.
	User string

	// Password is the password of User.
	Password string

	// SSLMode is the PostgreSQL sslmode setting. Defaults to "disable".
	SSLMode string

	// MaxConns is the maximum number of open connections in the pool. It is
	// always 1 for SQLite.
	MaxConns int

	// MaxIdleConns is the number of connections kept open while idle.
	MaxIdleConns int

	// ConnMaxLifetime is how long a pooled connection may be reused.
	ConnMaxLifetime time.Duration
}

// FillDefaults returns a new DatabaseConfig identical to db but with unset
// values set to their defaults.
func (db DatabaseConfig) FillDefaults() DatabaseConfig {
	newDB := db

	if newDB.Type == DatabaseNone || newDB.Type == "" {
		newDB.Type = DatabaseSQLite
	}

	switch newDB.Type {
	case DatabaseSQLite:
		if newDB.DataDir == "" {
			newDB.DataDir = "data"
		}
		newDB.MaxConns = 1
		newDB.MaxIdleConns = 1
	case DatabasePostgres:
		if newDB.Port == 0 {
			newDB.Port = 5432
		}
		if newDB.SSLMode == "" {
			newDB.SSLMode = "disable"
		}
	case DatabaseMySQL:
		if newDB.Port == 0 {
			newDB.Port = 3306
		}
	}

	if newDB.MaxConns == 0 {
		newDB.MaxConns = 10
	}
	if newDB.MaxIdleConns == 0 {
		newDB.MaxIdleConns = 2
	}
	if newDB.ConnMaxLifetime == 0 {
		newDB.ConnMaxLifetime = 30 * time.Minute
	}

	return newDB
}

// Validate returns an error if the DatabaseConfig does not have the correct
// fields set. Its type will be checked to ensure that it is a valid type to use
// and any fields necessary for connecting to that type of DB are also checked.
func (db DatabaseConfig) Validate() error {
	switch db.Type {
	case DatabaseSQLite:
		if db.DataDir == "" {
			return fmt.Errorf("DataDir not set to path")
		}
	case DatabasePostgres, DatabaseMySQL:
		if db.Host == "" {
			return fmt.Errorf("host: must not be empty")
		}
		if db.Port < 1 || db.Port > 65535 {
			return fmt.Errorf("port: %d is not a valid port number", db.Port)
		}
		if db.Name == "" {
			return fmt.Errorf("name: must not be empty")
		}
		if db.User == "" {
			return fmt.Errorf("user: must not be empty")
		}
	case DatabaseNone, "":
		return fmt.Errorf("'none' DB is not valid")
	default:
		return fmt.Errorf("unknown database type: %q", db.Type.String())
	}

	if db.MaxConns < 1 {
		return fmt.Errorf("max_conns: must be greater than 0")
	}
	if db.MaxIdleConns < 0 {
		return fmt.Errorf("max_idle: must not be negative")
	}
	if db.ConnMaxLifetime < 0 {
		return fmt.Errorf("conn_max_lifetime: must not be negative")
	}

	return nil
}

// ParseDBConnString parses a database connection string of the form
// "engine:params" into a valid DatabaseConfig object.
//
// Supported database types and a sample string containing valid configurations
// for each are shown below. Placeholder values are between angle brackets,
// optional parts are between square brackets. Ordering of parameters does not
// matter. A comma or equals sign inside a value is escaped with a backslash.
//
// * SQLite3 DB file: "sqlite:</path/to/db/dir>"
// * PostgreSQL: "postgres:host=<host>,name=<dbname>,user=<user>[,password=<pass>][,port=<port>][,sslmode=<mode>]"
// * MySQL: "mysql:host=<host>,name=<dbname>,user=<user>[,password=<pass>][,port=<port>]"
func ParseDBConnString(s string) (DatabaseConfig, error) {
	var paramStr string
	dbParts := strings.SplitN(s, ":", 2)

	if len(dbParts) == 2 {
		paramStr = strings.TrimSpace(dbParts[1])
	}

	// parse the first section into a type, from there we can determine if
	// further params are required.
	dbEng, err := ParseDBType(strings.TrimSpace(dbParts[0]))
	if err != nil {
		return DatabaseConfig{}, fmt.Errorf("unsupported DB engine: %w", err)
	}

	switch dbEng {
	case DatabaseSQLite:
		// there must be options
		if paramStr == "" {
			return DatabaseConfig{}, fmt.Errorf("sqlite DB engine requires path to data directory after ':'")
		}

		// the only option is the DB path, as long as the param str isn't
		// literally blank, it can be used.
		dd := filepath.FromSlash(paramStr)
		return DatabaseConfig{Type: DatabaseSQLite, DataDir: dd}, nil
	case DatabasePostgres, DatabaseMySQL:
		if paramStr == "" {
			return DatabaseConfig{}, fmt.Errorf("%s DB engine requires connection params after ':'", dbEng)
		}

		params, err := parseParamsMap(paramStr)
		if err != nil {
			return DatabaseConfig{}, err
		}

		db := DatabaseConfig{Type: dbEng}
		for k, v := range params {
			switch k {
			case "host":
				db.Host = v
			case "port":
				db.Port, err = strconv.Atoi(v)
				if err != nil {
					return DatabaseConfig{}, fmt.Errorf("port: %q is not a valid port number", v)
				}
			case "name", "dbname", "database":
				db.Name = v
			case "user":
				db.User = v
			case "password":
				db.Password = v
			case "sslmode":
				if dbEng != DatabasePostgres {
					return DatabaseConfig{}, fmt.Errorf("sslmode is only supported for postgres")
				}
				db.SSLMode = v
			default:
				return DatabaseConfig{}, fmt.Errorf("unsupported param for %s DB engine: %q", dbEng, k)
			}
		}

		if db.Host == "" {
			return DatabaseConfig{}, fmt.Errorf("%s DB engine params missing server in key 'host'", dbEng)
		}
		if db.Name == "" {
			return DatabaseConfig{}, fmt.Errorf("%s DB engine params missing database in key 'name'", dbEng)
		}
		return db, nil
	case DatabaseNone:
		// not allowed
		return DatabaseConfig{}, fmt.Errorf("cannot specify DB engine 'none'")
	default:
		// unknown
		return DatabaseConfig{}, fmt.Errorf("unknown DB engine: %q", dbEng.String())
	}
}

func parseParamsMap(paramStr string) (map[string]string, error) {
	seqs := splitWithEscaped(paramStr, ',')
	if len(seqs) < 1 {
		return nil, fmt.Errorf("not a map format string: %q", paramStr)
	}

	params := map[string]string{}
	for idx, kv := range seqs {
		parsed := splitWithEscaped(kv, '=')
		if len(parsed) != 2 {
			return nil, fmt.Errorf("param %d: not a kv-pair: %q", idx, kv)
		}
		k := strings.ToLower(strings.TrimSpace(unescape(parsed[0])))
		v := unescape(parsed[1])
		params[k] = v
	}

	return params, nil
}

// splitWithEscaped splits s on every sep that is not preceded by a backslash.
// Escape sequences are kept in the returned parts so that they survive a second
// split; call unescape on the final parts.
func splitWithEscaped(s string, sep rune) []string {
	var split []string
	var cur strings.Builder

	sr := []rune(s)
	for i := 0; i < len(sr); i++ {
		ch := sr[i]

		if ch == '\\' && i+1 < len(sr) {
			cur.WriteRune(ch)
			cur.WriteRune(sr[i+1])
			i++
			continue
		}

		if ch == sep {
			split = append(split, cur.String())
			cur.Reset()
			continue
		}

		cur.WriteRune(ch)
	}

	if cur.Len() > 0 || len(split) > 0 {
		split = append(split, cur.String())
	}

	return split
}

func unescape(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}

	var sb strings.Builder
	sr := []rune(s)
	for i := 0; i < len(sr); i++ {
		if sr[i] == '\\' && i+1 < len(sr) {
			i++
		}
		sb.WriteRune(sr[i])
	}
	return sb.String()
}

// Format is a supported configuration file format.
type Format int

const (
	NoFormat Format = iota
	JSON
	YAML
	TOML
)

func (f Format) String() string {
	switch f {
	case NoFormat:
		return "none"
	case JSON:
		return "JSON"
	case YAML:
		return "YAML"
	case TOML:
		return "TOML"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// Extensions returns the file extensions, without the leading dot, that files
// of Format f use.
func (f Format) Extensions() []string {
	switch f {
	case JSON:
		return []string{"json", "jsn"}
	case YAML:
		return []string{"yaml", "yml"}
	case TOML:
		return []string{"toml"}
	default:
		return nil
	}
}

// LogConfig contains logging options.
type LogConfig struct {
	// Enabled is whether to enable built-in logging statements.
	Enabled bool

	// Provider must be the name of one of the logging providers. If set to
	// None or unset, it will default to Jellog.
	Provider LogProvider

	// File to log to. If not set, all logging will be done to stderr and it
	// will display all logging statements. If set, the file will receive all
	// levels of log messages and stderr will show only those of Info level or
	// higher.
	File string
}

func (log LogConfig) FillDefaults() LogConfig {
	newLog := log

	if newLog.Provider == NoLog {
		newLog.Provider = Jellog
	}

	return newLog
}

func (log LogConfig) Validate() error {
	if log.Provider == NoLog {
		return fmt.Errorf("provider: must not be empty")
	}

	return nil
}

// Globals are the values of global configuration values from the top level
// config. These values are shared with every API.
type Globals struct {

	// Port is the port that the server will listen on. It will default to 8000
	// if none is given.
	Port int

	// Address is the internet address that the server will listen on. It will
	// default to "localhost" if none is given.
	Address string

	// URIBase is the base path that all APIs are rooted on. It will default to
	// "/", which is equivalent to being directly on root.
	URIBase string
}

func (g Globals) FillDefaults() Globals {
	newG := g

	if newG.Port == 0 {
		newG.Port = 8000
	}
	if newG.Address == "" {
		newG.Address = "localhost"
	}
	if newG.URIBase == "" {
		newG.URIBase = "/"
	}

	return newG
}

func (g Globals) Validate() error {
	if g.Port < 1 || g.Port > 65535 {
		return fmt.Errorf("port: %d is not a valid port number", g.Port)
	}
	if g.Address == "" {
		return fmt.Errorf("address: must not be empty")
	}
	if err := validateBaseURI(g.URIBase); err != nil {
		return fmt.Errorf("base: %w", err)
	}

	return nil
}

// Config is a complete configuration for a server. It contains all parameters
// that can be used to configure its operation.
type Config struct {

	// Globals is all variables shared with initialization of all APIs.
	Globals Globals

	// DB is the configuration to use for connecting to the database. If not
	// provided, it will be set to a SQLite database in ./data.
	DB DatabaseConfig

	// Log is used to configure the built-in logging system.
	Log LogConfig

	// HideDBErrors replaces store error text in responses with a generic
	// message. The full error is still logged.
	HideDBErrors bool

	// Format is the format of config, used in Dump.
	Format Format
}

// FillDefaults returns a new Config identical to cfg but with unset values
// set to their defaults.
func (cfg Config) FillDefaults() Config {
	newCFG := cfg

	newCFG.Globals = newCFG.Globals.FillDefaults()
	newCFG.DB = newCFG.DB.FillDefaults()
	newCFG.Log = newCFG.Log.FillDefaults()

	return newCFG
}

// Validate returns an error if the Config has invalid field values set. Empty
// and unset values are considered invalid; if defaults are intended to be used,
// call Validate on the return value of FillDefaults.
func (cfg Config) Validate() error {
	if err := cfg.Globals.Validate(); err != nil {
		return err
	}
	if err := cfg.Log.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := cfg.DB.Validate(); err != nil {
		return fmt.Errorf("db: %w", err)
	}

	return nil
}

func validateBaseURI(base string) error {
	if strings.ContainsRune(base, '{') {
		return fmt.Errorf("contains disallowed char \"{\"")
	}
	if strings.ContainsRune(base, '}') {
		return fmt.Errorf("contains disallowed char \"}\"")
	}
	if strings.Contains(base, "//") {
		return fmt.Errorf("contains disallowed double-slash \"//\"")
	}
	return nil
}
