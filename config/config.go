package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Annany2002/nebula-apigen/internal/core"
	"github.com/Annany2002/nebula-apigen/internal/logger"
)

var (
	customLog = logger.NewLogger()
	validate  = validator.New()
)

// Supported data sources
const (
	DBTypeSQLite   = "sqlite"
	DBTypePostgres = "postgres"
	DBTypeMySQL    = "mysql"
	DBTypeMongoDB  = "mongodb"
)

// Generation modes
const (
	ModeSQL = "sql"
	ModeORM = "orm"
)

// PlaceholderSecret is the value written to generated .env templates.
const PlaceholderSecret = "change-me"

// Config holds every setting of a run. It is built once by Load and never
// mutated afterwards; components receive it by pointer.
type Config struct {
	// Data source
	DBType          string `validate:"required,oneof=sqlite postgres mysql mongodb"`
	DBHost          string
	DBPort          int `validate:"gte=0,lte=65535"`
	DBName          string
	DBUser          string
	DBPassword      string
	DBURI           string
	DBSchema        string
	SQLitePath      string
	ConnectTimeout  time.Duration `validate:"gt=0"`
	MongoSampleSize int           `validate:"gte=1"`

	// Generation
	OutputDir  string `validate:"required"`
	Mode       string `validate:"oneof=sql orm"`
	EnableAuth bool
	Overwrite  bool
	ModulePath string `validate:"required"`
	APITitle   string
	APIVersion string

	// JWT
	JWTSecret          string
	JWTAlgorithm       string        `validate:"oneof=HS256 HS384 HS512"`
	AccessTokenExpire  time.Duration `validate:"gt=0"`
	RefreshTokenExpire time.Duration `validate:"gt=0"`

	// Serve mode
	ServerPort         string
	RateLimitPerMinute int `validate:"gte=0"`
	SchemaFile         string
}

// IsRelational reports whether the data source is a SQL database.
func (c *Config) IsRelational() bool {
	return c.DBType != DBTypeMongoDB
}

// envKeys maps viper keys to the environment variables they are read from.
var envKeys = map[string]string{
	"db_type":                         "DB_TYPE",
	"db_host":                         "DB_HOST",
	"db_port":                         "DB_PORT",
	"db_name":                         "DB_NAME",
	"db_user":                         "DB_USER",
	"db_password":                     "DB_PASSWORD",
	"db_uri":                          "DB_URI",
	"db_schema":                       "DB_SCHEMA",
	"sqlite_path":                     "SQLITE_PATH",
	"db_connect_timeout":              "DB_CONNECT_TIMEOUT",
	"mongo_sample_size":               "MONGO_SAMPLE_SIZE",
	"output_dir":                      "OUTPUT_DIR",
	"generation_mode":                 "GENERATION_MODE",
	"enable_auth":                     "ENABLE_AUTH",
	"overwrite":                       "OVERWRITE",
	"module_path":                     "MODULE_PATH",
	"api_title":                       "API_TITLE",
	"api_version":                     "API_VERSION",
	"jwt_secret_key":                  "JWT_SECRET_KEY",
	"jwt_algorithm":                   "JWT_ALGORITHM",
	"jwt_access_token_expire_minutes": "JWT_ACCESS_TOKEN_EXPIRE_MINUTES",
	"jwt_refresh_token_expire_days":   "JWT_REFRESH_TOKEN_EXPIRE_DAYS",
	"server_port":                     "SERVER_PORT",
	"rate_limit_per_minute":           "RATE_LIMIT_PER_MINUTE",
	"schema_file":                     "SCHEMA_FILE",
}

// flagKeys maps command-line flags to viper keys.
var flagKeys = map[string]string{
	"db-type":     "db_type",
	"db-uri":      "db_uri",
	"sqlite-path": "sqlite_path",
	"output":      "output_dir",
	"mode":        "generation_mode",
	"auth":        "enable_auth",
	"overwrite":   "overwrite",
	"module":      "module_path",
	"port":        "server_port",
	"schema":      "schema_file",
}

// NewFlagSet declares the command-line flags understood by Load.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "path to a YAML config file")
	fs.String("db-type", "", "data source type: sqlite, postgres, mysql, mongodb")
	fs.String("db-uri", "", "full connection URI (overrides host/port/user settings)")
	fs.String("sqlite-path", "", "path to the SQLite database file")
	fs.StringP("output", "o", "", "output directory for the generated project")
	fs.String("mode", "", "generation mode: sql or orm")
	fs.Bool("auth", false, "emit JWT authentication scaffolding")
	fs.Bool("overwrite", false, "write into a non-empty output directory")
	fs.String("module", "", "Go module path of the generated project")
	fs.String("port", "", "port for serve mode")
	fs.String("schema", "", "schema manifest to serve instead of introspecting")
	return fs
}

// LoadConfig parses args with a fresh flag set and loads the configuration.
func LoadConfig(args []string) (*Config, error) {
	fs := NewFlagSet("apigen")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return Load(fs)
}

// Load builds the configuration from defaults, an optional YAML config file,
// the .env file and process environment, and finally the parsed flags.
// It uses a .env file for local development if present (ignored in production).
func Load(fs *pflag.FlagSet) (*Config, error) {
	customLog.Println("Loading configuration...")

	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			customLog.Warnf("Warning: Error loading .env file: %v", err)
		}
	}

	v := viper.New()
	setDefaults(v)

	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env var %s to key %s: %w", env, key, err)
		}
	}

	if fs != nil {
		for flag, key := range flagKeys {
			if f := fs.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s to key %s: %w", flag, key, err)
				}
			}
		}
		if path, _ := fs.GetString("config"); path != "" {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
			customLog.Printf("Config file loaded: %s", path)
		}
	}

	cfg, err := fromViper(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.JWTSecret == PlaceholderSecret {
		customLog.Warnln("WARNING: JWT_SECRET_KEY is set to the default placeholder!")
	}
	customLog.Printf("Configuration loaded. Source: %s, Output: %s, Mode: %s, Auth: %v",
		cfg.DBType, cfg.OutputDir, cfg.Mode, cfg.EnableAuth)
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db_connect_timeout", 5)
	v.SetDefault("mongo_sample_size", 100)
	v.SetDefault("output_dir", "generated_api")
	v.SetDefault("generation_mode", ModeSQL)
	v.SetDefault("api_title", "Generated API")
	v.SetDefault("api_version", "1.0.0")
	v.SetDefault("jwt_algorithm", "HS256")
	v.SetDefault("jwt_access_token_expire_minutes", 30)
	v.SetDefault("jwt_refresh_token_expire_days", 7)
	v.SetDefault("server_port", "8080")
	v.SetDefault("rate_limit_per_minute", 0)
}

func fromViper(v *viper.Viper) (*Config, error) {
	uri := strings.TrimSpace(v.GetString("db_uri"))
	dbType := NormalizeDBType(v.GetString("db_type"))
	if dbType == "" && uri != "" {
		inferred, err := InferDBType(uri)
		if err != nil {
			return nil, err
		}
		dbType = inferred
	}

	cfg := &Config{
		DBType:             dbType,
		DBHost:             v.GetString("db_host"),
		DBPort:             v.GetInt("db_port"),
		DBName:             v.GetString("db_name"),
		DBUser:             v.GetString("db_user"),
		DBPassword:         v.GetString("db_password"),
		DBURI:              uri,
		DBSchema:           v.GetString("db_schema"),
		SQLitePath:         v.GetString("sqlite_path"),
		ConnectTimeout:     time.Duration(v.GetInt("db_connect_timeout")) * time.Second,
		MongoSampleSize:    v.GetInt("mongo_sample_size"),
		OutputDir:          v.GetString("output_dir"),
		Mode:               strings.ToLower(v.GetString("generation_mode")),
		EnableAuth:         v.GetBool("enable_auth"),
		Overwrite:          v.GetBool("overwrite"),
		ModulePath:         v.GetString("module_path"),
		APITitle:           v.GetString("api_title"),
		APIVersion:         v.GetString("api_version"),
		JWTSecret:          v.GetString("jwt_secret_key"),
		JWTAlgorithm:       strings.ToUpper(v.GetString("jwt_algorithm")),
		AccessTokenExpire:  time.Duration(v.GetInt("jwt_access_token_expire_minutes")) * time.Minute,
		RefreshTokenExpire: time.Duration(v.GetInt("jwt_refresh_token_expire_days")) * 24 * time.Hour,
		ServerPort:         strings.TrimPrefix(v.GetString("server_port"), ":"),
		RateLimitPerMinute: v.GetInt("rate_limit_per_minute"),
		SchemaFile:         v.GetString("schema_file"),
	}

	if cfg.DBPort == 0 {
		cfg.DBPort = DefaultPort(cfg.DBType)
	}
	if cfg.DBType == DBTypeSQLite && cfg.SQLitePath == "" {
		// sqlite_path, then the URI, then db_name, then database.db
		cfg.SQLitePath = sqlitePathFromURI(uri)
		if cfg.SQLitePath == "" {
			cfg.SQLitePath = cfg.DBName
		}
		if cfg.SQLitePath == "" {
			cfg.SQLitePath = "database.db"
		}
	}
	if cfg.DBType != DBTypeSQLite && cfg.DBName == "" && uri != "" {
		cfg.DBName = databaseFromURI(uri)
	}
	if cfg.ModulePath == "" {
		cfg.ModulePath = DefaultModulePath(cfg.OutputDir)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed '%s' (got %v)", fe.Field(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	switch c.DBType {
	case DBTypePostgres, DBTypeMySQL:
		if c.DBURI == "" && (c.DBHost == "" || c.DBName == "") {
			return fmt.Errorf("invalid configuration: %s needs DB_URI or DB_HOST and DB_NAME", c.DBType)
		}
	case DBTypeMongoDB:
		if c.DBName == "" {
			return errors.New("invalid configuration: mongodb needs DB_NAME (or a database in DB_URI)")
		}
	}
	return nil
}

// NormalizeDBType maps accepted aliases onto the canonical source names.
func NormalizeDBType(dbType string) string {
	switch strings.ToLower(strings.TrimSpace(dbType)) {
	case "sqlite", "sqlite3":
		return DBTypeSQLite
	case "postgres", "postgresql", "pg":
		return DBTypePostgres
	case "mysql", "mariadb":
		return DBTypeMySQL
	case "mongodb", "mongo":
		return DBTypeMongoDB
	default:
		return strings.ToLower(strings.TrimSpace(dbType))
	}
}

// InferDBType derives the data source type from a connection URI scheme.
func InferDBType(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("invalid DB_URI: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql":
		return DBTypePostgres, nil
	case "mysql":
		return DBTypeMySQL, nil
	case "sqlite", "sqlite3", "file":
		return DBTypeSQLite, nil
	case "mongodb", "mongodb+srv":
		return DBTypeMongoDB, nil
	default:
		return "", fmt.Errorf("invalid DB_URI: unknown scheme '%s'", u.Scheme)
	}
}

// DefaultPort returns the conventional port of a data source type.
func DefaultPort(dbType string) int {
	switch dbType {
	case DBTypePostgres:
		return 5432
	case DBTypeMySQL:
		return 3306
	case DBTypeMongoDB:
		return 27017
	default:
		return 0
	}
}

// DefaultModulePath derives a module path from the output directory name.
func DefaultModulePath(outputDir string) string {
	name := core.SanitizeIdentifier(strings.ToLower(filepath.Base(filepath.Clean(outputDir))))
	if name == "" {
		name = "generated_api"
	}
	return "example.com/" + name
}

func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}

func sqlitePathFromURI(uri string) string {
	if uri == "" {
		return ""
	}
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	if u.Opaque != "" {
		return u.Opaque
	}
	return u.Host + u.Path
}
