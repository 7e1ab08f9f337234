package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. ACCOUNTS_HTTP_PORT
const EnvPrefix = "ACCOUNTS_"

// Store drivers
const (
	DriverFirestore = "firestore"
	DriverPostgres  = "postgres"
	DriverSQLite    = "sqlite"
	DriverNeo4j     = "neo4j"
)

// this is a pointer so that if someone attempts to use it before loading it will
// panic and force them to load it first.
// it is also private so that it cannot be modified after loading.
var _loaded *Config

// Config is the main configuration structure
type Config struct {
	Common Common `yaml:"common"`
}

// Load loads the configuration following proper precedence:
// defaults → config file → .env file → environment variables
func Load() error {
	cfg := defaultConfig
	_loaded = &cfg

	configFile := os.Getenv(EnvPrefix + "CONFIG_FILE")
	if configFile == "" {
		configFile = "accounts.yaml"
	}

	log.Printf("Attempting to load config file: %s", configFile)

	if err := LoadFromFile(configFile); err != nil {
		log.Printf("Failed to load config file: %v, using defaults", err)
	} else {
		log.Printf("Successfully loaded config from file: %s", configFile)
	}

	// .env is optional; variables already set in the environment win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Failed to load .env file: %v", err)
	}

	if err := ApplyEnvOverrides(); err != nil {
		return err
	}

	if err := _loaded.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log.Printf("Final config - store driver: %s, HTTP: %s:%d",
		_loaded.Common.Store.Driver,
		_loaded.Common.Http.Host,
		_loaded.Common.Http.Port)
	return nil
}

func LoadDefault() {
	config := defaultConfig
	_loaded = &config
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults
	cfg := defaultConfig

	// Merge YAML values over defaults
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	_loaded = &cfg
	return nil
}

// ApplyEnvOverrides overrides loaded values with ACCOUNTS_* variables
func ApplyEnvOverrides() error {
	if _loaded == nil {
		return nil
	}
	if err := env.ParseWithOptions(_loaded, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

var validate = validator.New()

// Validate checks value ranges and the settings the selected store driver needs
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	switch c.Common.Store.Driver {
	case DriverPostgres:
		if c.Common.Postgres.Host == "" || c.Common.Postgres.Database == "" {
			return fmt.Errorf("postgres host and database are required for the postgres driver")
		}
	case DriverSQLite:
		if c.Common.SQLite.Path == "" {
			return fmt.Errorf("sqlite path is required for the sqlite driver")
		}
	case DriverFirestore:
		if c.Common.Firestore.ProjectID == "" {
			return fmt.Errorf("firestore project_id is required for the firestore driver")
		}
	case DriverNeo4j:
		if c.Common.Neo4j.URI == "" {
			return fmt.Errorf("neo4j uri is required for the neo4j driver")
		}
	}
	return nil
}

// set sane defaults for all of the config options. when loading the config from
// the file, any options that are not set will be set to these defaults.
var defaultConfig = Config{
	Common: Common{
		Log: logConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
			Compress:   true,
		},
		Http: httpConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			MaxRequestSize:  1048576,
			ShutdownTimeout: 30,
		},
		Store: storeConfig{
			Driver:           DriverSQLite,
			EnableMigrations: true,
		},
		Postgres: postgresConfig{
			User:               "postgres",
			Password:           "postgres",
			Host:               "localhost",
			Port:               5432,
			Database:           "accounts",
			MaxOpenConnections: 10,
		},
		SQLite: sqliteConfig{
			Path: "accounts.db",
		},
		Firestore: firestoreConfig{
			Collection: "users",
		},
		Neo4j: neo4jConfig{
			Database: "neo4j",
		},
	},
}

type Common struct {
	Log       logConfig       `yaml:"log" envPrefix:"LOG_"`
	Http      httpConfig      `yaml:"http" envPrefix:"HTTP_"`
	Store     storeConfig     `yaml:"store" envPrefix:"STORE_"`
	Postgres  postgresConfig  `yaml:"postgres" envPrefix:"DB_"`
	SQLite    sqliteConfig    `yaml:"sqlite" envPrefix:"SQLITE_"`
	Firestore firestoreConfig `yaml:"firestore" envPrefix:"FIRESTORE_"`
	Neo4j     neo4jConfig     `yaml:"neo4j" envPrefix:"NEO4J_"`
}

type logConfig struct {
	Level      string `yaml:"level" env:"LEVEL" validate:"omitempty,oneof=debug info warn error"`
	Format     string `yaml:"format" env:"FORMAT" validate:"omitempty,oneof=json console"`
	File       string `yaml:"file" env:"FILE"` // optional rotating log file
	MaxSizeMB  int    `yaml:"max_size_mb" env:"MAX_SIZE_MB" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups" env:"MAX_BACKUPS" validate:"gte=0"`
	MaxAgeDays int    `yaml:"max_age_days" env:"MAX_AGE_DAYS" validate:"gte=0"`
	Compress   bool   `yaml:"compress" env:"COMPRESS"`
}

type httpConfig struct {
	Host            string `yaml:"host" env:"HOST"`
	Port            int    `yaml:"port" env:"PORT" validate:"min=1,max=65535"`
	MaxRequestSize  int64  `yaml:"max_request_size" env:"MAX_REQUEST_SIZE" validate:"gte=0"`
	ShutdownTimeout int    `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" validate:"gte=0"` // seconds
}

type storeConfig struct {
	Driver           string `yaml:"driver" env:"DRIVER" validate:"required,oneof=firestore postgres sqlite neo4j"`
	EnableMigrations bool   `yaml:"enable_migrations" env:"ENABLE_MIGRATIONS"`
}

type postgresConfig struct {
	User               string `yaml:"user" env:"USER"`
	Password           string `yaml:"password" env:"PASSWORD"`
	Host               string `yaml:"host" env:"HOST"`
	Port               int    `yaml:"port" env:"PORT" validate:"min=1,max=65535"`
	Database           string `yaml:"database" env:"NAME"`
	MaxOpenConnections int    `yaml:"max_open_connections" env:"MAX_OPEN_CONNECTIONS" validate:"gte=0"`
}

func (c postgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		url.QueryEscape(c.Database),
	)
}

type sqliteConfig struct {
	Path string `yaml:"path" env:"PATH"` // file path or ":memory:"
}

type firestoreConfig struct {
	ProjectID       string `yaml:"project_id" env:"PROJECT_ID"`
	DatabaseID      string `yaml:"database_id" env:"DATABASE_ID"`
	Collection      string `yaml:"collection" env:"COLLECTION"`
	CredentialsFile string `yaml:"credentials_file" env:"CREDENTIALS_FILE"`
	EmulatorHost    string `yaml:"emulator_host" env:"EMULATOR_HOST"`
}

type neo4jConfig struct {
	URI      string `yaml:"uri" env:"URI"`
	Username string `yaml:"username" env:"USERNAME"`
	Password string `yaml:"password" env:"PASSWORD"`
	Database string `yaml:"database" env:"DATABASE"`
}

// there should be a getter for each top level field in the config struct.
// these getters will panic if the config has not been loaded.

func Logger() logConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Log
}

func Http() httpConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Http
}

func Store() storeConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Store
}

func Postgres() postgresConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Postgres
}

func SQLite() sqliteConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.SQLite
}

func Firestore() firestoreConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Firestore
}

func Neo4j() neo4jConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Neo4j
}

// Get returns the full configuration
func Get() *Config {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded
}
