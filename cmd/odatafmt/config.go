package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	odata "github.com/nlstn/go-odata-client"
)

// Config holds the settings shared by all commands. Values come from the
// YAML file named by --config and are overridden by explicit flags.
type Config struct {
	Namespace                string `yaml:"namespace"`
	Protocol                 string `yaml:"protocol"`
	EnumPrefixFree           bool   `yaml:"enumPrefixFree"`
	IgnoreUnmappedProperties bool   `yaml:"ignoreUnmappedProperties"`
	Geospatial               bool   `yaml:"geospatial"`
	// Schema is the path of a schema document.
	Schema string `yaml:"schema"`
	// DSN is "sqlite:<path>" or a postgres connection string
	// ("postgres://..." or "postgres:<key=value ...>").
	DSN string `yaml:"dsn"`
}

// loadConfig reads a config document. Unknown fields are rejected.
func loadConfig(r io.Reader) (*Config, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var cfg Config
	if err := decoder.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

func loadConfigFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()
	return loadConfig(f)
}

// settings converts the config into client settings.
func (c *Config) settings() (odata.Settings, error) {
	version, err := odata.ParseVersion(c.Protocol)
	if err != nil {
		return odata.Settings{}, err
	}
	return odata.Settings{
		Namespace:                c.Namespace,
		Version:                  version,
		EnumPrefixFree:           c.EnumPrefixFree,
		IgnoreUnmappedProperties: c.IgnoreUnmappedProperties,
	}, nil
}

// newClient creates a client with the schema the config points at. Without
// a schema or DSN references are emitted verbatim.
func (c *Config) newClient(log *slog.Logger) (*odata.Client, error) {
	settings, err := c.settings()
	if err != nil {
		return nil, err
	}
	client := odata.NewClient(settings)
	client.SetLogger(log)
	if c.Geospatial {
		client.EnableGeospatial()
	}

	model, err := c.loadModel(client.Settings().Namespace)
	if err != nil {
		return nil, err
	}
	if model != nil {
		if err := client.UseSchema(model); err != nil {
			return nil, err
		}
	}
	return client, nil
}

func (c *Config) loadModel(namespace string) (*odata.Model, error) {
	switch {
	case c.Schema != "" && c.DSN != "":
		return nil, fmt.Errorf("schema and dsn may not be combined")
	case c.Schema != "":
		f, err := os.Open(c.Schema)
		if err != nil {
			return nil, fmt.Errorf("failed to open schema: %w", err)
		}
		defer f.Close()
		return odata.LoadSchemaYAML(f)
	case c.DSN != "":
		db, err := openDatabase(c.DSN)
		if err != nil {
			return nil, err
		}
		return odata.SchemaFromDatabase(db, namespace)
	}
	return nil, nil
}

// openDatabase opens the database a DSN names.
func openDatabase(dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(dsn, "sqlite:"):
		dialector = sqlite.Open(strings.TrimPrefix(dsn, "sqlite:"))
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		dialector = postgres.Open(dsn)
	case strings.HasPrefix(dsn, "postgres:"):
		dialector = postgres.Open(strings.TrimPrefix(dsn, "postgres:"))
	default:
		return nil, fmt.Errorf("unsupported dsn %q: expected sqlite:<path> or postgres://", dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}
