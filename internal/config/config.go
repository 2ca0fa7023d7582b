package config

import (
	"strings"
	"time"

	"github.com/florinutz/rowsync/dialect"
	"github.com/florinutz/rowsync/mapping"
	"github.com/florinutz/rowsync/source"
)

type Config struct {
	Source          SourceConfig      `mapstructure:"source"`
	Destination     DestinationConfig `mapstructure:"destination"`
	Mapping         map[string]string `mapstructure:"mapping"` // source field -> destination column
	PollInterval    time.Duration     `mapstructure:"poll_interval"`
	RecoveryBackoff time.Duration     `mapstructure:"recovery_backoff"`
	DeadLetter      DeadLetterConfig  `mapstructure:"dead_letter"`
	LogLevel        string            `mapstructure:"log_level"`
	LogFormat       string            `mapstructure:"log_format"`
	LogFile         string            `mapstructure:"log_file"`
	MetricsAddr     string            `mapstructure:"metrics_addr"`
	ShutdownTimeout time.Duration     `mapstructure:"shutdown_timeout"`
	OTel            OTelConfig        `mapstructure:"otel"`
}

type SourceConfig struct {
	Driver         string        `mapstructure:"driver"` // "odbc" or "sqlite"
	FilePath       string        `mapstructure:"file_path"`
	Password       string        `mapstructure:"password"`
	DSN            string        `mapstructure:"dsn"` // overrides file_path/password
	Table          string        `mapstructure:"table"`
	IdentityField  string        `mapstructure:"identity_field"`
	Fields         []string      `mapstructure:"fields"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type DestinationConfig struct {
	Driver         string        `mapstructure:"driver"` // "mysql", "postgres" or "sqlite"
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	Database       string        `mapstructure:"database"`
	URL            string        `mapstructure:"url"` // overrides host/port/user/password/database
	Table          string        `mapstructure:"table"`
	IdentityColumn string        `mapstructure:"identity_column"`
	FlagColumns    []string      `mapstructure:"flag_columns"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type DeadLetterConfig struct {
	Type string `mapstructure:"type"` // "log", "file" or "none"
	Path string `mapstructure:"path"`
}

type OTelConfig struct {
	Exporter    string  `mapstructure:"exporter"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

func Default() Config {
	return Config{
		Source: SourceConfig{
			Driver:         "odbc",
			Table:          "t_d_SwipeRecord",
			IdentityField:  "f_RecID",
			Fields:         []string{},
			ConnectTimeout: 1 * time.Second,
		},
		Destination: DestinationConfig{
			Driver:         "mysql",
			Host:           "localhost",
			Port:           3306,
			Table:          "access_logs",
			IdentityColumn: "raw_id",
			FlagColumns:    []string{"in_out"},
			ConnectTimeout: 10 * time.Second,
		},
		Mapping:         map[string]string{},
		PollInterval:    10 * time.Second,
		RecoveryBackoff: 5 * time.Second,
		DeadLetter: DeadLetterConfig{
			Type: "log",
		},
		LogLevel:        "info",
		LogFormat:       "text",
		ShutdownTimeout: 5 * time.Second,
		OTel: OTelConfig{
			Exporter:    "none",
			SampleRatio: 1.0,
		},
	}
}

// BuildMapping validates the field selection against the mapping.
func (c Config) BuildMapping() (*mapping.Mapping, error) {
	return mapping.New(c.Source.Fields, c.columns(), c.Source.IdentityField, c.Destination.IdentityColumn)
}

// columns re-keys the mapping by the selected field names. viper lowercases
// map keys read from config files, so keys are matched case-insensitively.
func (c Config) columns() map[string]string {
	out := make(map[string]string, len(c.Mapping))
	for k, v := range c.Mapping {
		key := k
		for _, f := range c.Source.Fields {
			if strings.EqualFold(f, k) {
				key = f
				break
			}
		}
		out[key] = v
	}
	return out
}

// SourceSettings returns the fetcher configuration.
func (c Config) SourceSettings() source.Config {
	return source.Config{
		Driver:         c.Source.Driver,
		DSN:            c.Source.DSN,
		Path:           c.Source.FilePath,
		Password:       c.Source.Password,
		Table:          c.Source.Table,
		ConnectTimeout: c.Source.ConnectTimeout,
	}
}

// DSN returns the destination connection string: the configured URL, or for
// MySQL one built from the discrete connection settings.
func (d DestinationConfig) DSN() string {
	if d.URL != "" || d.Driver != "mysql" {
		return d.URL
	}
	return dialect.MySQLDSN(d.Host, d.Port, d.User, d.Password, d.Database, d.ConnectTimeout)
}
