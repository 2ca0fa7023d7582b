package config

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// legacyEnv lists the environment variable names used by earlier deployments.
// They are bound next to the ROWSYNC_ prefixed names.
var legacyEnv = map[string]string{
	"source.file_path":     "ACCESS_FILE_PATH",
	"source.password":      "ACCESS_DB_PASSWORD",
	"source.table":         "ACCESS_TABLE_NAME",
	"source.fields":        "ACCESS_SELECTED_FIELDS",
	"mapping":              "FIELD_MAPPING",
	"destination.host":     "MYSQL_HOST",
	"destination.port":     "MYSQL_PORT",
	"destination.user":     "MYSQL_USER",
	"destination.password": "MYSQL_PASS",
	"destination.database": "MYSQL_DB",
	"destination.table":    "MYSQL_TABLE_NAME",
	"poll_interval":        "POLL_INTERVAL",
	"log_file":             "LOG_FILE",
}

// SetDefaults registers every key with its default so that environment
// variables are picked up by Unmarshal even when the key is absent from the
// config file.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("source.driver", d.Source.Driver)
	v.SetDefault("source.file_path", d.Source.FilePath)
	v.SetDefault("source.password", d.Source.Password)
	v.SetDefault("source.dsn", d.Source.DSN)
	v.SetDefault("source.table", d.Source.Table)
	v.SetDefault("source.identity_field", d.Source.IdentityField)
	v.SetDefault("source.fields", d.Source.Fields)
	v.SetDefault("source.connect_timeout", d.Source.ConnectTimeout)

	v.SetDefault("destination.driver", d.Destination.Driver)
	v.SetDefault("destination.host", d.Destination.Host)
	v.SetDefault("destination.port", d.Destination.Port)
	v.SetDefault("destination.user", d.Destination.User)
	v.SetDefault("destination.password", d.Destination.Password)
	v.SetDefault("destination.database", d.Destination.Database)
	v.SetDefault("destination.url", d.Destination.URL)
	v.SetDefault("destination.table", d.Destination.Table)
	v.SetDefault("destination.identity_column", d.Destination.IdentityColumn)
	v.SetDefault("destination.flag_columns", d.Destination.FlagColumns)
	v.SetDefault("destination.connect_timeout", d.Destination.ConnectTimeout)

	v.SetDefault("mapping", d.Mapping)
	v.SetDefault("poll_interval", d.PollInterval)
	v.SetDefault("recovery_backoff", d.RecoveryBackoff)
	v.SetDefault("dead_letter.type", d.DeadLetter.Type)
	v.SetDefault("dead_letter.path", d.DeadLetter.Path)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("log_file", d.LogFile)
	v.SetDefault("metrics_addr", d.MetricsAddr)
	v.SetDefault("shutdown_timeout", d.ShutdownTimeout)
	v.SetDefault("otel.exporter", d.OTel.Exporter)
	v.SetDefault("otel.endpoint", d.OTel.Endpoint)
	v.SetDefault("otel.sample_ratio", d.OTel.SampleRatio)
}

// BindEnv enables ROWSYNC_ prefixed environment variables (source.file_path
// is ROWSYNC_SOURCE_FILE_PATH) plus the legacy unprefixed names.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix("ROWSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := "ROWSYNC_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// Load decodes v into a Config seeded with Default.
func Load(v *viper.Viper) (Config, error) {
	cfg := Default()
	if err := v.Unmarshal(&cfg, viper.DecodeHook(DecodeHook())); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// DecodeHook accepts JSON arrays and objects in string values (for lists and
// the mapping set through the environment), bare numbers of seconds for
// durations, and otherwise behaves like viper's default hook.
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		jsonStringHook(),
		secondsHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

func jsonStringHook() mapstructure.DecodeHookFuncType {
	return func(_ reflect.Type, to reflect.Type, data any) (any, error) {
		s, ok := data.(string)
		if !ok || (to.Kind() != reflect.Slice && to.Kind() != reflect.Map) {
			return data, nil
		}
		s = strings.TrimSpace(s)
		if s == "" || (s[0] != '[' && s[0] != '{') {
			return data, nil
		}
		out := reflect.New(to)
		if err := json.Unmarshal([]byte(s), out.Interface()); err != nil {
			return nil, fmt.Errorf("decode JSON into %s: %w", to, err)
		}
		return out.Elem().Interface(), nil
	}
}

var durationType = reflect.TypeOf(time.Duration(0))

func secondsHook() mapstructure.DecodeHookFuncType {
	return func(_ reflect.Type, to reflect.Type, data any) (any, error) {
		if to != durationType {
			return data, nil
		}
		switch n := data.(type) {
		case int:
			return time.Duration(n) * time.Second, nil
		case int64:
			return time.Duration(n) * time.Second, nil
		case float64:
			return time.Duration(n * float64(time.Second)), nil
		case string:
			if secs, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
				return time.Duration(secs * float64(time.Second)), nil
			}
		}
		return data, nil
	}
}
