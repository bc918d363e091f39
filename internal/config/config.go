package config

import (
	"fmt"
	"strings"

	"gaia-strings/internal/parser"
	"gaia-strings/internal/stringtable"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment variables, e.g. GAIA_STRINGS_LOG_LEVEL.
const EnvPrefix = "GAIA_STRINGS"

// DefaultRoot is scanned when no root is given.
const DefaultRoot = "./extracted/system"

// Config keys. Flags use the same names with dashes.
const (
	KeyRoot        = "root"
	KeyExtension   = "extension"
	KeyEncoding    = "encoding"
	KeyFormat      = "format"
	KeyLogLevel    = "log_level"
	KeyLogFormat   = "log_format"
	KeyMetricsFile = "metrics_file"
)

type Config struct {
	Root        string
	Extension   string
	Encoding    string
	Format      stringtable.Format
	LogLevel    zerolog.Level
	LogFormat   string
	MetricsFile string
}

// Load reads configuration from a .env file, GAIA_STRINGS_* environment
// variables and, when flags is not nil, command-line flags. Explicitly set
// flags win over the environment, which wins over defaults.
func Load(flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using environment variables")
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyRoot, DefaultRoot)
	v.SetDefault(KeyExtension, parser.DefaultExtension)
	v.SetDefault(KeyEncoding, "utf-8")
	v.SetDefault(KeyFormat, string(stringtable.FormatJSON))
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeyMetricsFile, "")

	if flags != nil {
		for _, key := range []string{KeyExtension, KeyEncoding, KeyFormat, KeyLogLevel, KeyLogFormat, KeyMetricsFile} {
			f := flags.Lookup(strings.ReplaceAll(key, "_", "-"))
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", f.Name, err)
			}
		}
	}

	format, err := stringtable.ParseFormat(v.GetString(KeyFormat))
	if err != nil {
		return nil, err
	}

	level, err := zerolog.ParseLevel(strings.ToLower(v.GetString(KeyLogLevel)))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", v.GetString(KeyLogLevel), err)
	}

	logFormat := strings.ToLower(v.GetString(KeyLogFormat))
	if logFormat != "console" && logFormat != "json" {
		return nil, fmt.Errorf("invalid log format %q (want console or json)", logFormat)
	}

	ext := v.GetString(KeyExtension)
	if ext == "" {
		ext = parser.DefaultExtension
	}

	return &Config{
		Root:        v.GetString(KeyRoot),
		Extension:   ext,
		Encoding:    v.GetString(KeyEncoding),
		Format:      format,
		LogLevel:    level,
		LogFormat:   logFormat,
		MetricsFile: v.GetString(KeyMetricsFile),
	}, nil
}
