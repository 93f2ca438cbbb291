// Package config loads flipdeck's settings from defaults, an optional YAML
// file, FLIPDECK_* environment variables and command-line flags, in that order
// of increasing precedence.
package config

import (
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "FLIPDECK_"

// Scheduler state backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Config struct {
	HTTP      HTTP      `koanf:"http"`
	DB        DB        `koanf:"db"`
	Quiz      Quiz      `koanf:"quiz"`
	SRS       SRS       `koanf:"srs"`
	Redis     Redis     `koanf:"redis"`
	Log       Log       `koanf:"log"`
	RateLimit RateLimit `koanf:"ratelimit"`
}

type HTTP struct {
	Addr string `koanf:"addr" validate:"required"`
}

type DB struct {
	Path string `koanf:"path" validate:"required"`
}

type Quiz struct {
	QuestionCount int `koanf:"question_count" validate:"min=1"`
}

type SRS struct {
	Backend string `koanf:"backend" validate:"oneof=sqlite redis memory"`
}

type Redis struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db" validate:"min=0"`
}

type Log struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

type RateLimit struct {
	Max int `koanf:"max" validate:"min=0"`
}

// Defaults returns the built-in settings keyed by their dotted path.
func Defaults() map[string]any {
	return map[string]any{
		"http.addr":           ":8080",
		"db.path":             "data/collections.db",
		"quiz.question_count": 5,
		"srs.backend":         BackendSQLite,
		"redis.addr":          "localhost:6379",
		"redis.password":      "",
		"redis.db":            0,
		"log.level":           "info",
		"log.format":          "text",
		"ratelimit.max":       100,
	}
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"addr":           "http.addr",
	"db":             "db.path",
	"question-count": "quiz.question_count",
	"srs-backend":    "srs.backend",
	"redis-addr":     "redis.addr",
	"log-level":      "log.level",
	"log-format":     "log.format",
}

// RegisterFlags adds the flags Load understands to fs. Defaults shown in
// help text come from Defaults; an unset flag never overrides other sources.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.StringP("config", "c", "", "path to a YAML config file")
	fs.String("addr", d["http.addr"].(string), "HTTP listen address")
	fs.String("db", d["db.path"].(string), "SQLite database file")
	fs.Int("question-count", d["quiz.question_count"].(int), "default number of quiz questions")
	fs.String("srs-backend", d["srs.backend"].(string), "study schedule backend: sqlite, redis or memory")
	fs.String("redis-addr", d["redis.addr"].(string), "Redis address for the redis backend")
	fs.String("log-level", d["log.level"].(string), "log level: debug, info, warn or error")
	fs.String("log-format", d["log.format"].(string), "log format: text or json")
}

// Options controls where Load looks for settings.
type Options struct {
	// File is a YAML file; empty means the --config flag, if any.
	File string
	// DotEnv is loaded into the environment before it is read. Missing is fine.
	DotEnv string
	// Flags holds flags registered with RegisterFlags. May be nil.
	Flags *pflag.FlagSet
}

// Load builds and validates a Config.
func Load(opts Options) (*Config, error) {
	if opts.DotEnv != "" {
		if err := godotenv.Load(opts.DotEnv); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to load %s", opts.DotEnv)
		}
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load defaults")
	}

	path := opts.File
	if path == "" && opts.Flags != nil {
		path, _ = opts.Flags.GetString("config")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errors.Wrap(err, "failed to read environment")
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, errors.Wrap(err, "failed to read flags")
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey turns FLIPDECK_QUIZ_QUESTION_COUNT into quiz.question_count.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(key, "_", ".", 1)
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	if c.SRS.Backend == BackendRedis && c.Redis.Addr == "" {
		return errors.New("invalid config: redis.addr is required for the redis backend")
	}
	return nil
}
