// Package config loads the luposidx settings from the environment.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/adrg/xdg"
	"github.com/pkg/errors"
	"go-simpler.org/env"

	"github.com/luposdate/luposdate-sub008/internal/index"
	"github.com/luposdate/luposdate-sub008/pkg/collation"
)

// AppName names the data directory and the help text.
const AppName = "luposidx"

// Config holds every setting of the tool.
type Config struct {
	DataDir   string `env:"LUPOS_DATA_DIR" usage:"directory of the badger store (default $XDG_DATA_HOME/luposidx)"`
	PageSize  int    `env:"LUPOS_PAGE_SIZE" default:"8192" usage:"size in bytes of one leaf page"`
	Order     string `env:"LUPOS_ORDER" default:"SPO" usage:"collation order of new triple indices: SPO SOP PSO POS OSP OPS"`
	Codec     string `env:"LUPOS_CODEC" default:"interned" usage:"entry layout of new indices: raw interned string scalar buckets generic"`
	Lenient   bool   `env:"LUPOS_LENIENT" default:"false" usage:"log corrupt pages and stop reading them instead of failing"`
	Verbosity int    `env:"LUPOS_VERBOSITY" default:"0" usage:"log verbosity, 0 is info, higher shows page level detail"`
}

// Env is a key/value map of environment variables usable as an env.Source.
type Env map[string]string

// LookupEnv implements env.Source.
func (e Env) LookupEnv(key string) (string, bool) {
	v, ok := e[key]
	return v, ok
}

// ReadEnvFile parses KEY=value lines. Blank lines and lines starting with #
// are skipped.
func ReadEnvFile(path string) (Env, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from the configuration
	if err != nil {
		return nil, err
	}
	e := make(Env)
	for n, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			return nil, errors.Errorf("%s:%d: expected KEY=value", path, n+1)
		}
		e[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return e, nil
}

// New loads the configuration from the process environment. A .env file in
// the data directory, if present, fills in variables the environment leaves
// unset.
func New() (*Config, error) {
	cfg, err := LoadFrom(nil)
	if err != nil {
		return nil, err
	}
	file, err := ReadEnvFile(filepath.Join(cfg.DataDir, ".env"))
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	for _, kv := range os.Environ() {
		k, v, _ := strings.Cut(kv, "=")
		file[k] = v
	}
	return LoadFrom(file)
}

// LoadFrom loads the configuration from src, or from the process environment
// when src is nil, and validates it.
func LoadFrom(src env.Source) (*Config, error) {
	cfg := &Config{}
	var opts *env.Options
	if src != nil {
		opts = &env.Options{Source: src}
	}
	if err := env.Load(cfg, opts); err != nil {
		return nil, errors.Wrap(err, "load environment")
	}
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Join(xdg.DataHome, AppName)
	}
	return cfg, cfg.Validate()
}

// Validate checks the values that have a closed set of choices.
func (c *Config) Validate() error {
	if c.PageSize < 64 {
		return errors.Errorf("LUPOS_PAGE_SIZE %d is below 64", c.PageSize)
	}
	o, err := collation.Parse(c.Order)
	if err != nil {
		return errors.Wrap(err, "LUPOS_ORDER")
	}
	c.Order = o.String()
	if _, err := index.ParseCodecKind(c.Codec); err != nil {
		return errors.Wrap(err, "LUPOS_CODEC")
	}
	if c.Verbosity < 0 {
		return errors.Errorf("LUPOS_VERBOSITY %d is negative", c.Verbosity)
	}
	return nil
}

// CollationOrder returns the parsed LUPOS_ORDER.
func (c *Config) CollationOrder() collation.Order {
	o, _ := collation.Parse(c.Order)
	return o
}

// CodecKind returns the parsed LUPOS_CODEC.
func (c *Config) CodecKind() index.CodecKind {
	return index.CodecKind(c.Codec)
}

// KV is one environment variable.
type KV struct{ Key, Value string }

// EnvKV lists the env tagged fields of cfg as variables sorted by name.
func EnvKV(cfg Config) []KV {
	t, v := reflect.TypeOf(cfg), reflect.ValueOf(cfg)
	var kvs []KV
	for i := 0; i < t.NumField(); i++ {
		k := t.Field(i).Tag.Get("env")
		if k == "" {
			continue
		}
		kvs = append(kvs, KV{k, fmt.Sprint(v.Field(i).Interface())})
	}
	sort.Slice(kvs, func(i, j int) bool { return kvs[i].Key < kvs[j].Key })
	return kvs
}

// PrintEnv writes the configuration in .env format.
func PrintEnv(cfg *Config, w io.Writer) {
	for _, kv := range EnvKV(*cfg) {
		_, _ = fmt.Fprintf(w, "%s=%s\n", kv.Key, kv.Value)
	}
}

// PrintHelp lists the variables, their defaults and their meaning.
func PrintHelp(cfg *Config, w io.Writer) {
	_, _ = fmt.Fprintf(w, "Environment variables that configure %s:\n\n", AppName)
	env.Usage(cfg, w, &env.Options{})
	_, _ = fmt.Fprintf(w, "\nA .env file in LUPOS_DATA_DIR is loaded for variables the environment leaves unset.\n"+
		"Write the current configuration there with\n\n\t%s env > %s\n\n", AppName, filepath.Join(cfg.DataDir, ".env"))
}
