package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// envReader looks keys up by precedence and records keys whose values do not parse.
type envReader struct {
	explicit map[string]string
	system   bool
	dotenv   map[string]string
	invalid  []string
}

func newEnvReader(o loaderOptions) (*envReader, error) {
	dot, err := readDotEnv(o.envFile)
	if err != nil {
		return nil, err
	}
	return &envReader{explicit: o.envMap, system: o.useSystemEnv, dotenv: dot}, nil
}

// raw returns the trimmed value for key, or "" when unset or blank.
func (e *envReader) raw(key string) string {
	if v, ok := e.explicit[key]; ok {
		return strings.TrimSpace(v)
	}
	if e.system {
		if v, ok := os.LookupEnv(key); ok {
			return strings.TrimSpace(v)
		}
	}
	return strings.TrimSpace(e.dotenv[key])
}

func (e *envReader) reject(key, kind string) {
	e.invalid = append(e.invalid, fmt.Sprintf("%s (not a %s)", key, kind))
}

func (e *envReader) str(key, fallback string) string {
	if v := e.raw(key); v != "" {
		return v
	}
	return fallback
}

func (e *envReader) duration(key string, fallback time.Duration) time.Duration {
	v := e.raw(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.reject(key, "duration")
		return fallback
	}
	return d
}

func (e *envReader) integer(key string, fallback int) int {
	v := e.raw(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.reject(key, "number")
		return fallback
	}
	return n
}

func (e *envReader) flag(key string, fallback bool) bool {
	switch strings.ToLower(e.raw(key)) {
	case "":
		return fallback
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		e.reject(key, "boolean")
		return fallback
	}
}

// list splits a comma separated value, dropping blanks.
func (e *envReader) list(key string, fallback ...string) []string {
	var out []string
	for _, part := range strings.Split(e.raw(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

// pairs parses "name=value,name=value". Names are lower-cased; incomplete pairs are skipped.
func (e *envReader) pairs(key string) map[string]string {
	out := map[string]string{}
	for _, entry := range e.list(key) {
		name, value, ok := strings.Cut(entry, "=")
		name, value = strings.ToLower(strings.TrimSpace(name)), strings.TrimSpace(value)
		if ok && name != "" && value != "" {
			out[name] = value
		}
	}
	return out
}

// EnvironmentValues returns the merged environment (dotenv < process env < explicit map) so
// the secret fetcher can be configured before Load runs.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	o := defaultLoaderOptions(opts)
	dot, err := readDotEnv(o.envFile)
	if err != nil {
		return nil, err
	}
	values := make(map[string]string, len(dot)+len(o.envMap))
	for k, v := range dot {
		values[k] = v
	}
	if o.useSystemEnv {
		for _, kv := range os.Environ() {
			if k, v, ok := strings.Cut(kv, "="); ok && strings.TrimSpace(k) != "" {
				values[k] = v
			}
		}
	}
	for k, v := range o.envMap {
		values[k] = v
	}
	return values, nil
}

// readDotEnv loads path with godotenv. A missing file is not an error.
func readDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	values, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return values, nil
}
