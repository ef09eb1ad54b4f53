package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/travigo/transit-telemetry/pkg/util"
	"gopkg.in/yaml.v3"
)

// Load builds the configuration from the defaults, an optional YAML file and
// TELEMETRY_ environment variables, in that order. An empty path falls back to
// TELEMETRY_CONFIG.
func Load(path string) (*Config, error) {
	cfg := Default()
	env := util.GetPrefixedEnvironmentVariables()

	if path == "" {
		path = env["CONFIG"]
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := applyEnvironment(cfg, env); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func Validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}

func applyEnvironment(cfg *Config, env map[string]string) error {
	stringValues := map[string]*string{
		"UPSTREAM_BASE_URL":      &cfg.Upstream.BaseURL,
		"UPSTREAM_API_KEY":       &cfg.Upstream.APIKey,
		"UPSTREAM_FORMAT":        &cfg.Upstream.Format,
		"MONGODB_CONNECTION":     &cfg.MongoDB.Connection,
		"MONGODB_DATABASE":       &cfg.MongoDB.Database,
		"REDIS_ADDRESS":          &cfg.Redis.Address,
		"REDIS_PASSWORD":         &cfg.Redis.Password,
		"ELASTICSEARCH_ADDRESS":  &cfg.Elasticsearch.Address,
		"ELASTICSEARCH_USERNAME": &cfg.Elasticsearch.Username,
		"ELASTICSEARCH_PASSWORD": &cfg.Elasticsearch.Password,
		"API_LISTEN":             &cfg.API.Listen,
		"API_CORS_ORIGINS":       &cfg.API.CORSOrigins,
		"ARCHIVE_OUTPUT_DIR":     &cfg.Archive.OutputDirectory,
		"ARCHIVE_BUCKET":         &cfg.Archive.BucketName,
	}
	for key, target := range stringValues {
		if env[key] != "" {
			*target = env[key]
		}
	}

	ints := map[string]*int{
		"UPSTREAM_MAX_ATTEMPTS": &cfg.Upstream.MaxAttempts,
		"REDIS_DATABASE":        &cfg.Redis.Database,
	}
	for key, target := range ints {
		if env[key] == "" {
			continue
		}

		n, err := strconv.Atoi(env[key])
		if err != nil {
			return fmt.Errorf("TELEMETRY_%s: %w", key, err)
		}
		*target = n
	}

	durations := map[string]*time.Duration{
		"UPSTREAM_TIMEOUT":   &cfg.Upstream.Timeout,
		"UPSTREAM_MAX_WAIT":  &cfg.Upstream.MaxWait,
		"COLLECTOR_INTERVAL": &cfg.Collector.Interval,
		"CACHE_TTL":          &cfg.Cache.TTL,
		"ARCHIVE_RETENTION":  &cfg.Archive.Retention,
	}
	for key, target := range durations {
		if env[key] == "" {
			continue
		}

		d, err := time.ParseDuration(env[key])
		if err != nil {
			return fmt.Errorf("TELEMETRY_%s: %w", key, err)
		}
		*target = d
	}

	if env["UPSTREAM_ROUTES"] != "" {
		cfg.Upstream.Routes = util.SplitList(env["UPSTREAM_ROUTES"])
	}

	return nil
}
