package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rendis/pdc/internal/jobs"
	"github.com/rendis/pdc/internal/llm"
	"github.com/rendis/pdc/internal/objectstore"
	"github.com/rendis/pdc/internal/scheduler"
	"github.com/rendis/pdc/internal/store"
)

// Config holds all pdc configuration.
// Priority: flags > env vars > .env files > settings.yaml > defaults.
type Config struct {
	ListenAddr  string             `yaml:"listen_addr"`
	LogLevel    string             `yaml:"log_level"`
	LogFormat   string             `yaml:"log_format"`
	PoolSize    int                `yaml:"pool_size"`
	MaxTasks    int                `yaml:"max_tasks"`
	DatabaseURL string             `yaml:"database_url"`
	CacheSize   int                `yaml:"cache_size"`
	CORSOrigins []string           `yaml:"cors_origins"`
	BinDir      string             `yaml:"bin_dir"`
	LLM         llm.Config         `yaml:"llm"`
	Storage     objectstore.Config `yaml:"storage"`
	Retention   scheduler.Config   `yaml:"retention"`
}

func defaultConfig() Config {
	dir := pdcDir()
	return Config{
		ListenAddr:  ":8000",
		LogLevel:    "info",
		LogFormat:   "text",
		PoolSize:    4,
		MaxTasks:    jobs.DefaultMaxTasks,
		DatabaseURL: filepath.Join(dir, "pdc.db"),
		CacheSize:   store.DefaultCacheSize,
		CORSOrigins: []string{
			"http://localhost:5173",
			"http://127.0.0.1:5173",
			"http://tauri.localhost",
			"https://tauri.localhost",
			"tauri://localhost",
		},
		BinDir: filepath.Join(dir, "bin"),
		LLM:    llm.DefaultConfig(),
		Storage: objectstore.Config{
			Mode:     objectstore.ModeDisabled,
			LocalDir: filepath.Join(dir, "objects"),
			Minio: objectstore.MinioConfig{
				Endpoint: "localhost:9000",
				Bucket:   "pdc",
			},
		},
		Retention: scheduler.Config{Cron: scheduler.DefaultCron},
	}
}

func pdcDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pdc"
	}
	return filepath.Join(home, ".pdc")
}

func settingsPath() string {
	return filepath.Join(pdcDir(), "settings.yaml")
}

func pidPath() string {
	return filepath.Join(pdcDir(), "pdc.pid")
}

// defaultEnvFiles are read when no --env-file is given. Missing ones are skipped.
var defaultEnvFiles = []string{".env", "backend/.env"}

// loadConfig layers settings, .env files and the environment over the
// defaults. A missing settings file is not an error; a malformed one is.
func loadConfig(settings string, envFiles []string) (Config, error) {
	cfg := defaultConfig()

	if data, err := os.ReadFile(settings); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", settings, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("read %s: %w", settings, err)
	}

	dotenv, err := readEnvFiles(envFiles)
	if err != nil {
		return cfg, err
	}
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// readEnvFiles merges the existing files; earlier files win, matching
// godotenv.Load.
func readEnvFiles(files []string) (map[string]string, error) {
	merged := make(map[string]string)
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		vals, err := godotenv.Read(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f, err)
		}
		for k, v := range vals {
			if _, seen := merged[k]; !seen {
				merged[k] = v
			}
		}
	}
	return merged, nil
}

type lookupFunc func(key string) (string, bool)

// get returns the first non-empty value among keys.
func (l lookupFunc) get(keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := l(k); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// applyEnv overrides cfg from environment variables. PDC_* names come
// first; the unprefixed names of the original deployment are honoured too.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(dst *string, keys ...string) {
		if v, ok := lookup.get(keys...); ok {
			*dst = v
		}
	}
	var errs []error
	num := func(dst *int, keys ...string) {
		if v, ok := lookup.get(keys...); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %q is not an integer", keys[0], v))
				return
			}
			*dst = n
		}
	}
	dur := func(dst *time.Duration, keys ...string) {
		if v, ok := lookup.get(keys...); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %q is not a duration", keys[0], v))
				return
			}
			*dst = d
		}
	}
	boolean := func(dst *bool, keys ...string) {
		if v, ok := lookup.get(keys...); ok {
			*dst = v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
		}
	}

	str(&cfg.ListenAddr, "PDC_LISTEN_ADDR")
	if host, ok := lookup.get("PDC_BACKEND_HOST"); ok {
		_, port, _ := strings.Cut(cfg.ListenAddr, ":")
		cfg.ListenAddr = host + ":" + port
	}
	if port, ok := lookup.get("PDC_BACKEND_PORT", "PORT"); ok {
		host, _, _ := strings.Cut(cfg.ListenAddr, ":")
		cfg.ListenAddr = host + ":" + port
	}
	str(&cfg.LogLevel, "PDC_LOG_LEVEL", "PDC_BACKEND_LOG_LEVEL")
	str(&cfg.LogFormat, "PDC_LOG_FORMAT")
	num(&cfg.PoolSize, "PDC_POOL_SIZE")
	num(&cfg.MaxTasks, "PDC_MAX_TASKS")
	str(&cfg.DatabaseURL, "PDC_DATABASE_URL", "DATABASE_URL")
	num(&cfg.CacheSize, "PDC_CACHE_SIZE")
	str(&cfg.BinDir, "PDC_BIN_DIR")
	if v, ok := lookup.get("PDC_CORS_ALLOW_ORIGINS", "CORS_ALLOW_ORIGINS"); ok {
		origins, err := parseList(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("CORS_ALLOW_ORIGINS: %w", err))
		} else {
			cfg.CORSOrigins = origins
		}
	}

	str(&cfg.LLM.Mode, "PDC_LLM_MODE", "LLM_MODE")
	str(&cfg.LLM.OpenAICompat.BaseURL, "OPENAI_COMPAT_BASE_URL")
	str(&cfg.LLM.OpenAICompat.APIKey, "OPENAI_COMPAT_API_KEY")
	str(&cfg.LLM.OpenAICompat.Model, "OPENAI_COMPAT_MODEL")
	str(&cfg.LLM.OpenAICompat.APIStyle, "OPENAI_COMPAT_API_STYLE")
	dur(&cfg.LLM.OpenAICompat.Timeout, "OPENAI_COMPAT_TIMEOUT")
	str(&cfg.LLM.Ollama.BaseURL, "OLLAMA_BASE_URL")
	str(&cfg.LLM.Ollama.Model, "OLLAMA_MODEL")
	dur(&cfg.LLM.Ollama.Timeout, "OLLAMA_TIMEOUT")
	str(&cfg.LLM.Gemini.APIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	str(&cfg.LLM.Gemini.Model, "GEMINI_MODEL")
	str(&cfg.LLM.Gemini.BaseURL, "GEMINI_BASE_URL")
	num(&cfg.LLM.Retry.MaxAttempts, "PDC_LLM_MAX_ATTEMPTS")

	str(&cfg.Storage.Mode, "PDC_STORAGE_MODE", "STORAGE_MODE")
	str(&cfg.Storage.LocalDir, "PDC_LOCAL_STORAGE_DIR", "LOCAL_STORAGE_DIR")
	str(&cfg.Storage.Minio.Endpoint, "MINIO_ENDPOINT")
	str(&cfg.Storage.Minio.AccessKey, "MINIO_ACCESS_KEY")
	str(&cfg.Storage.Minio.SecretKey, "MINIO_SECRET_KEY")
	str(&cfg.Storage.Minio.Bucket, "MINIO_BUCKET")
	str(&cfg.Storage.Minio.Region, "MINIO_REGION")
	boolean(&cfg.Storage.Minio.Secure, "MINIO_SECURE")

	str(&cfg.Retention.Cron, "PDC_PURGE_CRON")
	dur(&cfg.Retention.Retention, "PDC_RETENTION")

	return errors.Join(errs...)
}

// parseList accepts a JSON array or a comma-separated list.
func parseList(v string) ([]string, error) {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "[") {
		var out []string
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

// configDiff describes what changed between two configurations.
type configDiff struct {
	HandlerChanged bool     // CORS origins or log settings; applied by swapping the handler
	RestartNeeded  []string // fields that require a server restart
}

func diffConfigs(old, new Config) configDiff {
	var d configDiff
	if !slices.Equal(old.CORSOrigins, new.CORSOrigins) || old.LogLevel != new.LogLevel || old.LogFormat != new.LogFormat {
		d.HandlerChanged = true
	}
	if old.ListenAddr != new.ListenAddr {
		d.RestartNeeded = append(d.RestartNeeded, "listen_addr")
	}
	if old.DatabaseURL != new.DatabaseURL {
		d.RestartNeeded = append(d.RestartNeeded, "database_url")
	}
	if old.PoolSize != new.PoolSize {
		d.RestartNeeded = append(d.RestartNeeded, "pool_size")
	}
	if old.LLM != new.LLM {
		d.RestartNeeded = append(d.RestartNeeded, "llm")
	}
	if old.Storage != new.Storage {
		d.RestartNeeded = append(d.RestartNeeded, "storage")
	}
	if old.Retention != new.Retention {
		d.RestartNeeded = append(d.RestartNeeded, "retention")
	}
	return d
}
