// Package config loads process configuration from the environment, using
// an os.Getenv-with-defaults convention rather than pulling in an external
// config-file library.
package config

import (
	"os"
	"strconv"
)

// Config holds the process-wide settings cmd/pdfstreamd and the pipeline's
// default options are built from.
type Config struct {
	ListenAddr         string
	DefaultConcurrency int
	DefaultPPI         float64
	MaxRetries         int
	LogMode            string
}

// Load reads configuration from the environment, applying defaults for any
// variable that is unset or does not parse.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:         getEnv("PDFSTREAM_LISTEN_ADDR", ":8080"),
		DefaultConcurrency: getEnvInt("PDFSTREAM_CONCURRENCY", 4),
		DefaultPPI:         getEnvFloat("PDFSTREAM_DEFAULT_PPI", 300),
		MaxRetries:         getEnvInt("PDFSTREAM_MAX_RETRIES", 3),
		LogMode:            getEnv("PDFSTREAM_LOG_MODE", "development"),
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if iv, err := strconv.Atoi(v); err == nil {
			return iv
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if fv, err := strconv.ParseFloat(v, 64); err == nil {
			return fv
		}
	}
	return def
}
