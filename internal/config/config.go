// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	HTTPAddr      string
	MaxUploadSize int64
	TmpDir        string
	Enrich        EnrichConfig
}

type EnrichConfig struct {
	APIKey       string
	BaseURL      string
	VisionModel  string
	WhisperModel string
	FigureLabel  string
	// Default enables enrichment for requests that do not say either way.
	Default bool
}

func Load() (*Config, error) {
	httpAddr := getEnv("DOCLENS_HTTP_ADDR", ":8080")
	tmpDir := getEnv("DOCLENS_TMP_DIR", os.TempDir())
	maxUploadStr := getEnv("DOCLENS_MAX_UPLOAD_SIZE", "52428800")

	maxUpload, err := strconv.ParseInt(maxUploadStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid DOCLENS_MAX_UPLOAD_SIZE: %w", err)
	}

	enrichDefault := false
	if v := getEnv("DOCLENS_ENRICH_DEFAULT", ""); v != "" {
		enrichDefault, err = strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid DOCLENS_ENRICH_DEFAULT: %w", err)
		}
	}

	return &Config{
		HTTPAddr:      httpAddr,
		MaxUploadSize: maxUpload,
		TmpDir:        tmpDir,
		Enrich: EnrichConfig{
			APIKey:       getEnv("OPENAI_API_KEY", ""),
			BaseURL:      getEnv("DOCLENS_LLM_BASE_URL", ""),
			VisionModel:  getEnv("DOCLENS_VISION_MODEL", ""),
			WhisperModel: getEnv("DOCLENS_WHISPER_MODEL", ""),
			FigureLabel:  getEnv("DOCLENS_FIGURE_LABEL", ""),
			Default:      enrichDefault,
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
