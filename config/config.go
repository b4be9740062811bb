package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	Port            int
	AuthSecret      string
	MaxUploadSizeMB int
	DataDir         string
	UploadDir       string
	OutputDir       string
	Workers         int
	JobTimeout      time.Duration
	JobMaxAttempts  int
	FFmpegPath      string
	FFprobePath     string
	EditPolicy      string
	BehindProxy     bool
}

func Load() (*Config, error) {
	port, err := strconv.Atoi(getEnv("PORT", "8420"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	maxUploadSizeMB, err := strconv.Atoi(getEnv("MAX_UPLOAD_SIZE_MB", "500"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_SIZE_MB: %w", err)
	}

	workers, err := strconv.Atoi(getEnv("WORKERS", "2"))
	if err != nil {
		return nil, fmt.Errorf("invalid WORKERS: %w", err)
	}

	jobTimeout, err := time.ParseDuration(getEnv("JOB_TIMEOUT", "2h"))
	if err != nil {
		return nil, fmt.Errorf("invalid JOB_TIMEOUT: %w", err)
	}

	jobMaxAttempts, err := strconv.Atoi(getEnv("JOB_MAX_ATTEMPTS", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid JOB_MAX_ATTEMPTS: %w", err)
	}

	authSecret := os.Getenv("AUTH_SECRET")
	if authSecret == "" {
		return nil, fmt.Errorf("AUTH_SECRET is required")
	}

	editPolicy := getEnv("EDIT_POLICY", "supersede")
	if editPolicy != "supersede" && editPolicy != "reject" {
		return nil, fmt.Errorf("invalid EDIT_POLICY %q: must be supersede or reject", editPolicy)
	}

	dataDir := getEnv("DATA_DIR", "/data")

	return &Config{
		Port:            port,
		AuthSecret:      authSecret,
		MaxUploadSizeMB: maxUploadSizeMB,
		DataDir:         dataDir,
		UploadDir:       getEnv("UPLOAD_DIR", filepath.Join(dataDir, "uploads")),
		OutputDir:       getEnv("OUTPUT_DIR", filepath.Join(dataDir, "videos")),
		Workers:         workers,
		JobTimeout:      jobTimeout,
		JobMaxAttempts:  jobMaxAttempts,
		FFmpegPath:      getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:     getEnv("FFPROBE_PATH", "ffprobe"),
		EditPolicy:      editPolicy,
		BehindProxy:     getEnv("BEHIND_PROXY", "") == "true",
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
