package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"mediafetch/internal/mirror"
)

// Config holds all server settings in correct types.
type Config struct {
	Addr     string
	LogLevel slog.Level

	OutputsDir string
	DataDir    string

	MaxVideoHeight  int
	FFmpegLocations []string
	SecondaryTool   string

	WhisperBin      string
	WhisperModel    string
	WhisperLanguage string
	WhisperGPU      bool

	ScanCacheTTL    time.Duration
	ArtifactTTL     time.Duration
	CleanupInterval time.Duration

	Mirror mirror.Config
}

// Load reads an optional .env file and then the environment.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Addr:     getEnv("APP_ADDR", ":8000"),
		LogLevel: parseLevel(getEnv("LOG_LEVEL", "info")),

		OutputsDir: getEnv("OUTPUTS_DIR", "downloads"),
		DataDir:    getEnv("DATA_DIR", "data"),

		MaxVideoHeight:  getEnvAsInt("MAX_VIDEO_HEIGHT", 2160),
		FFmpegLocations: getEnvAsList("FFMPEG_LOCATIONS", defaultFFmpegLocations()),
		SecondaryTool:   getEnv("SECONDARY_TOOL", "gallery-dl"),

		WhisperBin:      getEnv("WHISPER_BIN", "whisper-cli"),
		WhisperModel:    getEnv("WHISPER_MODEL", filepath.Join("models", "ggml-base.bin")),
		WhisperLanguage: getEnv("WHISPER_LANGUAGE", "es"),
		WhisperGPU:      getEnvAsBool("WHISPER_GPU", true),

		ScanCacheTTL:    getEnvAsDuration("SCAN_CACHE_TTL", 6*time.Hour),
		ArtifactTTL:     getEnvAsDuration("ARTIFACT_TTL", 24*time.Hour),
		CleanupInterval: getEnvAsDuration("CLEANUP_INTERVAL", 30*time.Minute),

		Mirror: mirror.Config{
			Backend:        getEnv("MIRROR_BACKEND", ""),
			Prefix:         getEnv("MIRROR_PREFIX", ""),
			S3Bucket:       getEnv("MIRROR_S3_BUCKET", ""),
			S3Region:       getEnv("MIRROR_S3_REGION", ""),
			S3AccessKey:    getEnv("MIRROR_S3_ACCESS_KEY", ""),
			S3SecretKey:    getEnv("MIRROR_S3_SECRET_KEY", ""),
			S3Endpoint:     getEnv("MIRROR_S3_ENDPOINT", ""),
			GCSBucket:      getEnv("MIRROR_GCS_BUCKET", ""),
			GCSCredentials: getEnv("MIRROR_GCS_CREDENTIALS", ""),
			SFTPHost:       getEnv("MIRROR_SFTP_HOST", ""),
			SFTPPort:       getEnv("MIRROR_SFTP_PORT", "22"),
			SFTPUser:       getEnv("MIRROR_SFTP_USER", ""),
			SFTPPassword:   getEnv("MIRROR_SFTP_PASSWORD", ""),
			SFTPPrivateKey: getEnv("MIRROR_SFTP_PRIVATE_KEY", ""),
			SFTPHostKey:    getEnv("MIRROR_SFTP_HOST_KEY", ""),
		},
	}

	validate(cfg)
	return cfg
}

func defaultFFmpegLocations() []string {
	dirs := []string{"bin", filepath.Join("ffmpeg", "bin"), "/usr/local/bin", "/opt/homebrew/bin"}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".local", "bin"))
	}
	return dirs
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if val, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return val
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if val, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return val
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("90m") or bare seconds.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	var out []string
	for _, p := range filepath.SplitList(raw) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// validate resets values that would break the server.
func validate(cfg *Config) {
	if cfg.MaxVideoHeight < 144 {
		slog.Warn("MAX_VIDEO_HEIGHT too small, using 2160", "value", cfg.MaxVideoHeight)
		cfg.MaxVideoHeight = 2160
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 30 * time.Minute
	}
}
