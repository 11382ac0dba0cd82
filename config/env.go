package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

// Config holds the tracker settings read from the environment
type Config struct {
	ResolumeHost       string
	ResolumePort       int
	ListenHost         string
	ListenPort         int
	QueryTimeout       time.Duration
	QueryRetries       int
	PlayingWindow      time.Duration
	ClipExistThreshold int
	LogLevel           log.Level
	MetricsAddr        string
}

// LoadEnv loads environment variables from .env files in the working directory
func LoadEnv() {
	files := []string{".env", ".env.local"}
	loaded := make([]string, 0, len(files))
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Overload(file); err != nil {
			log.Warnf("Failed to load %s: %v", file, err)
			continue
		}
		loaded = append(loaded, file)
	}
	if len(loaded) == 0 {
		log.Debug("No local env files loaded; relying on process environment")
	} else {
		log.Debugf("Loaded env files: %s", strings.Join(loaded, ", "))
	}
}

// Load reads the configuration from the process environment
func Load() Config {
	return Config{
		ResolumeHost:       GetEnv("RESOLUME_HOST", "127.0.0.1"),
		ResolumePort:       GetEnvInt("RESOLUME_PORT", 7000),
		ListenHost:         GetEnv("LISTEN_HOST", "0.0.0.0"),
		ListenPort:         GetEnvInt("LISTEN_PORT", 7001),
		QueryTimeout:       GetEnvDuration("QUERY_TIMEOUT", 250*time.Millisecond),
		QueryRetries:       GetEnvInt("QUERY_RETRIES", 0),
		PlayingWindow:      GetEnvDuration("PLAYING_WINDOW", 100*time.Millisecond),
		ClipExistThreshold: GetEnvInt("CLIP_EXIST_THRESHOLD", 3),
		LogLevel:           GetLogLevel(),
		MetricsAddr:        GetEnv("METRICS_ADDR", ""),
	}
}

// GetEnv gets an environment variable with a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt gets an integer environment variable with a default value
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetEnvBool gets a boolean environment variable with a default value
func GetEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetEnvDuration gets a duration such as "250ms" with a default value
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetLogLevel gets the log level from LOG_LEVEL, defaulting to info
func GetLogLevel() log.Level {
	level, err := log.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL")))
	if err != nil {
		return log.InfoLevel
	}
	return level
}
