package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Socket SocketConfig
	API    APIConfig
	Upload UploadConfig
	Creds  CredsConfig
}

type SocketConfig struct {
	URL               string
	DialTimeout       time.Duration
	WriteTimeout      time.Duration
	PingInterval      time.Duration
	ReconnectAttempts int
	ReconnectDelay    time.Duration
}

type APIConfig struct {
	BaseURL string
	Key     string
	Timeout time.Duration
}

type UploadConfig struct {
	APIURL       string
	CDNURL       string
	ClientID     string
	ClientSecret string
	MaxBytes     int64
}

type CredsConfig struct {
	Path       string
	SecretPath string
}

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading .env file: %v", err)
	}

	return &Config{
		Socket: SocketConfig{
			URL:               getEnvOrDefault("SOCKET_URL", "ws://localhost:3001"),
			DialTimeout:       getDurationOrDefault("SOCKET_DIAL_TIMEOUT", "10s"),
			WriteTimeout:      getDurationOrDefault("SOCKET_WRITE_TIMEOUT", "10s"),
			PingInterval:      getDurationOrDefault("SOCKET_PING_INTERVAL", "54s"),
			ReconnectAttempts: getIntOrDefault("SOCKET_RECONNECT_ATTEMPTS", 5),
			ReconnectDelay:    getDurationOrDefault("SOCKET_RECONNECT_DELAY", "1s"),
		},
		API: APIConfig{
			BaseURL: getEnvOrDefault("API_URL", "http://localhost:3001"),
			Key:     getEnvOrDefault("API_KEY", ""),
			Timeout: getDurationOrDefault("API_TIMEOUT", "30s"),
		},
		Upload: UploadConfig{
			APIURL:       getEnvOrDefault("UPLOAD_API_URL", ""),
			CDNURL:       getEnvOrDefault("UPLOAD_CDN_URL", ""),
			ClientID:     getEnvOrDefault("UPLOAD_CLIENT_ID", ""),
			ClientSecret: getEnvOrDefault("UPLOAD_CLIENT_SECRET", ""),
			MaxBytes:     int64(getIntOrDefault("UPLOAD_MAX_BYTES", 10*1024*1024)),
		},
		Creds: CredsConfig{
			Path:       getEnvOrDefault("CREDS_PATH", defaultCredsPath("credentials.db")),
			SecretPath: getEnvOrDefault("CREDS_SECRET_PATH", defaultCredsPath("device.secret")),
		},
	}
}

func defaultCredsPath(name string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return name
	}
	return dir + "/vanish-client/" + name
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key, defaultValue string) time.Duration {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		log.Fatalf("Invalid duration for %s: %v", key, err)
	}
	return duration
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Fatalf("Invalid integer for %s: %v", key, err)
	}
	return intValue
}
