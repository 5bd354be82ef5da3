package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Media backends.
const (
	MediaMemory = "memory"
	MediaS3     = "s3"
)

// Config holds all server configuration
type Config struct {
	Port            int
	RedisURL        string
	RedisPassword   string
	MaxSessions     int
	SessionTimeout  time.Duration
	GeminiAPIKey    string
	AllowedOrigins  []string
	KeepAlivePeriod time.Duration

	LiveModel    string
	VoiceName    string
	ContactsFile string

	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string

	MediaBackend      string
	MediaBaseURL      string
	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// LoadConfig loads configuration from environment variables with defaults.
// A missing API key is not an error here; it is reported when a voice
// session tries to connect.
func LoadConfig() (*Config, error) {
	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a variable lookup.
func FromEnv(getenv func(string) string) (*Config, error) {
	config := &Config{
		Port:            8080,
		RedisURL:        "localhost:6379",
		MaxSessions:     100,
		SessionTimeout:  30 * time.Minute,
		AllowedOrigins:  []string{"*"},
		KeepAlivePeriod: 30 * time.Second,
		MQTTTopic:       "holoassist/navigate",
		MQTTClientID:    "holoassist",
		MediaBackend:    MediaMemory,
	}

	// GEMINI_API_KEY, falling back to API_KEY
	config.GeminiAPIKey = getenv("GEMINI_API_KEY")
	if config.GeminiAPIKey == "" {
		config.GeminiAPIKey = getenv("API_KEY")
	}

	var err error
	if config.Port, err = intVar(getenv, "PORT", config.Port); err != nil {
		return nil, err
	}

	if redisURL := getenv("REDIS_URL"); redisURL != "" {
		config.RedisURL = redisURL
	}
	config.RedisPassword = getenv("REDIS_PASSWORD")

	if config.MaxSessions, err = intVar(getenv, "MAX_SESSIONS", config.MaxSessions); err != nil {
		return nil, err
	}

	// SESSION_TIMEOUT (in minutes)
	minutes, err := intVar(getenv, "SESSION_TIMEOUT", int(config.SessionTimeout/time.Minute))
	if err != nil {
		return nil, err
	}
	config.SessionTimeout = time.Duration(minutes) * time.Minute

	// ALLOWED_ORIGINS (comma-separated)
	if origins := getenv("ALLOWED_ORIGINS"); origins != "" {
		config.AllowedOrigins = splitList(origins)
	}

	// KEEPALIVE_PERIOD (in seconds)
	seconds, err := intVar(getenv, "KEEPALIVE_PERIOD", int(config.KeepAlivePeriod/time.Second))
	if err != nil {
		return nil, err
	}
	config.KeepAlivePeriod = time.Duration(seconds) * time.Second

	config.LiveModel = getenv("LIVE_MODEL")
	config.VoiceName = getenv("VOICE_NAME")
	config.ContactsFile = getenv("CONTACTS_FILE")

	config.MQTTBroker = getenv("MQTT_BROKER")
	if topic := getenv("MQTT_TOPIC"); topic != "" {
		config.MQTTTopic = topic
	}
	if id := getenv("MQTT_CLIENT_ID"); id != "" {
		config.MQTTClientID = id
	}
	config.MQTTUsername = getenv("MQTT_USERNAME")
	config.MQTTPassword = getenv("MQTT_PASSWORD")

	// MEDIA_BACKEND ("memory" or "s3")
	if backend := getenv("MEDIA_BACKEND"); backend != "" {
		switch backend {
		case MediaMemory, MediaS3:
			config.MediaBackend = backend
		default:
			return nil, fmt.Errorf("invalid MEDIA_BACKEND: must be 'memory' or 's3'")
		}
	}
	config.MediaBaseURL = getenv("MEDIA_BASE_URL")
	config.S3Bucket = getenv("S3_BUCKET")
	config.S3Region = getenv("S3_REGION")
	config.S3Endpoint = getenv("S3_ENDPOINT")
	config.S3AccessKeyID = getenv("S3_ACCESS_KEY_ID")
	config.S3SecretAccessKey = getenv("S3_SECRET_ACCESS_KEY")
	if config.MediaBackend == MediaS3 && config.S3Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required when MEDIA_BACKEND is 's3'")
	}

	return config, nil
}

func intVar(getenv func(string) string, name string, def int) (int, error) {
	v := getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
