// Package config loads the pipeline's environment-provided configuration,
// following the same .env-then-os.Getenv-with-defaults pattern used
// elsewhere in this codebase's lineage.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every recognized pipeline option plus the ambient knobs
// this implementation adds (worker process port, log shape).
type Config struct {
	DatabaseURL string

	WorkerBaseURL string
	WorkerMAC     string
	WorkerIP      string

	WakeEnabled        bool
	SleepWorkerAfter   bool
	WakePollTimeout    time.Duration
	WakeProbeTimeout   time.Duration

	BatchSize           int
	Fanout              int
	PerRunLimit         int
	RequestTimeout      time.Duration
	MaxAttemptsPerBatch int
	ShutdownGrace       time.Duration

	SimilarityThreshold float64
	MinMentions         int
	TargetLanguage      string

	WorkerPort int

	LogLevel  string
	LogFormat string
}

// Load reads .env (if present) and then the process environment, applying
// the coordinator's defaults wherever a variable is unset.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("config: no .env file found, using process environment")
	}

	return &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),

		WorkerBaseURL: getEnv("WORKER_BASE_URL", "http://localhost:8001"),
		WorkerMAC:     getEnv("WORKER_MAC", ""),
		WorkerIP:      getEnv("WORKER_IP", ""),

		WakeEnabled:      getEnvAsBool("WAKE_ENABLED", true),
		SleepWorkerAfter: getEnvAsBool("SLEEP_WORKER_AFTER_RUN", false),
		WakePollTimeout:  getEnvAsSeconds("WAKE_POLL_TIMEOUT_SEC", 120),
		WakeProbeTimeout: getEnvAsSeconds("WAKE_PROBE_TIMEOUT_SEC", 2),

		BatchSize:           getEnvAsInt("BATCH_SIZE", 20),
		Fanout:              getEnvAsInt("FANOUT", 4),
		PerRunLimit:         getEnvAsInt("PER_RUN_LIMIT", 100),
		RequestTimeout:      getEnvAsSeconds("REQUEST_TIMEOUT_SEC", 120),
		MaxAttemptsPerBatch: getEnvAsInt("MAX_ATTEMPTS_PER_BATCH", 3),
		ShutdownGrace:       getEnvAsSeconds("SHUTDOWN_GRACE_SEC", 30),

		SimilarityThreshold: getEnvAsFloat("SIMILARITY_THRESHOLD", 0.85),
		MinMentions:         getEnvAsInt("MIN_MENTIONS", 3),
		TargetLanguage:      getEnv("TARGET_LANGUAGE", "eng_Latn"),

		WorkerPort: getEnvAsInt("WORKER_PORT", 8001),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config: invalid int for %s=%q, using default %d", key, raw, fallback)
		return fallback
	}
	return v
}

func getEnvAsFloat(key string, fallback float64) float64 {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("config: invalid float for %s=%q, using default %v", key, raw, fallback)
		return fallback
	}
	return v
}

func getEnvAsBool(key string, fallback bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("config: invalid bool for %s=%q, using default %v", key, raw, fallback)
		return fallback
	}
	return v
}

func getEnvAsSeconds(key string, fallbackSeconds int) time.Duration {
	return time.Duration(getEnvAsInt(key, fallbackSeconds)) * time.Second
}

// Validate reports the first configuration problem that would make a run
// pointless to start (missing DSN, nonsensical sizes).
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("config: DATABASE_URL is required")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("config: BATCH_SIZE must be positive, got %d", c.BatchSize)
	}
	if c.Fanout <= 0 {
		return fmt.Errorf("config: FANOUT must be positive, got %d", c.Fanout)
	}
	if c.MaxAttemptsPerBatch <= 0 {
		return fmt.Errorf("config: MAX_ATTEMPTS_PER_BATCH must be positive, got %d", c.MaxAttemptsPerBatch)
	}
	return nil
}
