package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by SAMTALE_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("SAMTALE_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

func MigrationsPath() string {
	p := os.Getenv("MIGRATIONS_PATH")
	if p == "" {
		return "migrations"
	}
	return p
}

// OpsKey returns the shared secret protecting the /internal endpoints.
// Empty means those endpoints are disabled.
func OpsKey() string {
	return os.Getenv("OPS_KEY")
}

// CleanupHour returns the local hour (0-23) for the nightly retention run.
// Defaults to 2 if not set or out of range.
func CleanupHour() int {
	hour, err := strconv.Atoi(os.Getenv("CLEANUP_HOUR"))
	if err != nil || hour < 0 || hour > 23 {
		return 2
	}
	return hour
}

func FreshdeskSubdomain() string {
	return os.Getenv("FRESHDESK_SUBDOMAIN")
}

func FreshdeskAPIKey() string {
	return os.Getenv("FRESHDESK_API_KEY")
}

// PresenceTTL returns how long an agent stays online without a heartbeat.
// Defaults to 60 seconds if not set.
func PresenceTTL() time.Duration {
	secs, err := strconv.Atoi(os.Getenv("PRESENCE_TTL_SECONDS"))
	if err != nil || secs <= 0 {
		return 60 * time.Second
	}
	return time.Duration(secs) * time.Second
}

// TicketDrainInterval returns how often the delivery worker drains the
// ticket queue. Defaults to 30 seconds if not set.
func TicketDrainInterval() time.Duration {
	secs, err := strconv.Atoi(os.Getenv("TICKET_DRAIN_INTERVAL_SECONDS"))
	if err != nil || secs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(secs) * time.Second
}

// TicketDrainBatch returns the max tickets delivered per drain.
// Defaults to 10 if not set.
func TicketDrainBatch() int {
	n, err := strconv.Atoi(os.Getenv("TICKET_DRAIN_BATCH"))
	if err != nil || n <= 0 {
		return 10
	}
	return n
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}
