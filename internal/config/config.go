package config

import (
	"log"
	"os"
	"strings"
	"time"
)

// App holds the runtime configuration loaded from environment variables.
type App struct {
	Env            string
	HTTPPort       string
	StationName    string
	LateThreshold  string
	CachePath      string
	RoomCode       string
	RedisRelays    []string
	MQTTRelays     []string
	RelayTimeout   time.Duration
	SummaryURL     string
	SummaryTimeout time.Duration
	LogLevel       string
	ClockInterval  time.Duration
}

// Load returns application config populated from environment variables with sensible defaults.
func Load() App {
	return App{
		Env:            getEnv("APP_ENV", "dev"),
		HTTPPort:       getEnv("HTTP_PORT", "8081"),
		StationName:    getEnv("STATION_NAME", "gate-station"),
		LateThreshold:  getEnv("LATE_THRESHOLD", "08:30"),
		CachePath:      getEnv("CACHE_PATH", "gatelog.db"),
		RoomCode:       getEnv("ROOM_CODE", ""),
		RedisRelays:    listEnv("RELAY_REDIS_ADDRS"),
		MQTTRelays:     listEnv("RELAY_MQTT_BROKERS"),
		RelayTimeout:   durationEnv("RELAY_TIMEOUT", 3*time.Second),
		SummaryURL:     getEnv("SUMMARY_URL", ""),
		SummaryTimeout: durationEnv("SUMMARY_TIMEOUT", 20*time.Second),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		ClockInterval:  durationEnv("CLOCK_INTERVAL", time.Second),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// listEnv parses a comma-separated environment variable, dropping empty entries.
func listEnv(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}
