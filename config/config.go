// Package config reads service settings from the environment. A .env file
// in the working directory is loaded first when present.
package config

import (
	"time"

	"github.com/joho/godotenv"
)

func init() {
	godotenv.Load()
}

type Config struct {
	App       App
	Logger    Logger
	Gemini    Gemini
	Payment   Payment
	Scheduler Scheduler
}

type App struct {
	Env             string
	Port            int
	DBPath          string
	ShutdownTimeout time.Duration
	// AssistantRequestsPerMinute limits /api/assistant calls per client IP.
	AssistantRequestsPerMinute int
}

type Logger struct {
	Level string
}

type Gemini struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

type Payment struct {
	Latency   time.Duration
	Fail      bool
	SecretKey string
}

type Scheduler struct {
	// DeadlineSweep is a robfig/cron schedule. Empty disables the sweeper.
	DeadlineSweep string
}

func Load() *Config {
	return &Config{
		App: App{
			Env:                        GetEnvString("APP_ENV", "development"),
			Port:                       GetEnvInt("APP_PORT", 8080),
			DBPath:                     GetEnvString("APP_DB_PATH", "rota.db"),
			ShutdownTimeout:            GetEnvDuration("APP_SHUTDOWN_TIMEOUT", 10*time.Second),
			AssistantRequestsPerMinute: GetEnvInt("APP_ASSISTANT_REQUESTS_PER_MINUTE", 20),
		},
		Logger: Logger{
			Level: GetEnvString("LOGGER_LEVEL", "info"),
		},
		Gemini: Gemini{
			APIKey:  GetEnvString("GEMINI_API_KEY", ""),
			Model:   GetEnvString("GEMINI_MODEL", "gemini-2.5-flash"),
			BaseURL: GetEnvString("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
			Timeout: GetEnvDuration("GEMINI_TIMEOUT", 60*time.Second),
		},
		Payment: Payment{
			Latency:   GetEnvDuration("PAYMENT_LATENCY", 1500*time.Millisecond),
			Fail:      GetEnvBool("PAYMENT_SIMULATE_FAILURE", false),
			SecretKey: GetEnvString("PAYMENT_SECRET_KEY", ""),
		},
		Scheduler: Scheduler{
			DeadlineSweep: GetEnvString("SCHEDULER_DEADLINE_SWEEP", "@every 1h"),
		},
	}
}
