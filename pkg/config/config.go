package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreMemory    = "memory"
	StoreFirestore = "firestore"
	StoreMongo     = "mongo"
)

// Event sources.
const (
	SourceLocal        = "local"
	SourceListener     = "listener"
	SourceChangeStream = "changestream"
	SourcePush         = "push"
)

// Ledger backends.
const (
	LedgerRedis    = "redis"
	LedgerPostgres = "postgres"
)

// Auth modes.
const (
	AuthFirebase = "firebase"
	AuthJWT      = "jwt"
)

type Config struct {
	Port                    string
	Env                     string
	MetricsPort             string
	StoreBackend            string
	EventSource             string
	FirebaseCredentialsPath string
	FirebaseProjectID       string
	StorageBucket           string
	DefaultImageObject      string
	MongoURI                string
	MongoDatabase           string
	LedgerBackend           string
	RedisURL                string
	PostgresUrl             string
	AuthMode                string
	JWTSecret               string
	EventToken              string
	ReactorTimeout          time.Duration
	EventMaxAttempts        int
	LedgerTTL               time.Duration
	OtelStdout              bool
}

// Load reads the configuration from the environment, after loading a .env
// file if there is one.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, assuming environment variables are set.")
	}
	return &Config{
		Port:                    getEnv("PORT", "8080"),
		Env:                     getEnv("ENV", "development"),
		MetricsPort:             getEnv("METRICS_PORT", "9090"),
		StoreBackend:            getEnv("STORE_BACKEND", StoreMemory),
		EventSource:             getEnv("EVENT_SOURCE", SourceLocal),
		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
		FirebaseProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
		StorageBucket:           getEnv("STORAGE_BUCKET", ""),
		DefaultImageObject:      getEnv("DEFAULT_IMAGE_OBJECT", "no-img.png"),
		MongoURI:                getEnv("MONGO_URI", ""),
		MongoDatabase:           getEnv("MONGO_DATABASE", "socialmedia"),
		LedgerBackend:           getEnv("LEDGER_BACKEND", LedgerRedis),
		RedisURL:                getEnv("REDIS_URL", "localhost:6379"),
		PostgresUrl:             getEnv("POSTGRES_URL", ""),
		AuthMode:                getEnv("AUTH_MODE", AuthJWT),
		JWTSecret:               getEnv("JWT_SECRET", ""),
		EventToken:              getEnv("EVENT_TOKEN", ""),
		ReactorTimeout:          getDuration("REACTOR_TIMEOUT", 60*time.Second),
		EventMaxAttempts:        getInt("EVENT_MAX_ATTEMPTS", 5),
		LedgerTTL:               getDuration("LEDGER_TTL", 7*24*time.Hour),
		OtelStdout:              getEnv("OTEL_STDOUT", "false") == "true",
	}
}

// Validate rejects settings that cannot work together.
func (c *Config) Validate() error {
	var errs []error
	switch c.StoreBackend {
	case StoreMemory, StoreFirestore, StoreMongo:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}
	switch c.EventSource {
	case SourceLocal:
		if c.StoreBackend != StoreMemory {
			errs = append(errs, errors.New("EVENT_SOURCE=local needs STORE_BACKEND=memory"))
		}
	case SourceListener:
		if c.StoreBackend != StoreFirestore {
			errs = append(errs, errors.New("EVENT_SOURCE=listener needs STORE_BACKEND=firestore"))
		}
	case SourceChangeStream:
		if c.StoreBackend != StoreMongo {
			errs = append(errs, errors.New("EVENT_SOURCE=changestream needs STORE_BACKEND=mongo"))
		}
	case SourcePush:
	default:
		errs = append(errs, fmt.Errorf("unknown EVENT_SOURCE %q", c.EventSource))
	}
	switch c.LedgerBackend {
	case LedgerRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("LEDGER_BACKEND=redis needs REDIS_URL"))
		}
	case LedgerPostgres:
		if c.PostgresUrl == "" {
			errs = append(errs, errors.New("LEDGER_BACKEND=postgres needs POSTGRES_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LEDGER_BACKEND %q", c.LedgerBackend))
	}
	switch c.AuthMode {
	case AuthJWT:
		if c.JWTSecret == "" {
			errs = append(errs, errors.New("AUTH_MODE=jwt needs JWT_SECRET"))
		}
	case AuthFirebase:
	default:
		errs = append(errs, fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode))
	}
	if c.StoreBackend == StoreMongo && c.MongoURI == "" {
		errs = append(errs, errors.New("STORE_BACKEND=mongo needs MONGO_URI"))
	}
	if c.ReactorTimeout <= 0 {
		errs = append(errs, errors.New("REACTOR_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

// NeedsFirebase reports whether any configured component talks to Firebase.
func (c *Config) NeedsFirebase() bool {
	return c.StoreBackend == StoreFirestore || c.AuthMode == AuthFirebase || c.StorageBucket != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return d
}

func getInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return n
}
