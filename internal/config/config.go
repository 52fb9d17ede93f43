package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode
	HTTPAddr string

	DBDriver string
	DBDSN    string

	// HMAC secret for user JWTs.
	AuthSecret string
	// Static shared secret presented by the generation worker on callbacks.
	WorkerSecret string

	// Message bus. "redis" publishes to Redis pub/sub; "memory" keeps the
	// bus in-process (offline/dev).
	BusDriver string
	RedisAddr string
	RedisDB   int

	// Blob store. "minio" or "fs".
	BlobDriver     string
	BlobBasePath   string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// TTL of the signed download URL handed to the worker.
	FileURLTTL time.Duration

	MaxUploadSize int64

	CORSOrigins []string
}

// FromEnv loads configuration from the environment, reading an optional
// .env file first.
func FromEnv() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using OS environment")
	}

	mode := Mode(envOr("MODE", string(ModeOffline)))

	busDriver := os.Getenv("BUS_DRIVER")
	if busDriver == "" {
		if mode == ModeOnline {
			busDriver = "redis"
		} else {
			busDriver = "memory"
		}
	}

	return Config{
		Mode:     mode,
		HTTPAddr: envOr("HTTP_ADDR", ":8080"),

		DBDriver: envOr("DB_DRIVER", "sqlite"),
		DBDSN:    os.Getenv("DB_DSN"),

		AuthSecret:   envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		WorkerSecret: envOr("AI_WORKER_SECRET", "worker-dev-secret"),

		BusDriver: busDriver,
		RedisAddr: envOr("REDIS_ADDR", "localhost:6379"),
		RedisDB:   envInt("REDIS_DB", 0),

		BlobDriver:     envOr("BLOB_DRIVER", "fs"),
		BlobBasePath:   envOr("BLOB_BASE_PATH", "./data"),
		MinioEndpoint:  envOr("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    envOr("MINIO_BUCKET", "smartlearn"),
		MinioUseSSL:    envBool("MINIO_USE_SSL", false),

		FileURLTTL: time.Duration(envInt("FILE_URL_TTL_SEC", 3600)) * time.Second,

		MaxUploadSize: int64(envInt("MAX_FILE_SIZE", 50<<20)),

		CORSOrigins: csvOr("CORS_ORIGINS", "http://localhost:3000"),
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid %s: %v", k, err)
	}
	return n
}

func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}

func csvOr(k, def string) []string {
	parts := strings.Split(envOr(k, def), ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
