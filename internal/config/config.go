package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the server settings read from the environment.
type Config struct {
	ListenAddr    string
	DBPath        string
	APIBaseURL    string
	StorageDir    string
	StorageBucket string
	PublicURL     string
	LogLevel      string
	LogFormat     string
	LogFile       string

	SessionTTL      time.Duration
	IDTokenTTL      time.Duration
	DownloadURLTTL  time.Duration
	ResolverMaxAge  time.Duration
	DraftTTL        time.Duration
	AttachmentLimit int

	// DevAPI mounts the reference items API under /api/ on the web server.
	DevAPI bool
}

// Load reads the configuration from CWC_* environment variables, falling
// back to defaults for unset or malformed values. ResolverMaxAge is kept
// below DownloadURLTTL.
func Load() *Config {
	cfg := &Config{
		ListenAddr:    getEnv("CWC_LISTEN_ADDR", ":8080"),
		DBPath:        getEnv("CWC_DB_PATH", "claimwildcats.sqlite3"),
		APIBaseURL:    getEnv("CWC_API_BASE_URL", ""),
		StorageDir:    getEnv("CWC_STORAGE_DIR", "data/storage"),
		StorageBucket: getEnv("CWC_STORAGE_BUCKET", "claimwildcats"),
		PublicURL:     getEnv("CWC_PUBLIC_URL", ""),
		LogLevel:      getEnv("CWC_LOG_LEVEL", "info"),
		LogFormat:     getEnv("CWC_LOG_FORMAT", "text"),
		LogFile:       getEnv("CWC_LOG_FILE", ""),

		SessionTTL:      getDuration("CWC_SESSION_TTL", 7*24*time.Hour),
		IDTokenTTL:      getDuration("CWC_ID_TOKEN_TTL", 5*time.Minute),
		DownloadURLTTL:  getDuration("CWC_DOWNLOAD_URL_TTL", time.Hour),
		ResolverMaxAge:  getDuration("CWC_RESOLVER_MAX_AGE", 50*time.Minute),
		DraftTTL:        getDuration("CWC_DRAFT_TTL", 2*time.Hour),
		AttachmentLimit: getInt("CWC_ATTACHMENT_LIMIT", 5),

		DevAPI: getEnv("CWC_DEV_API", "") == "1",
	}

	// Cached download URLs must be dropped before they expire.
	if cfg.ResolverMaxAge >= cfg.DownloadURLTTL {
		cfg.ResolverMaxAge = cfg.DownloadURLTTL * 5 / 6
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func getInt(key string, defaultVal int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
}
