package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort         string
	InternalAPIToken string
	JWTSecret        string

	NatsURL string

	// CacheBackend is one of memory, redis or mongo.
	CacheBackend       string
	RedisURL           string
	MongoURL           string
	MongoDB            string
	BloomExpectedItems uint
	BloomFPRate        float64

	Queues             []string
	QueuePageURL       string // may contain {queue}
	DetailsURLTemplate string // must contain {id}
	UseBrowser         bool
	SettleDelay        time.Duration
	UserAgent          string
	FetchDelay         time.Duration
	FetchTimeout       time.Duration

	WarmInterval time.Duration
}

// Load reads the environment, optionally seeded from a .env file.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		HTTPPort:         getEnv("HTTP_PORT", "8085"),
		InternalAPIToken: getEnv("INTERNAL_API_TOKEN", ""),
		JWTSecret:        getEnv("JWT_SECRET", ""),

		NatsURL: getEnv("NATS_URL", ""),

		CacheBackend:       strings.ToLower(getEnv("CACHE_BACKEND", "memory")),
		RedisURL:           getEnv("REDIS_URL", "redis://192.168.2.2:6379/0"),
		MongoURL:           getEnv("MONGO_URL", "mongodb://192.168.2.2:27017"),
		MongoDB:            getEnv("MONGO_DB", "queuesorter"),
		BloomExpectedItems: uint(getEnvInt("BLOOM_EXPECTED_ITEMS", 10000)),
		BloomFPRate:        getEnvFloat("BLOOM_FP_RATE", 0.01),

		Queues:             getEnvList("QUEUES", []string{"dvd", "instant"}),
		QueuePageURL:       getEnv("QUEUE_PAGE_URL", ""),
		DetailsURLTemplate: getEnv("DETAILS_URL_TEMPLATE", ""),
		UseBrowser:         getEnvBool("USE_BROWSER", false),
		SettleDelay:        getEnvDuration("BROWSER_SETTLE_DELAY", 0),
		UserAgent:          getEnv("USER_AGENT", ""),
		FetchDelay:         getEnvDuration("FETCH_DELAY", 500*time.Millisecond),
		FetchTimeout:       getEnvDuration("FETCH_TIMEOUT", 30*time.Second),

		WarmInterval: getEnvDuration("WARM_INTERVAL", 0),
	}
}

// QueuePage returns the page URL of one queue.
func (c *Config) QueuePage(queue string) string {
	return strings.ReplaceAll(c.QueuePageURL, "{queue}", queue)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
