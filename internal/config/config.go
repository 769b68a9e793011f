package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort       string
	AppEnv        string
	PublicBaseURL string // empty: derived from the incoming request
	StoreBackend  string // "dynamo" | "memory"

	// TrustProxyHeaders takes the client IP from X-Forwarded-For/X-Real-Ip.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxyHeaders bool

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	RedisAddr        string // empty: captcha sessions live in the record store
	S3ReceiptsBucket string // empty: payout receipts are not archived
	SNSTopicARN      string // empty: no operator alerts

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	ProsopoURL           string
	ProsopoSecret        string
	CaptchaRetryAttempts int
	CaptchaRetryDelay    time.Duration

	RateServerURLs     []string
	RateStagger        time.Duration
	RateRequestTimeout time.Duration

	NowPaymentsBaseURL  string
	NowPaymentsAPIKey   string
	NowPaymentsEmail    string
	NowPaymentsPassword string

	PayoutTimeout time.Duration
	StoreTimeout  time.Duration
	NotifyTimeout time.Duration

	ClaimTTL          time.Duration
	CaptchaSessionTTL time.Duration

	JWTPublicKeyPath string
	AllowedOrigins   []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Campaigns       string
	Claims          string
	ClaimGuards     string
	CaptchaSessions string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:       getEnv("APP_PORT", "8008"),
		AppEnv:        getEnv("APP_ENV", "development"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
		StoreBackend:  getEnv("STORE_BACKEND", "dynamo"),

		TrustProxyHeaders: getEnvBool("TRUST_PROXY_HEADERS", false),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Campaigns:       getEnv("DYNAMO_TABLE_CAMPAIGNS", "rewards_campaigns"),
			Claims:          getEnv("DYNAMO_TABLE_CLAIMS", "rewards_claims"),
			ClaimGuards:     getEnv("DYNAMO_TABLE_CLAIM_GUARDS", "rewards_claim_guards"),
			CaptchaSessions: getEnv("DYNAMO_TABLE_CAPTCHA_SESSIONS", "rewards_captcha_sessions"),
		},

		RedisAddr:        getEnv("REDIS_ADDR", ""),
		S3ReceiptsBucket: getEnv("S3_RECEIPTS_BUCKET", ""),
		SNSTopicARN:      getEnv("SNS_TOPIC_ARN", ""),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "rewards@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		ProsopoURL:           getEnv("PROSOPO_URL", "https://api.prosopo.io/siteverify"),
		ProsopoSecret:        getEnv("PROSOPO_SECRET", ""),
		CaptchaRetryAttempts: getEnvInt("CAPTCHA_RETRY_ATTEMPTS", 3),
		CaptchaRetryDelay:    getEnvDuration("CAPTCHA_RETRY_DELAY", time.Second),

		RateServerURLs:     getEnvList("RATE_SERVER_URLS", "https://rates1.edge.app,https://rates2.edge.app"),
		RateStagger:        getEnvDuration("RATE_STAGGER", 5*time.Second),
		RateRequestTimeout: getEnvDuration("RATE_REQUEST_TIMEOUT", 10*time.Second),

		NowPaymentsBaseURL:  getEnv("NOWPAYMENTS_BASE_URL", "https://api.nowpayments.io/v1"),
		NowPaymentsAPIKey:   getEnv("NOWPAYMENTS_API_KEY", ""),
		NowPaymentsEmail:    getEnv("NOWPAYMENTS_EMAIL", ""),
		NowPaymentsPassword: getEnv("NOWPAYMENTS_PASSWORD", ""),

		PayoutTimeout: getEnvDuration("PAYOUT_TIMEOUT", 30*time.Second),
		StoreTimeout:  getEnvDuration("STORE_TIMEOUT", 5*time.Second),
		NotifyTimeout: getEnvDuration("NOTIFY_TIMEOUT", 20*time.Second),

		ClaimTTL:          getEnvDuration("CLAIM_TTL", 10*time.Minute),
		CaptchaSessionTTL: getEnvDuration("CAPTCHA_SESSION_TTL", 10*time.Minute),

		JWTPublicKeyPath: getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		AllowedOrigins:   getEnvList("ALLOWED_ORIGINS", "*"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("5s", "10m").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func getEnvList(key, fallback string) []string {
	parts := strings.Split(getEnv(key, fallback), ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
