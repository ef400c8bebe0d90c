package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store, provider and limiter backends selectable at startup.
const (
	StoreDynamo = "dynamo"
	StoreMongo  = "mongo"

	ProviderTwilio = "twilio"
	ProviderSNS    = "sns"

	LimiterMemory = "memory"
	LimiterRedis  = "redis"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort        string
	AppEnv         string
	AllowedOrigins []string // CORS allowed origins
	TrustProxy     bool     // honour X-Forwarded-For / X-Real-IP for the client address

	StoreBackend   string
	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	MongoURI       string
	MongoDatabase  string

	JWTSecret         string
	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	OTPProvider      string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioServiceSID string
	TwilioBaseURL    string
	ProviderTimeout  time.Duration
	ProviderRPS      float64
	ProviderBurst    int
	OTPTTL           time.Duration
	OTPMaxChecks     int
	SNSRegion        string

	RateLimitBackend string
	RedisURL         string
	OTPRequestLimit  int
	OTPRequestWindow time.Duration

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users         string
	UserUniques   string
	OTPChallenges string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "8000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		TrustProxy:     getEnvBool("TRUST_PROXY", false),

		StoreBackend:   getEnv("STORE_BACKEND", StoreDynamo),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:         getEnv("DYNAMO_TABLE_USERS", "users"),
			UserUniques:   getEnv("DYNAMO_TABLE_USER_UNIQUES", "user_uniques"),
			OTPChallenges: getEnv("DYNAMO_TABLE_OTP_CHALLENGES", "otp_challenges"),
		},
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DATABASE", "fin_auth"),

		JWTSecret:         getEnv("JWT_SECRET", ""),
		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", ""),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", ""),
		JWTExpiry:         getEnvDuration("JWT_EXPIRY", time.Hour),

		OTPProvider:      getEnv("OTP_PROVIDER", ProviderTwilio),
		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioServiceSID: getEnv("TWILIO_SERVICE_SID", ""),
		TwilioBaseURL:    getEnv("TWILIO_BASE_URL", "https://verify.twilio.com/v2"),
		ProviderTimeout:  getEnvDuration("PROVIDER_TIMEOUT", 10*time.Second),
		ProviderRPS:      getEnvFloat("PROVIDER_RPS", 20),
		ProviderBurst:    getEnvInt("PROVIDER_BURST", 20),
		OTPTTL:           getEnvDuration("OTP_TTL", 10*time.Minute),
		OTPMaxChecks:     getEnvInt("OTP_MAX_CHECKS", 5),
		SNSRegion:        getEnv("SNS_REGION", "us-east-1"),

		RateLimitBackend: getEnv("RATE_LIMIT_BACKEND", LimiterMemory),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		OTPRequestLimit:  getEnvInt("OTP_REQUEST_LIMIT", 5),
		OTPRequestWindow: getEnvDuration("OTP_REQUEST_WINDOW", 15*time.Minute),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
	}
}

// Validate rejects configurations the process cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" && (c.JWTPrivateKeyPath == "" || c.JWTPublicKeyPath == "") {
		errs = append(errs, errors.New("JWT_SECRET or JWT_PRIVATE_KEY_PATH/JWT_PUBLIC_KEY_PATH must be set"))
	}
	if c.JWTExpiry <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRY must be positive"))
	}
	switch c.StoreBackend {
	case StoreDynamo, StoreMongo:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}
	switch c.OTPProvider {
	case ProviderTwilio:
		if c.TwilioAccountSID == "" || c.TwilioAuthToken == "" || c.TwilioServiceSID == "" {
			errs = append(errs, errors.New("TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_SERVICE_SID are required for the twilio provider"))
		}
	case ProviderSNS:
	default:
		errs = append(errs, fmt.Errorf("unknown OTP_PROVIDER %q", c.OTPProvider))
	}
	switch c.RateLimitBackend {
	case LimiterMemory, LimiterRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown RATE_LIMIT_BACKEND %q", c.RateLimitBackend))
	}
	if c.OTPRequestLimit < 1 || c.OTPRequestWindow <= 0 {
		errs = append(errs, errors.New("OTP_REQUEST_LIMIT and OTP_REQUEST_WINDOW must be positive"))
	}
	return errors.Join(errs...)
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

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
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

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
