package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingMongoURI is returned by Load when no database connection string is set.
var ErrMissingMongoURI = errors.New("MONGO_URI is not set")

// Config holds everything the server needs, built once at startup.
type Config struct {
	App   AppConfig
	Mongo MongoConfig
	Redis RedisConfig
	Email EmailConfig
	OTP   OTPConfig
}

// AppConfig holds HTTP and process settings.
type AppConfig struct {
	Port      string
	LogLevel  string
	LogFormat string
	JWTSecret string
	TokenTTL  time.Duration
	UploadDir string
	RateLimit float64 // requests per second per client IP on OTP endpoints
	RateBurst int
	// TrustProxy takes the client address from X-Forwarded-For and friends.
	TrustProxy bool
}

// MongoConfig holds the document store connection.
type MongoConfig struct {
	URI      string
	Database string
}

// RedisConfig holds the optional Redis connection used for resend cooldowns.
// An empty Addr disables the cooldown.
type RedisConfig struct {
	Addr     string
	Password string
}

// EmailConfig holds SMTP credentials for the notification sender.
type EmailConfig struct {
	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	From     string
	Timeout  time.Duration
}

// Enabled reports whether enough credentials are present to send mail.
func (c EmailConfig) Enabled() bool {
	return c.SMTPHost != "" && c.SMTPUser != "" && c.SMTPPass != ""
}

// OTPConfig holds the one-time code policy.
type OTPConfig struct {
	TTL            time.Duration
	ResendCooldown time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "5000")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("token_ttl", 24*time.Hour)
	v.SetDefault("upload_dir", "uploads")
	v.SetDefault("rate_limit", 1.0)
	v.SetDefault("rate_burst", 5)
	v.SetDefault("trust_proxy", false)
	v.SetDefault("mongo_db", "primetrade")
	v.SetDefault("smtp_host", "smtp.gmail.com")
	v.SetDefault("smtp_port", 587)
	v.SetDefault("mail_timeout", 10*time.Second)
	v.SetDefault("otp_ttl", 10*time.Minute)
	v.SetDefault("otp_resend_cooldown", 60*time.Second)
}

// Load reads an optional .env file and then the process environment.
// A missing MONGO_URI is the only fatal condition.
func Load(envFiles ...string) (*Config, error) {
	// .env is optional; the real environment always wins.
	_ = godotenv.Load(envFiles...)

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Port:       v.GetString("port"),
			LogLevel:   v.GetString("log_level"),
			LogFormat:  v.GetString("log_format"),
			JWTSecret:  v.GetString("jwt_secret"),
			TokenTTL:   v.GetDuration("token_ttl"),
			UploadDir:  v.GetString("upload_dir"),
			RateLimit:  v.GetFloat64("rate_limit"),
			RateBurst:  v.GetInt("rate_burst"),
			TrustProxy: v.GetBool("trust_proxy"),
		},
		Mongo: MongoConfig{
			URI:      strings.TrimSpace(v.GetString("mongo_uri")),
			Database: v.GetString("mongo_db"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis_addr"),
			Password: v.GetString("redis_password"),
		},
		Email: EmailConfig{
			SMTPHost: v.GetString("smtp_host"),
			SMTPPort: v.GetInt("smtp_port"),
			SMTPUser: v.GetString("smtp_user"),
			SMTPPass: v.GetString("smtp_pass"),
			From:     v.GetString("mail_from"),
			Timeout:  v.GetDuration("mail_timeout"),
		},
		OTP: OTPConfig{
			TTL:            v.GetDuration("otp_ttl"),
			ResendCooldown: v.GetDuration("otp_resend_cooldown"),
		},
	}
	if cfg.Email.From == "" {
		cfg.Email.From = cfg.Email.SMTPUser
	}
	if cfg.Mongo.URI == "" {
		return nil, ErrMissingMongoURI
	}
	return cfg, nil
}
