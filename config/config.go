package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type Config struct {
	Mode   string `mapstructure:"mode"`
	Client struct {
		BaseURL string `mapstructure:"baseURL"`
	} `mapstructure:"client"`
	Repositories struct {
		Postgres struct {
			Host     string `mapstructure:"host"`
			Password string `mapstructure:"password"`
			Port     string `mapstructure:"port"`
			Username string `mapstructure:"username"`
			DB       string `mapstructure:"db"`
			SSLMode  string `mapstructure:"sslmode"`
		} `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	Server struct {
		HTTPPort    string        `mapstructure:"HTTPPort"`
		MetricsPort string        `mapstructure:"metricsPort"`
		Timeout     time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
	JWT     JWTConfig     `mapstructure:"jwt"`
	Auth    AuthConfig    `mapstructure:"auth"`
	SMTP    SMTPConfig    `mapstructure:"smtp"`
	Storage StorageConfig `mapstructure:"storage"`
}

// JWTConfig holds the signing parameters for session tokens.
type JWTConfig struct {
	SecretKey       string        `mapstructure:"secretKey"`
	SessionTokenTTL time.Duration `mapstructure:"sessionTokenTTL"`
	Issuer          string        `mapstructure:"issuer"`
	Audience        string        `mapstructure:"audience"`
}

// AuthConfig holds the account-security policy knobs. All durations and
// thresholds are injected into the auth service at construction; business
// logic never reads ambient environment state.
type AuthConfig struct {
	BcryptCost               int           `mapstructure:"bcryptCost"`
	MaxLoginAttempts         int           `mapstructure:"maxLoginAttempts"`
	LockDuration             time.Duration `mapstructure:"lockDuration"`
	ResetTokenTTL            time.Duration `mapstructure:"resetTokenTTL"`
	VerificationTokenTTL     time.Duration `mapstructure:"verificationTokenTTL"`
	RequireEmailVerification bool          `mapstructure:"requireEmailVerification"`
	SecureCookies            bool          `mapstructure:"secureCookies"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	FromName string `mapstructure:"fromName"`
}

// StorageConfig configures the object store holding video files and avatars.
type StorageConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"accessKeyID"`
	SecretAccessKey string `mapstructure:"secretAccessKey"`
	UseSSL          bool   `mapstructure:"useSSL"`
	VideoBucket     string `mapstructure:"videoBucket"`
	AvatarBucket    string `mapstructure:"avatarBucket"`
	PublicBaseURL   string `mapstructure:"publicBaseURL"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	// Add file-based config paths
	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// Try to load file-based config
	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %s", err)
		}
	}

	// Unmarshal the config into the Config struct
	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %s", err)
	}

	applyOverrides(&config)
	applyDefaults(&config)
	return config, nil
}

// applyOverrides lets secrets come from the environment (via .env) so the
// committed config file never carries real credentials.
func applyOverrides(cfg *Config) {
	if v := os.Getenv("JWT_SECRET_KEY"); v != "" {
		cfg.JWT.SecretKey = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		cfg.Repositories.Postgres.Password = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.SMTP.Password = v
	}
	if v := os.Getenv("STORAGE_ACCESS_KEY_ID"); v != "" {
		cfg.Storage.AccessKeyID = v
	}
	if v := os.Getenv("STORAGE_SECRET_ACCESS_KEY"); v != "" {
		cfg.Storage.SecretAccessKey = v
	}
}

// applyDefaults fills in the shipped security-policy values wherever the
// config file leaves them unset.
func applyDefaults(cfg *Config) {
	if cfg.JWT.SessionTokenTTL == 0 {
		cfg.JWT.SessionTokenTTL = 7 * 24 * time.Hour
	}
	if cfg.Auth.BcryptCost == 0 {
		cfg.Auth.BcryptCost = 12
	}
	if cfg.Auth.MaxLoginAttempts == 0 {
		cfg.Auth.MaxLoginAttempts = 5
	}
	if cfg.Auth.LockDuration == 0 {
		cfg.Auth.LockDuration = 30 * time.Minute
	}
	if cfg.Auth.ResetTokenTTL == 0 {
		cfg.Auth.ResetTokenTTL = 10 * time.Minute
	}
	if cfg.Auth.VerificationTokenTTL == 0 {
		cfg.Auth.VerificationTokenTTL = 24 * time.Hour
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = 60 * time.Second
	}
}
