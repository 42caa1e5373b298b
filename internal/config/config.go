package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the payment service
type Config struct {
	Database DatabaseConfig
	PayU     PayUConfig
	Epayco   EpaycoConfig
	Redis    RedisConfig
	Rabbit   RabbitConfig
	Server   ServerConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
}

// PayUConfig holds PayU gateway credentials and endpoints
type PayUConfig struct {
	APIURL         string
	APIKey         string
	APILogin       string
	MerchantID     string
	AccountID      string
	Test           bool
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// EpaycoConfig holds the ePayco webhook verification key
type EpaycoConfig struct {
	PrivateKey string
}

// RedisConfig holds the payment status cache configuration
type RedisConfig struct {
	Addr     string
	Password string
	TTL      time.Duration
}

// RabbitConfig holds the payment event exchange configuration
type RabbitConfig struct {
	URL      string
	Exchange string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port              string
	FrontendStatusURL string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "3306"),
			User:     getEnv("DB_USER", "root"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_DATABASE", "misakguambshop"),
		},
		PayU: PayUConfig{
			APIURL:         getEnv("PAYU_API_URL", "https://sandbox.api.payulatam.com/payments-api/4.0/service.cgi"),
			APIKey:         getEnv("PAYU_API_KEY", ""),
			APILogin:       getEnv("PAYU_API_LOGIN", ""),
			MerchantID:     getEnv("PAYU_MERCHANT_ID", ""),
			AccountID:      getEnv("PAYU_ACCOUNT_ID", ""),
			Test:           getEnvBool("PAYU_TEST", true),
			ConnectTimeout: getEnvDuration("PAYU_CONNECT_TIMEOUT", 15*time.Second),
			ReadTimeout:    getEnvDuration("PAYU_READ_TIMEOUT", 15*time.Second),
		},
		Epayco: EpaycoConfig{
			PrivateKey: getEnv("EPAYCO_PRIVATE_KEY", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			TTL:      getEnvDuration("REDIS_STATUS_TTL", 30*time.Second),
		},
		Rabbit: RabbitConfig{
			URL:      getEnv("RABBITMQ_URL", ""),
			Exchange: getEnv("RABBITMQ_EXCHANGE", "payments"),
		},
		Server: ServerConfig{
			Port:              getEnv("HTTP_PORT", "8080"),
			FrontendStatusURL: getEnv("FRONTEND_STATUS_URL", "http://localhost:3000/payment/status"),
		},
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
