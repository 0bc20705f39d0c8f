package api

import "time"

type ServerConfig struct {
	DB        DBConfig
	Redis     RedisConfig
	PayPal    PayPalConfig
	Deposit   DepositConfig
	RateLimit RateLimitConfig
	Auth      AuthConfig
	Sweep     SweepConfig
}

type DBConfig struct {
	User     string
	Password string
	Host     string
	Port     int
	Database string
	Schema   string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// KeyPrefix 隔離同一個Redis上的多個部署環境
	KeyPrefix string

	StreamKeys RedisStreamKeys
}

type RedisStreamKeys struct {
	Events string
}

type PayPalConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// DepositConfig 是全站固定的保證金金額設定，Amount 以分為單位。
type DepositConfig struct {
	Amount   int64
	Currency string
}

// RateLimitConfig 限制單一出價者對單一拍賣的出價頻率。
type RateLimitConfig struct {
	MaxBids int
	Window  time.Duration
}

type AuthConfig struct {
	Secret string
	Issuer string
}

type SweepConfig struct {
	Interval time.Duration
}
