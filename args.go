package main

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/api"
)

func ParseArgs() Args {
	// server config
	pflag.String("server-url", "0.0.0.0:8080", "")

	// db config
	pflag.String("db-user", "", "")
	pflag.String("db-password", "", "")
	pflag.String("db-host", "", "")
	pflag.Int("db-port", 5432, "")
	pflag.String("db-database", "", "")
	pflag.String("db-schema", "", "")

	// redis config
	pflag.String("redis-addr", "", "")
	pflag.String("redis-password", "", "")
	pflag.Int("redis-db", 15, "")
	pflag.String("redis-key-prefix", "crown:", "")

	// redis stream keys
	pflag.String("redis-stream-key-for-events", "crown-auction-events", "")

	// paypal config
	pflag.String("paypal-base-url", "https://api-m.sandbox.paypal.com", "")
	pflag.String("paypal-client-id", "", "")
	pflag.String("paypal-client-secret", "", "")
	pflag.Duration("paypal-timeout", 10*time.Second, "")

	// deposit config
	pflag.Int64("deposit-amount", 10000, "")
	pflag.String("deposit-currency", "USD", "")

	// rate limit config
	pflag.Int("rate-limit-max-bids", 5, "")
	pflag.Duration("rate-limit-window", time.Minute, "")

	// auth config
	pflag.String("auth-secret", "", "")
	pflag.String("auth-issuer", "crown-auctions", "")

	// sweep config
	pflag.Duration("sweep-interval", 30*time.Second, "")

	// bind pflag to viper
	pflag.Parse()
	viper.BindPFlags(pflag.CommandLine)
	viper.AutomaticEnv()
	viper.SetEnvPrefix("CROWN")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// initial arguments
	return Args{
		ServerURL: viper.GetString("server-url"),
		ServerConfig: api.ServerConfig{
			DB: api.DBConfig{
				User:     viper.GetString("db-user"),
				Password: viper.GetString("db-password"),
				Host:     viper.GetString("db-host"),
				Port:     viper.GetInt("db-port"),
				Database: viper.GetString("db-database"),
				Schema:   viper.GetString("db-schema"),
			},
			Redis: api.RedisConfig{
				Addr:      viper.GetString("redis-addr"),
				Password:  viper.GetString("redis-password"),
				DB:        viper.GetInt("redis-db"),
				KeyPrefix: viper.GetString("redis-key-prefix"),
				StreamKeys: api.RedisStreamKeys{
					Events: viper.GetString("redis-stream-key-for-events"),
				},
			},
			PayPal: api.PayPalConfig{
				BaseURL:      viper.GetString("paypal-base-url"),
				ClientID:     viper.GetString("paypal-client-id"),
				ClientSecret: viper.GetString("paypal-client-secret"),
				Timeout:      viper.GetDuration("paypal-timeout"),
			},
			Deposit: api.DepositConfig{
				Amount:   viper.GetInt64("deposit-amount"),
				Currency: viper.GetString("deposit-currency"),
			},
			RateLimit: api.RateLimitConfig{
				MaxBids: viper.GetInt("rate-limit-max-bids"),
				Window:  viper.GetDuration("rate-limit-window"),
			},
			Auth: api.AuthConfig{
				Secret: viper.GetString("auth-secret"),
				Issuer: viper.GetString("auth-issuer"),
			},
			Sweep: api.SweepConfig{
				Interval: viper.GetDuration("sweep-interval"),
			},
		},
	}
}

type Args struct {
	ServerURL    string
	ServerConfig api.ServerConfig
}

func (args Args) Validate() bool {
	return args.ServerURL != "" &&
		args.ServerConfig.DB.Host != "" &&
		args.ServerConfig.Redis.Addr != "" &&
		args.ServerConfig.PayPal.ClientID != "" &&
		args.ServerConfig.PayPal.ClientSecret != "" &&
		args.ServerConfig.Auth.Secret != ""
}
