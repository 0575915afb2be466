// internal/workers/withdrawal/request-withdrawal/config.go
package requestwithdrawal

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
