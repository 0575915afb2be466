// internal/workers/withdrawal/decide-withdrawal/config.go
package decidewithdrawal

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
