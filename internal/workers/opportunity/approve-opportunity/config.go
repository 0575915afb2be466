// internal/workers/opportunity/approve-opportunity/config.go
package approveopportunity

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
