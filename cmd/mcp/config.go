package main

import "os"

// Config holds environment-based configuration for the read-only tools.
type Config struct {
	Region string
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() *Config {
	return &Config{
		Region: getEnvOrDefault("AWS_REGION", "us-east-1"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
