package utils

import (
	"fmt"
	"os"
)

type AppConfig struct {
	DiscordBotToken    string
	DiscordAppsID      string
	DiscordPublicKey   string
	DiscordHTTPBaseURL string
	DiscordGateway     string
	AppEnv             string
}

// LoadConfiguration reads the bot configuration from the environment.
// Call godotenv.Load first when running from a .env file.
func LoadConfiguration() (AppConfig, error) {
	cfg := AppConfig{}
	requiredEnv := map[string]*string{
		"DC_BOT_TOKEN": &cfg.DiscordBotToken,
	}
	for k, v := range requiredEnv {
		val, ok := os.LookupEnv(k)
		if !ok {
			return AppConfig{}, fmt.Errorf("missing required env: %s", k)
		}
		*v = val
	}
	optionalEnv := map[string]*string{
		"DC_APPLICATION_ID":  &cfg.DiscordAppsID,
		"DC_PUBLIC_KEY":      &cfg.DiscordPublicKey,
		"DC_HTTP_BASE_URL":   &cfg.DiscordHTTPBaseURL,
		"DC_GATEWAY_ADDRESS": &cfg.DiscordGateway,
		"APP_ENV":            &cfg.AppEnv,
	}
	for k, v := range optionalEnv {
		if val, ok := os.LookupEnv(k); ok {
			*v = val
		}
	}
	return cfg, nil
}
