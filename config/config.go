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
	Mode     string `mapstructure:"mode"`
	Dotenv   string `mapstructure:"dotenv"`
	Handlers struct {
		Prometheus struct {
			Port      string `mapstructure:"port"`
			CertFile  string `mapstructure:"certFile"`
			KeyFile   string `mapstructure:"keyFile"`
			EnableTLS bool   `mapstructure:"enableTLS"`
		} `mapstructure:"prometheus"`
	} `mapstructure:"handlers"`
	Repositories struct {
		Postgres struct {
			Host              string `mapstructure:"host"`
			Password          string `mapstructure:"password"`
			Port              string `mapstructure:"port"`
			Username          string `mapstructure:"username"`
			DB                string `mapstructure:"db"`
			SSLMODE           string `mapstructure:"SSLMODE"`
			MAXCONWAITINGTIME int    `mapstructure:"MAXCONWAITINGTIME"`
		} `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	Server struct {
		HTTPPort string        `mapstructure:"HTTPPort"`
		Timeout  time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
	JWT    JWTConfig    `mapstructure:"jwt"`
	Auth   AuthConfig   `mapstructure:"auth"`
	Search SearchConfig `mapstructure:"search"`
}

// JWTConfig holds everything needed to sign and verify access tokens.
type JWTConfig struct {
	SecretKey      string        `mapstructure:"secretKey"`
	Issuer         string        `mapstructure:"issuer"`
	Audience       string        `mapstructure:"audience"`
	AccessTokenTTL time.Duration `mapstructure:"accessTokenTTL"`
}

// AuthConfig holds password hashing settings.
type AuthConfig struct {
	BcryptCost int `mapstructure:"bcryptCost"`
}

// SearchConfig points at the Meilisearch instance used for todo indexing.
type SearchConfig struct {
	Host   string `mapstructure:"host"`
	APIKey string `mapstructure:"apiKey"`
	Index  string `mapstructure:"index"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	// Add file-based config paths
	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")
	v.AddConfigPath("/usr/local/bin")

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

	// Secrets never live in the yml file; pull them from the environment.
	if key := os.Getenv("JWT_SECRET_KEY"); key != "" {
		config.JWT.SecretKey = key
	}
	if key := os.Getenv("MEILI_MASTER_KEY"); key != "" {
		config.Search.APIKey = key
	}
	if config.Auth.BcryptCost == 0 {
		config.Auth.BcryptCost = 12
	}

	fmt.Println("Successfully loaded app configs...")
	return config, nil
}
