package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type Config struct {
	Mode   string `mapstructure:"mode"`
	Server struct {
		HTTPPort string        `mapstructure:"httpPort"`
		Timeout  time.Duration `mapstructure:"timeout"`
	} `mapstructure:"server"`
	Prometheus struct {
		Port string `mapstructure:"port"`
	} `mapstructure:"prometheus"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Geocoder  GeocoderConfig  `mapstructure:"geocoder"`
	Recommend RecommendConfig `mapstructure:"recommend"`
	Chat      ChatConfig      `mapstructure:"chat"`
	JWT       JWTConfig       `mapstructure:"jwt"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       string `mapstructure:"db"`
	SSLMode  string `mapstructure:"sslmode"`
}

type GeocoderConfig struct {
	BaseURL  string        `mapstructure:"baseURL"`
	APIKey   string        `mapstructure:"apiKey"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cacheTTL"`
}

// RecommendConfig bounds one recommendation run; zero values fall back to the
// service defaults.
type RecommendConfig struct {
	StageCount   int     `mapstructure:"stageCount"`
	RoundSize    int     `mapstructure:"roundSize"`
	BandLowKm    float64 `mapstructure:"bandLowKm"`
	BandHighKm   float64 `mapstructure:"bandHighKm"`
	RadiusKm     float64 `mapstructure:"radiusKm"`
	TourRadiusKm float64 `mapstructure:"tourRadiusKm"`
	Scoring      string  `mapstructure:"scoring"`
}

type ChatConfig struct {
	SessionTTL time.Duration `mapstructure:"sessionTTL"`
}

type JWTConfig struct {
	SecretKey  string        `mapstructure:"secretKey"`
	Issuer     string        `mapstructure:"issuer"`
	AccessTTL  time.Duration `mapstructure:"accessTTL"`
	RefreshTTL time.Duration `mapstructure:"refreshTTL"`
}

// InitConfig reads config.yml from the usual paths, falling back to the
// embedded copy, with DAYTRIP_* environment variables overriding either
// (DAYTRIP_GEOCODER_APIKEY, DAYTRIP_JWT_SECRETKEY and so on).
func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")
	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.SetEnvPrefix("DAYTRIP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %w", err)
		}
	}
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return config, nil
}
