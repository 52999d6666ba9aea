package config

import (
	"fmt"
	"reflect"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration.
type Config struct {
	EnvVars EnvVars  `json:"env"`
	Prompts *Prompts `json:"-"`
}

// EnvVars holds environment variables required by the application.
// Fields tagged `optional:"true"` are skipped by CheckConfigEnvFields.
type EnvVars struct {
	Port            string `env:"PORT" envDefault:"8080"`
	DatabaseUrl     string `env:"DATABASE_URL"`
	JwtSecretKey    string `env:"JWT_SECRET_KEY"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	IDHeader        string `env:"ID_HEADER" optional:"true"`

	AWSRegion          string `env:"AWS_REGION" optional:"true"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" optional:"true"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" optional:"true"`
	S3Bucket           string `env:"S3_BUCKET" optional:"true"`

	// Pipeline tuning. The scoring constants are product-tuned; they live in
	// the environment rather than the code so they can move without a deploy.
	ConfidenceThreshold  float64       `env:"CONFIDENCE_THRESHOLD" envDefault:"0.70"`
	KeywordConfidenceCap float64       `env:"KEYWORD_CONFIDENCE_CAP" envDefault:"0.30"`
	AnalysisCacheTTL     time.Duration `env:"ANALYSIS_CACHE_TTL" envDefault:"1h"`
	NutritionCacheTTL    time.Duration `env:"NUTRITION_CACHE_TTL" envDefault:"30m"`
	ProviderCacheTTL     time.Duration `env:"PROVIDER_CACHE_TTL" envDefault:"2h"`
	ClarificationTTL     time.Duration `env:"CLARIFICATION_TTL" envDefault:"5m"`
	MaxImageBytes        int64         `env:"MAX_IMAGE_BYTES" envDefault:"10485760"`
	MaxAudioBytes        int64         `env:"MAX_AUDIO_BYTES" envDefault:"26214400"`
}

// LoadConfig parses environment variables into the Config struct.
func LoadConfig() (*Config, error) {
	var config Config
	if err := env.Parse(&config.EnvVars); err != nil {
		return nil, err
	}
	return &config, nil
}

// S3Enabled reports whether the optional photo-archive bucket is configured.
func (c *Config) S3Enabled() bool {
	return c.EnvVars.S3Bucket != "" && c.EnvVars.AWSRegion != ""
}

// CheckConfigEnvFields validates that all required EnvVars fields are set.
func (c *Config) CheckConfigEnvFields() error {
	return checkFieldsRecursive(reflect.ValueOf(c.EnvVars))
}

func checkFieldsRecursive(v reflect.Value) error {
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := v.Type().Field(i)
		if fieldType.Tag.Get("optional") == "true" {
			continue
		}
		if isZeroValue(field) {
			return fmt.Errorf("$%s must be set", fieldType.Name)
		}
		if field.Kind() == reflect.Struct {
			if err := checkFieldsRecursive(field); err != nil {
				return err
			}
		}
	}
	return nil
}

func isZeroValue(v reflect.Value) bool {
	return v.Interface() == reflect.Zero(v.Type()).Interface()
}
