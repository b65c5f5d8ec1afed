package config

import (
	"github.com/kelseyhightower/envconfig"
)

var singleConfig *Config = nil

type Config struct {
	Database *dbConfig
	Service  *svcConfig
	Worker   *workerConfig
}

type dbConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"pgsql"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"studio"`
	User     string `envconfig:"DB_USER" default:"admin"`
	Password string `envconfig:"DB_PASS" default:"adminpass"`
}

type svcConfig struct {
	Address         string `envconfig:"GENERATION_API_ADDRESS" default:":3443"`
	MetricsAddress  string `envconfig:"GENERATION_API_METRICS_ADDRESS" default:":8080"`
	BaseUrl         string `envconfig:"GENERATION_API_BASE_URL" default:"https://localhost:3443"`
	LogLevel        string `envconfig:"GENERATION_API_LOG_LEVEL" default:"info"`
	MigrationFolder string `envconfig:"GENERATION_API_MIGRATIONS_FOLDER" default:""`
	Auth            Auth
}

type workerConfig struct {
	// URL of the external worker's synchronous accept endpoint.
	URL string `envconfig:"GENERATION_WORKER_URL" default:""`
	// Shared secret sent on submissions and expected back on completion
	// webhooks. Webhook authentication is disabled when empty.
	WebhookSecret string `envconfig:"GENERATION_WORKER_WEBHOOK_SECRET" default:""`
	// Advisory only, used when the worker does not return its own estimate.
	EstimatedWaitSeconds int `envconfig:"GENERATION_WORKER_ESTIMATED_WAIT_SECONDS" default:"240"`
	RequestTimeout       int `envconfig:"GENERATION_WORKER_REQUEST_TIMEOUT_SECONDS" default:"30"`
}

type Auth struct {
	AuthenticationType string `envconfig:"GENERATION_API_AUTH" default:""`
	JwkCertURL         string `envconfig:"GENERATION_API_JWK_URL" default:""`
	LocalSigningKey    string `envconfig:"GENERATION_API_LOCAL_SIGNING_KEY" default:""`
}

func New() (*Config, error) {
	if singleConfig == nil {
		singleConfig = new(Config)
		if err := envconfig.Process("", singleConfig); err != nil {
			return nil, err
		}
	}
	return singleConfig, nil
}

// NewDefault returns a config populated with defaults only, ignoring the
// environment. Used by tests.
func NewDefault() *Config {
	return &Config{
		Database: &dbConfig{Type: "sqlite", Name: ":memory:"},
		Service:  &svcConfig{LogLevel: "info"},
		Worker:   &workerConfig{EstimatedWaitSeconds: 240, RequestTimeout: 30},
	}
}
