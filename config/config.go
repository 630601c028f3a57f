// Package config loads the gateway process's environment-derived
// configuration, generalizing the donor main.go's Input struct and
// envconfig.Process call to the larger set of listeners and secret
// sources this gateway wires.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/corvid-gateway/gateway/server"
)

const appName = "gateway"

// Input is the process configuration read from the environment, following
// the donor's GATEWAY_-prefixed (here) envconfig.Process convention.
type Input struct {
	Port         int    `default:"8080"`
	InternalPort int    `envconfig:"INTERNAL_PORT" default:"8081"`
	MetricsPort  int    `envconfig:"METRICS_PORT" default:"8082"`
	RulesetFile  string `envconfig:"RULESET_FILE" required:"true"`
	AuthFile     string `envconfig:"AUTH_FILE" required:"true"`

	SecretSource string `envconfig:"SECRET_SOURCE" default:"file"`
	GCPProjectID string `envconfig:"GCP_PROJECT_ID"`

	RedisHost string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort int    `envconfig:"REDIS_PORT" default:"6379"`
	UseRedis  bool   `envconfig:"USE_REDIS" default:"false"`

	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"5s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"10s"`
	IdleTimeout     time.Duration `envconfig:"IDLE_TIMEOUT" default:"15s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// Load reads Input from the environment, matching the donor's
// envconfig.Process(app, &input) call.
func Load() (*Input, error) {
	var input Input
	if err := envconfig.Process(appName, &input); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return &input, nil
}

func (i *Input) listenerConfig(port int) server.Config {
	return server.Config{
		Address:         fmt.Sprintf(":%d", port),
		ReadTimeout:     i.ReadTimeout,
		WriteTimeout:    i.WriteTimeout,
		IdleTimeout:     i.IdleTimeout,
		ShutdownTimeout: i.ShutdownTimeout,
	}
}

func (i *Input) GatewayServerConfig() server.Config       { return i.listenerConfig(i.Port) }
func (i *Input) InternalServerConfig() server.Config      { return i.listenerConfig(i.InternalPort) }
func (i *Input) ObservabilityServerConfig() server.Config { return i.listenerConfig(i.MetricsPort) }
