package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"cloudgateway/pkg/errors"
)

// Loader loads configuration from file
type Loader struct {
	path       string
	envEnabled bool
}

// NewLoader creates a config loader
func NewLoader(path string) *Loader {
	return &Loader{
		path:       path,
		envEnabled: true,
	}
}

// WithEnvVars enables or disables environment variable overrides
func (l *Loader) WithEnvVars(enabled bool) *Loader {
	l.envEnabled = enabled
	return l
}

// Load reads, defaults, overrides and validates the configuration
func (l *Loader) Load() (*Config, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, errors.NewError(errors.ErrorTypeInternal, errors.CodeInternalError, "failed to read config file").WithCause(err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.NewError(errors.ErrorTypeInternal, errors.CodeInternalError, "failed to parse config").WithCause(err)
	}

	applyDefaults(&cfg)

	if l.envEnabled {
		if err := LoadEnv(&cfg); err != nil {
			return nil, errors.NewError(errors.ErrorTypeInternal, errors.CodeInternalError, "failed to load env vars").WithCause(err)
		}
	}

	if err := validate(&cfg); err != nil {
		return nil, errors.NewError(errors.ErrorTypeBadRequest, "", "invalid configuration").WithCause(err)
	}

	return &cfg, nil
}

var validStrategies = map[string]bool{
	"round_robin":       true,
	"random":            true,
	"least_connections": true,
}

func validate(cfg *Config) error {
	gw := &cfg.Gateway

	if gw.Auth.Secret == "" {
		return fmt.Errorf("auth secret is required")
	}

	if !validStrategies[gw.LoadBalancer.Strategy] {
		return fmt.Errorf("unknown load balancer strategy: %s", gw.LoadBalancer.Strategy)
	}

	if len(gw.Routes) == 0 {
		return fmt.Errorf("at least one route is required")
	}

	for i, route := range gw.Routes {
		if !strings.HasPrefix(route.Prefix, "/") {
			return fmt.Errorf("route %d: prefix must start with /", i)
		}
		if route.Service == "" {
			return fmt.Errorf("route %d: service name is required", i)
		}
	}

	for i, svc := range gw.Services {
		if svc.Name == "" {
			return fmt.Errorf("service %d: name is required", i)
		}
		if svc.Host == "" {
			return fmt.Errorf("service %q: host is required", svc.Name)
		}
		if svc.Port <= 0 || svc.Port > 65535 {
			return fmt.Errorf("service %q: invalid port %d", svc.Name, svc.Port)
		}
	}

	return nil
}
