package config

import (
	"fmt"
	"time"
)

// Config holds gateway configuration
type Config struct {
	Gateway Gateway `yaml:"gateway"`
}

// Gateway configuration
type Gateway struct {
	Server       Server       `yaml:"server"`
	Auth         Auth         `yaml:"auth"`
	Redis        Redis        `yaml:"redis"`
	RateLimit    RateLimit    `yaml:"rateLimit"`
	Health       Health       `yaml:"health"`
	Proxy        Proxy        `yaml:"proxy"`
	LoadBalancer LoadBalancer `yaml:"loadBalancer"`
	Routes       []Route      `yaml:"routes"`
	PublicPaths  []string     `yaml:"publicPaths"`
	Services     []Service    `yaml:"services"`
}

// Server holds the inbound HTTP listener settings
type Server struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	ReadTimeout  int    `yaml:"readTimeout"`
	WriteTimeout int    `yaml:"writeTimeout"`
}

// Addr returns the listen address
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Auth holds token verification settings
type Auth struct {
	// Secret is the HMAC key shared with the token-issuing service
	Secret string `yaml:"secret"`
}

// Redis holds shared store connection settings
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RateLimit holds fixed-window limiter settings
type RateLimit struct {
	// Requests is the number of admitted requests per window
	Requests int `yaml:"requests"`
	// WindowSeconds is the window length
	WindowSeconds int `yaml:"windowSeconds"`
}

// Window returns the window length as a duration
func (r RateLimit) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

// Health holds prober settings
type Health struct {
	IntervalSeconds int `yaml:"intervalSeconds"`
	TimeoutSeconds  int `yaml:"timeoutSeconds"`
}

// Interval returns the probe loop interval
func (h Health) Interval() time.Duration {
	return time.Duration(h.IntervalSeconds) * time.Second
}

// Timeout returns the per-probe timeout
func (h Health) Timeout() time.Duration {
	return time.Duration(h.TimeoutSeconds) * time.Second
}

// Proxy holds outbound forwarding settings
type Proxy struct {
	TimeoutSeconds int `yaml:"timeoutSeconds"`
}

// Timeout returns the per-request forwarding timeout
func (p Proxy) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// LoadBalancer holds instance-selection settings
type LoadBalancer struct {
	Strategy string `yaml:"strategy"`
}

// Route maps a path prefix to a logical service name. Matching is by
// declaration order; the table is immutable after startup.
type Route struct {
	Prefix  string `yaml:"prefix"`
	Service string `yaml:"service"`
}

// Service declares a backend registered at startup
type Service struct {
	Name       string `yaml:"name"`
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	HealthPath string `yaml:"healthPath"`
}
