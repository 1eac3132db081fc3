package config

// applyDefaults fills unset fields before validation
func applyDefaults(cfg *Config) {
	gw := &cfg.Gateway

	if gw.Server.Host == "" {
		gw.Server.Host = "0.0.0.0"
	}
	if gw.Server.Port == 0 {
		gw.Server.Port = 8000
	}
	if gw.Server.ReadTimeout == 0 {
		gw.Server.ReadTimeout = 30
	}
	if gw.Server.WriteTimeout == 0 {
		gw.Server.WriteTimeout = 60
	}

	if gw.Redis.Addr == "" {
		gw.Redis.Addr = "redis:6379"
	}

	if gw.RateLimit.Requests == 0 {
		gw.RateLimit.Requests = 1000
	}
	if gw.RateLimit.WindowSeconds == 0 {
		gw.RateLimit.WindowSeconds = 3600
	}

	if gw.Health.IntervalSeconds == 0 {
		gw.Health.IntervalSeconds = 30
	}
	if gw.Health.TimeoutSeconds == 0 {
		gw.Health.TimeoutSeconds = 5
	}

	if gw.Proxy.TimeoutSeconds == 0 {
		gw.Proxy.TimeoutSeconds = 30
	}

	if gw.LoadBalancer.Strategy == "" {
		gw.LoadBalancer.Strategy = "round_robin"
	}

	if len(gw.PublicPaths) == 0 {
		gw.PublicPaths = []string{
			"/auth/login",
			"/auth/register",
			"/health",
			"/docs",
		}
	}

	for i := range gw.Services {
		if gw.Services[i].HealthPath == "" {
			gw.Services[i].HealthPath = "/health"
		}
	}
}
