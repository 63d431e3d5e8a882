package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

type ServerConfig struct {
	Address     string `mapstructure:"address"`
	Environment string `mapstructure:"environment"`
	Identity    string `mapstructure:"identity"`
	Name        string `mapstructure:"name"`
}

type HealthCheckConfig struct {
	Interval string `mapstructure:"interval"`
	Timeout  string `mapstructure:"timeout"`
	Path     string `mapstructure:"path"`
}

type ProxyConfig struct {
	Timeout       string `mapstructure:"timeout"`
	SkipUnhealthy bool   `mapstructure:"skip_unhealthy"`
}

type MetricsConfig struct {
	MaxSamples int `mapstructure:"max_samples"`
}

// ServiceConfig declares one logical backend service: the instances that
// serve it and the path prefixes it owns.
type ServiceConfig struct {
	Name      string   `mapstructure:"name"`
	Instances []string `mapstructure:"instances"`
	Routes    []string `mapstructure:"routes"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	HealthCheck HealthCheckConfig `mapstructure:"health_check"`
	Proxy       ProxyConfig       `mapstructure:"proxy"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Services    []ServiceConfig   `mapstructure:"services"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// DefaultServices is the chama registry used when no services are configured.
func DefaultServices() []ServiceConfig {
	return []ServiceConfig{
		{Name: "member", Instances: []string{"http://localhost:5001"}, Routes: []string{"/members"}},
		{Name: "contribution", Instances: []string{"http://localhost:5002"}, Routes: []string{"/contributions"}},
		{Name: "loan", Instances: []string{"http://localhost:5003"}, Routes: []string{"/loans"}},
		{Name: "notification", Instances: []string{"http://localhost:5004"}, Routes: []string{"/notifications"}},
		{Name: "savings", Instances: []string{"http://localhost:5005"}, Routes: []string{"/savings", "/investments", "/dividends", "/portfolio"}},
		{Name: "report", Instances: []string{"http://localhost:5006"}, Routes: []string{"/reports"}},
	}
}

func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.environment", EnvDev)
	v.SetDefault("server.address", ":5000")
	v.SetDefault("server.identity", "Chama-LB-v1")
	v.SetDefault("server.name", "Chama Load Balancer")
	v.SetDefault("health_check.interval", "10s")
	v.SetDefault("health_check.timeout", "2s")
	v.SetDefault("health_check.path", "/health")
	v.SetDefault("proxy.timeout", "5s")
	v.SetDefault("proxy.skip_unhealthy", false)
	v.SetDefault("metrics.max_samples", 0)
	v.SetDefault("logging.level", LogLevelInfo)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Warn("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if len(cfg.Services) == 0 {
		cfg.Services = DefaultServices()
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

// HealthCheckInterval returns the parsed sweep interval.
// Validate guarantees it parses.
func (c *Config) HealthCheckInterval() time.Duration {
	d, _ := time.ParseDuration(c.HealthCheck.Interval)
	return d
}

func (c *Config) HealthCheckTimeout() time.Duration {
	d, _ := time.ParseDuration(c.HealthCheck.Timeout)
	return d
}

func (c *Config) ProxyTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Proxy.Timeout)
	return d
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
					validation.Field(&sc.Identity, validation.Required),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.HealthCheck,
			validation.Required,
			validation.By(func(value interface{}) error {
				hc, ok := value.(HealthCheckConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a HealthCheckConfig")
				}
				return validation.ValidateStruct(&hc,
					validation.Field(&hc.Interval,
						validation.Required,
						validation.By(validateDuration),
					),
					validation.Field(&hc.Timeout,
						validation.Required,
						validation.By(validateDuration),
					),
					validation.Field(&hc.Path,
						validation.Required,
						validation.By(validateRoutePrefix),
					),
				)
			}),
		),
		validation.Field(&c.Proxy,
			validation.By(func(value interface{}) error {
				pc, ok := value.(ProxyConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ProxyConfig")
				}
				return validation.ValidateStruct(&pc,
					validation.Field(&pc.Timeout,
						validation.Required,
						validation.By(validateDuration),
					),
				)
			}),
		),
		validation.Field(&c.Metrics,
			validation.By(func(value interface{}) error {
				mc, ok := value.(MetricsConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a MetricsConfig")
				}
				return validation.ValidateStruct(&mc,
					validation.Field(&mc.MaxSamples, validation.Min(0)),
				)
			}),
		),
		validation.Field(&c.Services,
			validation.Required,
			validation.Length(1, 0),
			validation.Each(validation.By(validateServiceConfig)),
			validation.By(validateDisjointServices),
		),
	)
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}

	if d <= 0 {
		return validation.NewError("validation_invalid_duration", "must be positive")
	}

	return nil
}

func validateInstanceURL(value interface{}) error {
	instanceURL, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if instanceURL == "" {
		return validation.NewError("validation_empty_url", "instance URL cannot be empty")
	}

	parsedURL, err := url.Parse(instanceURL)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	return nil
}

func validateRoutePrefix(value interface{}) error {
	prefix, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if !strings.HasPrefix(prefix, "/") {
		return validation.NewError("validation_invalid_prefix", "path must start with /")
	}

	return nil
}

func validateServiceConfig(value interface{}) error {
	svc, ok := value.(ServiceConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a ServiceConfig")
	}

	return validation.ValidateStruct(&svc,
		validation.Field(&svc.Name, validation.Required),
		validation.Field(&svc.Instances,
			validation.Required,
			validation.Length(1, 0),
			validation.Each(validation.By(validateInstanceURL)),
		),
		validation.Field(&svc.Routes,
			validation.Required,
			validation.Length(1, 0),
			validation.Each(validation.By(validateRoutePrefix)),
		),
	)
}

// validateDisjointServices rejects duplicate service names and prefixes
// claimed by more than one service.
func validateDisjointServices(value interface{}) error {
	services, ok := value.([]ServiceConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a list of ServiceConfig")
	}

	names := make(map[string]struct{}, len(services))
	owners := make(map[string]string)

	for _, svc := range services {
		if _, dup := names[svc.Name]; dup {
			return validation.NewError("validation_duplicate_service",
				fmt.Sprintf("service %q declared twice", svc.Name))
		}
		names[svc.Name] = struct{}{}

		for _, route := range svc.Routes {
			if owner, taken := owners[route]; taken && owner != svc.Name {
				return validation.NewError("validation_duplicate_route",
					fmt.Sprintf("route %q claimed by %q and %q", route, owner, svc.Name))
			}
			owners[route] = svc.Name
		}
	}

	return nil
}
