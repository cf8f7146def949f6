package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/flightctl/gitlab-auth/internal/util"
	"github.com/magiconair/properties"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"sigs.k8s.io/yaml"
)

const (
	appName   = "gitlab-auth"
	envPrefix = "GITLABAUTH"

	// DefaultConfigFile is relative to the working directory.
	DefaultConfigFile = "etc/gitlabauth.properties"

	DefaultApiUrl            = "https://gitlab.com"
	DefaultPrincipalCacheTTL = "PT1M"
	DefaultAdminRole         = "nx-admin"

	CacheTypeMemory = "memory"
	CacheTypeRedis  = "redis"
)

// Property keys. The gitlab.* keys keep the names used by existing
// gitlabauth.properties files.
const (
	apiUrlKey                  = "gitlab.api.url"
	apiKeyKey                  = "gitlab.api.key"
	ignoreCertificateErrorsKey = "gitlab.api.ignore.certificate.errors"
	apiTimeoutKey              = "gitlab.api.timeout"
	principalCacheTTLKey       = "gitlab.principal.cache.ttl"
	legacyPrincipalCacheTTLKey = "github.principal.cache.ttl"
	defaultRoleKey             = "gitlab.role.default"
	adminMappingKey            = "gitlab.role.admin.mapping.enabled"
	adminRoleKey               = "gitlab.role.admin.name"

	serviceAddressKey       = "service.address"
	serviceLogLevelKey      = "service.log.level"
	rateLimitEnabledKey     = "service.ratelimit.enabled"
	rateLimitRequestsKey    = "service.ratelimit.requests"
	rateLimitWindowKey      = "service.ratelimit.window"
	rateLimitTrustedProxies = "service.ratelimit.trusted.proxies"

	cacheTypeKey           = "cache.type"
	cacheCapacityKey       = "cache.capacity"
	redisHostnameKey       = "cache.redis.hostname"
	redisPortKey           = "cache.redis.port"
	redisUsernameKey       = "cache.redis.username"
	redisPasswordKey       = "cache.redis.password"
	redisDBKey             = "cache.redis.db"
	redisCaCertFileKey     = "cache.redis.ca.cert.file"
	redisCertFileKey       = "cache.redis.cert.file"
	redisKeyFileKey        = "cache.redis.key.file"
	redisFingerprintKeyKey = "cache.redis.fingerprint.key"

	metricsEnabledKey = "metrics.enabled"
	metricsAddressKey = "metrics.address"

	tracingEnabledKey  = "tracing.enabled"
	tracingEndpointKey = "tracing.endpoint"
	tracingInsecureKey = "tracing.insecure"
)

type Config struct {
	GitLab  *GitLabConfig  `json:"gitlab,omitempty"`
	Service *ServiceConfig `json:"service,omitempty"`
	Cache   *CacheConfig   `json:"cache,omitempty"`
	Metrics *MetricsConfig `json:"metrics,omitempty"`
	Tracing *TracingConfig `json:"tracing,omitempty"`
}

// GitLabConfig is the realm configuration: where GitLab lives and how
// verified identities turn into roles.
type GitLabConfig struct {
	ApiUrl                  string        `json:"apiUrl,omitempty"`
	ApiKey                  SecureString  `json:"apiKey,omitempty"`
	IgnoreCertificateErrors bool          `json:"ignoreCertificateErrors,omitempty"`
	Timeout                 util.Duration `json:"timeout,omitempty"`
	PrincipalCacheTTL       util.Duration `json:"principalCacheTTL,omitempty"`
	DefaultRole             string        `json:"defaultRole,omitempty"`
	AdminMappingEnabled     bool          `json:"adminMappingEnabled,omitempty"`
	AdminRole               string        `json:"adminRole,omitempty"`
}

type ServiceConfig struct {
	Address   string           `json:"address,omitempty"`
	LogLevel  string           `json:"logLevel,omitempty"`
	RateLimit *RateLimitConfig `json:"rateLimit,omitempty"`
}

type RateLimitConfig struct {
	Enabled        bool          `json:"enabled,omitempty"`
	Requests       int           `json:"requests,omitempty"`
	Window         util.Duration `json:"window,omitempty"`
	TrustedProxies []string      `json:"trustedProxies,omitempty"`
}

type CacheConfig struct {
	Type     string       `json:"type,omitempty"`
	Capacity uint64       `json:"capacity,omitempty"`
	Redis    *RedisConfig `json:"redis,omitempty"`
}

type RedisConfig struct {
	Hostname   string       `json:"hostname,omitempty"`
	Port       uint         `json:"port,omitempty"`
	Username   string       `json:"username,omitempty"`
	Password   SecureString `json:"password,omitempty"`
	DB         int          `json:"db,omitempty"`
	CaCertFile string       `json:"caCertFile,omitempty"`
	CertFile   string       `json:"certFile,omitempty"`
	KeyFile    string       `json:"keyFile,omitempty"`
	// FingerprintKey keys the HMAC used for cache keys so that replicas
	// sharing one Redis agree on them.
	FingerprintKey SecureString `json:"fingerprintKey,omitempty"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Address string `json:"address,omitempty"`
}

type TracingConfig struct {
	Enabled  bool   `json:"enabled,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
	Insecure bool   `json:"insecure,omitempty"`
}

func ConfigFile() string {
	if path := os.Getenv(envPrefix + "_CONFIG"); path != "" {
		return path
	}
	return DefaultConfigFile
}

func NewDefault() *Config {
	ttl, _ := util.ParseISO8601Duration(DefaultPrincipalCacheTTL)
	return &Config{
		GitLab: &GitLabConfig{
			ApiUrl:            DefaultApiUrl,
			Timeout:           util.Duration(10 * time.Second),
			PrincipalCacheTTL: util.Duration(ttl),
			AdminRole:         DefaultAdminRole,
		},
		Service: &ServiceConfig{
			Address:  ":8443",
			LogLevel: "info",
			RateLimit: &RateLimitConfig{
				Enabled:  true,
				Requests: 60,
				Window:   util.Duration(time.Minute),
			},
		},
		Cache: &CacheConfig{
			Type: CacheTypeMemory,
			Redis: &RedisConfig{
				Hostname: "localhost",
				Port:     6379,
			},
		},
		Metrics: &MetricsConfig{
			Enabled: true,
			Address: ":15690",
		},
		Tracing: &TracingConfig{
			Enabled: false,
		},
	}
}

func NewFromFile(cfgFile string) (*Config, error) {
	cfg, err := Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads cfgFile (properties or yaml) on top of the defaults and applies
// GITLABAUTH_* environment overrides. An empty cfgFile means defaults and
// environment only.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v, NewDefault())
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		if err := readConfigFile(v, cfgFile); err != nil {
			return nil, err
		}
	}
	return fromViper(v)
}

func readConfigFile(v *viper.Viper, cfgFile string) error {
	switch strings.ToLower(filepath.Ext(cfgFile)) {
	case ".properties", ".props", ".prop":
		p, err := properties.LoadFile(cfgFile, properties.UTF8)
		if err != nil {
			return fmt.Errorf("reading config file: %w", err)
		}
		nested, err := nestProperties(p.Map())
		if err != nil {
			return fmt.Errorf("decoding config: %w", err)
		}
		if err := v.MergeConfigMap(nested); err != nil {
			return fmt.Errorf("decoding config: %w", err)
		}
	default:
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file: %w", err)
		}
	}
	return nil
}

// nestProperties turns dotted property keys into the nested map viper
// expects, so that properties and yaml files resolve keys the same way.
func nestProperties(flat map[string]string) (map[string]any, error) {
	root := map[string]any{}
	for key, value := range flat {
		parts := strings.Split(strings.ToLower(key), ".")
		node := root
		for _, part := range parts[:len(parts)-1] {
			next, ok := node[part]
			if !ok {
				child := map[string]any{}
				node[part] = child
				node = child
				continue
			}
			child, ok := next.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("property %q conflicts with a value set on one of its prefixes", key)
			}
			node = child
		}
		leaf := parts[len(parts)-1]
		if _, exists := node[leaf]; exists {
			return nil, fmt.Errorf("property %q conflicts with a nested property", key)
		}
		node[leaf] = value
	}
	return root, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault(apiUrlKey, d.GitLab.ApiUrl)
	v.SetDefault(ignoreCertificateErrorsKey, d.GitLab.IgnoreCertificateErrors)
	v.SetDefault(apiTimeoutKey, d.GitLab.Timeout.String())
	v.SetDefault(adminMappingKey, d.GitLab.AdminMappingEnabled)
	v.SetDefault(adminRoleKey, d.GitLab.AdminRole)

	v.SetDefault(serviceAddressKey, d.Service.Address)
	v.SetDefault(serviceLogLevelKey, d.Service.LogLevel)
	v.SetDefault(rateLimitEnabledKey, d.Service.RateLimit.Enabled)
	v.SetDefault(rateLimitRequestsKey, d.Service.RateLimit.Requests)
	v.SetDefault(rateLimitWindowKey, d.Service.RateLimit.Window.String())

	v.SetDefault(cacheTypeKey, d.Cache.Type)
	v.SetDefault(cacheCapacityKey, d.Cache.Capacity)
	v.SetDefault(redisHostnameKey, d.Cache.Redis.Hostname)
	v.SetDefault(redisPortKey, d.Cache.Redis.Port)
	v.SetDefault(redisDBKey, d.Cache.Redis.DB)

	v.SetDefault(metricsEnabledKey, d.Metrics.Enabled)
	v.SetDefault(metricsAddressKey, d.Metrics.Address)

	v.SetDefault(tracingEnabledKey, d.Tracing.Enabled)
	v.SetDefault(tracingInsecureKey, d.Tracing.Insecure)
}

func fromViper(v *viper.Viper) (*Config, error) {
	c := NewDefault()

	c.GitLab.ApiUrl = strings.TrimSpace(v.GetString(apiUrlKey))
	c.GitLab.ApiKey = SecureString(strings.TrimSpace(v.GetString(apiKeyKey)))
	c.GitLab.IgnoreCertificateErrors = v.GetBool(ignoreCertificateErrorsKey)
	c.GitLab.DefaultRole = strings.TrimSpace(v.GetString(defaultRoleKey))
	c.GitLab.AdminMappingEnabled = v.GetBool(adminMappingKey)
	c.GitLab.AdminRole = strings.TrimSpace(v.GetString(adminRoleKey))

	timeout, err := getDuration(v, apiTimeoutKey)
	if err != nil {
		return nil, err
	}
	c.GitLab.Timeout = util.Duration(timeout)

	// The legacy key is only consulted when the current one is absent.
	ttlKey := principalCacheTTLKey
	if strings.TrimSpace(v.GetString(ttlKey)) == "" && strings.TrimSpace(v.GetString(legacyPrincipalCacheTTLKey)) != "" {
		ttlKey = legacyPrincipalCacheTTLKey
	}
	if strings.TrimSpace(v.GetString(ttlKey)) != "" {
		ttl, err := getDuration(v, ttlKey)
		if err != nil {
			return nil, err
		}
		c.GitLab.PrincipalCacheTTL = util.Duration(ttl)
	}

	c.Service.Address = v.GetString(serviceAddressKey)
	c.Service.LogLevel = v.GetString(serviceLogLevelKey)
	c.Service.RateLimit.Enabled = v.GetBool(rateLimitEnabledKey)
	c.Service.RateLimit.Requests = v.GetInt(rateLimitRequestsKey)
	window, err := getDuration(v, rateLimitWindowKey)
	if err != nil {
		return nil, err
	}
	c.Service.RateLimit.Window = util.Duration(window)
	c.Service.RateLimit.TrustedProxies = splitList(v.GetString(rateLimitTrustedProxies))

	c.Cache.Type = strings.ToLower(strings.TrimSpace(v.GetString(cacheTypeKey)))
	c.Cache.Capacity = v.GetUint64(cacheCapacityKey)
	c.Cache.Redis.Hostname = v.GetString(redisHostnameKey)
	c.Cache.Redis.Port = v.GetUint(redisPortKey)
	c.Cache.Redis.Username = v.GetString(redisUsernameKey)
	c.Cache.Redis.Password = SecureString(v.GetString(redisPasswordKey))
	c.Cache.Redis.DB = v.GetInt(redisDBKey)
	c.Cache.Redis.CaCertFile = v.GetString(redisCaCertFileKey)
	c.Cache.Redis.CertFile = v.GetString(redisCertFileKey)
	c.Cache.Redis.KeyFile = v.GetString(redisKeyFileKey)
	c.Cache.Redis.FingerprintKey = SecureString(v.GetString(redisFingerprintKeyKey))

	c.Metrics.Enabled = v.GetBool(metricsEnabledKey)
	c.Metrics.Address = v.GetString(metricsAddressKey)

	c.Tracing.Enabled = v.GetBool(tracingEnabledKey)
	c.Tracing.Endpoint = v.GetString(tracingEndpointKey)
	c.Tracing.Insecure = v.GetBool(tracingInsecureKey)

	return c, nil
}

func getDuration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := util.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return d, nil
}

// splitList accepts the comma separated form used in properties files.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func Validate(cfg *Config) error {
	var errs []error

	if cfg.GitLab == nil {
		return errors.New("gitlab configuration is missing")
	}
	u, err := url.Parse(cfg.GitLab.ApiUrl)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("%s must be an absolute http(s) URL, got %q", apiUrlKey, cfg.GitLab.ApiUrl))
	}
	if cfg.GitLab.PrincipalCacheTTL.Duration() <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", principalCacheTTLKey))
	}
	if cfg.GitLab.Timeout.Duration() <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", apiTimeoutKey))
	}
	// Group lookups are made via sudo and need the admin token.
	if cfg.GitLab.DefaultRole == "" && cfg.GitLab.ApiKey.IsEmpty() {
		errs = append(errs, fmt.Errorf("%s is required unless %s is set", apiKeyKey, defaultRoleKey))
	}
	if cfg.GitLab.AdminMappingEnabled && cfg.GitLab.AdminRole == "" {
		errs = append(errs, fmt.Errorf("%s must not be empty when admin mapping is enabled", adminRoleKey))
	}

	if cfg.Service != nil {
		if _, err := logrus.ParseLevel(cfg.Service.LogLevel); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", serviceLogLevelKey, err))
		}
		if rl := cfg.Service.RateLimit; rl != nil && rl.Enabled {
			if rl.Requests <= 0 {
				errs = append(errs, fmt.Errorf("%s must be positive", rateLimitRequestsKey))
			}
			if rl.Window.Duration() <= 0 {
				errs = append(errs, fmt.Errorf("%s must be positive", rateLimitWindowKey))
			}
		}
	}

	if cfg.Cache != nil {
		switch cfg.Cache.Type {
		case CacheTypeMemory:
		case CacheTypeRedis:
			if cfg.Cache.Redis == nil || cfg.Cache.Redis.Hostname == "" {
				errs = append(errs, fmt.Errorf("%s is required for the redis cache", redisHostnameKey))
			} else if cfg.Cache.Redis.FingerprintKey.IsEmpty() {
				errs = append(errs, fmt.Errorf("%s is required for the redis cache", redisFingerprintKeyKey))
			}
		default:
			errs = append(errs, fmt.Errorf("%s must be %q or %q, got %q", cacheTypeKey, CacheTypeMemory, CacheTypeRedis, cfg.Cache.Type))
		}
	}

	if cfg.Tracing != nil && cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, fmt.Errorf("%s is required when tracing is enabled", tracingEndpointKey))
	}

	return errors.Join(errs...)
}

// String renders the configuration as yaml. Secrets are redacted.
func (cfg *Config) String() string {
	contents, err := yaml.Marshal(cfg)
	if err != nil {
		return "<error>"
	}
	return string(contents)
}

// JSON renders the configuration as json. Secrets are redacted.
func (cfg *Config) JSON() string {
	contents, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "<error>"
	}
	return string(contents)
}
