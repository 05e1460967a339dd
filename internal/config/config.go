package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// ARCHITECTURAL DISCOVERY: configuration layer serves as the system-wide
// settings coordinator, keeping every other package free of os.Getenv calls.
type Config struct {
	Database  *DatabaseConfig  `json:"database"`
	HTTP      *HTTPConfig      `json:"http"`
	WebSocket *WebSocketConfig `json:"websocket"`
	Auth      *AuthConfig      `json:"auth"`
	Cache     *CacheConfig     `json:"cache"`
	Providers *ProvidersConfig `json:"providers"`
}

type DatabaseConfig struct {
	Path    string        `json:"path"`
	Timeout time.Duration `json:"timeout"`
}

type HTTPConfig struct {
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	Host         string        `json:"host"`
	CORSOrigin   string        `json:"cors_origin"`
}

type WebSocketConfig struct {
	PingInterval time.Duration `json:"ping_interval"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	BufferSize   int           `json:"buffer_size"`
}

// AuthConfig configures verification of doctor bearer tokens. The core
// never issues tokens; Secret only needs to match whatever minted them.
type AuthConfig struct {
	TokenSecret string        `json:"-"`
	TokenTTL    time.Duration `json:"token_ttl"`
}

// CacheConfig points at the Redis instance backing the artifact cache.
type CacheConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

// ProvidersConfig configures the external translation/STT/TTS gateway.
type ProvidersConfig struct {
	BaseURL string        `json:"base_url"`
	APIKey  string        `json:"-"`
	Timeout time.Duration `json:"timeout"`
}

// DefaultConfig returns production-ready defaults for local development;
// deployments are expected to override Auth.TokenSecret and Providers.APIKey.
func DefaultConfig() *Config {
	return &Config{
		Database: &DatabaseConfig{
			Path:    "./data/rooms.db",
			Timeout: 30 * time.Second,
		},
		HTTP: &HTTPConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			Host:         "0.0.0.0",
			CORSOrigin:   "*",
		},
		WebSocket: &WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
			BufferSize:   100,
		},
		Auth: &AuthConfig{
			TokenSecret: "",
			TokenTTL:    24 * time.Hour,
		},
		Cache: &CacheConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
		},
		Providers: &ProvidersConfig{
			BaseURL: "",
			APIKey:  "",
			Timeout: 10 * time.Second,
		},
	}
}

// Validate ensures every section is internally consistent. TokenSecret and
// APIKey are not checked: an empty value passes Validate.
func (c *Config) Validate() error {
	if c.Database == nil {
		return fmt.Errorf("database configuration is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.Timeout <= 0 {
		return fmt.Errorf("database timeout must be positive")
	}

	if c.HTTP == nil {
		return fmt.Errorf("HTTP configuration is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.ReadTimeout <= 0 {
		return fmt.Errorf("HTTP read timeout must be positive")
	}
	if c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP write timeout must be positive")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}

	if c.WebSocket == nil {
		return fmt.Errorf("WebSocket configuration is required")
	}
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("WebSocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= 0 {
		return fmt.Errorf("WebSocket read timeout must be positive")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket write timeout must be positive")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("WebSocket buffer size must be positive")
	}

	if c.Auth == nil {
		return fmt.Errorf("auth configuration is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth token ttl must be positive")
	}

	if c.Cache == nil {
		return fmt.Errorf("cache configuration is required")
	}
	if c.Cache.Addr == "" {
		return fmt.Errorf("cache address cannot be empty")
	}

	if c.Providers == nil {
		return fmt.Errorf("providers configuration is required")
	}
	if c.Providers.Timeout <= 0 {
		return fmt.Errorf("providers timeout must be positive")
	}

	return nil
}

// LoadFromEnv overrides defaults with SWITCHBOARD_/ROOM_-prefixed
// environment variables, ignoring any that fail to parse.
func LoadFromEnv() *Config {
	config := DefaultConfig()

	if port := os.Getenv("SWITCHBOARD_HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.HTTP.Port = p
		}
	}
	if host := os.Getenv("SWITCHBOARD_HTTP_HOST"); host != "" {
		config.HTTP.Host = host
	}
	if origin := os.Getenv("ROOM_CORS_ORIGIN"); origin != "" {
		config.HTTP.CORSOrigin = origin
	}
	if dbPath := os.Getenv("SWITCHBOARD_DATABASE_PATH"); dbPath != "" {
		config.Database.Path = dbPath
	}
	if readTimeout := os.Getenv("SWITCHBOARD_HTTP_READ_TIMEOUT"); readTimeout != "" {
		if timeout, err := time.ParseDuration(readTimeout); err == nil {
			config.HTTP.ReadTimeout = timeout
		}
	}
	if writeTimeout := os.Getenv("SWITCHBOARD_HTTP_WRITE_TIMEOUT"); writeTimeout != "" {
		if timeout, err := time.ParseDuration(writeTimeout); err == nil {
			config.HTTP.WriteTimeout = timeout
		}
	}
	if dbTimeout := os.Getenv("SWITCHBOARD_DATABASE_TIMEOUT"); dbTimeout != "" {
		if timeout, err := time.ParseDuration(dbTimeout); err == nil {
			config.Database.Timeout = timeout
		}
	}
	if pingInterval := os.Getenv("SWITCHBOARD_WEBSOCKET_PING_INTERVAL"); pingInterval != "" {
		if interval, err := time.ParseDuration(pingInterval); err == nil {
			config.WebSocket.PingInterval = interval
		}
	}
	if wsReadTimeout := os.Getenv("SWITCHBOARD_WEBSOCKET_READ_TIMEOUT"); wsReadTimeout != "" {
		if timeout, err := time.ParseDuration(wsReadTimeout); err == nil {
			config.WebSocket.ReadTimeout = timeout
		}
	}
	if wsWriteTimeout := os.Getenv("SWITCHBOARD_WEBSOCKET_WRITE_TIMEOUT"); wsWriteTimeout != "" {
		if timeout, err := time.ParseDuration(wsWriteTimeout); err == nil {
			config.WebSocket.WriteTimeout = timeout
		}
	}
	if bufferSize := os.Getenv("SWITCHBOARD_WEBSOCKET_BUFFER_SIZE"); bufferSize != "" {
		if size, err := strconv.Atoi(bufferSize); err == nil {
			config.WebSocket.BufferSize = size
		}
	}

	if secret := os.Getenv("ROOM_TOKEN_SECRET"); secret != "" {
		config.Auth.TokenSecret = secret
	}
	if ttl := os.Getenv("ROOM_TOKEN_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			config.Auth.TokenTTL = d
		}
	}

	if addr := os.Getenv("ROOM_CACHE_ADDR"); addr != "" {
		config.Cache.Addr = addr
	}
	if password := os.Getenv("ROOM_CACHE_PASSWORD"); password != "" {
		config.Cache.Password = password
	}
	if db := os.Getenv("ROOM_CACHE_DB"); db != "" {
		if n, err := strconv.Atoi(db); err == nil {
			config.Cache.DB = n
		}
	}

	if baseURL := os.Getenv("ROOM_PROVIDER_BASE_URL"); baseURL != "" {
		config.Providers.BaseURL = baseURL
	}
	if apiKey := os.Getenv("ROOM_PROVIDER_API_KEY"); apiKey != "" {
		config.Providers.APIKey = apiKey
	}
	if timeout := os.Getenv("ROOM_PROVIDER_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Providers.Timeout = d
		}
	}

	return config
}

// ConfigFile mirrors Config for JSON files, using string durations since
// encoding/json has no native time.Duration support.
type ConfigFile struct {
	Database  *DatabaseConfigFile  `json:"database"`
	HTTP      *HTTPConfigFile      `json:"http"`
	WebSocket *WebSocketConfigFile `json:"websocket"`
	Auth      *AuthConfigFile      `json:"auth"`
	Cache     *CacheConfigFile     `json:"cache"`
	Providers *ProvidersConfigFile `json:"providers"`
}

type DatabaseConfigFile struct {
	Path    string `json:"path"`
	Timeout string `json:"timeout"`
}

type HTTPConfigFile struct {
	Port         int    `json:"port"`
	ReadTimeout  string `json:"read_timeout"`
	WriteTimeout string `json:"write_timeout"`
	Host         string `json:"host"`
	CORSOrigin   string `json:"cors_origin"`
}

type WebSocketConfigFile struct {
	PingInterval string `json:"ping_interval"`
	ReadTimeout  string `json:"read_timeout"`
	WriteTimeout string `json:"write_timeout"`
	BufferSize   int    `json:"buffer_size"`
}

type AuthConfigFile struct {
	TokenTTL string `json:"token_ttl"`
}

type CacheConfigFile struct {
	Addr string `json:"addr"`
	DB   int    `json:"db"`
}

type ProvidersConfigFile struct {
	BaseURL string `json:"base_url"`
	Timeout string `json:"timeout"`
}

// LoadFromFile reads a JSON config file on top of DefaultConfig; it does not
// call Validate on the result. Secrets (token secret, cache password, API key) are
// never read from file — env-only, so they never land in a checked-in file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var configFile ConfigFile
	if err := json.Unmarshal(data, &configFile); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config := DefaultConfig()

	if configFile.Database != nil {
		config.Database.Path = configFile.Database.Path
		if configFile.Database.Timeout != "" {
			if timeout, err := time.ParseDuration(configFile.Database.Timeout); err == nil {
				config.Database.Timeout = timeout
			}
		}
	}

	if configFile.HTTP != nil {
		if configFile.HTTP.Port > 0 {
			config.HTTP.Port = configFile.HTTP.Port
		}
		if configFile.HTTP.Host != "" {
			config.HTTP.Host = configFile.HTTP.Host
		}
		if configFile.HTTP.CORSOrigin != "" {
			config.HTTP.CORSOrigin = configFile.HTTP.CORSOrigin
		}
		if configFile.HTTP.ReadTimeout != "" {
			if timeout, err := time.ParseDuration(configFile.HTTP.ReadTimeout); err == nil {
				config.HTTP.ReadTimeout = timeout
			}
		}
		if configFile.HTTP.WriteTimeout != "" {
			if timeout, err := time.ParseDuration(configFile.HTTP.WriteTimeout); err == nil {
				config.HTTP.WriteTimeout = timeout
			}
		}
	}

	if configFile.WebSocket != nil {
		if configFile.WebSocket.BufferSize > 0 {
			config.WebSocket.BufferSize = configFile.WebSocket.BufferSize
		}
		if configFile.WebSocket.PingInterval != "" {
			if interval, err := time.ParseDuration(configFile.WebSocket.PingInterval); err == nil {
				config.WebSocket.PingInterval = interval
			}
		}
		if configFile.WebSocket.ReadTimeout != "" {
			if timeout, err := time.ParseDuration(configFile.WebSocket.ReadTimeout); err == nil {
				config.WebSocket.ReadTimeout = timeout
			}
		}
		if configFile.WebSocket.WriteTimeout != "" {
			if timeout, err := time.ParseDuration(configFile.WebSocket.WriteTimeout); err == nil {
				config.WebSocket.WriteTimeout = timeout
			}
		}
	}

	if configFile.Auth != nil && configFile.Auth.TokenTTL != "" {
		if d, err := time.ParseDuration(configFile.Auth.TokenTTL); err == nil {
			config.Auth.TokenTTL = d
		}
	}

	if configFile.Cache != nil {
		if configFile.Cache.Addr != "" {
			config.Cache.Addr = configFile.Cache.Addr
		}
		if configFile.Cache.DB != 0 {
			config.Cache.DB = configFile.Cache.DB
		}
	}

	if configFile.Providers != nil {
		if configFile.Providers.BaseURL != "" {
			config.Providers.BaseURL = configFile.Providers.BaseURL
		}
		if configFile.Providers.Timeout != "" {
			if d, err := time.ParseDuration(configFile.Providers.Timeout); err == nil {
				config.Providers.Timeout = d
			}
		}
	}

	return config, nil
}

// LoadConfigWithPrecedence starts from the environment over defaults. When
// an optional file loads, the result is that file applied on top of
// DefaultConfig: only the three secrets are carried over from the
// environment, and other environment values are not kept. Secrets always
// come from the environment, since ConfigFile carries no secret fields.
func LoadConfigWithPrecedence(path string) *Config {
	config := DefaultConfig()

	envConfig := LoadFromEnv()
	if envConfig != nil {
		config = envConfig
	}

	if path != "" {
		if fileConfig, err := LoadFromFile(path); err == nil {
			fileConfig.Auth.TokenSecret = config.Auth.TokenSecret
			fileConfig.Cache.Password = config.Cache.Password
			fileConfig.Providers.APIKey = config.Providers.APIKey
			config = fileConfig
		}
	}

	return config
}
