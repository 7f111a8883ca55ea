package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env     string `yaml:"app_env"`
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Server struct {
		Addr            string `yaml:"addr"`
		ReadTimeout     string `yaml:"read_timeout"`
		WriteTimeout    string `yaml:"write_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
		// Detrás de un reverse proxy: IP real desde X-Forwarded-For.
		TrustProxy bool `yaml:"trust_proxy"`
	} `yaml:"server"`

	// Fixed window por IP sobre el cache configurado.
	RateLimit struct {
		Enabled   bool `yaml:"enabled"`
		Authorize struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"authorize"`
		Token struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"token"`
	} `yaml:"rate_limit"`

	// memory | postgres
	Storage struct {
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MaxIdleConns    int    `yaml:"max_idle_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
			// Aplica migrations/postgres al arrancar.
			AutoMigrate bool `yaml:"auto_migrate"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	JWT struct {
		// Clave simétrica HS256. Mínimo 32 bytes.
		SigningKey  string `yaml:"signing_key"`
		Issuer      string `yaml:"issuer"`
		Audience    string `yaml:"audience"`
		AccessTTL   string `yaml:"access_ttl"`
		RefreshTTL  string `yaml:"refresh_ttl"`
		AuthCodeTTL string `yaml:"auth_code_ttl"`
	} `yaml:"jwt"`

	OAuth struct {
		// Consume el jti de cada authorization code en el ledger (un solo uso).
		SingleUseCodes bool `yaml:"single_use_codes"`
		// Consume el jti de cada refresh token al rotarlo.
		StrictRefreshRotation bool   `yaml:"strict_refresh_rotation"`
		Scope                 string `yaml:"scope"`
	} `yaml:"oauth"`

	Providers struct {
		Timeout string `yaml:"timeout"`
		Google  struct {
			Enabled      bool     `yaml:"enabled"`
			ClientID     string   `yaml:"client_id"`
			ClientSecret string   `yaml:"client_secret"`
			RedirectURL  string   `yaml:"redirect_url"`
			Scopes       []string `yaml:"scopes"`
			Issuer       string   `yaml:"issuer"`
		} `yaml:"google"`
		// Nombres registrados sin adapter real (responden 501).
		Pending []string `yaml:"pending"`
	} `yaml:"providers"`

	// Admin inicial. Vacío = sin bootstrap.
	Bootstrap struct {
		AdminEmail    string `yaml:"admin_email"`
		AdminPassword string `yaml:"admin_password"`
	} `yaml:"bootstrap"`

	Password struct {
		Argon2 struct {
			Memory      uint32 `yaml:"memory_kib"`
			Iterations  uint32 `yaml:"iterations"`
			Parallelism uint8  `yaml:"parallelism"`
		} `yaml:"argon2"`
	} `yaml:"password"`
}

// Load lee el YAML (si path != ""), aplica defaults, overrides de entorno y valida.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	c.applyDefaults()
	c.applyEnvOverrides()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.Name == "" {
		c.App.Name = "authority"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "10s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "15s"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}
	if c.RateLimit.Authorize.Limit == 0 {
		c.RateLimit.Authorize.Limit = 20
	}
	if c.RateLimit.Authorize.Window == "" {
		c.RateLimit.Authorize.Window = "1m"
	}
	if c.RateLimit.Token.Limit == 0 {
		c.RateLimit.Token.Limit = 60
	}
	if c.RateLimit.Token.Window == "" {
		c.RateLimit.Token.Window = "1m"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Storage.Postgres.MaxOpenConns == 0 {
		c.Storage.Postgres.MaxOpenConns = 10
	}
	if c.Storage.Postgres.ConnMaxLifetime == "" {
		c.Storage.Postgres.ConnMaxLifetime = "30m"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "10m"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "authority"
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "authority"
	}
	if c.JWT.Audience == "" {
		c.JWT.Audience = "authority-clients"
	}
	if c.JWT.AccessTTL == "" {
		c.JWT.AccessTTL = "30m"
	}
	if c.JWT.RefreshTTL == "" {
		c.JWT.RefreshTTL = "168h" // 7d
	}
	if c.JWT.AuthCodeTTL == "" {
		c.JWT.AuthCodeTTL = "10m"
	}
	if c.OAuth.Scope == "" {
		c.OAuth.Scope = "openid email profile"
	}
	if c.Providers.Timeout == "" {
		c.Providers.Timeout = "10s"
	}
	if len(c.Providers.Google.Scopes) == 0 {
		c.Providers.Google.Scopes = []string{"openid", "email", "profile"}
	}
	if c.Providers.Google.Issuer == "" {
		c.Providers.Google.Issuer = "https://accounts.google.com"
	}
	if c.Providers.Pending == nil {
		c.Providers.Pending = []string{"github", "microsoft"}
	}
	if c.Password.Argon2.Memory == 0 {
		c.Password.Argon2.Memory = 64 * 1024
	}
	if c.Password.Argon2.Iterations == 0 {
		c.Password.Argon2.Iterations = 3
	}
	if c.Password.Argon2.Parallelism == 0 {
		c.Password.Argon2.Parallelism = 1
	}
}

// ---------- env helpers ----------

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvCSV(key string) ([]string, bool) {
	s, ok := getEnvStr(key)
	if !ok {
		return nil, false
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, true
}

func (c *Config) applyEnvOverrides() {
	// APP / LOG
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}

	if v, ok := getEnvBool("SERVER_TRUST_PROXY"); ok {
		c.Server.TrustProxy = v
	}

	// RATE LIMIT
	if v, ok := getEnvBool("RATE_LIMIT_ENABLED"); ok {
		c.RateLimit.Enabled = v
	}
	if v, ok := getEnvInt("RATE_LIMIT_AUTHORIZE"); ok {
		c.RateLimit.Authorize.Limit = v
	}
	if v, ok := getEnvInt("RATE_LIMIT_TOKEN"); ok {
		c.RateLimit.Token.Limit = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_OPEN_CONNS"); ok {
		c.Storage.Postgres.MaxOpenConns = v
	}
	if v, ok := getEnvBool("POSTGRES_AUTO_MIGRATE"); ok {
		c.Storage.Postgres.AutoMigrate = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}

	// JWT
	if v, ok := getEnvStr("JWT_SIGNING_KEY"); ok {
		c.JWT.SigningKey = v
	}
	if v, ok := getEnvStr("JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	if v, ok := getEnvStr("JWT_AUDIENCE"); ok {
		c.JWT.Audience = v
	}
	if v, ok := getEnvStr("JWT_ACCESS_TTL"); ok {
		c.JWT.AccessTTL = v
	}
	if v, ok := getEnvStr("JWT_REFRESH_TTL"); ok {
		c.JWT.RefreshTTL = v
	}

	// OAUTH
	if v, ok := getEnvBool("OAUTH_SINGLE_USE_CODES"); ok {
		c.OAuth.SingleUseCodes = v
	}
	if v, ok := getEnvBool("OAUTH_STRICT_REFRESH_ROTATION"); ok {
		c.OAuth.StrictRefreshRotation = v
	}

	// BOOTSTRAP
	if v, ok := getEnvStr("BOOTSTRAP_ADMIN_EMAIL"); ok {
		c.Bootstrap.AdminEmail = v
	}
	if v, ok := getEnvStr("BOOTSTRAP_ADMIN_PASSWORD"); ok {
		c.Bootstrap.AdminPassword = v
	}

	// PROVIDERS
	if v, ok := getEnvStr("PROVIDERS_TIMEOUT"); ok {
		c.Providers.Timeout = v
	}
	if v, ok := getEnvBool("GOOGLE_ENABLED"); ok {
		c.Providers.Google.Enabled = v
	}
	if v, ok := getEnvStr("GOOGLE_CLIENT_ID"); ok {
		c.Providers.Google.ClientID = v
	}
	if v, ok := getEnvStr("GOOGLE_CLIENT_SECRET"); ok {
		c.Providers.Google.ClientSecret = v
	}
	if v, ok := getEnvStr("GOOGLE_REDIRECT_URL"); ok {
		c.Providers.Google.RedirectURL = v
	}
	if v, ok := getEnvCSV("GOOGLE_SCOPES"); ok {
		c.Providers.Google.Scopes = v
	}
	if v, ok := getEnvCSV("PROVIDERS_PENDING"); ok {
		c.Providers.Pending = v
	}
}

// Validate chequea claves obligatorias y que todas las duraciones parseen.
func (c *Config) Validate() error {
	var errs []error

	if len(c.JWT.SigningKey) < 32 {
		errs = append(errs, errors.New("jwt.signing_key must be at least 32 bytes"))
	}
	durs := map[string]string{
		"server.read_timeout":                c.Server.ReadTimeout,
		"server.write_timeout":               c.Server.WriteTimeout,
		"server.shutdown_timeout":            c.Server.ShutdownTimeout,
		"storage.postgres.conn_max_lifetime": c.Storage.Postgres.ConnMaxLifetime,
		"cache.memory.default_ttl":           c.Cache.Memory.DefaultTTL,
		"jwt.access_ttl":                     c.JWT.AccessTTL,
		"jwt.refresh_ttl":                    c.JWT.RefreshTTL,
		"jwt.auth_code_ttl":                  c.JWT.AuthCodeTTL,
		"providers.timeout":                  c.Providers.Timeout,
		"rate_limit.authorize.window":        c.RateLimit.Authorize.Window,
		"rate_limit.token.window":            c.RateLimit.Token.Window,
	}
	for name, v := range durs {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}

	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if c.Storage.DSN == "" {
			errs = append(errs, errors.New("storage.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q not supported (memory|postgres)", c.Storage.Driver))
	}

	switch c.Cache.Kind {
	case "memory":
	case "redis":
		if c.Cache.Redis.Addr == "" {
			errs = append(errs, errors.New("cache.redis.addr is required for redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.kind %q not supported (memory|redis)", c.Cache.Kind))
	}

	if g := c.Providers.Google; g.Enabled {
		if g.ClientID == "" || g.ClientSecret == "" || g.RedirectURL == "" {
			errs = append(errs, errors.New("providers.google requires client_id, client_secret and redirect_url"))
		}
	}
	if (c.Bootstrap.AdminEmail == "") != (c.Bootstrap.AdminPassword == "") {
		errs = append(errs, errors.New("bootstrap.admin_email and bootstrap.admin_password go together"))
	}
	return errors.Join(errs...)
}

// Dur parsea una duración ya validada. Valores inválidos devuelven 0.
func Dur(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
