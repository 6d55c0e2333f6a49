package config

import (
	"fmt"
	"os"
	"path"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Public  Public
	Private Private
}

type Public struct {
	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`

	HTTP HTTP `yaml:"http"`

	Issuer     string        `yaml:"issuer"`
	AccessTTL  time.Duration `yaml:"access_ttl"`  // short, minutes
	RefreshTTL time.Duration `yaml:"refresh_ttl"` // long, days
	BcryptCost int           `yaml:"bcrypt_cost"`

	RevocationCacheInterval time.Duration `yaml:"revocation_cache_interval"`
	RevocationPurgeInterval time.Duration `yaml:"revocation_purge_interval"`

	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	SecureHeaders      bool     `yaml:"secure_headers"` // adds HSTS
}

type HTTP struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type Pg struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Dbname   string `yaml:"dbname"`
}

// Bootstrap describes the privileged account ensured at startup.
// An empty email disables provisioning.
type Bootstrap struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

type Private struct {
	JwtKey    string    `yaml:"jwt_key"`
	Pg        Pg        `yaml:"pg"`
	Bootstrap Bootstrap `yaml:"bootstrap"`
}

func (s *Config) JwtKey() string {
	return s.Private.JwtKey
}

func (s *Config) AccessTTL() time.Duration {
	return s.Public.AccessTTL
}

func (s *Config) RefreshTTL() time.Duration {
	return s.Public.RefreshTTL
}

func (p *Public) applyDefaults() {
	if p.LogLevel == "" {
		p.LogLevel = "info"
	}
	if p.HTTP.Addr == "" {
		p.HTTP.Addr = ":8080"
	}
	if p.HTTP.ReadTimeout == 0 {
		p.HTTP.ReadTimeout = 10 * time.Second
	}
	if p.HTTP.WriteTimeout == 0 {
		p.HTTP.WriteTimeout = 10 * time.Second
	}
	if p.HTTP.ShutdownTimeout == 0 {
		p.HTTP.ShutdownTimeout = 15 * time.Second
	}
	if p.Issuer == "" {
		p.Issuer = "authd"
	}
	if p.RevocationCacheInterval == 0 {
		p.RevocationCacheInterval = time.Minute
	}
	if p.RevocationPurgeInterval == 0 {
		p.RevocationPurgeInterval = time.Hour
	}
}

// Validate reports the first missing or inconsistent setting.
func (s *Config) Validate() error {
	if s.Private.JwtKey == "" {
		return fmt.Errorf("jwt_key is required")
	}
	if s.Public.AccessTTL <= 0 {
		return fmt.Errorf("access_ttl must be positive")
	}
	if s.Public.RefreshTTL <= 0 {
		return fmt.Errorf("refresh_ttl must be positive")
	}
	if s.Public.RefreshTTL <= s.Public.AccessTTL {
		return fmt.Errorf("refresh_ttl (%s) must be longer than access_ttl (%s)", s.Public.RefreshTTL, s.Public.AccessTTL)
	}
	if s.Public.RevocationCacheInterval <= 0 {
		return fmt.Errorf("revocation_cache_interval must be positive")
	}
	if s.Public.RevocationPurgeInterval <= 0 {
		return fmt.Errorf("revocation_purge_interval must be positive")
	}
	if s.Public.BcryptCost != 0 && (s.Public.BcryptCost < 4 || s.Public.BcryptCost > 31) {
		return fmt.Errorf("bcrypt_cost must be within [4, 31]")
	}
	return nil
}

func mustLoadPath(configPath string, output interface{}) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		panic("can't read config file: " + configPath)
	}

	if err := yaml.UnmarshalStrict(configFile, output); err != nil {
		panic(fmt.Sprintf("can't unmarshal config file %s: %v", configPath, err))
	}
}

func MustLoad(configFolder string) *Config {
	var public Public
	mustLoadPath(path.Join(configFolder, "public.yaml"), &public)
	public.applyDefaults()

	var private Private
	mustLoadPath(path.Join(configFolder, "private.yaml"), &private)

	cfg := &Config{Public: public, Private: private}
	if err := cfg.Validate(); err != nil {
		panic("invalid config: " + err.Error())
	}
	return cfg
}
