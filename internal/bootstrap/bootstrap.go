// Package bootstrap wires environment configuration into the directory
// and session services for the admin CLI.
package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"memberauth/directory"
	"memberauth/session"
)

// AppConfig is the full environment configuration.
type AppConfig struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	LDAP    LDAPConfig
	Session SessionConfig
	Redis   RedisConfig
}

// LDAPConfig carries the directory settings.
type LDAPConfig struct {
	URL                    string        `env:"LDAP_URL"`
	BaseDN                 string        `env:"LDAP_BASE_DN"`
	Timeout                time.Duration `env:"LDAP_TIMEOUT" envDefault:"15s"`
	StartTLS               bool          `env:"LDAP_START_TLS"`
	InsecureSkipVerify     bool          `env:"LDAP_INSECURE_SKIP_VERIFY"`
	PrincipalAttribute     string        `env:"LDAP_PRINCIPAL_ATTRIBUTE" envDefault:"sAMAccountName"`
	PrincipalSuffix        string        `env:"LDAP_PRINCIPAL_SUFFIX"`
	ObjectClass            string        `env:"LDAP_OBJECT_CLASS" envDefault:"user"`
	ServiceAccount         string        `env:"LDAP_SERVICE_ACCOUNT"`
	ServiceAccountPassword string        `env:"LDAP_SERVICE_ACCOUNT_PASSWORD,unset"`
	KerberosRealm          string        `env:"LDAP_KERBEROS_REALM"`
	KerberosKeytab         string        `env:"LDAP_KERBEROS_KEYTAB"`
	KerberosCCache         string        `env:"LDAP_KERBEROS_CCACHE"`
	KerberosConfig         string        `env:"LDAP_KERBEROS_CONFIG" envDefault:"/etc/krb5.conf"`
	KerberosSPN            string        `env:"LDAP_KERBEROS_SPN"`
	PasswordAttribute      string        `env:"LDAP_PASSWORD_ATTRIBUTE" envDefault:"unicodePwd"`
}

// SessionConfig carries the token settings.
type SessionConfig struct {
	Secret   string        `env:"SESSION_SECRET,unset"`
	Issuer   string        `env:"SESSION_ISSUER" envDefault:"memberauth"`
	Audience string        `env:"SESSION_AUDIENCE" envDefault:"memberauth"`
	TTL      time.Duration `env:"SESSION_TTL" envDefault:"2h"`
}

// RedisConfig carries the optional revocation store settings. Leave Addr
// empty to run without revocation support.
type RedisConfig struct {
	Addr      string `env:"REDIS_ADDR"`
	Password  string `env:"REDIS_PASSWORD,unset"`
	DB        int    `env:"REDIS_DB"`
	KeyPrefix string `env:"REDIS_KEY_PREFIX"`
}

// InitLogger initializes the structured logger at level.
func InitLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: lvl,
	}))
	slog.SetDefault(logger)
	return logger
}

// LoadConfig loads configuration from the environment, reading a .env
// file first when one exists.
func LoadConfig() (AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// NewAuthenticator builds the directory authenticator from cfg.
func NewAuthenticator(cfg *AppConfig, logger *slog.Logger) (*directory.Authenticator, error) {
	return directory.NewAuthenticator(&directory.Config{
		URL:                    cfg.LDAP.URL,
		BaseDN:                 cfg.LDAP.BaseDN,
		Timeout:                cfg.LDAP.Timeout,
		StartTLS:               cfg.LDAP.StartTLS,
		InsecureSkipVerify:     cfg.LDAP.InsecureSkipVerify,
		PrincipalAttribute:     cfg.LDAP.PrincipalAttribute,
		PrincipalSuffix:        cfg.LDAP.PrincipalSuffix,
		ObjectClass:            cfg.LDAP.ObjectClass,
		ServiceAccount:         cfg.LDAP.ServiceAccount,
		ServiceAccountPassword: cfg.LDAP.ServiceAccountPassword,
		KerberosRealm:          cfg.LDAP.KerberosRealm,
		KerberosKeytab:         cfg.LDAP.KerberosKeytab,
		KerberosCCache:         cfg.LDAP.KerberosCCache,
		KerberosConfig:         cfg.LDAP.KerberosConfig,
		KerberosSPN:            cfg.LDAP.KerberosSPN,
		PasswordAttribute:      cfg.LDAP.PasswordAttribute,
	}, logger)
}

// NewSessionService builds the token service from cfg. When Redis is
// configured the service gets a persistent denylist; without it,
// revocation is unavailable.
func NewSessionService(cfg *AppConfig, logger *slog.Logger) (*session.Service, *redis.Client, error) {
	opts := []session.Option{session.WithLogger(logger)}

	var client *redis.Client
	if cfg.Redis.Addr != "" {
		client = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		opts = append(opts, session.WithDenylist(session.NewRedisDenylist(client, cfg.Redis.KeyPrefix)))
	}

	svc, err := session.NewService(session.Config{
		Secret:   []byte(cfg.Session.Secret),
		Issuer:   cfg.Session.Issuer,
		Audience: cfg.Session.Audience,
		TTL:      cfg.Session.TTL,
	}, opts...)
	if err != nil {
		if client != nil {
			_ = client.Close()
		}
		return nil, nil, err
	}
	return svc, client, nil
}
