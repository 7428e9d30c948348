package directory

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-ldap/ldap/v3"

	"memberauth/auth"
)

// Conn is the subset of *ldap.Conn this package operates on. A Conn is
// exclusively owned by the operation that dialed it and must be closed
// (unbound) on every exit path.
type Conn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Modify(req *ldap.ModifyRequest) error
	Close() error
}

// Dialer opens fresh directory connections and performs the privileged
// service-account bind. Connector is the production implementation; tests
// substitute stubs.
type Dialer interface {
	// Dial opens a new, unbound connection.
	Dial(ctx context.Context) (Conn, error)

	// BindService authenticates conn as the configured service account.
	BindService(ctx context.Context, conn Conn) error
}

// gssapiConn is satisfied by *ldap.Conn when a Kerberos bind is required.
type gssapiConn interface {
	GSSAPIBind(client ldap.GSSAPIClient, servicePrincipal, authzID string) error
}

// Connector dials one fresh connection per operation. Connections are never
// pooled or reused: isolation of failure state between concurrent
// authentications is guaranteed by not sharing transport state at all.
type Connector struct {
	cfg    *Config
	logger *slog.Logger
}

// NewConnector creates a connector for the configured endpoint. The
// configuration must already have defaults applied and be validated.
func NewConnector(cfg *Config, logger *slog.Logger) *Connector {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.InsecureSkipVerify && cfg.TLSConfig == nil {
		logger.Warn("directory TLS certificate validation is disabled; transport integrity guarantees are reduced",
			"url", cfg.URL)
	}
	return &Connector{cfg: cfg, logger: logger}
}

// Dial opens a new connection to the directory endpoint. LDAPS endpoints
// are dialed with TLS directly; plain endpoints are upgraded via StartTLS
// when configured.
func (c *Connector) Dial(ctx context.Context) (Conn, error) {
	const op = "dial"

	if err := ctx.Err(); err != nil {
		return nil, auth.NewError(auth.KindConnection, op, "context cancelled", err)
	}

	start := time.Now()

	var conn *ldap.Conn
	var err error
	if c.cfg.useTLSDial() {
		conn, err = ldap.DialURL(c.cfg.URL, ldap.DialWithTLSConfig(c.cfg.tlsConfig()))
	} else {
		conn, err = ldap.DialURL(c.cfg.URL)
		if err == nil && c.cfg.StartTLS {
			if tlsErr := conn.StartTLS(c.cfg.tlsConfig()); tlsErr != nil {
				_ = conn.Close()
				conn, err = nil, tlsErr
			}
		}
	}
	if err != nil {
		c.logger.Error("directory connection failed",
			"url", c.cfg.URL,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err)
		return nil, auth.NewError(auth.KindConnection, op, "failed to connect to "+c.cfg.URL, err)
	}

	conn.SetTimeout(c.cfg.Timeout)

	c.logger.Debug("directory connection established",
		"url", c.cfg.URL,
		"duration_ms", time.Since(start).Milliseconds())

	return conn, nil
}

// BindService binds conn as the configured service account, using GSSAPI
// when Kerberos is configured and simple bind otherwise.
func (c *Connector) BindService(ctx context.Context, conn Conn) error {
	const op = "bind_service"

	if err := ctx.Err(); err != nil {
		return auth.NewError(auth.KindBind, op, "context cancelled", err)
	}

	method := c.cfg.AuthMethod()
	c.logger.Debug("binding service account", "auth_method", method.String())

	var err error
	switch method {
	case AuthMethodKerberos:
		err = c.kerberosBind(conn)
	default:
		err = conn.Bind(c.cfg.ServiceAccount, c.cfg.ServiceAccountPassword)
	}
	if err != nil {
		c.logger.Error("service account bind failed",
			"auth_method", method.String(),
			"error", err)
		return auth.NewError(kindFromLDAP(err, auth.KindBind), op, "service account bind failed", err)
	}
	return nil
}
