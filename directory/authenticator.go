package directory

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-ldap/ldap/v3"

	"memberauth/auth"
)

// Authenticator performs credential validation, member lookup, and password
// changes. It is safe for concurrent use: every operation runs on its own
// connection obtained from the dialer.
type Authenticator struct {
	cfg     *Config
	dialer  Dialer
	logger  *slog.Logger
	errored atomic.Bool
}

// NewAuthenticator builds an authenticator from cfg, applying defaults and
// validating first. A nil logger falls back to slog.Default.
func NewAuthenticator(cfg *Config, logger *slog.Logger) (*Authenticator, error) {
	if cfg == nil {
		return nil, auth.NewError(auth.KindValidation, "new_authenticator", "configuration is required", nil)
	}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, auth.NewError(auth.KindValidation, "new_authenticator", "failed to apply configuration defaults", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, auth.NewError(auth.KindValidation, "new_authenticator", err.Error(), nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		cfg:    cfg,
		dialer: NewConnector(cfg, logger),
		logger: logger,
	}, nil
}

// NewAuthenticatorWithDialer builds an authenticator on an externally
// supplied dialer. Used by tests; cfg still has defaults applied but is not
// endpoint-validated, since the dialer owns the transport.
func NewAuthenticatorWithDialer(cfg *Config, dialer Dialer, logger *slog.Logger) (*Authenticator, error) {
	if cfg == nil {
		return nil, auth.NewError(auth.KindValidation, "new_authenticator", "configuration is required", nil)
	}
	if dialer == nil {
		return nil, auth.NewError(auth.KindValidation, "new_authenticator", "dialer is required", nil)
	}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, auth.NewError(auth.KindValidation, "new_authenticator", "failed to apply configuration defaults", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{cfg: cfg, dialer: dialer, logger: logger}, nil
}

// ValidateUser checks a username/password pair by binding to the directory
// as that user. Empty credentials are rejected before any connection is
// opened. The returned message never contains the password.
func (a *Authenticator) ValidateUser(ctx context.Context, username, password string) auth.Result {
	if username == "" || password == "" {
		return auth.Fail("username and password are required")
	}

	conn, err := a.dial(ctx)
	if err != nil {
		return auth.Fail("directory unavailable")
	}
	defer a.unbind(conn)

	principal := a.cfg.bindPrincipal(username)
	start := time.Now()

	if err := conn.Bind(principal, password); err != nil {
		msg := bindFailureMessage(err)
		if isCredentialError(err) {
			a.logger.Info("user bind rejected",
				"username", username,
				"duration_ms", time.Since(start).Milliseconds())
		} else {
			a.logger.Error("user bind failed",
				"username", username,
				"duration_ms", time.Since(start).Milliseconds(),
				"error", err)
		}
		return auth.Fail(msg)
	}

	a.logger.Debug("user bind succeeded",
		"username", username,
		"duration_ms", time.Since(start).Milliseconds())
	return auth.OK()
}

// GetMemberInfo looks up a single member entry by login name using the
// service account. Zero matches yield a not-found error; more than one
// match is reported as ambiguous rather than picking a winner.
func (a *Authenticator) GetMemberInfo(ctx context.Context, username string) (*MemberInfo, error) {
	const op = "get_member_info"

	if username == "" {
		return nil, auth.NewError(auth.KindValidation, op, "username is required", nil)
	}

	conn, err := a.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer a.unbind(conn)

	if err := a.dialer.BindService(ctx, conn); err != nil {
		return nil, err
	}

	filter := fmt.Sprintf("(&(objectClass=%s)(%s=%s))",
		ldap.EscapeFilter(a.cfg.ObjectClass),
		a.cfg.PrincipalAttribute,
		ldap.EscapeFilter(username))

	// SizeLimit 2 is enough to detect ambiguity without paging the result.
	req := ldap.NewSearchRequest(
		a.cfg.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		2, 0, false,
		filter,
		a.cfg.MemberAttributes,
		nil,
	)

	start := time.Now()
	res, err := conn.Search(req)
	if err != nil && !ldap.IsErrorWithCode(err, ldap.LDAPResultSizeLimitExceeded) {
		a.logger.Error("member search failed",
			"username", username,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err)
		return nil, auth.NewError(kindFromLDAP(err, auth.KindSearch), op, "member search failed", err)
	}

	switch {
	case err != nil, res != nil && len(res.Entries) > 1:
		return nil, auth.NewError(auth.KindSearch, op, "login name matches more than one entry", nil)
	case res == nil || len(res.Entries) == 0:
		return nil, auth.NewError(auth.KindNotFound, op, "no member matches the login name", nil)
	}

	info, err := memberFromEntry(res.Entries[0])
	if err != nil {
		return nil, err
	}

	a.logger.Debug("member lookup succeeded",
		"username", username,
		"dn", info.DN,
		"duration_ms", time.Since(start).Milliseconds())
	return info, nil
}

// ChangePassword sets a new password for username after verifying the old
// one by binding as the user. The modify itself runs under the service
// account, since self-service password modifies are commonly denied. The
// directory entry is never touched unless the old password verifies.
func (a *Authenticator) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) auth.Result {
	const op = "change_password"

	if newPassword == "" {
		return auth.Fail("new password is required")
	}

	if res := a.ValidateUser(ctx, username, oldPassword); res.Error {
		if res.Message == "invalid credentials" {
			return auth.Fail("old password is incorrect")
		}
		return res
	}

	member, err := a.GetMemberInfo(ctx, username)
	if err != nil {
		if auth.IsNotFound(err) {
			return auth.Fail("no member matches the login name")
		}
		if auth.KindOf(err) == auth.KindSearch {
			return auth.Fail("login name matches more than one entry")
		}
		return auth.Fail("directory unavailable")
	}

	conn, err := a.dial(ctx)
	if err != nil {
		return auth.Fail("directory unavailable")
	}
	defer a.unbind(conn)

	if err := a.dialer.BindService(ctx, conn); err != nil {
		return auth.Fail("directory unavailable")
	}

	req := ldap.NewModifyRequest(member.DN, nil)
	req.Replace(a.cfg.PasswordAttribute, []string{encodePassword(a.cfg.PasswordAttribute, newPassword)})

	start := time.Now()
	if err := conn.Modify(req); err != nil {
		a.logger.Error("password modify failed",
			"username", username,
			"dn", member.DN,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err)
		return auth.Fail("password change rejected by the directory")
	}

	a.logger.Info("password changed",
		"username", username,
		"dn", member.DN,
		"duration_ms", time.Since(start).Milliseconds())
	return auth.OK()
}

// Ping checks directory reachability by opening a connection and binding
// the service account.
func (a *Authenticator) Ping(ctx context.Context) error {
	conn, err := a.dial(ctx)
	if err != nil {
		return err
	}
	defer a.unbind(conn)

	return a.dialer.BindService(ctx, conn)
}

// Status reports whether the most recent directory operation reached the
// server. It reflects observed health only and performs no I/O.
func (a *Authenticator) Status() bool {
	return !a.errored.Load()
}

func (a *Authenticator) dial(ctx context.Context) (Conn, error) {
	conn, err := a.dialer.Dial(ctx)
	a.errored.Store(err != nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (a *Authenticator) unbind(conn Conn) {
	if err := conn.Close(); err != nil {
		a.logger.Debug("unbind failed", "error", err)
	}
}
