package directory

import (
	"crypto/tls"
	"errors"
	"strings"
	"time"

	"github.com/creasty/defaults"
)

// AuthMethod defines how the service account binds to the directory.
type AuthMethod int

const (
	AuthMethodSimpleBind AuthMethod = iota // DN/UPN + password
	AuthMethodKerberos                     // GSSAPI via keytab, ccache, or password
)

// String returns the string representation of the authentication method.
func (a AuthMethod) String() string {
	switch a {
	case AuthMethodSimpleBind:
		return "simple"
	case AuthMethodKerberos:
		return "kerberos"
	default:
		return "unknown"
	}
}

// Config holds the construction parameters for directory access. All values
// are supplied by the caller; this package never reads the environment.
type Config struct {
	// Connection settings
	URL     string        // ldap:// or ldaps:// endpoint
	BaseDN  string        // base DN for member searches
	Timeout time.Duration `default:"15s"` // dial and per-operation timeout

	// TLS settings. InsecureSkipVerify disables certificate validation and
	// reduces transport integrity guarantees; it is logged as an explicit
	// operator warning and must never be the silent default.
	StartTLS           bool        // upgrade ldap:// connections with StartTLS
	InsecureSkipVerify bool        // skip certificate validation (not recommended)
	TLSConfig          *tls.Config // optional override; built from the above when nil

	// End-user bind settings
	PrincipalAttribute string `default:"sAMAccountName"` // attribute matched against the login name
	PrincipalSuffix    string // UPN suffix appended to bare usernames for bind-as-user, e.g. "@example.com"
	ObjectClass        string `default:"user"` // object class constraining member searches

	// Service account settings. Kerberos takes precedence when a realm is
	// configured, mirroring simple-bind as the fallback.
	ServiceAccount         string // DN or UPN for simple bind; principal name for Kerberos
	ServiceAccountPassword string
	KerberosRealm          string
	KerberosKeytab         string // path to a keytab file
	KerberosCCache         string // path to a credential cache
	KerberosConfig         string `default:"/etc/krb5.conf"`
	KerberosSPN            string // explicit service principal override

	// Password change settings. unicodePwd (Active Directory) is encoded as
	// UTF-16LE of the quoted password; any other attribute receives the raw
	// value.
	PasswordAttribute string `default:"unicodePwd"`

	// MemberAttributes is the allow-list requested on member searches. Left
	// empty, the default list covers exactly the MemberInfo fields; it is
	// never expanded to "all attributes".
	MemberAttributes []string
}

// ApplyDefaults resolves the default struct tags and the attribute
// allow-list.
func (c *Config) ApplyDefaults() error {
	if err := defaults.Set(c); err != nil {
		return err
	}
	if len(c.MemberAttributes) == 0 {
		c.MemberAttributes = []string{"cn", "description", "memberOf", "pwdLastSet", "objectSid"}
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.New("directory URL is required")
	}
	if !strings.HasPrefix(c.URL, "ldap://") && !strings.HasPrefix(c.URL, "ldaps://") {
		return errors.New("directory URL must use the ldap:// or ldaps:// scheme")
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if c.ServiceAccount == "" {
		return errors.New("service account is required")
	}
	if c.AuthMethod() == AuthMethodSimpleBind && c.ServiceAccountPassword == "" {
		return errors.New("service account password is required for simple bind")
	}
	return nil
}

// AuthMethod determines the service-account authentication method from the
// configuration. Kerberos takes precedence when a realm is configured.
func (c *Config) AuthMethod() AuthMethod {
	if c.KerberosRealm != "" && (c.KerberosKeytab != "" || c.KerberosCCache != "" || c.ServiceAccount != "") {
		return AuthMethodKerberos
	}
	return AuthMethodSimpleBind
}

// bindPrincipal builds the identity used for a bind-as-user attempt. Bare
// usernames get the configured UPN suffix; names that already carry a realm
// qualifier are used as-is.
func (c *Config) bindPrincipal(username string) string {
	if c.PrincipalSuffix == "" || strings.Contains(username, "@") || strings.Contains(username, "\\") {
		return username
	}
	return username + c.PrincipalSuffix
}

// tlsConfig returns the effective TLS configuration for this endpoint.
func (c *Config) tlsConfig() *tls.Config {
	if c.TLSConfig != nil {
		return c.TLSConfig
	}
	return &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: c.InsecureSkipVerify,
	}
}

// useTLSDial reports whether the endpoint is dialed with TLS directly
// (LDAPS) rather than upgraded via StartTLS.
func (c *Config) useTLSDial() bool {
	return strings.HasPrefix(c.URL, "ldaps://")
}
