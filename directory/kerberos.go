package directory

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/go-ldap/ldap/v3/gssapi"
	krb5client "github.com/jcmturner/gokrb5/v8/client"
)

// kerberosBind performs a GSSAPI bind of the service account. The
// connection must expose GSSAPIBind, which *ldap.Conn does.
func (c *Connector) kerberosBind(conn Conn) error {
	g, ok := conn.(gssapiConn)
	if !ok {
		return fmt.Errorf("connection does not support GSSAPI binds")
	}

	client, err := c.newGSSAPIClient()
	if err != nil {
		return fmt.Errorf("failed to create GSSAPI client: %w", err)
	}
	defer func() {
		_ = client.DeleteSecContext()
	}()

	spn, err := c.cfg.servicePrincipal()
	if err != nil {
		return fmt.Errorf("failed to build service principal: %w", err)
	}

	if err := g.GSSAPIBind(client, spn, ""); err != nil {
		return fmt.Errorf("GSSAPI bind failed: %w", err)
	}
	return nil
}

// newGSSAPIClient builds a Kerberos client from the configured credentials.
// Priority order: credential cache, then keytab, then password.
func (c *Connector) newGSSAPIClient() (ldap.GSSAPIClient, error) {
	krb5conf := c.cfg.KerberosConfig
	if !fileExists(krb5conf) {
		return nil, fmt.Errorf("kerberos configuration file not found at %s", krb5conf)
	}

	if c.cfg.KerberosCCache != "" {
		if !fileExists(c.cfg.KerberosCCache) {
			return nil, fmt.Errorf("credential cache not found at %s", c.cfg.KerberosCCache)
		}
		return gssapi.NewClientFromCCache(c.cfg.KerberosCCache, krb5conf, krb5client.DisablePAFXFAST(true))
	}

	if c.cfg.KerberosKeytab != "" {
		if !fileExists(c.cfg.KerberosKeytab) {
			return nil, fmt.Errorf("keytab not found at %s", c.cfg.KerberosKeytab)
		}
		return gssapi.NewClientWithKeytab(c.cfg.ServiceAccount, c.cfg.KerberosRealm,
			c.cfg.KerberosKeytab, krb5conf, krb5client.DisablePAFXFAST(true))
	}

	if c.cfg.ServiceAccount != "" && c.cfg.ServiceAccountPassword != "" {
		return gssapi.NewClientWithPassword(c.cfg.ServiceAccount, c.cfg.KerberosRealm,
			c.cfg.ServiceAccountPassword, krb5conf, krb5client.DisablePAFXFAST(true))
	}

	return nil, fmt.Errorf("no suitable credentials for Kerberos authentication")
}

// servicePrincipal constructs the LDAP service principal name for the
// configured endpoint. An explicit KerberosSPN overrides the derived value.
func (c *Config) servicePrincipal() (string, error) {
	if c.KerberosSPN != "" {
		return c.KerberosSPN, nil
	}

	u, err := url.Parse(c.URL)
	if err != nil {
		return "", fmt.Errorf("invalid directory URL: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("directory URL %q has no hostname", c.URL)
	}

	// SPNs never include a port, and hostname case is conventionally lower.
	return "ldap/" + strings.ToLower(host), nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
