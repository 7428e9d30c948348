package directory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestServicePrincipal(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    string
		wantErr bool
	}{
		{
			name: "derived from hostname",
			cfg:  Config{URL: "ldaps://dc1.example.com:636"},
			want: "ldap/dc1.example.com",
		},
		{
			name: "hostname is lowercased and port dropped",
			cfg:  Config{URL: "ldap://DC1.Example.COM:389"},
			want: "ldap/dc1.example.com",
		},
		{
			name: "explicit SPN wins",
			cfg:  Config{URL: "ldaps://dc1.example.com:636", KerberosSPN: "ldap/dc2.example.com"},
			want: "ldap/dc2.example.com",
		},
		{
			name:    "URL without hostname",
			cfg:     Config{URL: "ldap://"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.servicePrincipal()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewGSSAPIClientMissingKrb5Conf(t *testing.T) {
	cfg := &Config{
		URL:            "ldaps://dc1.example.com:636",
		ServiceAccount: "svc-portal",
		KerberosRealm:  "EXAMPLE.COM",
		KerberosConfig: filepath.Join(t.TempDir(), "does-not-exist.conf"),
	}
	c := NewConnector(cfg, nil)

	client, err := c.newGSSAPIClient()

	assert.Nil(t, client)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration file not found")
}

func TestNewGSSAPIClientMissingKeytab(t *testing.T) {
	dir := t.TempDir()
	krb5conf := filepath.Join(dir, "krb5.conf")
	writeTestFile(t, krb5conf, "[libdefaults]\ndefault_realm = EXAMPLE.COM\n")

	cfg := &Config{
		URL:            "ldaps://dc1.example.com:636",
		ServiceAccount: "svc-portal",
		KerberosRealm:  "EXAMPLE.COM",
		KerberosConfig: krb5conf,
		KerberosKeytab: filepath.Join(dir, "missing.keytab"),
	}
	c := NewConnector(cfg, nil)

	client, err := c.newGSSAPIClient()

	assert.Nil(t, client)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keytab not found")
}

func TestKerberosBindUnsupportedConn(t *testing.T) {
	cfg := &Config{URL: "ldaps://dc1.example.com:636"}
	c := NewConnector(cfg, nil)

	conn := &stubConn{rec: &recorder{}}
	err := c.kerberosBind(conn)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not support GSSAPI")
}
