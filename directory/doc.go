/*
Package directory implements credential validation, member lookup, and
privileged password changes against an LDAP directory such as Active
Directory.

Authentication follows the bind-as-user pattern: ValidateUser opens a fresh
connection and attempts to bind with the end user's own credentials, so
password verification is delegated entirely to the directory server. Member
lookup and password modification bind with a configured service account
instead, either via simple bind or GSSAPI/Kerberos.

Every operation opens its own connection and unbinds it on all exit paths.
Connections are never pooled or shared, so a failed or errored connection
cannot contaminate a later unrelated operation; this is the package's
concurrency-safety mechanism.

Basic usage:

	cfg := &directory.Config{
		URL:                    "ldaps://dc1.example.com:636",
		BaseDN:                 "dc=example,dc=com",
		PrincipalSuffix:        "@example.com",
		ServiceAccount:         "cn=svc-portal,ou=services,dc=example,dc=com",
		ServiceAccountPassword: os.Getenv("LDAP_SERVICE_PASSWORD"),
	}

	authn, err := directory.NewAuthenticator(cfg, nil)
	if err != nil {
		log.Fatal(err)
	}

	res := authn.ValidateUser(ctx, "alice", password)
	if res.Error {
		// rejected: res.Message is safe to log
	}
*/
package directory
