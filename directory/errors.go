package directory

import (
	"strings"

	"github.com/go-ldap/ldap/v3"

	"memberauth/auth"
)

// kindFromLDAP classifies an LDAP error into an auth.Kind. Errors that
// carry no recognizable result code fall through to string matching, then
// to the supplied fallback.
func kindFromLDAP(err error, fallback auth.Kind) auth.Kind {
	if err == nil {
		return fallback
	}

	switch {
	case ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials),
		ldap.IsErrorWithCode(err, ldap.LDAPResultInappropriateAuthentication),
		ldap.IsErrorWithCode(err, ldap.LDAPResultStrongAuthRequired):
		return auth.KindBind
	case ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject):
		return auth.KindNotFound
	case ldap.IsErrorWithCode(err, ldap.LDAPResultServerDown),
		ldap.IsErrorWithCode(err, ldap.LDAPResultUnavailable),
		ldap.IsErrorWithCode(err, ldap.LDAPResultBusy),
		ldap.IsErrorWithCode(err, ldap.ErrorNetwork):
		return auth.KindConnection
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "no route to host"),
		strings.Contains(msg, "i/o timeout"),
		strings.Contains(msg, "network error"):
		return auth.KindConnection
	case strings.Contains(msg, "invalid credentials"):
		return auth.KindBind
	}

	return fallback
}

// isCredentialError reports whether err indicates the supplied credentials
// were rejected, as opposed to a transport or server failure.
func isCredentialError(err error) bool {
	return ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) ||
		ldap.IsErrorWithCode(err, ldap.LDAPResultInappropriateAuthentication)
}

// bindFailureMessage converts a user-bind failure into a message that is
// safe to return to callers and to log. It never contains the password or
// raw server diagnostics.
func bindFailureMessage(err error) string {
	switch {
	case isCredentialError(err):
		return "invalid credentials"
	case kindFromLDAP(err, auth.KindUnknown) == auth.KindConnection:
		return "directory unavailable"
	default:
		return "authentication failed"
	}
}
