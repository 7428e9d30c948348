/*
Package session issues and verifies signed session tokens for
authenticated members.

Tokens are JWTs signed with HMAC-SHA256 over a shared secret. A token
carries the member's login name as its subject, a unique token ID, and
issuer/audience claims pinned to the issuing service. Verification is
strict: any failure, from a bad signature to an expired or revoked token,
collapses to the empty subject so callers cannot distinguish attack
probes from stale sessions.

Revocation is optional. When a Denylist is attached, RevokeSession records
the token ID until the token would have expired anyway; without one,
RevokeSession reports ErrNoDenylist.
*/
package session
