// ABOUTME: Package documentation for authentication and account management
// ABOUTME: Covers JWT issuance, bcrypt passwords, and request identity

// Package auth provides account management and request authentication.
//
// Tokens are HS256-signed JWTs carrying the user ID in the "sub" claim.
// JWTVerifier issues, validates, and refreshes them; expired tokens fail
// with ErrExpiredToken and cannot be refreshed.
//
// Service layers registration and login on top of the user store. Passwords
// are bcrypt-hashed; login failures collapse to ErrBadCredentials so callers
// cannot probe which accounts exist.
//
// HTTPAuthMiddleware guards API routes: it validates the bearer token and
// attaches the user ID to the request context, where handlers read it back
// with UserFromContext.
package auth
