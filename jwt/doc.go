// Package jwt is the stateless token codec: it signs and decodes HS256 access and
// refresh tokens carrying sub, role, iat, exp, jti and typ claims.
//
// Decode verifies the signature before any claim, so [ErrTokenExpired] is only
// ever reported for tokens this process actually signed. Every issued token gets a
// fresh random jti; identical inputs never produce identical tokens.
package jwt
