package session

// Session is the live-session record stored under session:{refresh_jti}.
//
// AccessJTI and AccessExpiresAt track the most recent access token minted for the
// session so mass revocation can kill it before its natural expiry.
type Session struct {
	SchemaVersion uint8

	RefreshJTI string
	UserID     string

	AccessJTI       string
	AccessExpiresAt int64

	IssuedAt  int64
	ExpiresAt int64
}
