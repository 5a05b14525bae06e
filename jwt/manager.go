package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretBytes is the shortest HS256 signing secret [NewManager] accepts.
const MinSecretBytes = 32

const (
	// TypeAccess marks short-lived bearer tokens.
	TypeAccess = "access"
	// TypeRefresh marks long-lived tokens exchanged at the refresh endpoint.
	TypeRefresh = "refresh"
)

var (
	// ErrTokenInvalid covers malformed tokens, bad signatures, unexpected algorithms,
	// missing claims and token-type mismatches. Refreshing cannot fix it.
	ErrTokenInvalid = errors.New("jwt: token invalid")
	// ErrTokenExpired is returned for a correctly signed token at or after its exp.
	ErrTokenExpired = errors.New("jwt: token expired")
)

// Config defines a public type used by authcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
	// Leeway tolerates issuer clock skew on iat. It never extends exp.
	Leeway time.Duration
	// Now overrides the clock for issuance and validation. Defaults to time.Now.
	Now func() time.Time
}

// Claims is the decoded payload shared by both token types. Role is empty on
// refresh tokens; SessionID on access tokens names the refresh jti of the
// session that minted it.
type Claims struct {
	Role      string `json:"role,omitempty"`
	TokenType string `json:"typ"`
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// Issued describes a freshly signed token.
type Issued struct {
	Token     string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Manager defines a public type used by authcore APIs.
//
// Manager instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Manager struct {
	config Config
	parser *jwt.Parser
}

// NewManager validates cfg and prepares a shared parser.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < MinSecretBytes {
		return nil, fmt.Errorf("signing secret must be at least %d bytes", MinSecretBytes)
	}
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("invalid access TTL configuration")
	}
	if cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid refresh TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(cfg.Now),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}

	return &Manager{config: cfg, parser: jwt.NewParser(options...)}, nil
}

// AccessTTL returns the configured access-token lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.config.AccessTTL }

// RefreshTTL returns the configured refresh-token lifetime.
func (m *Manager) RefreshTTL() time.Duration { return m.config.RefreshTTL }

// IssueAccessToken signs an access token for userID with the role snapshot and the
// owning session's refresh jti.
func (m *Manager) IssueAccessToken(userID, role, sessionID string) (Issued, error) {
	if userID == "" || role == "" {
		return Issued{}, errors.New("access token requires subject and role")
	}
	return m.issue(Claims{
		Role:      role,
		TokenType: TypeAccess,
		SessionID: sessionID,
	}, userID, m.config.AccessTTL)
}

// IssueRefreshToken signs a refresh token for userID. Its jti keys the session record.
func (m *Manager) IssueRefreshToken(userID string) (Issued, error) {
	if userID == "" {
		return Issued{}, errors.New("refresh token requires subject")
	}
	return m.issue(Claims{TokenType: TypeRefresh}, userID, m.config.RefreshTTL)
}

func (m *Manager) issue(claims Claims, subject string, ttl time.Duration) (Issued, error) {
	// NumericDate has second precision; truncating keeps ExpiresAt equal to the wire exp.
	now := m.config.Now().Truncate(time.Second)
	exp := now.Add(ttl)
	jti := uuid.NewString()

	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        jti,
		Issuer:    m.config.Issuer,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
	if err != nil {
		return Issued{}, err
	}
	return Issued{Token: signed, JTI: jti, IssuedAt: now, ExpiresAt: exp}, nil
}

// DecodeAccess decodes a token that must carry typ=access.
func (m *Manager) DecodeAccess(token string) (*Claims, error) {
	return m.Decode(token, TypeAccess)
}

// DecodeRefresh decodes a token that must carry typ=refresh.
func (m *Manager) DecodeRefresh(token string) (*Claims, error) {
	return m.Decode(token, TypeRefresh)
}

// Decode verifies signature, then expiry, then the typ claim.
//
// Decode returns an error wrapping [ErrTokenExpired] only for correctly signed
// tokens; every other failure wraps [ErrTokenInvalid].
func (m *Manager) Decode(token, tokenType string) (*Claims, error) {
	if token == "" {
		return nil, ErrTokenInvalid
	}

	parsed, err := m.parser.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.config.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	// The parser applies leeway to exp as well; expiry itself is exact.
	if claims.ExpiresAt == nil || !m.config.Now().Before(claims.ExpiresAt.Time) {
		return nil, ErrTokenExpired
	}
	if claims.TokenType != tokenType {
		return nil, fmt.Errorf("%w: expected %s token", ErrTokenInvalid, tokenType)
	}
	if claims.Subject == "" || claims.ID == "" || claims.IssuedAt == nil {
		return nil, fmt.Errorf("%w: missing required claims", ErrTokenInvalid)
	}
	if tokenType == TypeAccess && claims.Role == "" {
		return nil, fmt.Errorf("%w: missing role claim", ErrTokenInvalid)
	}

	return claims, nil
}
