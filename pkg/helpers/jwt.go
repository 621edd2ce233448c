package helpers

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenExpired is returned when a token's signature is valid but its
	// lifetime has elapsed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is returned for malformed tokens or bad signatures.
	ErrTokenInvalid = errors.New("token invalid")
)

// JWTManager signs and verifies the tokens used by the auth subsystem: a
// short-lived bearer token returned in the login body and a longer-lived
// session token stored in the session cookie. Both carry the same profile
// claims and are signed with the same secret.
type JWTManager struct {
	Secret     []byte
	BearerTTL  time.Duration
	SessionTTL time.Duration
}

func NewJWTManager(secret string, bearerTTL, sessionTTL time.Duration) *JWTManager {
	return &JWTManager{
		Secret:     []byte(secret),
		BearerTTL:  bearerTTL,
		SessionTTL: sessionTTL,
	}
}

// ProfileClaims embeds the user's public profile in a signed token.
type ProfileClaims struct {
	UserID   int64  `json:"uid"`
	Name     string `json:"name"`
	LastName string `json:"last_name"`
	Email    string `json:"email"`
	Contact  string `json:"contact,omitempty"`
	Company  string `json:"company,omitempty"`
	Logo     string `json:"logo,omitempty"`
	Address  string `json:"address,omitempty"`
	Role     string `json:"role"`
	Image    string `json:"image,omitempty"`
	jwt.RegisteredClaims
}

// GenerateBearerToken mints the short-lived token returned to API clients.
func (m *JWTManager) GenerateBearerToken(claims ProfileClaims) (string, time.Time, error) {
	return m.sign(claims, m.BearerTTL)
}

// GenerateSessionToken mints the token that backs the session cookie.
func (m *JWTManager) GenerateSessionToken(claims ProfileClaims) (string, time.Time, error) {
	return m.sign(claims, m.SessionTTL)
}

func (m *JWTManager) sign(claims ProfileClaims, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(ttl)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	s, err := t.SignedString(m.Secret)
	return s, exp, err
}

// ParseToken verifies a token and returns its claims. Expired tokens map to
// ErrTokenExpired, everything else to ErrTokenInvalid.
func (m *JWTManager) ParseToken(tokenStr string) (*ProfileClaims, error) {
	claims := &ProfileClaims{}
	tkn, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !tkn.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
