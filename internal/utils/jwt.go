package utils // package utils provides helper functions for token creation and hashing

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// Typed verification outcomes. Callers must not conflate them: the
// middleware maps ErrTokenExpired to a distinct 401 so clients know to
// refresh, while ErrTokenMalformed and ErrTokenInvalid are terminal.
var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenInvalid   = errors.New("token invalid")
	ErrTokenMalformed = errors.New("token malformed")
)

// SessionClaims are the claims carried by both token kinds: subject (user
// id), role, expiry and issued-at. Access and refresh tokens share the shape
// but are signed with distinct secrets, so one can never verify as the other.
type SessionClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// SignedToken bundles a serialized JWT with its expiration time.
type SignedToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT access token. Access tokens
// are short-lived (TTL in minutes) and presented as the Authorization bearer
// on every request.
func NewAccessToken(secret string, userID uint64, role string, ttlMin int) (SignedToken, error) {
	return newToken(secret, userID, role, time.Duration(ttlMin)*time.Minute)
}

// NewRefreshToken builds and signs an HS256 JWT refresh token. Refresh
// tokens live for days and are only ever sent to /auth/refresh.
func NewRefreshToken(secret string, userID uint64, role string, ttlDays int) (SignedToken, error) {
	return newToken(secret, userID, role, time.Duration(ttlDays)*24*time.Hour)
}

func newToken(secret string, userID uint64, role string, ttl time.Duration) (SignedToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	jti, err := randomHex(8)
	if err != nil {
		return SignedToken{}, err
	}
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			// The jti makes two tokens minted within the same second
			// distinct; displacement compares raw token strings.
			ID:        jti,
			Subject:   strconv.FormatUint(userID, 10),
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Role: role,
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return SignedToken{}, err
	}
	return SignedToken{Token: signed, Exp: exp}, nil
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// VerifyToken parses and validates a token against the given secret and
// returns the subject user id and role. The error is always one of the typed
// outcomes above (or nil).
func VerifyToken(secret, raw string) (uint64, string, error) {
	claims := &SessionClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		// Reject any signing method other than HMAC.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return 0, "", ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return 0, "", ErrTokenMalformed
		default:
			return 0, "", ErrTokenInvalid
		}
	}
	if !tok.Valid {
		return 0, "", ErrTokenInvalid
	}
	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return 0, "", ErrTokenInvalid
	}
	return userID, claims.Role, nil
}
