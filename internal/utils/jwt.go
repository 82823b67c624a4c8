package utils // package utils provides helpers for signing and reading the service's tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token scopes.  A session token drives the wizard; a box-office token is
// handed out with a successful submission and opens the box-office routes
// of that one record.
const (
	ScopeSession   = "session"
	ScopeBoxOffice = "box_office"
)

var ErrInvalidToken = errors.New("invalid token")

// SignedToken is a signed JWT along with its expiry.
type SignedToken struct {
	Token string    `json:"token"`
	Exp   time.Time `json:"expires_at"`
}

// Claims are the fields the service reads back from a token.  Subject is
// the session id for session tokens and the record id for box-office
// tokens; Kind is only set on box-office tokens.
type Claims struct {
	Subject string
	Scope   string
	Kind    string
}

// NewSessionToken signs an HS256 token for a wizard session.
func NewSessionToken(secret, sessionID string, ttl time.Duration) (SignedToken, error) {
	return sign(secret, jwt.MapClaims{"sub": sessionID, "scope": ScopeSession}, ttl)
}

// NewBoxOfficeToken signs an HS256 token bound to one submitted record.
func NewBoxOfficeToken(secret, submissionID, kind string, ttl time.Duration) (SignedToken, error) {
	return sign(secret, jwt.MapClaims{"sub": submissionID, "scope": ScopeBoxOffice, "kind": kind}, ttl)
}

func sign(secret string, claims jwt.MapClaims, ttl time.Duration) (SignedToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims["exp"] = exp.Unix()
	claims["iat"] = now.Unix()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return SignedToken{}, err
	}
	return SignedToken{Token: signed, Exp: exp}, nil
}

// ParseToken verifies raw and returns its claims.  Only HMAC signed tokens
// with a subject and a scope are accepted.
func ParseToken(secret, raw string) (Claims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return Claims{}, ErrInvalidToken
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	var c Claims
	c.Subject, _ = mc["sub"].(string)
	c.Scope, _ = mc["scope"].(string)
	c.Kind, _ = mc["kind"].(string)
	if c.Subject == "" || c.Scope == "" {
		return Claims{}, ErrInvalidToken
	}
	return c, nil
}
