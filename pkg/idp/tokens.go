package idp

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// LoginSessionCookie carries the short-lived token scoping the
	// second-factor endpoints to one login attempt.
	LoginSessionCookie = "login_session"
	// AccessTokenCookie carries the token of a fully authenticated session.
	AccessTokenCookie = "access_token"
)

var ErrInvalidToken = errors.New("invalid token")

// SessionClaims are the claims of a login-session token. Subject holds the
// account id. PasswordVerified distinguishes an attempt that has passed the
// password step from one that has only identified a username.
type SessionClaims struct {
	Username         string `json:"username,omitempty"`
	PasswordVerified bool   `json:"password_verified,omitempty"`
	jwt.RegisteredClaims
}

// TokenService issues and parses the two token kinds the login endpoints
// use, both HS256 over the same secret.
type TokenService struct {
	secret          []byte
	issuer          string
	loginSessionTTL time.Duration
	accessTokenTTL  time.Duration
}

// NewTokenService creates a token service with default lifetimes: five
// minutes for login sessions, one hour for access tokens.
func NewTokenService(secret, issuer string) *TokenService {
	return &TokenService{
		secret:          []byte(secret),
		issuer:          issuer,
		loginSessionTTL: 5 * time.Minute,
		accessTokenTTL:  time.Hour,
	}
}

// GenerateLoginSession issues a login-session token for one login attempt.
func (s *TokenService) GenerateLoginSession(accountID uuid.UUID, username string, passwordVerified bool) (string, time.Time, error) {
	return s.sign(SessionClaims{
		Username:         username,
		PasswordVerified: passwordVerified,
		RegisteredClaims: s.registered(accountID, s.loginSessionTTL),
	})
}

// GenerateAccessToken issues the token of a fully authenticated session.
func (s *TokenService) GenerateAccessToken(accountID uuid.UUID, username string) (string, time.Time, error) {
	return s.sign(SessionClaims{
		Username:         username,
		RegisteredClaims: s.registered(accountID, s.accessTokenTTL),
	})
}

func (s *TokenService) registered(accountID uuid.UUID, ttl time.Duration) jwt.RegisteredClaims {
	now := time.Now().UTC()
	return jwt.RegisteredClaims{
		Subject:   accountID.String(),
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.New().String(),
	}
}

func (s *TokenService) sign(claims SessionClaims) (string, time.Time, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, claims.ExpiresAt.Time, nil
}

// ParseSession parses and validates a token issued by this service and
// returns its claims together with the account id from the subject.
func (s *TokenService) ParseSession(tokenStr string) (SessionClaims, uuid.UUID, error) {
	var claims SessionClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return SessionClaims{}, uuid.Nil, ErrInvalidToken
	}
	accountID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return SessionClaims{}, uuid.Nil, ErrInvalidToken
	}
	return claims, accountID, nil
}

// JWTAuth exposes the signing configuration for route-level verification of
// access tokens.
func (s *TokenService) JWTAuth() *jwtauth.JWTAuth {
	return jwtauth.New("HS256", s.secret, nil)
}

// AccessTokenFromCookie extracts the access token for jwtauth verification.
func AccessTokenFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(AccessTokenCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}
