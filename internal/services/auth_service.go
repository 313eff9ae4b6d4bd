package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// AuthOptions configures the single admin account.
type AuthOptions struct {
	Username     string
	Password     string // plain text; hashed once at construction
	PasswordHash string // bcrypt hash; wins over Password when set
	Secret       string // HS256 signing key
	TTL          time.Duration
	BcryptCost   int              // 0 = bcrypt.DefaultCost
	Now          func() time.Time // nil = time.Now
}

// AuthService issues and verifies admin bearer tokens.
type AuthService struct {
	username string
	hash     []byte
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

// NewAuthService validates opts and prepares the password hash.
func NewAuthService(opts AuthOptions) (*AuthService, error) {
	if opts.Username == "" {
		return nil, errors.New("auth: username is required")
	}
	if opts.Secret == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	if opts.TTL <= 0 {
		return nil, errors.New("auth: token ttl must be positive")
	}

	var hash []byte
	switch {
	case opts.PasswordHash != "":
		hash = []byte(opts.PasswordHash)
		if _, err := bcrypt.Cost(hash); err != nil {
			return nil, errors.New("auth: password hash is not a bcrypt hash")
		}
	case opts.Password != "":
		cost := opts.BcryptCost
		if cost == 0 {
			cost = bcrypt.DefaultCost
		}
		h, err := bcrypt.GenerateFromPassword([]byte(opts.Password), cost)
		if err != nil {
			return nil, err
		}
		hash = h
	default:
		return nil, errors.New("auth: password or password hash is required")
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		username: opts.Username,
		hash:     hash,
		secret:   []byte(opts.Secret),
		ttl:      opts.TTL,
		now:      now,
	}, nil
}

// Token is an issued bearer token.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Login checks the credentials and returns a signed token whose subject is
// the admin username.
func (s *AuthService) Login(_ context.Context, username, password string) (*Token, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	// Always run bcrypt so a wrong username costs the same as a wrong password.
	passErr := bcrypt.CompareHashAndPassword(s.hash, []byte(password))
	if !userOK || passErr != nil {
		return nil, ErrInvalidCredentials
	}

	now := s.now().UTC()
	exp := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   s.username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, err
	}
	return &Token{AccessToken: signed, ExpiresAt: exp}, nil
}

// Verify parses token and returns its subject. Any failure, including a
// subject other than the configured admin, yields ErrInvalidToken.
func (s *AuthService) Verify(token string) (string, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	if claims.Subject != s.username {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
