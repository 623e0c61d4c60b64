package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/septivank/meter-field-ops/internal/config"
	"github.com/septivank/meter-field-ops/internal/db"
)

type Claims struct {
	Username string  `json:"username"`
	Role     db.Role `json:"role"`
	Device   string  `json:"device,omitempty"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the session belongs to an administrator
func (c *Claims) IsAdmin() bool {
	return c.Role == db.RoleAdmin
}

type JWTManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTManager(cfg config.AuthConfig) *JWTManager {
	return &JWTManager{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.JWTIssuer,
		ttl:    cfg.SessionTTL,
		now:    time.Now,
	}
}

// GenerateToken creates a session token for a user
func (j *JWTManager) GenerateToken(user *db.UserAccount, device string) (string, time.Time, error) {
	now := j.now()
	expirationTime := now.Add(j.ttl)

	claims := &Claims{
		Username: user.Username,
		Role:     user.Role,
		Device:   device,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    j.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expirationTime, nil
}

// ValidateToken verifies a session token and returns the claims
func (j *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return j.secret, nil
	}, jwt.WithIssuer(j.issuer), jwt.WithTimeFunc(j.now))

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}
