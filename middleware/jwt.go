package middleware

import (
	"fmt"
	"time"

	"yardtrack/models"

	"github.com/golang-jwt/jwt/v5"
)

type JWTManager struct {
	signingKey []byte
	accessTTL  time.Duration
	now        func() time.Time
}

func NewJWTManager(signingKey string, accessTTL time.Duration) *JWTManager {
	return &JWTManager{
		signingKey: []byte(signingKey),
		accessTTL:  accessTTL,
		now:        time.Now,
	}
}

type AccessClaims struct {
	jwt.RegisteredClaims
	Name string `json:"name"`
	Role string `json:"role"` // admin | operator
}

type Token struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"` // seconds
}

func (m *JWTManager) Issue(user *models.AppUser) (Token, error) {
	now := m.now()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTTL)),
		},
		Name: user.Name,
		Role: user.Role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.signingKey)
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: signed, ExpiresIn: int64(m.accessTTL.Seconds())}, nil
}

// ParseAccess validates the token and returns the actor it was issued to.
func (m *JWTManager) ParseAccess(tokenStr string) (models.Actor, error) {
	tok, err := jwt.ParseWithClaims(tokenStr, &AccessClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return m.signingKey, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return models.Actor{}, err
	}
	claims, ok := tok.Claims.(*AccessClaims)
	if !ok || !tok.Valid {
		return models.Actor{}, fmt.Errorf("invalid token")
	}
	if claims.Subject == "" || !models.ValidRole(claims.Role) {
		return models.Actor{}, fmt.Errorf("invalid token claims")
	}
	return models.Actor{ID: claims.Subject, Name: claims.Name, Role: claims.Role}, nil
}
