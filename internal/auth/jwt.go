package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"servus-backend/internal/config"
	"servus-backend/internal/models"
	"servus-backend/internal/timeutil"
)

type Claims struct {
	UserID   uuid.UUID   `json:"uid"`
	FullName string      `json:"name"`
	Role     models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Actor converts the claims into the identity passed to services.
func (c *Claims) Actor() models.ActorIdentity {
	return models.ActorIdentity{UserID: c.UserID, DisplayName: c.FullName, Role: c.Role}
}

type JWTManager struct {
	cfg *config.Config
	now timeutil.Clock
}

func NewJWTManager(cfg *config.Config) *JWTManager {
	return &JWTManager{cfg: cfg, now: timeutil.Now}
}

// GenerateToken creates a signed token for a user
func (j *JWTManager) GenerateToken(user *models.User) (string, error) {
	now := j.now()
	expirationTime := now.Add(time.Duration(j.cfg.JWT.ExpirationHours) * time.Hour)

	claims := &Claims{
		UserID:   user.ID,
		FullName: user.FullName,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    j.cfg.JWT.Issuer,
			Audience:  jwt.ClaimStrings{j.cfg.JWT.Audience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.cfg.JWT.Secret))
}

// ValidateToken verifies a token and returns its claims
func (j *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(j.cfg.JWT.Secret), nil
	},
		jwt.WithIssuer(j.cfg.JWT.Issuer),
		jwt.WithAudience(j.cfg.JWT.Audience),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	if claims.UserID == uuid.Nil || !claims.Role.Valid() {
		return nil, errors.New("token is missing identity claims")
	}

	return claims, nil
}
