package security

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

const (
	RoleManager = "manager"
	RoleAdmin   = "admin"
)

// ManagerClaims carries the acting principal issued by the identity
// service. This backend only validates; issuance lives elsewhere.
type ManagerClaims struct {
	UserID     int32    `json:"user_id"`
	Email      string   `json:"email,omitempty"`
	Roles      []string `json:"roles,omitempty"`
	KitchenIDs []int32  `json:"kitchen_ids,omitempty"`
	jwt.RegisteredClaims
}

// HasRole reports whether the principal carries the given role.
func (c *ManagerClaims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type TokenManager interface {
	ValidateToken(tokenString string) (*ManagerClaims, error)
	// GenerateToken exists for tests and local tooling.
	GenerateToken(userID int32, email string, roles []string, kitchenIDs []int32) (string, error)
}

type tokenManager struct {
	secret []byte
}

func NewTokenManager(secret string) TokenManager {
	return &tokenManager{
		secret: []byte(secret),
	}
}

func (m *tokenManager) GenerateToken(userID int32, email string, roles []string, kitchenIDs []int32) (string, error) {
	claims := ManagerClaims{
		UserID:     userID,
		Email:      email,
		Roles:      roles,
		KitchenIDs: kitchenIDs,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(int(userID)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(1 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "identity-service",
			Audience:  jwt.ClaimStrings{"api-access"},
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *tokenManager) ValidateToken(tokenString string) (*ManagerClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ManagerClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*ManagerClaims); ok && token.Valid {
		if claims.UserID == 0 && claims.Subject != "" {
			uid, _ := strconv.Atoi(claims.Subject)
			claims.UserID = int32(uid)
		}
		return claims, nil
	}

	return nil, ErrInvalidToken
}
