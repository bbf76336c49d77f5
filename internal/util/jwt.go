package util

import (
	"time"

	"olimpo_backend/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	UserID        uint           `json:"user_id"`
	ParticipantID uint           `json:"participant_id,omitempty"`
	Role          model.UserRole `json:"role"`
	Email         string         `json:"email"`
	jwt.RegisteredClaims
}

func GenerateJWT(user *model.User, participantID uint, secret string, expiration time.Duration) (string, error) {
	expirationTime := time.Now().Add(expiration)

	claims := &Claims{
		UserID:        user.ID,
		ParticipantID: participantID,
		Role:          user.Role,
		Email:         user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseJWT(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, err
}

func GetUserFromContext(c *gin.Context) *Claims {
	user, exists := c.Get("user")
	if !exists {
		return nil
	}
	claims, ok := user.(*Claims)
	if !ok {
		return nil
	}
	return claims
}

func IsStaff(claims *Claims) bool {
	return claims != nil && (claims.Role == model.Admin || claims.Role == model.Jurado)
}
