package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"interaction-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

const jwtExpDays = 365

// UserService handles identity and push registration
type UserService struct {
	users     UserStore
	jwtSecret string
}

// NewUserService creates a new user service
func NewUserService(users UserStore, jwtSecret string) *UserService {
	return &UserService{
		users:     users,
		jwtSecret: jwtSecret,
	}
}

// GenerateJWT generates a JWT token for a user
func (s *UserService) GenerateJWT(userID models.UserID) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID.String(),
		"exp":     time.Now().AddDate(0, 0, jwtExpDays).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT validates a JWT token and returns the validated user ID
func (s *UserService) ValidateJWT(tokenString string) (models.UserID, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	raw, ok := claims["user_id"].(string)
	if !ok {
		return "", fmt.Errorf("user_id not found in token")
	}

	return models.ParseUserID(raw)
}

// RegisterPushToken stores or clears the APNs device token of a user
func (s *UserService) RegisterPushToken(ctx context.Context, userID models.UserID, pushToken string) error {
	pushToken = strings.TrimSpace(pushToken)
	if len(pushToken) > 200 {
		return &models.ValidationError{Field: "push_token", Reason: "is too long"}
	}

	var token *string
	if pushToken != "" {
		token = &pushToken
	}
	if err := s.users.UpdatePushToken(ctx, userID, token); err != nil {
		return fmt.Errorf("failed to update push token: %w", err)
	}
	return nil
}
