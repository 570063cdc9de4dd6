package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"skgvault/internal/models"
	"skgvault/internal/repositories"
	"skgvault/pkg/rabbitmq"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"
)

// TokenClaims is the verified payload of an access token.
type TokenClaims struct {
	UserID  string
	IsAdmin bool
}

// AuthService handles registration, login and token issue/verification.
type AuthService struct {
	userRepo   repositories.UserRepository
	mqClient   *rabbitmq.Client
	jwtSecret  []byte
	tokenDurat time.Duration // Duration for which a token is valid
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository, mqClient *rabbitmq.Client, jwtSecret string) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		mqClient:   mqClient,
		jwtSecret:  []byte(jwtSecret),
		tokenDurat: 24 * time.Hour, // Token valid for 24 hours
	}
}

// RegisterUser registers a new user, hashes their password, persists the
// record and returns a token for the new identity.
//
// The username existence check and the insert are two separate store calls;
// a concurrent duplicate can race past the check, in which case the unique
// index on username rejects the loser.
func (s *AuthService) RegisterUser(user *models.User) (string, error) {
	if _, err := s.userRepo.GetByUsername(user.Username); err == nil {
		return "", fmt.Errorf("username '%s': %w", user.Username, ErrConflict)
	} else if !errors.Is(err, repositories.ErrRecordNotFound) {
		return "", fmt.Errorf("failed to check username: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = string(hashedPassword)
	user.CreatedAt = models.Timestamp()
	if user.FavSK == nil {
		user.FavSK = []models.FavoriteKey{}
	}

	if err := s.userRepo.Create(user); err != nil {
		return "", fmt.Errorf("failed to register user: %w", err)
	}

	s.publishEvent("user.registered", map[string]interface{}{
		"userID":   user.ID,
		"username": user.Username,
		"isAdmin":  user.IsAdmin,
	})

	return s.IssueToken(user.ID, user.IsAdmin)
}

// LoginUser authenticates a user and returns a token if successful.
// Unknown username and wrong password are reported identically.
func (s *AuthService) LoginUser(username, password string) (string, error) {
	user, err := s.userRepo.GetByUsername(username)
	if err != nil {
		if errors.Is(err, repositories.ErrRecordNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	return s.IssueToken(user.ID, user.IsAdmin)
}

// IssueToken signs a token carrying the subject id and admin flag.
func (s *AuthService) IssueToken(userID string, isAdmin bool) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":      userID,
		"isAdmin": isAdmin,
		"iat":     time.Now().Unix(),
		"exp":     time.Now().Add(s.tokenDurat).Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken parses and verifies a token, returning its claims if valid.
func (s *AuthService) ValidateToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	userID, ok := claims["id"].(string)
	if !ok || userID == "" {
		return nil, fmt.Errorf("invalid token: missing subject id")
	}
	isAdmin, _ := claims["isAdmin"].(bool)

	return &TokenClaims{UserID: userID, IsAdmin: isAdmin}, nil
}

// publishEvent emits an audit event best-effort; failures are logged, never
// surfaced to the caller.
func (s *AuthService) publishEvent(routingKey string, payload map[string]interface{}) {
	if s.mqClient == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Failed to marshal %s event: %v", routingKey, err)
		return
	}
	if err := s.mqClient.Publish(routingKey, body); err != nil {
		log.Printf("Warning: failed to publish %s event: %v", routingKey, err)
	}
}
