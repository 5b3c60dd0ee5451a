package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/domain"
	"storefront/internal/models"
	"storefront/internal/repositories"
)

// AuthService handles business logic for authentication and authorization.
type AuthService struct {
	userRepo  repositories.UserRepository
	jwtSecret []byte
	tokenTTL  time.Duration
}

// NewAuthService creates a new AuthService. A zero ttl defaults to 24 hours.
func NewAuthService(userRepo repositories.UserRepository, jwtSecret string, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthService{
		userRepo:  userRepo,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  ttl,
	}
}

// RegisterUser registers a new customer, hashes their password, and saves them to the database.
func (s *AuthService) RegisterUser(ctx context.Context, user *models.User) error {
	if existing, err := s.userRepo.GetByUsername(ctx, user.Username); err == nil && existing != nil {
		return domain.Conflict("auth.register", fmt.Sprintf("username '%s' already taken", user.Username))
	} else if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return domain.Internal(err, "auth.register", "failed to check username")
	}
	if existing, err := s.userRepo.GetByEmail(ctx, user.Email); err == nil && existing != nil {
		return domain.Conflict("auth.register", fmt.Sprintf("email '%s' already registered", user.Email))
	} else if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return domain.Internal(err, "auth.register", "failed to check email")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.Internal(err, "auth.register", "failed to hash password")
	}
	user.Password = string(hashedPassword)
	// Self-registration never grants elevated access.
	user.Role = models.RoleUser

	if err := s.userRepo.Create(ctx, user); err != nil {
		return domain.Internal(err, "auth.register", "failed to register user")
	}
	return nil
}

// LoginUser authenticates a user and returns a signed JWT.
func (s *AuthService) LoginUser(ctx context.Context, username, password string) (string, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return "", domain.Unauthorized("auth.login", "invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", domain.Unauthorized("auth.login", "invalid credentials")
	}

	return s.IssueToken(user)
}

// IssueToken signs a token carrying the user's id and role.
func (s *AuthService) IssueToken(user *models.User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"role":     user.Role,
		"exp":      now.Add(s.tokenTTL).Unix(),
		"iat":      now.Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", domain.Internal(err, "auth.token", "failed to generate token")
	}
	return tokenString, nil
}

// ValidateToken parses and validates a JWT token, returning the claims if valid.
func (s *AuthService) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, domain.WrapError(err, domain.EUNAUTHORIZED, "auth.validate", "invalid token")
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, domain.Unauthorized("auth.validate", "invalid token")
}
