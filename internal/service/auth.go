package service

import (
	"fmt"
	"time"

	"github.com/billkie/saas-sprawl/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// AuthStore is the persistence surface for direct signup/login
type AuthStore interface {
	CreateUser(user *models.User) error
	FindUserByEmail(email string) (*models.User, error)
	CreateCompany(company *models.Company, ownerUserID string) error
}

// AuthService handles direct email/password authentication
type AuthService struct {
	store     AuthStore
	jwtSecret string
	log       *logrus.Logger
}

// NewAuthService initializes the auth service
func NewAuthService(store AuthStore, jwtSecret string, log *logrus.Logger) *AuthService {
	return &AuthService{store: store, jwtSecret: jwtSecret, log: log}
}

// Signup creates a user with a hashed password and their company, with the
// user as OWNER
func (s *AuthService) Signup(email, name, password, companyName string) (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:        email,
		Name:         name,
		PasswordHash: string(hashedPassword),
	}
	if err := s.store.CreateUser(user); err != nil {
		return nil, err
	}

	company := &models.Company{Name: companyName}
	if err := s.store.CreateCompany(company, user.ID); err != nil {
		return nil, err
	}

	s.log.Infof("User registered: %s (company %s)", user.Email, company.Name)
	return user, nil
}

// Login authenticates a user and returns a JWT token
func (s *AuthService) Login(email, password string) (string, error) {
	user, err := s.store.FindUserByEmail(email)
	if err != nil {
		return "", fmt.Errorf("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", fmt.Errorf("invalid credentials")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   user.ID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
	})
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.log.Infof("User logged in: %s", user.Email)
	return tokenString, nil
}
