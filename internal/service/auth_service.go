package service

import (
	"context"
	"errors"
	"fmt"
	"shop-service/internal/access"
	"shop-service/internal/model"
	"shop-service/pkg/jwtutil"
	"shop-service/prometheus"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthService issues and verifies tokens
type AuthService struct {
	db  *gorm.DB
	jwt *jwtutil.JWTUtil
	log *zap.Logger
}

// NewAuthService creates an auth service
func NewAuthService(db *gorm.DB, jwt *jwtutil.JWTUtil, log *zap.Logger) *AuthService {
	return &AuthService{db: db, jwt: jwt, log: log}
}

// Login checks the credentials and returns a fresh token pair. Unknown users
// and wrong passwords both yield ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, username, password string) (*jwtutil.TokenPair, error) {
	prometheus.RecordAuthAttempt()
	defer prometheus.TrackDBOperation("user_query")(time.Now())

	var user model.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Warn("Login for unknown user", zap.String("username", username))
			prometheus.RecordAuthError("user_not_found")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		s.log.Warn("Invalid password", zap.String("username", username))
		prometheus.RecordAuthError("invalid_password")
		return nil, ErrInvalidCredentials
	}

	pair, err := s.jwt.GenerateTokenPair(user.ID, user.Username)
	if err != nil {
		prometheus.RecordAuthError("token_generation_failed")
		return nil, fmt.Errorf("generate tokens: %w", err)
	}

	prometheus.RecordAuthSuccess()
	s.log.Info("User logged in", zap.Uint("user_id", user.ID), zap.String("username", user.Username))
	return pair, nil
}

// Refresh exchanges a refresh token for a new access token
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	claims, err := s.jwt.ValidateToken(refreshToken, jwtutil.TokenTypeRefresh)
	if err != nil {
		prometheus.RecordAuthError("invalid_refresh_token")
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	user, err := s.findUser(ctx, claims.UserID)
	if err != nil {
		return "", time.Time{}, err
	}

	token, exp, err := s.jwt.GenerateAccessToken(user.ID, user.Username)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate access token: %w", err)
	}
	return token, exp, nil
}

// Authenticate resolves an access token to the principal it was issued for.
// The user is reloaded so revoked superuser rights take effect immediately.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*access.Principal, error) {
	claims, err := s.jwt.ValidateToken(accessToken, jwtutil.TokenTypeAccess)
	if err != nil {
		prometheus.RecordAuthError("invalid_access_token")
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	user, err := s.findUser(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}

	return &access.Principal{
		UserID:      user.ID,
		Username:    user.Username,
		IsSuperuser: user.IsSuperuser,
	}, nil
}

func (s *AuthService) findUser(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			prometheus.RecordAuthError("user_not_found")
			return nil, fmt.Errorf("%w: user %d no longer exists", ErrInvalidToken, id)
		}
		return nil, fmt.Errorf("find user %d: %w", id, err)
	}
	return &user, nil
}

// CreateUser stores a user with a bcrypt hashed password
func (s *AuthService) CreateUser(ctx context.Context, username, password string, superuser bool) (*model.User, error) {
	if username == "" || password == "" {
		return nil, invalid("", "username and password are required")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("user %q: %w", username, ErrConflict)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := model.User{
		Username:    username,
		Password:    string(hashed),
		IsSuperuser: superuser,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

// EnsureSuperuser creates the configured superuser if it does not exist yet.
// An empty username disables bootstrapping.
func (s *AuthService) EnsureSuperuser(ctx context.Context, username, password string) error {
	if username == "" {
		return nil
	}

	_, err := s.CreateUser(ctx, username, password, true)
	if errors.Is(err, ErrConflict) {
		s.log.Info("Superuser already exists", zap.String("username", username))
		return nil
	}
	if err != nil {
		return err
	}

	s.log.Info("Superuser created", zap.String("username", username))
	return nil
}
