package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"golang.org/x/crypto/bcrypt"

	"github.com/daytrip-kr/go-daytrip/config"
)

var _ Service = (*ServiceImpl)(nil)

// Service implements register/login/refresh/logout on bcrypt password hashes
// and HS256 access tokens with opaque stored refresh tokens.
type Service interface {
	Register(ctx context.Context, username, email, password string) (uuid.UUID, error)
	Login(ctx context.Context, email, password string) (*TokenResponse, error)
	// Refresh rotates the pair: the old refresh token is revoked and a new
	// one is stored.
	Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error)
	Logout(ctx context.Context, refreshToken string) error
}

type ServiceImpl struct {
	logger *slog.Logger
	repo   Repository
	cfg    config.JWTConfig
}

func NewService(repo Repository, cfg config.JWTConfig, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{logger: logger, repo: repo, cfg: cfg}
}

func (s *ServiceImpl) Register(ctx context.Context, username, email, password string) (uuid.UUID, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Register")
	defer span.End()

	if len(password) < 8 {
		return uuid.Nil, errors.New("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return uuid.Nil, fmt.Errorf("hashing password: %w", err)
	}

	id, err := s.repo.CreateUser(ctx, username, email, string(hash))
	if err != nil {
		span.RecordError(err)
		return uuid.Nil, err
	}
	s.logger.InfoContext(ctx, "user registered", slog.String("user_id", id.String()))
	return id, nil
}

func (s *ServiceImpl) Login(ctx context.Context, email, password string) (*TokenResponse, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Login")
	defer span.End()

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issueTokens(ctx, user)
}

func (s *ServiceImpl) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Refresh")
	defer span.End()

	rt, err := s.repo.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if time.Now().After(rt.ExpiresAt) || rt.RevokedAt != nil {
		return nil, ErrInvalidRefreshToken
	}
	user, err := s.repo.GetUserByID(ctx, rt.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.RevokeRefreshToken(ctx, refreshToken); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return s.issueTokens(ctx, user)
}

func (s *ServiceImpl) Logout(ctx context.Context, refreshToken string) error {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Logout")
	defer span.End()

	return s.repo.RevokeRefreshToken(ctx, refreshToken)
}

func (s *ServiceImpl) issueTokens(ctx context.Context, user *User) (*TokenResponse, error) {
	access, err := s.generateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generating access token: %w", err)
	}

	refresh := uuid.NewString()
	expiresAt := time.Now().Add(s.cfg.RefreshTTL)
	if err := s.repo.StoreRefreshToken(ctx, user.ID, refresh, expiresAt); err != nil {
		return nil, err
	}
	return &TokenResponse{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *ServiceImpl) generateAccessToken(user *User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   user.ID.String(),
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.SecretKey))
}
