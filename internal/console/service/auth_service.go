package service

import (
	"context"
	"crypto/rsa"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/xela07ax/approvalbot/internal/domain"
	"github.com/xela07ax/approvalbot/internal/infra"
	"golang.org/x/crypto/bcrypt"
)

// AuthService выдает RS256 токены для консоли.
// Пользователь один и живет в конфиге (auth.admin_user + bcrypt-хэш пароля) —
// заводить под единственного оператора БД смысла нет.
type AuthService struct {
	cfg        infra.AuthConfig
	privateKey *rsa.PrivateKey
}

func NewAuthService(cfg infra.AuthConfig, privateKey *rsa.PrivateKey) *AuthService {
	return &AuthService{
		cfg:        cfg,
		privateKey: privateKey,
	}
}

func (s *AuthService) GenerateToken(ctx context.Context, username, password string) (*domain.TokenResponse, error) {
	// 1. Аутентификация против конфига
	if s.cfg.AdminUser == "" || s.cfg.AdminPasswordHash == "" {
		return nil, errors.New("console auth is not configured")
	}
	if subtle.ConstantTimeCompare([]byte(username), []byte(s.cfg.AdminUser)) != 1 {
		return nil, errors.New("invalid credentials")
	}

	// 2. Проверка пароля (используем bcrypt)
	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.AdminPasswordHash), []byte(password)); err != nil {
		return nil, errors.New("invalid credentials")
	}

	// 3. Формирование Claims
	expiresAt := time.Now().Add(s.cfg.TokenTTL)
	claims := &domain.CustomClaims{
		UserID: username,
		Scopes: map[string]bool{"admin": true},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "approvalbot-console",
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	// 4. Подпись токена закрытым ключом (RS256)
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signedToken, err := token.SignedString(s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &domain.TokenResponse{
		AccessToken: signedToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(expiresAt).Seconds()),
	}, nil
}
