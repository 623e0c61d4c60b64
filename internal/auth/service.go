// Package auth checks officer credentials, enforces the one-device lock and
// issues session tokens.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/septivank/meter-field-ops/internal/apperror"
	"github.com/septivank/meter-field-ops/internal/config"
	"github.com/septivank/meter-field-ops/internal/db"
	"github.com/septivank/meter-field-ops/internal/repository"
	"go.uber.org/zap"
)

// Service authenticates accounts and manages device locks
type Service struct {
	store          repository.Gateway
	defaultSecrets []string
	logger         *zap.Logger
}

// NewService creates a new auth service
func NewService(store repository.Gateway, cfg config.AuthConfig, logger *zap.Logger) *Service {
	return &Service{
		store:          store,
		defaultSecrets: cfg.DefaultSecrets,
		logger:         logger,
	}
}

// Authenticate checks username, secret and device token. It never writes.
func (s *Service) Authenticate(ctx context.Context, username, secret, deviceToken string) (*db.UserAccount, error) {
	username = db.NormalizeUsername(username)

	user, err := s.store.FindUser(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to load account %s: %w", username, err)
	}
	if user == nil {
		return nil, apperror.ErrAccountNotRegistered
	}

	if !s.secretMatches(user, secret) {
		return nil, apperror.ErrWrongSecret
	}

	if user.DeviceToken != nil && *user.DeviceToken != deviceToken {
		return nil, apperror.ErrDeviceLocked
	}

	return user, nil
}

// BindDevice stores token for an account that has no device yet
func (s *Service) BindDevice(ctx context.Context, username, token string) error {
	username = db.NormalizeUsername(username)

	bound, err := s.store.BindDevice(ctx, username, token)
	if err != nil {
		return fmt.Errorf("failed to bind device for %s: %w", username, err)
	}
	if !bound {
		return apperror.ErrDeviceAlreadyBound
	}

	s.logger.Info("device bound", zap.String("officer", username), zap.String("device", token))
	return nil
}

// Login authenticates and binds deviceToken on the first login of an
// account. A concurrent first login from another device loses the bind and
// is reported as locked.
func (s *Service) Login(ctx context.Context, username, secret, deviceToken string) (*db.UserAccount, error) {
	user, err := s.Authenticate(ctx, username, secret, deviceToken)
	if err != nil {
		return nil, err
	}
	if user.DeviceToken != nil || deviceToken == "" {
		return user, nil
	}

	if err := s.BindDevice(ctx, user.Username, deviceToken); err != nil {
		if errors.Is(err, apperror.ErrDeviceAlreadyBound) {
			return nil, apperror.ErrDeviceLocked
		}
		return nil, err
	}

	user.DeviceToken = &deviceToken
	return user, nil
}

// ResetDevice clears the device lock so the next login binds a new device
func (s *Service) ResetDevice(ctx context.Context, username string) error {
	user, err := s.existing(ctx, username)
	if err != nil {
		return err
	}
	if err := s.store.ClearDevice(ctx, user.Username); err != nil {
		return fmt.Errorf("failed to reset device for %s: %w", user.Username, err)
	}

	s.logger.Info("device lock reset", zap.String("officer", user.Username))
	return nil
}

// SetSecret replaces the account secret with a bcrypt hash of secret
func (s *Service) SetSecret(ctx context.Context, username, secret string) error {
	user, err := s.existing(ctx, username)
	if err != nil {
		return err
	}

	hash, err := HashSecret(secret)
	if err != nil {
		return fmt.Errorf("failed to hash secret: %w", err)
	}
	if err := s.store.SetSecretHash(ctx, user.Username, hash); err != nil {
		return fmt.Errorf("failed to store secret for %s: %w", user.Username, err)
	}

	s.logger.Info("secret updated", zap.String("officer", user.Username))
	return nil
}

func (s *Service) existing(ctx context.Context, username string) (*db.UserAccount, error) {
	username = db.NormalizeUsername(username)
	user, err := s.store.FindUser(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to load account %s: %w", username, err)
	}
	if user == nil {
		return nil, apperror.ErrAccountNotRegistered
	}
	return user, nil
}

func (s *Service) secretMatches(user *db.UserAccount, secret string) bool {
	if user.SecretHash != nil && strings.TrimSpace(*user.SecretHash) != "" {
		return VerifySecret(*user.SecretHash, secret)
	}
	for _, d := range s.defaultSecrets {
		if subtle.ConstantTimeCompare([]byte(d), []byte(secret)) == 1 {
			return true
		}
	}
	return false
}
