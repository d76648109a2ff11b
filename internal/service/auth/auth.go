package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Skotchmaster/jewelry_shop/internal/domain"
	"github.com/Skotchmaster/jewelry_shop/internal/models"
	"github.com/Skotchmaster/jewelry_shop/internal/repo"
	"github.com/Skotchmaster/jewelry_shop/internal/transport"
	"github.com/Skotchmaster/jewelry_shop/pkg/hash"
	"github.com/Skotchmaster/jewelry_shop/pkg/logging"
	"github.com/Skotchmaster/jewelry_shop/pkg/tokens"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

type Service struct {
	Repo   *repo.GormRepo
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

func New(r *repo.GormRepo, secret []byte, ttl time.Duration) *Service {
	return &Service{Repo: r, Secret: secret, TTL: ttl, Now: time.Now}
}

func (s *Service) Login(ctx context.Context, req transport.LoginRequest) (*transport.LoginResponse, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: email and password required", domain.ErrValidation)
	}

	user, err := s.Repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			l.Warn("login_failed", "reason", "unknown email")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.Active || !hash.CheckPassword(user.PasswordHash, req.Password) {
		l.Warn("login_failed", "reason", "bad password or inactive", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}

	exp := s.Now().Add(s.TTL).UTC()
	token, err := tokens.CreateAccessToken(s.Secret, user.ID.String(), user.Role, exp)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	l.Info("login_success", "user_id", user.ID, "role", user.Role)
	return &transport.LoginResponse{AccessToken: token, ExpiresAt: exp, User: user}, nil
}

// EnsureUser creates the account unless the email is already taken; used for seeding.
func (s *Service) EnsureUser(ctx context.Context, email, password, name, role string) (*models.User, bool, error) {
	existing, err := s.Repo.GetUserByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}

	pw, err := hash.HashPassword(password)
	if err != nil {
		return nil, false, fmt.Errorf("hash password: %w", err)
	}
	u := &models.User{Email: email, Name: name, PasswordHash: pw, Role: role, Active: true}
	if err := s.Repo.CreateUser(ctx, u); err != nil {
		return nil, false, err
	}
	return u, true, nil
}
