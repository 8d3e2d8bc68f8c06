package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ASS429/ma-boutique-backend/internal/shared"
)

// TwoFactorPolicy tells whether an admin must confirm logins with a code.
type TwoFactorPolicy interface {
	TwoFactorEnabled(ctx context.Context, userID int64) (bool, error)
}

// CodeSender delivers second factor codes.
type CodeSender interface {
	SendTwoFactorCode(ctx context.Context, userID int64, username, code string) error
}

// Sessions stores live token ids.
type Sessions interface {
	Register(ctx context.Context, jti string, userID int64, ttl time.Duration) error
	Active(ctx context.Context, jti string) (bool, error)
	Revoke(ctx context.Context, jti string) error
}

// Codes stores one-time second factor codes.
type Codes interface {
	Issue(ctx context.Context, userID int64) (challenge, code string, err error)
	Consume(ctx context.Context, challenge, code string) (int64, error)
}

// Options groups the collaborators of Service.
type Options struct {
	Tokens     *Tokens
	Sessions   Sessions
	Codes      Codes
	TwoFactor  TwoFactorPolicy
	Sender     CodeSender
	BcryptCost int
	Logger     *slog.Logger
}

// Service wraps authentication business rules.
type Service struct {
	repo Repository
	opts Options
}

// NewService constructs a new Service.
func NewService(repo Repository, opts Options) *Service {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{repo: repo, opts: opts}
}

// Register creates a user account with role user and plan Free.
func (s *Service) Register(ctx context.Context, in Credentials) (User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		return User{}, ErrCredentialsRequired
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.opts.BcryptCost)
	if err != nil {
		return User{}, err
	}
	return s.repo.Create(ctx, username, string(hash))
}

// Login checks credentials. Admins with the second factor enabled get a
// challenge instead of a token.
func (s *Service) Login(ctx context.Context, in Credentials) (LoginResult, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		return LoginResult{}, ErrCredentialsRequired
	}
	user, err := s.repo.FindByUsername(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	if user.Role == shared.RoleAdmin && s.opts.TwoFactor != nil && s.opts.Codes != nil {
		enabled, err := s.opts.TwoFactor.TwoFactorEnabled(ctx, user.ID)
		if err != nil {
			return LoginResult{}, err
		}
		if enabled {
			challenge, code, err := s.opts.Codes.Issue(ctx, user.ID)
			if err != nil {
				return LoginResult{}, err
			}
			if s.opts.Sender != nil {
				if err := s.opts.Sender.SendTwoFactorCode(ctx, user.ID, user.Username, code); err != nil {
					return LoginResult{}, err
				}
			}
			return LoginResult{TwoFARequired: true, Challenge: challenge}, nil
		}
	}

	sess, err := s.issue(ctx, user)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Session: &sess}, nil
}

// VerifyTwoFactor exchanges a challenge and its code for a session.
func (s *Service) VerifyTwoFactor(ctx context.Context, challenge, code string) (Session, error) {
	if s.opts.Codes == nil || challenge == "" || code == "" {
		return Session{}, ErrInvalidCode
	}
	userID, err := s.opts.Codes.Consume(ctx, challenge, code)
	if err != nil {
		return Session{}, err
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issue(ctx, user)
}

func (s *Service) issue(ctx context.Context, user User) (Session, error) {
	token, claims, err := s.opts.Tokens.Issue(user)
	if err != nil {
		return Session{}, err
	}
	if s.opts.Sessions != nil {
		if err := s.opts.Sessions.Register(ctx, claims.ID, user.ID, s.opts.Tokens.TTL()); err != nil {
			return Session{}, err
		}
	}
	s.opts.Logger.Info("user logged in", slog.Int64("user_id", user.ID), slog.String("role", user.Role))
	return Session{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: user}, nil
}

// Authenticate resolves a bearer token into the calling principal.
func (s *Service) Authenticate(ctx context.Context, raw string) (shared.Principal, error) {
	claims, err := s.opts.Tokens.Parse(raw)
	if err != nil {
		return shared.Principal{}, err
	}
	if s.opts.Sessions != nil {
		active, err := s.opts.Sessions.Active(ctx, claims.ID)
		if err != nil {
			return shared.Principal{}, err
		}
		if !active {
			return shared.Principal{}, ErrInvalidToken
		}
	}
	return shared.Principal{
		UserID:   claims.UserID,
		Username: claims.Username,
		Role:     claims.Role,
		TokenID:  claims.ID,
	}, nil
}

// Logout revokes the caller's token.
func (s *Service) Logout(ctx context.Context, p shared.Principal) error {
	if s.opts.Sessions == nil || p.TokenID == "" {
		return nil
	}
	return s.opts.Sessions.Revoke(ctx, p.TokenID)
}

// Me returns the caller's account.
func (s *Service) Me(ctx context.Context, p shared.Principal) (User, error) {
	return s.repo.FindByID(ctx, p.UserID)
}

// ListUsers returns every account. Admin only.
func (s *Service) ListUsers(ctx context.Context, p shared.Principal) ([]User, error) {
	if !p.IsAdmin() {
		return nil, ErrAdminOnly
	}
	return s.repo.List(ctx)
}
