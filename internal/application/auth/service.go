package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-magiclink-api/internal/domain"
	"github.com/go-magiclink-api/internal/infrastructure/google"
	jwtinfra "github.com/go-magiclink-api/internal/infrastructure/jwt"
	"github.com/go-magiclink-api/internal/pkg/id"
	pkgtoken "github.com/go-magiclink-api/internal/pkg/token"
)

// LoginResult carries the credentials minted for an authenticated user.
type LoginResult struct {
	Bearer       string
	RefreshToken string
	User         *domain.User
}

type Service interface {
	// Login resolves-or-creates the identity and emails a single-use magic
	// link. The response never reveals whether the identity already existed.
	Login(ctx context.Context, email string) error
	// CompleteVerification consumes a magic-link token and mints the
	// access/refresh token pair for its owner.
	CompleteVerification(ctx context.Context, rawToken string) (*LoginResult, error)
	// Refresh verifies a refresh token and mints a new access token.
	Refresh(ctx context.Context, refreshToken string) (string, error)
	// LoginWithGoogle verifies a Google ID token and signs the user in,
	// creating or linking the account as needed.
	LoginWithGoogle(ctx context.Context, idToken string) (*LoginResult, error)
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Get(ctx context.Context, userID string) (*domain.User, error)
	Put(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type linkStore interface {
	Save(ctx context.Context, digest, email string, expiresAt time.Time) error
	Consume(ctx context.Context, digest string) (string, error)
}

type mailer interface {
	SendEmail(to, subject, body string) error
}

type tokenProvider interface {
	SignAccess(userID, email string) (string, error)
	SignRefresh(userID string) (string, error)
	VerifyRefresh(tokenStr string) (*jwtinfra.RefreshClaims, error)
}

type googleVerifier interface {
	Verify(ctx context.Context, token string) (*google.Payload, error)
}

type service struct {
	userRepo     userStore
	links        linkStore
	mailer       mailer
	tokens       tokenProvider
	googleVerify googleVerifier
	linkTTL      time.Duration
	linkBaseURL  string
}

type ServiceDeps struct {
	UserRepo       userStore
	LinkStore      linkStore
	Mailer         mailer
	TokenProvider  tokenProvider
	GoogleVerifier googleVerifier
	LinkTTL        time.Duration
	LinkBaseURL    string
}

func NewService(deps ServiceDeps) Service {
	return &service{
		userRepo:     deps.UserRepo,
		links:        deps.LinkStore,
		mailer:       deps.Mailer,
		tokens:       deps.TokenProvider,
		googleVerify: deps.GoogleVerifier,
		linkTTL:      deps.LinkTTL,
		linkBaseURL:  deps.LinkBaseURL,
	}
}

func (s *service) Login(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.findOrCreateByEmail(ctx, email)
	if err != nil {
		return err
	}

	raw, err := pkgtoken.New()
	if err != nil {
		return err
	}
	expiresAt := time.Now().Add(s.linkTTL)
	if err := s.links.Save(ctx, pkgtoken.Digest(raw), u.Email, expiresAt); err != nil {
		return err
	}

	link := fmt.Sprintf("%s/auth/verify-magic-link?token=%s", s.linkBaseURL, raw)
	body := "Click the link to login: " + link
	if err := s.mailer.SendEmail(u.Email, "Your Magic Link", body); err != nil {
		return fmt.Errorf("send magic link email: %v: %w", err, domain.ErrUpstream)
	}
	return nil
}

func (s *service) CompleteVerification(ctx context.Context, rawToken string) (*LoginResult, error) {
	email, err := s.links.Consume(ctx, pkgtoken.Digest(rawToken))
	if err != nil {
		if errors.Is(err, domain.ErrUpstream) {
			return nil, err
		}
		// Consumed, expired and never-issued tokens are indistinguishable to
		// the caller; the cause is only logged.
		slog.Warn("magic link rejected", "cause", err)
		return nil, fmt.Errorf("invalid or expired token: %w", domain.ErrUnauthorized)
	}

	u, err := s.findOrCreateByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !u.Verified {
		if err := s.userRepo.Update(ctx, u.UserID, map[string]interface{}{"verified": true}); err != nil {
			return nil, err
		}
		u.Verified = true
	}
	return s.issueTokens(u)
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		slog.Warn("refresh token rejected", "cause", err)
		return "", fmt.Errorf("invalid or expired refresh token: %w", domain.ErrUnauthorized)
	}

	u, err := s.userRepo.Get(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			slog.Warn("refresh for unknown user", "user_id", claims.UserID)
			return "", fmt.Errorf("user not found: %w", domain.ErrUnauthorized)
		}
		return "", err
	}

	return s.tokens.SignAccess(u.UserID, u.Email)
}

func (s *service) LoginWithGoogle(ctx context.Context, idToken string) (*LoginResult, error) {
	p, err := s.googleVerify.Verify(ctx, idToken)
	if err != nil {
		return nil, err
	}
	if p.Email == "" || p.Sub == "" || !p.EmailVerified {
		return nil, fmt.Errorf("google account not usable for sign-in: %w", domain.ErrUnauthorized)
	}

	email := strings.ToLower(p.Email)
	u, err := s.userRepo.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		u = &domain.User{
			UserID:            id.New(),
			Email:             email,
			Name:              p.Name,
			ProfilePictureURL: p.Picture,
			Verified:          true, // Google already verified the address
			AuthProvider:      domain.AuthProviderGoogle,
			GoogleSub:         p.Sub,
			CreatedAt:         time.Now().UTC(),
			UpdatedAt:         time.Now().UTC(),
		}
		u.SetNamesFromEmail()
		if err := s.userRepo.Put(ctx, u); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	case u.GoogleSub == "":
		// First Google sign-in on an email-registered account: link it.
		if err := s.userRepo.Update(ctx, u.UserID, map[string]interface{}{
			"google_sub": p.Sub,
			"verified":   true,
		}); err != nil {
			return nil, err
		}
		u.GoogleSub = p.Sub
		u.Verified = true
	case u.GoogleSub != p.Sub:
		slog.Warn("google sub mismatch", "user_id", u.UserID)
		return nil, fmt.Errorf("account mismatch: %w", domain.ErrUnauthorized)
	}

	return s.issueTokens(u)
}

func (s *service) findOrCreateByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := s.userRepo.GetByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	now := time.Now().UTC()
	u = &domain.User{
		UserID:       id.New(),
		Email:        email,
		Verified:     false,
		AuthProvider: domain.AuthProviderEmail,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	u.SetNamesFromEmail()
	if err := s.userRepo.Put(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *service) issueTokens(u *domain.User) (*LoginResult, error) {
	bearer, err := s.tokens.SignAccess(u.UserID, u.Email)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.SignRefresh(u.UserID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Bearer: bearer, RefreshToken: refresh, User: u}, nil
}
