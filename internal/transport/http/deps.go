package http

import (
	"context"
	"io"
	"time"

	"github.com/go-magiclink-api/internal/domain"
	"github.com/go-magiclink-api/internal/infrastructure/google"
	jwtinfra "github.com/go-magiclink-api/internal/infrastructure/jwt"
	"github.com/go-magiclink-api/internal/infrastructure/smtp"
)

// UserRepository is the minimal interface the router requires from a user store.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Get(ctx context.Context, userID string) (*domain.User, error)
	Put(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

// MagicLinkStore is the single-use token store. Two backends exist: the
// in-memory store for single-instance deployments and the DynamoDB repo for
// horizontally scaled ones.
type MagicLinkStore interface {
	Save(ctx context.Context, digest, email string, expiresAt time.Time) error
	Consume(ctx context.Context, digest string) (string, error)
}

// ObjectStore is the minimal interface the router requires from an object storage backend.
type ObjectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
}

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo       UserRepository
	MagicLinks     MagicLinkStore
	ObjectStore    ObjectStore
	Mailer         smtp.Mailer
	JWTProvider    *jwtinfra.Provider
	GoogleVerifier *google.Verifier
}
