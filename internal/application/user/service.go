package user

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/go-magiclink-api/internal/domain"
	"github.com/go-magiclink-api/internal/pkg/id"
)

// DynamoDB attribute names used in partial update maps.
const (
	fieldName              = "name"
	fieldProfilePictureURL = "profile_picture_url"
)

type Service interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, userID string, req domain.UpdateUserRequest) (*domain.User, error)
	UploadAvatar(ctx context.Context, userID string, r io.Reader, filename, contentType string) (*domain.User, error)
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type objectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
}

type service struct {
	repo    userStore
	objects objectStore
}

type ServiceDeps struct {
	UserRepo    userStore
	ObjectStore objectStore
}

func NewService(deps ServiceDeps) Service {
	return &service{repo: deps.UserRepo, objects: deps.ObjectStore}
}

func (s *service) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.repo.Get(ctx, userID)
}

func (s *service) Update(ctx context.Context, userID string, req domain.UpdateUserRequest) (*domain.User, error) {
	updates := map[string]interface{}{}
	if req.Name != nil {
		updates[fieldName] = *req.Name
	}
	if len(updates) == 0 {
		return nil, fmt.Errorf("no fields to update: %w", domain.ErrBadRequest)
	}
	if err := s.repo.Update(ctx, userID, updates); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, userID)
}

func (s *service) UploadAvatar(ctx context.Context, userID string, r io.Reader, filename, contentType string) (*domain.User, error) {
	// Object keys are namespaced per user and randomised so a re-upload never
	// serves a stale cached avatar.
	key := fmt.Sprintf("avatars/%s/%s%s", userID, id.New(), path.Ext(filename))
	url, err := s.objects.Upload(ctx, key, r, contentType)
	if err != nil {
		return nil, fmt.Errorf("upload avatar: %v: %w", err, domain.ErrUpstream)
	}
	if err := s.repo.Update(ctx, userID, map[string]interface{}{fieldProfilePictureURL: url}); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, userID)
}
