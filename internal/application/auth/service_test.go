package auth

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/go-magiclink-api/internal/config"
	"github.com/go-magiclink-api/internal/domain"
	"github.com/go-magiclink-api/internal/infrastructure/google"
	jwtinfra "github.com/go-magiclink-api/internal/infrastructure/jwt"
	"github.com/go-magiclink-api/internal/infrastructure/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) Put(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}
func (m *mockUserStore) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	return m.Called(ctx, userID, updates).Error(0)
}

type mockLinkStore struct{ mock.Mock }

func (m *mockLinkStore) Save(ctx context.Context, digest, email string, expiresAt time.Time) error {
	return m.Called(ctx, digest, email, expiresAt).Error(0)
}
func (m *mockLinkStore) Consume(ctx context.Context, digest string) (string, error) {
	args := m.Called(ctx, digest)
	return args.String(0), args.Error(1)
}

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendEmail(to, subject, body string) error {
	return m.Called(to, subject, body).Error(0)
}

type mockGoogleVerifier struct{ mock.Mock }

func (m *mockGoogleVerifier) Verify(ctx context.Context, token string) (*google.Payload, error) {
	args := m.Called(ctx, token)
	if p, _ := args.Get(0).(*google.Payload); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

// captureMailer records the last message instead of sending it.
type captureMailer struct {
	to, subject, body string
}

func (c *captureMailer) SendEmail(to, subject, body string) error {
	c.to, c.subject, c.body = to, subject, body
	return nil
}

// --- helpers ---

func testTokenProvider(t *testing.T) *jwtinfra.Provider {
	t.Helper()
	p, err := jwtinfra.NewProvider(&config.Config{
		AccessTokenSecret:  "test-access-secret",
		RefreshTokenSecret: "test-refresh-secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
	})
	require.NoError(t, err)
	return p
}

func newSvc(us userStore, ls linkStore, ml mailer, tp tokenProvider, gv googleVerifier) Service {
	return NewService(ServiceDeps{
		UserRepo:       us,
		LinkStore:      ls,
		Mailer:         ml,
		TokenProvider:  tp,
		GoogleVerifier: gv,
		LinkTTL:        15 * time.Minute,
		LinkBaseURL:    "http://localhost:5173",
	})
}

func existingUser() *domain.User {
	return &domain.User{
		UserID:       "user-123",
		Email:        "a@x.com",
		Verified:     true,
		AuthProvider: domain.AuthProviderEmail,
	}
}

// --- Login ---

func TestLogin_ExistingUser_SendsLink(t *testing.T) {
	us, ls, ml := &mockUserStore{}, &mockLinkStore{}, &mockMailer{}

	us.On("GetByEmail", mock.Anything, "a@x.com").Return(existingUser(), nil)
	ls.On("Save", mock.Anything, mock.Anything, "a@x.com", mock.Anything).Return(nil)
	ml.On("SendEmail", "a@x.com", "Your Magic Link", mock.MatchedBy(func(body string) bool {
		return regexp.MustCompile(`verify-magic-link\?token=[0-9a-f]{64}`).MatchString(body)
	})).Return(nil)

	err := newSvc(us, ls, ml, testTokenProvider(t), nil).Login(context.Background(), "a@x.com")

	require.NoError(t, err)
	us.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
	ls.AssertExpectations(t)
	ml.AssertExpectations(t)
}

func TestLogin_UnknownEmail_CreatesIdentity(t *testing.T) {
	us, ls, ml := &mockUserStore{}, &mockLinkStore{}, &mockMailer{}

	us.On("GetByEmail", mock.Anything, "jane.doe@x.com").Return(nil, domain.ErrNotFound)
	us.On("Put", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
		return u.Email == "jane.doe@x.com" && !u.Verified &&
			u.FirstName == "jane" && u.LastName == "doe" &&
			u.AuthProvider == domain.AuthProviderEmail && u.UserID != ""
	})).Return(nil)
	ls.On("Save", mock.Anything, mock.Anything, "jane.doe@x.com", mock.Anything).Return(nil)
	ml.On("SendEmail", "jane.doe@x.com", mock.Anything, mock.Anything).Return(nil)

	err := newSvc(us, ls, ml, testTokenProvider(t), nil).Login(context.Background(), "Jane.Doe@X.com")

	require.NoError(t, err)
	us.AssertExpectations(t)
}

func TestLogin_StoresDigestNotRawToken(t *testing.T) {
	us, ls := &mockUserStore{}, &mockLinkStore{}
	ml := &captureMailer{}

	var savedDigest string
	us.On("GetByEmail", mock.Anything, "a@x.com").Return(existingUser(), nil)
	ls.On("Save", mock.Anything, mock.Anything, "a@x.com", mock.Anything).
		Run(func(args mock.Arguments) { savedDigest = args.String(1) }).Return(nil)

	err := newSvc(us, ls, ml, testTokenProvider(t), nil).Login(context.Background(), "a@x.com")
	require.NoError(t, err)

	m := regexp.MustCompile(`token=([0-9a-f]{64})`).FindStringSubmatch(ml.body)
	require.Len(t, m, 2)
	assert.NotEqual(t, m[1], savedDigest, "store must hold the digest, not the raw token")
}

func TestLogin_MailerFailureSurfacesAsUpstream(t *testing.T) {
	us, ls, ml := &mockUserStore{}, &mockLinkStore{}, &mockMailer{}

	us.On("GetByEmail", mock.Anything, "a@x.com").Return(existingUser(), nil)
	ls.On("Save", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	ml.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp: connection refused"))

	err := newSvc(us, ls, ml, testTokenProvider(t), nil).Login(context.Background(), "a@x.com")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUpstream))
}

// --- CompleteVerification ---

func TestCompleteVerification_InvalidToken(t *testing.T) {
	us, ls := &mockUserStore{}, &mockLinkStore{}

	ls.On("Consume", mock.Anything, mock.Anything).Return("", domain.ErrNotFound)

	_, err := newSvc(us, ls, &mockMailer{}, testTokenProvider(t), nil).
		CompleteVerification(context.Background(), "deadbeef")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestCompleteVerification_MarksUserVerified(t *testing.T) {
	us, ls := &mockUserStore{}, &mockLinkStore{}

	u := existingUser()
	u.Verified = false
	ls.On("Consume", mock.Anything, mock.Anything).Return("a@x.com", nil)
	us.On("GetByEmail", mock.Anything, "a@x.com").Return(u, nil)
	us.On("Update", mock.Anything, "user-123", map[string]interface{}{"verified": true}).Return(nil)

	result, err := newSvc(us, ls, &mockMailer{}, testTokenProvider(t), nil).
		CompleteVerification(context.Background(), "deadbeef")

	require.NoError(t, err)
	assert.True(t, result.User.Verified)
	assert.NotEmpty(t, result.Bearer)
	assert.NotEmpty(t, result.RefreshToken)
	us.AssertExpectations(t)
}

func TestCompleteVerification_StoreFailurePropagates(t *testing.T) {
	ls := &mockLinkStore{}
	ls.On("Consume", mock.Anything, mock.Anything).Return("", domain.ErrUpstream)

	_, err := newSvc(&mockUserStore{}, ls, &mockMailer{}, testTokenProvider(t), nil).
		CompleteVerification(context.Background(), "deadbeef")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUpstream))
	assert.False(t, errors.Is(err, domain.ErrUnauthorized))
}

// --- Refresh ---

func TestRefresh_Success(t *testing.T) {
	us := &mockUserStore{}
	tp := testTokenProvider(t)

	refresh, err := tp.SignRefresh("user-123")
	require.NoError(t, err)
	us.On("Get", mock.Anything, "user-123").Return(existingUser(), nil)

	bearer, err := newSvc(us, &mockLinkStore{}, &mockMailer{}, tp, nil).
		Refresh(context.Background(), refresh)

	require.NoError(t, err)
	claims, err := tp.VerifyAccess(bearer)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, "a@x.com", claims.Email)
}

func TestRefresh_GarbageToken(t *testing.T) {
	_, err := newSvc(&mockUserStore{}, &mockLinkStore{}, &mockMailer{}, testTokenProvider(t), nil).
		Refresh(context.Background(), "not-a-jwt")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestRefresh_UserSinceDeleted(t *testing.T) {
	us := &mockUserStore{}
	tp := testTokenProvider(t)

	refresh, err := tp.SignRefresh("user-gone")
	require.NoError(t, err)
	us.On("Get", mock.Anything, "user-gone").Return(nil, domain.ErrNotFound)

	_, err = newSvc(us, &mockLinkStore{}, &mockMailer{}, tp, nil).
		Refresh(context.Background(), refresh)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

// --- LoginWithGoogle ---

func validGooglePayload() *google.Payload {
	return &google.Payload{
		Sub:           "google-sub-123",
		Email:         "alice@gmail.com",
		EmailVerified: true,
		Name:          "Alice Smith",
	}
}

func TestLoginWithGoogle_NewUser(t *testing.T) {
	us, gv := &mockUserStore{}, &mockGoogleVerifier{}

	gv.On("Verify", mock.Anything, "tok").Return(validGooglePayload(), nil)
	us.On("GetByEmail", mock.Anything, "alice@gmail.com").Return(nil, domain.ErrNotFound)
	us.On("Put", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
		return u.Email == "alice@gmail.com" && u.Verified &&
			u.AuthProvider == domain.AuthProviderGoogle && u.GoogleSub == "google-sub-123"
	})).Return(nil)

	result, err := newSvc(us, &mockLinkStore{}, &mockMailer{}, testTokenProvider(t), gv).
		LoginWithGoogle(context.Background(), "tok")

	require.NoError(t, err)
	assert.NotEmpty(t, result.Bearer)
	assert.Equal(t, "Alice Smith", result.User.Name)
	us.AssertExpectations(t)
}

func TestLoginWithGoogle_FirstGoogleSignIn_Links(t *testing.T) {
	us, gv := &mockUserStore{}, &mockGoogleVerifier{}

	u := &domain.User{UserID: "user-123", Email: "alice@gmail.com", AuthProvider: domain.AuthProviderEmail}
	gv.On("Verify", mock.Anything, "tok").Return(validGooglePayload(), nil)
	us.On("GetByEmail", mock.Anything, "alice@gmail.com").Return(u, nil)
	us.On("Update", mock.Anything, "user-123", mock.Anything).Return(nil)

	result, err := newSvc(us, &mockLinkStore{}, &mockMailer{}, testTokenProvider(t), gv).
		LoginWithGoogle(context.Background(), "tok")

	require.NoError(t, err)
	assert.Equal(t, "google-sub-123", result.User.GoogleSub)
	us.AssertCalled(t, "Update", mock.Anything, "user-123", mock.Anything)
}

func TestLoginWithGoogle_SubMismatch(t *testing.T) {
	us, gv := &mockUserStore{}, &mockGoogleVerifier{}

	u := &domain.User{UserID: "user-123", Email: "alice@gmail.com", GoogleSub: "other-sub"}
	gv.On("Verify", mock.Anything, "tok").Return(validGooglePayload(), nil)
	us.On("GetByEmail", mock.Anything, "alice@gmail.com").Return(u, nil)

	_, err := newSvc(us, &mockLinkStore{}, &mockMailer{}, testTokenProvider(t), gv).
		LoginWithGoogle(context.Background(), "tok")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestLoginWithGoogle_UnverifiedEmail(t *testing.T) {
	gv := &mockGoogleVerifier{}

	p := validGooglePayload()
	p.EmailVerified = false
	gv.On("Verify", mock.Anything, "tok").Return(p, nil)

	_, err := newSvc(&mockUserStore{}, &mockLinkStore{}, &mockMailer{}, testTokenProvider(t), gv).
		LoginWithGoogle(context.Background(), "tok")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestLoginWithGoogle_VerifierError(t *testing.T) {
	gv := &mockGoogleVerifier{}
	gv.On("Verify", mock.Anything, "bad").Return(nil, domain.ErrUnauthorized)

	_, err := newSvc(&mockUserStore{}, &mockLinkStore{}, &mockMailer{}, testTokenProvider(t), gv).
		LoginWithGoogle(context.Background(), "bad")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

// --- end to end: login → verify → verify again ---

// statefulUserStore is a map-backed user store for flow tests.
type statefulUserStore struct {
	byEmail map[string]*domain.User
	byID    map[string]*domain.User
}

func newStatefulUserStore() *statefulUserStore {
	return &statefulUserStore{byEmail: map[string]*domain.User{}, byID: map[string]*domain.User{}}
}

func (s *statefulUserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	if u, ok := s.byEmail[email]; ok {
		return u, nil
	}
	return nil, domain.ErrNotFound
}
func (s *statefulUserStore) Get(_ context.Context, userID string) (*domain.User, error) {
	if u, ok := s.byID[userID]; ok {
		return u, nil
	}
	return nil, domain.ErrNotFound
}
func (s *statefulUserStore) Put(_ context.Context, u *domain.User) error {
	s.byEmail[u.Email] = u
	s.byID[u.UserID] = u
	return nil
}
func (s *statefulUserStore) Update(_ context.Context, userID string, updates map[string]interface{}) error {
	if _, ok := s.byID[userID]; !ok {
		return domain.ErrNotFound
	}
	if v, ok := updates["verified"].(bool); ok {
		s.byID[userID].Verified = v
	}
	return nil
}

func TestEndToEnd_MagicLinkFlow(t *testing.T) {
	users := newStatefulUserStore()
	links := memstore.NewMagicLinkStore()
	defer links.Close()
	ml := &captureMailer{}
	tp := testTokenProvider(t)
	svc := newSvc(users, links, ml, tp, nil)
	ctx := context.Background()

	require.NoError(t, svc.Login(ctx, "a@x.com"))
	require.Equal(t, "a@x.com", ml.to)

	m := regexp.MustCompile(`token=([0-9a-f]{64})`).FindStringSubmatch(ml.body)
	require.Len(t, m, 2)
	raw := m[1]

	result, err := svc.CompleteVerification(ctx, raw)
	require.NoError(t, err)

	claims, err := tp.VerifyAccess(result.Bearer)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.True(t, result.User.Verified)

	// The same token must not work twice.
	_, err = svc.CompleteVerification(ctx, raw)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))

	// The refresh token mints a fresh access token for the same user.
	bearer, err := svc.Refresh(ctx, result.RefreshToken)
	require.NoError(t, err)
	claims, err = tp.VerifyAccess(bearer)
	require.NoError(t, err)
	assert.Equal(t, result.User.UserID, claims.UserID)
}

func TestEndToEnd_RefreshAfterUserDeleted(t *testing.T) {
	users := newStatefulUserStore()
	links := memstore.NewMagicLinkStore()
	defer links.Close()
	ml := &captureMailer{}
	tp := testTokenProvider(t)
	svc := newSvc(users, links, ml, tp, nil)
	ctx := context.Background()

	require.NoError(t, svc.Login(ctx, "a@x.com"))
	m := regexp.MustCompile(`token=([0-9a-f]{64})`).FindStringSubmatch(ml.body)
	require.Len(t, m, 2)
	result, err := svc.CompleteVerification(ctx, m[1])
	require.NoError(t, err)

	delete(users.byID, result.User.UserID)
	delete(users.byEmail, result.User.Email)

	_, err = svc.Refresh(ctx, result.RefreshToken)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}
