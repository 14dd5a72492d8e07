package reset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/go-verify-api/internal/domain"
	"github.com/go-verify-api/internal/pkg/audit"
	"github.com/go-verify-api/internal/pkg/secret"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockResetStore struct{ mock.Mock }

func (m *mockResetStore) Put(ctx context.Context, cred *domain.ResetCredential) error {
	return m.Called(ctx, cred).Error(0)
}
func (m *mockResetStore) GetByToken(ctx context.Context, token string) (*domain.ResetCredential, error) {
	args := m.Called(ctx, token)
	if c, _ := args.Get(0).(*domain.ResetCredential); c != nil {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockAccountStore struct{ mock.Mock }

func (m *mockAccountStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockAccountStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSessionStore struct{ mock.Mock }

func (m *mockSessionStore) ListActiveByUser(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

type mockConsumeTxn struct{ mock.Mock }

func (m *mockConsumeTxn) Consume(ctx context.Context, token, userID, passwordHash string, sessionIDs []string, usedAt time.Time) error {
	return m.Called(ctx, token, userID, passwordHash, sessionIDs, usedAt).Error(0)
}

type mockLimiter struct{ mock.Mock }

func (m *mockLimiter) Allow(key string) (bool, time.Duration) {
	args := m.Called(key)
	return args.Bool(0), args.Get(1).(time.Duration)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) SendResetLink(destination, token, displayName string) {
	m.Called(destination, token, displayName)
}
func (m *mockNotifier) SendResetConfirmation(destination, displayName string) {
	m.Called(destination, displayName)
}

// --- builder ---

func newTestService(rs *mockResetStore, as *mockAccountStore, ss *mockSessionStore, txn *mockConsumeTxn, lim *mockLimiter, n *mockNotifier) Service {
	return NewService(ServiceDeps{
		ResetRepo:      rs,
		AccountRepo:    as,
		SessionRepo:    ss,
		ConsumeTxn:     txn,
		RequestLimiter: lim,
		Notifier:       n,
		AuditLog:       audit.New(slog.New(slog.NewTextHandler(io.Discard, nil))),
	})
}

func allowAll() *mockLimiter {
	lim := &mockLimiter{}
	lim.On("Allow", mock.Anything).Return(true, time.Duration(0))
	return lim
}

const strongPassword = "Sup3r$ecret"

// --- Request ---

func TestRequest_HappyPath(t *testing.T) {
	rs := &mockResetStore{}
	as := &mockAccountStore{}
	n := &mockNotifier{}

	as.On("GetByEmail", mock.Anything, "a@b.com").Return(&domain.User{
		UserID: "u1", Email: "a@b.com", DisplayName: "Ana",
	}, nil)
	var stored *domain.ResetCredential
	rs.On("Put", mock.Anything, mock.AnythingOfType("*domain.ResetCredential")).
		Run(func(args mock.Arguments) {
			stored = args.Get(1).(*domain.ResetCredential)
		}).Return(nil)
	n.On("SendResetLink", "a@b.com", mock.AnythingOfType("string"), "Ana").Return()

	svc := newTestService(rs, as, nil, nil, allowAll(), n)
	err := svc.Request(context.Background(), "a@b.com", "1.2.3.4")

	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "u1", stored.UserID)
	assert.Equal(t, "1.2.3.4", stored.OriginIP)
	assert.True(t, secret.ValidTokenShape(stored.Token))
	assert.Nil(t, stored.UsedAt)
	assert.InDelta(t, time.Now().Add(domain.ResetLifetime).Unix(), stored.ExpiresAt, 5)
	// The token in the email is the token in the store, raw.
	assert.Equal(t, stored.Token, n.Calls[0].Arguments.String(1))
}

func TestRequest_UnknownEmail_SilentSuccess(t *testing.T) {
	rs := &mockResetStore{}
	as := &mockAccountStore{}
	n := &mockNotifier{}
	as.On("GetByEmail", mock.Anything, "ghost@b.com").Return(nil, domain.ErrNotFound)

	svc := newTestService(rs, as, nil, nil, allowAll(), n)
	err := svc.Request(context.Background(), "ghost@b.com", "1.2.3.4")

	require.NoError(t, err)
	rs.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
	n.AssertNotCalled(t, "SendResetLink", mock.Anything, mock.Anything, mock.Anything)
}

func TestRequest_RateLimitedByIP(t *testing.T) {
	lim := &mockLimiter{}
	lim.On("Allow", "1.2.3.4").Return(false, 30*time.Second)

	svc := newTestService(&mockResetStore{}, &mockAccountStore{}, nil, nil, lim, &mockNotifier{})
	err := svc.Request(context.Background(), "a@b.com", "1.2.3.4")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRateLimited))
	var rle *domain.RateLimitedError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, 31, rle.RetryAfterSeconds)
}

// --- Consume ---

func validCredential(token string) *domain.ResetCredential {
	now := time.Now().UTC()
	return &domain.ResetCredential{
		Token:     token,
		UserID:    "u1",
		OriginIP:  "1.2.3.4",
		CreatedAt: now,
		ExpiresAt: now.Add(domain.ResetLifetime).Unix(),
	}
}

func TestConsume_HappyPath(t *testing.T) {
	token, err := secret.OpaqueToken()
	require.NoError(t, err)

	rs := &mockResetStore{}
	as := &mockAccountStore{}
	ss := &mockSessionStore{}
	txn := &mockConsumeTxn{}
	n := &mockNotifier{}

	rs.On("GetByToken", mock.Anything, token).Return(validCredential(token), nil)
	ss.On("ListActiveByUser", mock.Anything, "u1").Return([]string{"s1", "s2"}, nil)
	txn.On("Consume", mock.Anything, token, "u1", mock.AnythingOfType("string"), []string{"s1", "s2"}, mock.Anything).Return(nil)
	as.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", Email: "a@b.com", DisplayName: "Ana"}, nil)
	n.On("SendResetConfirmation", "a@b.com", "Ana").Return()

	svc := newTestService(rs, as, ss, txn, allowAll(), n)
	err = svc.Consume(context.Background(), token, strongPassword, "5.6.7.8")

	require.NoError(t, err)
	// The transaction gets a hash, never the raw password.
	hashArg := txn.Calls[0].Arguments.String(3)
	assert.NotEqual(t, strongPassword, hashArg)
	assert.True(t, secret.Verify(strongPassword, hashArg))
	txn.AssertExpectations(t)
	n.AssertExpectations(t)
}

func TestConsume_MalformedToken_NoLookup(t *testing.T) {
	rs := &mockResetStore{}
	svc := newTestService(rs, &mockAccountStore{}, nil, nil, allowAll(), &mockNotifier{})

	for _, token := range []string{"", "nope", "123456", "zzzzzzzz-zzzz-zzzz-zzzz-zzzzzzzzzzzz"} {
		err := svc.Consume(context.Background(), token, strongPassword, "5.6.7.8")
		require.Error(t, err, "token %q", token)
		assert.True(t, errors.Is(err, domain.ErrMalformedToken), "token %q", token)
	}
	rs.AssertNotCalled(t, "GetByToken", mock.Anything, mock.Anything)
}

func TestConsume_WeakPassword(t *testing.T) {
	token, err := secret.OpaqueToken()
	require.NoError(t, err)

	rs := &mockResetStore{}
	svc := newTestService(rs, &mockAccountStore{}, nil, nil, allowAll(), &mockNotifier{})

	for _, pw := range []string{"", "short1!", "alllowercase1!", "ALLUPPERCASE1!", "NoDigitsHere!", "NoSymbols123"} {
		err := svc.Consume(context.Background(), token, pw, "5.6.7.8")
		require.Error(t, err, "password %q", pw)
		assert.True(t, errors.Is(err, domain.ErrWeakPassword), "password %q", pw)
	}
	rs.AssertNotCalled(t, "GetByToken", mock.Anything, mock.Anything)
}

func TestConsume_UnknownToken(t *testing.T) {
	token, err := secret.OpaqueToken()
	require.NoError(t, err)

	rs := &mockResetStore{}
	rs.On("GetByToken", mock.Anything, token).Return(nil, domain.ErrNotFound)

	svc := newTestService(rs, &mockAccountStore{}, nil, nil, allowAll(), &mockNotifier{})
	err = svc.Consume(context.Background(), token, strongPassword, "5.6.7.8")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTokenInvalid))
}

func TestConsume_StoreFailure_NotMappedToInvalidToken(t *testing.T) {
	token, err := secret.OpaqueToken()
	require.NoError(t, err)

	rs := &mockResetStore{}
	ioErr := errors.New("connection reset by peer")
	rs.On("GetByToken", mock.Anything, token).Return(nil, ioErr)

	svc := newTestService(rs, &mockAccountStore{}, nil, nil, allowAll(), &mockNotifier{})
	err = svc.Consume(context.Background(), token, strongPassword, "5.6.7.8")

	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrTokenInvalid))
	assert.True(t, errors.Is(err, ioErr))
}

func TestConsume_TokenAlreadyUsed(t *testing.T) {
	token, err := secret.OpaqueToken()
	require.NoError(t, err)

	cred := validCredential(token)
	usedAt := time.Now().Add(-time.Minute)
	cred.UsedAt = &usedAt

	rs := &mockResetStore{}
	rs.On("GetByToken", mock.Anything, token).Return(cred, nil)

	svc := newTestService(rs, &mockAccountStore{}, nil, nil, allowAll(), &mockNotifier{})
	err = svc.Consume(context.Background(), token, strongPassword, "5.6.7.8")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTokenUsed))
}

func TestConsume_TokenExpired(t *testing.T) {
	token, err := secret.OpaqueToken()
	require.NoError(t, err)

	cred := validCredential(token)
	cred.ExpiresAt = time.Now().Add(-time.Minute).Unix()

	rs := &mockResetStore{}
	rs.On("GetByToken", mock.Anything, token).Return(cred, nil)

	svc := newTestService(rs, &mockAccountStore{}, nil, nil, allowAll(), &mockNotifier{})
	err = svc.Consume(context.Background(), token, strongPassword, "5.6.7.8")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTokenExpired))
}

func TestConsume_ConcurrentUse_TxnCancels(t *testing.T) {
	token, err := secret.OpaqueToken()
	require.NoError(t, err)

	rs := &mockResetStore{}
	ss := &mockSessionStore{}
	txn := &mockConsumeTxn{}
	n := &mockNotifier{}

	rs.On("GetByToken", mock.Anything, token).Return(validCredential(token), nil)
	ss.On("ListActiveByUser", mock.Anything, "u1").Return([]string{}, nil)
	txn.On("Consume", mock.Anything, token, "u1", mock.Anything, mock.Anything, mock.Anything).
		Return(fmt.Errorf("reset transaction canceled: %w", domain.ErrTokenUsed))

	svc := newTestService(rs, &mockAccountStore{}, ss, txn, allowAll(), n)
	err = svc.Consume(context.Background(), token, strongPassword, "5.6.7.8")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTokenUsed))
	n.AssertNotCalled(t, "SendResetConfirmation", mock.Anything, mock.Anything)
}
