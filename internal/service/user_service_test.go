package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/immxrtalbeast/geopulse/internal/auth"
	"github.com/immxrtalbeast/geopulse/internal/repository"
	"github.com/immxrtalbeast/geopulse/internal/service/mocks"
)

func newUserService(t *testing.T) (*UserService, *auth.Tokens) {
	t.Helper()

	tokens, err := auth.NewHMACTokens([]byte("test-secret"), time.Hour)
	require.NoError(t, err)
	hasher := auth.NewHasher(auth.Params{Memory: 1024, Iterations: 1, Parallelism: 1})

	return NewUserService(repository.NewInMemoryUserRepository(), hasher, tokens, discardLogger()), tokens
}

func TestRegisterLoginParseRoundTrip(t *testing.T) {
	req := require.New(t)
	svc, tokens := newUserService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, "alice", "pw1")
	req.NoError(err)
	req.NotEmpty(registered.Token)
	req.Equal("alice", registered.User.Username)

	loggedIn, err := svc.Login(ctx, "alice", "pw1")
	req.NoError(err)
	req.NotEmpty(loggedIn.Token)

	parsed, err := tokens.Parse(loggedIn.Token)
	req.NoError(err)
	req.Equal(registered.User.ID, parsed)

	userID, err := svc.Authenticate(ctx, registered.Token)
	req.NoError(err)
	req.Equal(registered.User.ID, userID)
}

func TestLoginWrongPassword(t *testing.T) {
	req := require.New(t)
	svc, _ := newUserService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "pw1")
	req.NoError(err)

	res, err := svc.Login(ctx, "alice", "wrong")
	req.ErrorIs(err, ErrInvalidCredentials)
	req.Nil(res)

	_, err = svc.Login(ctx, "nobody", "pw1")
	req.ErrorIs(err, ErrInvalidCredentials)
}

func TestRegisterRejectsTakenUsername(t *testing.T) {
	req := require.New(t)
	svc, _ := newUserService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "pw1")
	req.NoError(err)

	_, err = svc.Register(ctx, "alice", "other")
	req.ErrorIs(err, ErrUsernameTaken)

	_, err = svc.Login(ctx, "alice", "pw1")
	req.NoError(err)
}

func TestRegisterValidatesCredentials(t *testing.T) {
	req := require.New(t)
	svc, _ := newUserService(t)

	_, err := svc.Register(context.Background(), "a b", "pw1")
	req.ErrorIs(err, ErrValidation)

	_, err = svc.Register(context.Background(), "alice", "")
	req.ErrorIs(err, ErrValidation)
}

func TestAuthenticateRejectsGarbage(t *testing.T) {
	svc, _ := newUserService(t)

	_, err := svc.Authenticate(context.Background(), "garbage")
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestRegisterHashFailure(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)

	hasher := mocks.NewMockPasswordHasher(ctrl)
	tokens := mocks.NewMockTokenIssuer(ctrl)
	users := repository.NewInMemoryUserRepository()
	svc := NewUserService(users, hasher, tokens, discardLogger())

	hasher.EXPECT().Hash("pw1").Return("", errors.New("entropy exhausted"))

	_, err := svc.Register(context.Background(), "alice", "pw1")
	req.Error(err)
	req.NotErrorIs(err, ErrValidation)

	_, err = users.GetByUsername(context.Background(), "alice")
	req.ErrorIs(err, repository.ErrUserNotFound)
}

func TestLoginIssuesTokenForStoredUser(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)

	hasher := mocks.NewMockPasswordHasher(ctrl)
	tokens := mocks.NewMockTokenIssuer(ctrl)
	svc := NewUserService(repository.NewInMemoryUserRepository(), hasher, tokens, discardLogger())

	var userID uuid.UUID
	gomock.InOrder(
		hasher.EXPECT().Hash("pw1").Return("hashed", nil),
		tokens.EXPECT().Issue(gomock.Any()).DoAndReturn(func(id uuid.UUID) (string, error) {
			userID = id
			return "t1", nil
		}),
		hasher.EXPECT().Verify("pw1", "hashed").Return(true),
		tokens.EXPECT().Issue(gomock.Any()).DoAndReturn(func(id uuid.UUID) (string, error) {
			req.Equal(userID, id)
			return "t2", nil
		}),
	)

	res, err := svc.Register(context.Background(), "alice", "pw1")
	req.NoError(err)
	req.Equal("t1", res.Token)

	res, err = svc.Login(context.Background(), "alice", "pw1")
	req.NoError(err)
	req.Equal("t2", res.Token)
}
