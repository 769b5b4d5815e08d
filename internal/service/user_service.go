package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/immxrtalbeast/geopulse/internal/auth"
	"github.com/immxrtalbeast/geopulse/internal/domain"
	"github.com/immxrtalbeast/geopulse/internal/repository"
	"github.com/immxrtalbeast/geopulse/lib/logger/sl"
)

// AuthResult is what a successful register or login hands back to the client.
type AuthResult struct {
	Token string
	User  *domain.User
}

type UserService struct {
	users  repository.UserRepository
	hasher PasswordHasher
	tokens TokenIssuer
	log    *slog.Logger
}

func NewUserService(users repository.UserRepository, hasher PasswordHasher, tokens TokenIssuer, log *slog.Logger) *UserService {
	if log == nil {
		log = slog.Default()
	}
	return &UserService{users: users, hasher: hasher, tokens: tokens, log: log}
}

func (s *UserService) Register(ctx context.Context, username, password string) (*AuthResult, error) {
	const op = "service.user.register"
	log := s.log.With(slog.String("op", op), slog.String("username", username))

	if err := auth.ValidateCredentials(auth.Credentials{Username: username, Password: password}); err != nil {
		return nil, validationError(err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		log.Error("failed to hash password", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user := domain.NewUser(username, hash)
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			log.Info("username already taken")
			return nil, ErrUsernameTaken
		}
		log.Error("failed to create user", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user registered", slog.String("user_id", user.ID.String()))
	return &AuthResult{Token: token, User: user}, nil
}

func (s *UserService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	const op = "service.user.login"
	log := s.log.With(slog.String("op", op), slog.String("username", username))

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			log.Info("unknown username")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		log.Info("password mismatch")
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &AuthResult{Token: token, User: user}, nil
}

// Authenticate resolves a bearer token to its user id.
func (s *UserService) Authenticate(_ context.Context, token string) (uuid.UUID, error) {
	userID, err := s.tokens.Parse(token)
	if err != nil {
		return uuid.Nil, ErrUnauthenticated
	}
	return userID, nil
}
