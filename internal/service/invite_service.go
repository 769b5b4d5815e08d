package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/immxrtalbeast/geopulse/internal/domain"
	"github.com/immxrtalbeast/geopulse/internal/repository"
	"github.com/immxrtalbeast/geopulse/lib/logger/sl"
)

const maxPendingInvites = 100

type InviteService struct {
	invites     repository.InviteRepository
	users       repository.UserRepository
	broadcaster Broadcaster
	log         *slog.Logger
	now         func() time.Time
}

func NewInviteService(invites repository.InviteRepository, users repository.UserRepository, broadcaster Broadcaster, log *slog.Logger) *InviteService {
	if log == nil {
		log = slog.Default()
	}
	return &InviteService{
		invites:     invites,
		users:       users,
		broadcaster: broadcaster,
		log:         log,
		now:         time.Now,
	}
}

// Create always stores a new pending invite, even when an identical one is
// still pending.
func (s *InviteService) Create(ctx context.Context, from, to uuid.UUID, mode string) (*domain.Invite, error) {
	const op = "service.invite.create"
	log := s.log.With(slog.String("op", op), slog.String("from_user", from.String()))

	if to == uuid.Nil {
		return nil, validationError(errors.New("to_user is required"))
	}
	if to == from {
		return nil, validationError(errors.New("cannot invite yourself"))
	}
	mode, err := domain.NormalizeInviteMode(mode)
	if err != nil {
		return nil, validationError(err)
	}

	if _, err := s.users.GetByID(ctx, to); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, validationError(errors.New("unknown recipient"))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	invite := domain.NewInvite(from, to, mode, now)
	if err := s.invites.Create(ctx, invite); err != nil {
		log.Error("failed to store invite", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("invite created", slog.String("invite_id", invite.ID.String()), slog.String("to_user", to.String()))
	broadcast(s.broadcaster, log, invite.Event(now))
	return invite, nil
}

// Respond resolves a pending invite on behalf of its recipient. Concurrent
// responses race on the store; exactly one wins.
func (s *InviteService) Respond(ctx context.Context, inviteID, responder uuid.UUID, action string) (*domain.Invite, error) {
	const op = "service.invite.respond"
	log := s.log.With(slog.String("op", op), slog.String("invite_id", inviteID.String()))

	status, err := domain.StatusForAction(action)
	if err != nil {
		return nil, validationError(err)
	}

	now := s.now()
	invite, err := s.invites.Respond(ctx, inviteID, responder, status, now)
	if err != nil {
		if errors.Is(err, repository.ErrInviteNotFound) {
			return nil, ErrInviteNotFound
		}
		log.Error("failed to resolve invite", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("invite resolved", slog.String("status", string(invite.Status)))
	broadcast(s.broadcaster, log, invite.Event(now))
	return invite, nil
}

// PendingFor lists invites waiting for userID, newest first.
func (s *InviteService) PendingFor(ctx context.Context, userID uuid.UUID) ([]domain.Invite, error) {
	const op = "service.invite.pending"

	invites, err := s.invites.PendingFor(ctx, userID, maxPendingInvites)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return invites, nil
}

// Relay rebroadcasts an invite event received from a realtime client. The
// caller has already stamped FromUser with the authenticated id.
func (s *InviteService) Relay(_ context.Context, ev domain.InviteEvent) error {
	const op = "service.invite.relay"
	log := s.log.With(slog.String("op", op), slog.String("from_user", ev.FromUser.String()))

	if ev.TS.IsZero() {
		ev.TS = s.now().UTC()
	}
	broadcast(s.broadcaster, log, ev)
	return nil
}
