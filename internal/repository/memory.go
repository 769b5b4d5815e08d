package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/immxrtalbeast/geopulse/internal/domain"
)

type InMemoryUserRepository struct {
	mu        sync.RWMutex
	users     map[uuid.UUID]*domain.User
	usernames map[string]uuid.UUID
}

func NewInMemoryUserRepository() *InMemoryUserRepository {
	return &InMemoryUserRepository{
		users:     make(map[uuid.UUID]*domain.User),
		usernames: make(map[string]uuid.UUID),
	}
}

func (r *InMemoryUserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if user == nil {
		return errors.New("user is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.usernames[user.Username]; ok {
		return ErrUsernameTaken
	}

	stored := *user
	r.users[user.ID] = &stored
	r.usernames[user.Username] = user.ID
	return nil
}

func (r *InMemoryUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := *user
	return &out, nil
}

func (r *InMemoryUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.usernames[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := *r.users[id]
	return &out, nil
}

type InMemoryLocationRepository struct {
	mu        sync.RWMutex
	locations map[uuid.UUID]domain.Location
}

func NewInMemoryLocationRepository() *InMemoryLocationRepository {
	return &InMemoryLocationRepository{
		locations: make(map[uuid.UUID]domain.Location),
	}
}

func (r *InMemoryLocationRepository) Upsert(ctx context.Context, loc domain.Location) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.locations[loc.UserID]; ok && current.UpdatedAt.After(loc.UpdatedAt) {
		return nil
	}
	r.locations[loc.UserID] = loc
	return nil
}

func (r *InMemoryLocationRepository) Get(ctx context.Context, userID uuid.UUID) (domain.Location, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	loc, ok := r.locations[userID]
	return loc, ok
}

func (r *InMemoryLocationRepository) Nearby(ctx context.Context, lon, lat, radiusMeters float64, limit int) ([]domain.NearbyUser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	out := make([]domain.NearbyUser, 0)
	for _, loc := range r.locations {
		dist := domain.DistanceMeters(lon, lat, loc.Lon, loc.Lat)
		if dist > radiusMeters {
			continue
		}
		out = append(out, domain.NearbyUser{
			UserID:         loc.UserID,
			DistanceMeters: dist,
			Lon:            loc.Lon,
			Lat:            loc.Lat,
		})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceMeters == out[j].DistanceMeters {
			return out[i].UserID.String() < out[j].UserID.String()
		}
		return out[i].DistanceMeters < out[j].DistanceMeters
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type storedMessage struct {
	seq uint64
	msg domain.ChatMessage
}

type InMemoryChatRepository struct {
	mu       sync.RWMutex
	seq      uint64
	messages map[string][]storedMessage
	markers  map[string]map[uuid.UUID]time.Time
}

func NewInMemoryChatRepository() *InMemoryChatRepository {
	return &InMemoryChatRepository{
		messages: make(map[string][]storedMessage),
		markers:  make(map[string]map[uuid.UUID]time.Time),
	}
}

func (r *InMemoryChatRepository) Insert(ctx context.Context, msg *domain.ChatMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg == nil {
		return errors.New("message is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	r.messages[msg.RoomID] = append(r.messages[msg.RoomID], storedMessage{seq: r.seq, msg: *msg})
	return nil
}

func (r *InMemoryChatRepository) Recent(ctx context.Context, roomID string, limit int) ([]domain.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	stored := append([]storedMessage(nil), r.messages[roomID]...)
	r.mu.RUnlock()

	sort.Slice(stored, func(i, j int) bool {
		if stored[i].msg.CreatedAt.Equal(stored[j].msg.CreatedAt) {
			return stored[i].seq > stored[j].seq
		}
		return stored[i].msg.CreatedAt.After(stored[j].msg.CreatedAt)
	})
	if limit >= 0 && len(stored) > limit {
		stored = stored[:limit]
	}

	out := make([]domain.ChatMessage, 0, len(stored))
	for _, s := range stored {
		out = append(out, s.msg)
	}
	return out, nil
}

func (r *InMemoryChatRepository) MarkRead(ctx context.Context, roomID string, userID uuid.UUID, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.markers[roomID]
	if !ok {
		room = make(map[uuid.UUID]time.Time)
		r.markers[roomID] = room
	}
	if current, ok := room[userID]; ok && current.After(at) {
		return nil
	}
	room[userID] = at
	return nil
}

func (r *InMemoryChatRepository) UnreadCount(ctx context.Context, roomID string, userID uuid.UUID) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	marker := time.Unix(0, 0)
	if at, ok := r.markers[roomID][userID]; ok {
		marker = at
	}

	var count int64
	for _, s := range r.messages[roomID] {
		if s.msg.FromUser != userID && s.msg.CreatedAt.After(marker) {
			count++
		}
	}
	return count, nil
}

func (r *InMemoryChatRepository) Members(ctx context.Context, roomID string) ([]uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	seen := make(map[uuid.UUID]struct{})
	for _, s := range r.messages[roomID] {
		seen[s.msg.FromUser] = struct{}{}
	}
	r.mu.RUnlock()

	members := make([]uuid.UUID, 0, len(seen))
	for id := range seen {
		members = append(members, id)
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].String() < members[j].String()
	})
	return members, nil
}

type InMemoryInviteRepository struct {
	mu      sync.Mutex
	invites map[uuid.UUID]*domain.Invite
}

func NewInMemoryInviteRepository() *InMemoryInviteRepository {
	return &InMemoryInviteRepository{
		invites: make(map[uuid.UUID]*domain.Invite),
	}
}

func (r *InMemoryInviteRepository) Create(ctx context.Context, invite *domain.Invite) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if invite == nil {
		return errors.New("invite is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *invite
	r.invites[invite.ID] = &stored
	return nil
}

func (r *InMemoryInviteRepository) Respond(ctx context.Context, id, toUser uuid.UUID, status domain.InviteStatus, at time.Time) (*domain.Invite, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	invite, ok := r.invites[id]
	if !ok || invite.ToUser != toUser || invite.Status.IsTerminal() {
		return nil, ErrInviteNotFound
	}

	respondedAt := at.UTC()
	invite.Status = status
	invite.RespondedAt = &respondedAt

	out := *invite
	return &out, nil
}

func (r *InMemoryInviteRepository) PendingFor(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Invite, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	out := make([]domain.Invite, 0)
	for _, invite := range r.invites {
		if invite.ToUser == userID && invite.Status == domain.InviteStatusPending {
			out = append(out, *invite)
		}
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
