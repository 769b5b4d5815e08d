package converter

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/immxrtalbeast/geopulse/internal/domain"
)

type InviteResponse struct {
	ID          uuid.UUID           `json:"id"`
	FromUser    uuid.UUID           `json:"from_user"`
	ToUser      uuid.UUID           `json:"to_user"`
	Mode        string              `json:"mode"`
	Status      domain.InviteStatus `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	RespondedAt *time.Time          `json:"responded_at,omitempty"`
}

func InviteToApi(i domain.Invite) InviteResponse {
	return InviteResponse{
		ID:          i.ID,
		FromUser:    i.FromUser,
		ToUser:      i.ToUser,
		Mode:        i.Mode,
		Status:      i.Status,
		CreatedAt:   i.CreatedAt,
		RespondedAt: i.RespondedAt,
	}
}

func InvitesToApi(invites []domain.Invite) []InviteResponse {
	return lo.Map(invites, func(i domain.Invite, _ int) InviteResponse {
		return InviteToApi(i)
	})
}
