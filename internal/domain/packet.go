package domain

import (
	"time"

	"github.com/google/uuid"
)

// Packet is the realtime envelope carried by the event bus, the fan-out hub
// and the websocket. The set of variants is closed: PositionUpdate,
// ChatMessage, InviteEvent and Heartbeat.
//
// Consumers dispatch through PacketVisitor. A new variant means a new visitor
// method, so every consumer stops compiling until it handles it.
type Packet interface {
	Accept(v PacketVisitor) error
	packet()
}

type PacketVisitor interface {
	VisitPosition(p PositionUpdate) error
	VisitChat(m ChatMessage) error
	VisitInvite(e InviteEvent) error
	VisitHeartbeat(h Heartbeat) error
}

// PositionUpdate is a single location sample of a user.
type PositionUpdate struct {
	UserID uuid.UUID
	Lon    float64
	Lat    float64
	TS     time.Time
}

func (p PositionUpdate) Accept(v PacketVisitor) error { return v.VisitPosition(p) }

func (PositionUpdate) packet() {}

// InviteEvent announces an invite creation or a status change.
type InviteEvent struct {
	InviteID uuid.UUID
	FromUser uuid.UUID
	ToUser   uuid.UUID
	Mode     string
	Status   InviteStatus
	TS       time.Time
}

func (e InviteEvent) Accept(v PacketVisitor) error { return v.VisitInvite(e) }

func (InviteEvent) packet() {}

// Heartbeat carries no data; it only proves the peer is alive.
type Heartbeat struct{}

func (h Heartbeat) Accept(v PacketVisitor) error { return v.VisitHeartbeat(h) }

func (Heartbeat) packet() {}
