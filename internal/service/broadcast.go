package service

import (
	"log/slog"

	"github.com/immxrtalbeast/geopulse/internal/domain"
	"github.com/immxrtalbeast/geopulse/internal/wire"
	"github.com/immxrtalbeast/geopulse/lib/logger/sl"
)

func broadcast(b Broadcaster, log *slog.Logger, p domain.Packet) {
	payload, err := wire.Encode(p)
	if err != nil {
		log.Error("failed to encode packet", sl.Err(err))
		return
	}
	n := b.Publish(payload)
	log.Debug("packet broadcast", slog.Int("subscribers", n))
}
