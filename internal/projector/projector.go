// Package projector keeps cached cart views in step with cart.changed events
// published by other API instances.
package projector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ariefcatur/go-cart-reservation/internal/apperr"
	"github.com/ariefcatur/go-cart-reservation/internal/cart"
	"github.com/ariefcatur/go-cart-reservation/internal/events"
	kafkax "github.com/ariefcatur/go-cart-reservation/internal/kafka"
	"github.com/ariefcatur/go-cart-reservation/internal/redisx"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Service struct {
	Views *cart.Views
	Redis redis.Cmdable // optional, enables dedup
	Name  string
	Log   *zap.Logger
}

// HandleCartChanged refreshes the view of the cart's owner. It plugs into
// kafka.Consumer; a returned error leaves the offset uncommitted.
func (s *Service) HandleCartChanged(ctx context.Context, m kafkago.Message) error {
	var env events.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// poison message: log and commit past it
		s.Log.Error("undecodable envelope", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	switch env.EventType {
	case events.EventCartItemsReserved, events.EventCartItemRemoved, events.EventCartCleared:
	default:
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, s.Name, env.EventID)
	if s.Redis != nil {
		if seen, err := redisx.Exists(ctx, s.Redis, dkey); err == nil && seen {
			return nil
		}
	}

	ref, err := kafkax.UnwrapPayload[events.CartRef](env.Payload)
	if err != nil {
		s.Log.Error("undecodable payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}
	userID, err := uuid.Parse(ref.UserID)
	if err != nil {
		s.Log.Error("event without user", zap.String("event_id", env.EventID), zap.String("user_id", ref.UserID))
		return nil
	}

	if _, err := s.Views.Refresh(ctx, userID); err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			// user removed since the event; nothing left to project
			return nil
		}
		return err
	}
	if s.Redis != nil {
		_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	}
	s.Log.Debug("cart view refreshed",
		zap.String("event_type", env.EventType),
		zap.String("cart_id", ref.CartID),
		zap.String("user_id", ref.UserID))
	return nil
}
