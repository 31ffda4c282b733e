package cart

import (
	"context"
	"encoding/json"

	"github.com/ariefcatur/go-cart-reservation/internal/cache"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Views exports cart views for reads. Every Get recomputes the view and
// upserts its summary; concurrent Gets for one user share a single export.
// The cache is write-through only: each fresh view is published to Redis for
// readers outside this service and is never served back by Get. Cache
// trouble never fails a request.
type Views struct {
	Projector *Projector
	Cache     cache.ViewCache // optional
	Log       *zap.Logger

	group singleflight.Group
}

func NewViews(p *Projector, c cache.ViewCache, log *zap.Logger) *Views {
	if log == nil {
		log = zap.NewNop()
	}
	return &Views{Projector: p, Cache: c, Log: log}
}

// Get returns the user's current cart view.
func (v *Views) Get(ctx context.Context, userID uuid.UUID) (View, error) {
	ch := v.group.DoChan(userID.String(), func() (any, error) {
		return v.refresh(context.WithoutCancel(ctx), userID)
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return View{}, r.Err
		}
		return r.Val.(View), nil
	case <-ctx.Done():
		return View{}, Classify(ctx.Err())
	}
}

// Refresh exports the current view and publishes it without joining an
// in-flight Get. Call it after a mutation commits.
func (v *Views) Refresh(ctx context.Context, userID uuid.UUID) (View, error) {
	return v.refresh(ctx, userID)
}

func (v *Views) refresh(ctx context.Context, userID uuid.UUID) (View, error) {
	view, err := v.Projector.ExportForUser(ctx, userID)
	if err != nil {
		return View{}, err
	}
	v.store(ctx, userID, view)
	return view, nil
}

func (v *Views) store(ctx context.Context, userID uuid.UUID, view View) {
	if v.Cache == nil {
		return
	}
	key := userID.String()
	if view.ID == nil {
		// never cache "no cart"; the next mutation creates one
		if err := v.Cache.Delete(ctx, key); err != nil {
			v.Log.Warn("cart view cache delete", zap.String("user_id", key), zap.Error(err))
		}
		return
	}
	b, err := json.Marshal(view)
	if err != nil {
		v.Log.Error("encode cart view", zap.String("user_id", key), zap.Error(err))
		return
	}
	if err := v.Cache.Set(ctx, key, b); err != nil {
		v.Log.Warn("cart view cache set", zap.String("user_id", key), zap.Error(err))
	}
}
