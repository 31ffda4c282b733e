package cart

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-cart-reservation/internal/apperr"
	"github.com/ariefcatur/go-cart-reservation/internal/metrics"
	"github.com/ariefcatur/go-cart-reservation/internal/store"
	"github.com/google/uuid"
)

// Classify turns whatever escaped a store transaction into an apperr kind.
func Classify(err error) error {
	var ae *apperr.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ae):
		return err
	case errors.Is(err, store.ErrLockTimeout):
		return apperr.Conflict("cart is busy, retry the request", err)
	case errors.Is(err, store.ErrDuplicate):
		return apperr.Conflict("concurrent update, retry the request", err)
	case errors.Is(err, store.ErrInsufficientStock):
		return &apperr.Error{Kind: apperr.KindValidation, Messages: []string{"insufficient stock"}, Err: err}
	case errors.Is(err, store.ErrNotFound):
		return &apperr.Error{Kind: apperr.KindNotFound, Messages: []string{"not found"}, Err: err}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return apperr.Conflict("request timed out, retry the request", err)
	default:
		return apperr.Internal(err)
	}
}

func outcome(err error) string {
	if err == nil {
		return metrics.OutcomeApplied
	}
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return metrics.OutcomeRejected
	case apperr.KindNotFound:
		return metrics.OutcomeNotFound
	case apperr.KindConflict:
		return metrics.OutcomeConflict
	default:
		return metrics.OutcomeError
	}
}

// CheckUser resolves the acting user. Missing and soft-deleted users are not
// found; inactive users may not touch a cart.
func CheckUser(ctx context.Context, r store.Reader, userID uuid.UUID) (store.User, error) {
	u, err := r.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && u.IsDeleted) {
		return store.User{}, apperr.NotFoundf("User with ID %s not found.", userID)
	}
	if err != nil {
		return store.User{}, err
	}
	if !u.IsActive {
		return store.User{}, apperr.Validationf("User with ID %s is inactive.", userID)
	}
	return u, nil
}
