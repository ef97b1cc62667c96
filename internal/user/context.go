package user

import (
	"context"
	"errors"
	"fmt"
)

type ctxKey int

const userCtxKey ctxKey = iota

var ErrNoUser = errors.New("user: no user id in context")

// NewContextWithUser returns a context carrying the authenticated user's id.
//
//nolint:ireturn // returning context.Context is intentional
func NewContextWithUser(baseCtx context.Context, userID string) context.Context {
	return context.WithValue(baseCtx, userCtxKey, userID)
}

// FromContext extracts the authenticated user's id.
func FromContext(ctx context.Context) (string, error) {
	val := ctx.Value(userCtxKey)
	if val == nil {
		return "", ErrNoUser
	}

	userID, ok := val.(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("%w: got %T", ErrNoUser, val)
	}
	return userID, nil
}
