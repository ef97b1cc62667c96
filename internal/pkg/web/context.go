package web

import (
	"context"
	"fmt"
)

type ctxKey int

const (
	paramsCtxKey ctxKey = iota
	clientIPCtxKey
)

// NewContextWithParams stores the decoded request payload.
func NewContextWithParams(ctx context.Context, params any) context.Context {
	return context.WithValue(ctx, paramsCtxKey, params)
}

// ParamsFromContext returns the payload stored by NewContextWithParams. It
// fails when nothing was decoded or the payload is not a T.
func ParamsFromContext[T any](ctx context.Context) (T, error) {
	params, ok := ctx.Value(paramsCtxKey).(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("request payload is not a %T", zero)
	}
	return params, nil
}

// NewContextWithClientIP stores the client address resolved for the request.
func NewContextWithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPCtxKey, ip)
}
