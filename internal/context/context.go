// Copyright (C) 2025 MyCastle Ltd. All rights reserved.
//
// adminrpc is licensed under the Apache License Version 2.0.

// Package context provides context helpers for work that outlives a request.
package context

import (
	"context"
	"time"
)

// WithoutCancel returns a context that inherits the parent's values but none
// of its cancellation or deadline. Audit delivery runs on such a context: the
// record must carry the request's correlation value even after the caller's
// HTTP connection is gone.
func WithoutCancel(parent context.Context) context.Context {
	if parent == nil {
		panic("cannot create context from nil parent")
	}
	return withoutCancelCtx{parent}
}

// withoutCancelCtx wraps a parent context and forwards only Value lookups.
type withoutCancelCtx struct {
	context.Context
}

func (withoutCancelCtx) Deadline() (deadline time.Time, ok bool) {
	return
}

func (withoutCancelCtx) Done() <-chan struct{} {
	return nil
}

func (withoutCancelCtx) Err() error {
	return nil
}

func (c withoutCancelCtx) Value(key any) any {
	return c.Context.Value(key)
}

func (c withoutCancelCtx) String() string {
	return "withoutCancelCtx"
}
