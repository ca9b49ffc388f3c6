// Package callcontext provides context keys for propagating per-operation
// identity (call ID and device ID) through context.Context. Transports read
// these values to tag protocol log events without depending on the client
// package.
package callcontext

import (
	"context"

	"github.com/google/uuid"
)

type callIDKey struct{}

// ContextWithCallID returns a new context with the given call ID.
func ContextWithCallID(ctx context.Context, callID string) context.Context {
	return context.WithValue(ctx, callIDKey{}, callID)
}

// ContextWithNewCallID returns a new context carrying a freshly generated
// call ID, and the ID itself.
func ContextWithNewCallID(ctx context.Context) (context.Context, string) {
	id := uuid.New().String()
	return ContextWithCallID(ctx, id), id
}

// CallIDFromContext extracts the call ID from the context.
// Returns empty string if not set.
func CallIDFromContext(ctx context.Context) string {
	if v := ctx.Value(callIDKey{}); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type deviceIDKey struct{}

// ContextWithDeviceID returns a new context with the device ID reported by
// the access point.
func ContextWithDeviceID(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, deviceIDKey{}, deviceID)
}

// DeviceIDFromContext extracts the device ID from the context.
// Returns empty string if not set.
func DeviceIDFromContext(ctx context.Context) string {
	if v := ctx.Value(deviceIDKey{}); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
