// Package push delivers notifications to native (APNs) and web push
// subscriptions. Transports report per-device outcomes as values; only a
// missing configuration is an error.
package push

import (
	"context"
	"errors"

	"github.com/ladyboss/academy/internal/model"
)

// ErrNotConfigured is returned when transport credentials are missing.
var ErrNotConfigured = errors.New("push transport not configured")

// Outcome classifies a single delivery attempt.
type Outcome int

const (
	// Delivered means the provider accepted the notification.
	Delivered Outcome = iota
	// Invalid means the device token or endpoint is permanently gone.
	Invalid
	// Transient covers timeouts, 5xx and anything else worth retrying.
	Transient
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Invalid:
		return "invalid"
	case Transient:
		return "transient"
	}
	return "unknown"
}

// Result is what a transport reports for one device.
type Result struct {
	Outcome Outcome
	Status  int
	Err     error
}

// Transport sends one payload to one subscription.
type Transport interface {
	Send(ctx context.Context, sub model.PushSubscription, p Payload) Result
}

// Mux routes subscriptions to the native or web transport. The native
// transport is required; web push is optional.
type Mux struct {
	Native Transport
	Web    Transport
}

// NewMux builds every transport that has credentials. Missing credentials
// leave that side nil; malformed ones are an error.
func NewMux(apns APNsConfig, web WebPushConfig) (*Mux, error) {
	m := &Mux{}
	native, err := NewAPNs(apns)
	switch {
	case err == nil:
		m.Native = native
	case !errors.Is(err, ErrNotConfigured):
		return nil, err
	}
	wp, err := NewWebPush(web)
	switch {
	case err == nil:
		m.Web = wp
	case !errors.Is(err, ErrNotConfigured):
		return nil, err
	}
	return m, nil
}

// VAPIDPublicKey returns the web push key, or "" without web push.
func (m *Mux) VAPIDPublicKey() string {
	if wp, ok := m.Web.(*WebPush); ok {
		return wp.VAPIDPublicKey()
	}
	return ""
}

// Ready reports ErrNotConfigured when no native transport is set.
func (m *Mux) Ready() error {
	if m == nil || m.Native == nil {
		return ErrNotConfigured
	}
	return nil
}

// Supports reports whether a transport exists for sub.
func (m *Mux) Supports(sub model.PushSubscription) bool {
	if m == nil {
		return false
	}
	if sub.IsNative() {
		return m.Native != nil
	}
	return m.Web != nil
}

func (m *Mux) Send(ctx context.Context, sub model.PushSubscription, p Payload) Result {
	if !m.Supports(sub) {
		return Result{Outcome: Transient, Err: ErrNotConfigured}
	}
	if sub.IsNative() {
		return m.Native.Send(ctx, sub, p)
	}
	return m.Web.Send(ctx, sub, p)
}

// classify maps an HTTP status from a push provider to an Outcome.
func classify(status int, gone ...int) Outcome {
	if status >= 200 && status < 300 {
		return Delivered
	}
	for _, g := range gone {
		if status == g {
			return Invalid
		}
	}
	return Transient
}
