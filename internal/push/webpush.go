package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/ladyboss/academy/internal/model"
)

type WebPushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
	// HTTPClient is optional; the library default is used when nil.
	HTTPClient webpush.HTTPClient
}

// WebPush handles browser subscriptions with VAPID authentication.
type WebPush struct {
	publicKey  string
	privateKey string
	subscriber string
	client     webpush.HTTPClient
}

func NewWebPush(cfg WebPushConfig) (*WebPush, error) {
	if cfg.VAPIDPublicKey == "" || cfg.VAPIDPrivateKey == "" {
		return nil, fmt.Errorf("web push: %w", ErrNotConfigured)
	}
	subscriber := cfg.Subscriber
	if subscriber == "" {
		subscriber = "mailto:noreply@ladyboss.academy"
	}
	return &WebPush{
		publicKey:  cfg.VAPIDPublicKey,
		privateKey: cfg.VAPIDPrivateKey,
		subscriber: subscriber,
		client:     cfg.HTTPClient,
	}, nil
}

// VAPIDPublicKey returns the VAPID public key for client-side subscription.
func (w *WebPush) VAPIDPublicKey() string {
	return w.publicKey
}

func (w *WebPush) Send(ctx context.Context, sub model.PushSubscription, p Payload) Result {
	data, err := json.Marshal(p)
	if err != nil {
		return Result{Outcome: Transient, Err: fmt.Errorf("marshal payload: %w", err)}
	}

	resp, err := webpush.SendNotificationWithContext(ctx, data, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}, &webpush.Options{
		HTTPClient:      w.client,
		VAPIDPublicKey:  w.publicKey,
		VAPIDPrivateKey: w.privateKey,
		Subscriber:      w.subscriber,
		TTL:             86400,
	})
	if err != nil {
		return Result{Outcome: Transient, Err: fmt.Errorf("send push: %w", err)}
	}
	defer resp.Body.Close()

	res := Result{Outcome: classify(resp.StatusCode, http.StatusNotFound, http.StatusGone), Status: resp.StatusCode}
	if res.Outcome != Delivered {
		res.Err = fmt.Errorf("push service returned %d", resp.StatusCode)
	}
	return res
}

// GenerateVAPIDKeys generates a new P-256 key pair for VAPID, base64url encoded.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate ECDH key: %w", err)
	}
	publicKey = base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes())
	privateKey = base64.RawURLEncoding.EncodeToString(key.Bytes())
	return publicKey, privateKey, nil
}
