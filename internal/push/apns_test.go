package push

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/ladyboss/academy/internal/model"
)

func testKeyPEM(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	return key, string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
}

func newTestAPNs(t *testing.T, handler http.HandlerFunc) (*APNs, *ecdsa.PrivateKey) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	key, keyPEM := testKeyPEM(t)
	a, err := NewAPNs(APNsConfig{
		KeyID:         "KEY123",
		TeamID:        "TEAM456",
		BundleID:      "academy.ladyboss.app",
		PrivateKeyPEM: keyPEM,
		Endpoint:      srv.URL,
		Client:        srv.Client(),
	})
	if err != nil {
		t.Fatalf("new apns: %v", err)
	}
	return a, key
}

func nativeSub(token string) model.PushSubscription {
	return model.PushSubscription{UserID: uuid.New(), Endpoint: model.NativeEndpointPrefix + token}
}

func TestNewAPNsMissingConfig(t *testing.T) {
	_, err := NewAPNs(APNsConfig{KeyID: "k", TeamID: "t"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestAPNsSendRequest(t *testing.T) {
	var gotPath, gotTopic, gotType, gotAuth string
	var gotBody map[string]any
	a, key := newTestAPNs(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotTopic = r.Header.Get("apns-topic")
		gotType = r.Header.Get("apns-push-type")
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &gotBody)
		w.WriteHeader(http.StatusOK)
	})

	p := Payload{Title: "New audio", Body: "Day 2 is ready", Type: model.CategoryDripUnlock, URL: "/audio/x?track=y"}
	res := a.Send(context.Background(), nativeSub("abc123"), p)
	if res.Outcome != Delivered {
		t.Fatalf("outcome = %s (%v), want delivered", res.Outcome, res.Err)
	}
	if gotPath != "/3/device/abc123" {
		t.Errorf("path = %q, want %q", gotPath, "/3/device/abc123")
	}
	if gotTopic != "academy.ladyboss.app" {
		t.Errorf("apns-topic = %q", gotTopic)
	}
	if gotType != "alert" {
		t.Errorf("apns-push-type = %q, want alert", gotType)
	}
	if gotBody["type"] != string(model.CategoryDripUnlock) || gotBody["url"] != "/audio/x?track=y" {
		t.Errorf("body = %v", gotBody)
	}
	aps, _ := gotBody["aps"].(map[string]any)
	alert, _ := aps["alert"].(map[string]any)
	if alert["title"] != "New audio" {
		t.Errorf("alert = %v", alert)
	}

	raw, ok := strings.CutPrefix(gotAuth, "bearer ")
	if !ok {
		t.Fatalf("authorization = %q, want bearer token", gotAuth)
	}
	tok, err := jwt.Parse(raw, func(tok *jwt.Token) (any, error) {
		return &key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"ES256"}))
	if err != nil {
		t.Fatalf("parse provider token: %v", err)
	}
	if tok.Header["kid"] != "KEY123" {
		t.Errorf("kid = %v, want KEY123", tok.Header["kid"])
	}
	if iss, _ := tok.Claims.GetIssuer(); iss != "TEAM456" {
		t.Errorf("iss = %q, want TEAM456", iss)
	}
}

func TestAPNsClassifiesStatus(t *testing.T) {
	tests := []struct {
		status int
		want   Outcome
	}{
		{http.StatusOK, Delivered},
		{http.StatusBadRequest, Invalid},
		{http.StatusGone, Invalid},
		{http.StatusTooManyRequests, Transient},
		{http.StatusInternalServerError, Transient},
		{http.StatusServiceUnavailable, Transient},
	}
	for _, tt := range tests {
		a, _ := newTestAPNs(t, func(w http.ResponseWriter, r *http.Request) {
			if tt.status != http.StatusOK {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"reason":"BadDeviceToken"}`))
				return
			}
			w.WriteHeader(tt.status)
		})
		res := a.Send(context.Background(), nativeSub("tok"), Payload{Title: "t"})
		if res.Outcome != tt.want {
			t.Errorf("status %d: outcome = %s, want %s", tt.status, res.Outcome, tt.want)
		}
		if res.Status != tt.status {
			t.Errorf("status = %d, want %d", res.Status, tt.status)
		}
	}
}

func TestAPNsTimeoutIsTransient(t *testing.T) {
	a, _ := newTestAPNs(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res := a.Send(ctx, nativeSub("slow"), Payload{Title: "t"})
	if res.Outcome != Transient {
		t.Errorf("outcome = %s, want transient", res.Outcome)
	}
	if res.Err == nil {
		t.Error("expected an error for a timed out send")
	}
}

func TestAPNsProviderTokenCached(t *testing.T) {
	var tokens atomic.Value
	seen := map[string]bool{}
	a, _ := newTestAPNs(t, func(w http.ResponseWriter, r *http.Request) {
		tokens.Store(r.Header.Get("Authorization"))
	})
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	a.Send(context.Background(), nativeSub("a"), Payload{})
	seen[tokens.Load().(string)] = true
	now = now.Add(30 * time.Minute)
	a.Send(context.Background(), nativeSub("b"), Payload{})
	seen[tokens.Load().(string)] = true
	if len(seen) != 1 {
		t.Errorf("expected cached token within lifetime, saw %d tokens", len(seen))
	}

	// Past the refresh point a new token is signed.
	now = now.Add(25 * time.Minute)
	a.Send(context.Background(), nativeSub("c"), Payload{})
	seen[tokens.Load().(string)] = true
	if len(seen) != 2 {
		t.Errorf("expected a refreshed token, saw %d tokens", len(seen))
	}
}
