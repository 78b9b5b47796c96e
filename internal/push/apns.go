package push

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ladyboss/academy/internal/model"
)

const (
	APNsProductionEndpoint = "https://api.push.apple.com"
	APNsSandboxEndpoint    = "https://api.sandbox.push.apple.com"

	// Apple rejects provider tokens older than an hour.
	apnsTokenLifetime = 55 * time.Minute
	apnsTokenRefresh  = 5 * time.Minute
)

type APNsConfig struct {
	KeyID         string
	TeamID        string
	BundleID      string
	PrivateKeyPEM string
	Sandbox       bool
	// Endpoint overrides the production/sandbox host.
	Endpoint string
	Client   *http.Client
}

// APNs sends alerts through the Apple Push Notification service using a
// cached ES256 provider token.
type APNs struct {
	endpoint string
	bundleID string
	teamID   string
	keyID    string
	key      *ecdsa.PrivateKey
	client   *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time
	now       func() time.Time
}

// NewAPNs validates cfg. Missing credentials yield ErrNotConfigured.
func NewAPNs(cfg APNsConfig) (*APNs, error) {
	if cfg.KeyID == "" || cfg.TeamID == "" || cfg.BundleID == "" || cfg.PrivateKeyPEM == "" {
		return nil, fmt.Errorf("apns: %w", ErrNotConfigured)
	}
	key, err := jwt.ParseECPrivateKeyFromPEM([]byte(cfg.PrivateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("parse apns private key: %w", err)
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = APNsProductionEndpoint
		if cfg.Sandbox {
			endpoint = APNsSandboxEndpoint
		}
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &APNs{
		endpoint: endpoint,
		bundleID: cfg.BundleID,
		teamID:   cfg.TeamID,
		keyID:    cfg.KeyID,
		key:      key,
		client:   client,
		now:      time.Now,
	}, nil
}

type apnsAlert struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type apnsAPS struct {
	Alert apnsAlert `json:"alert"`
	Sound string    `json:"sound"`
}

type apnsError struct {
	Reason string `json:"reason"`
}

// Body renders the APNs JSON document: the aps dictionary plus the routing
// fields at the top level.
func (a *APNs) Body(p Payload) ([]byte, error) {
	doc := map[string]any{
		"aps":  apnsAPS{Alert: apnsAlert{Title: p.Title, Body: p.Body}, Sound: "default"},
		"type": p.Type,
		"url":  p.URL,
	}
	for k, v := range p.Data {
		if _, taken := doc[k]; !taken {
			doc[k] = v
		}
	}
	return json.Marshal(doc)
}

func (a *APNs) Send(ctx context.Context, sub model.PushSubscription, p Payload) Result {
	body, err := a.Body(p)
	if err != nil {
		return Result{Outcome: Transient, Err: fmt.Errorf("marshal apns payload: %w", err)}
	}
	token, err := a.providerToken()
	if err != nil {
		return Result{Outcome: Transient, Err: err}
	}

	url := fmt.Sprintf("%s/3/device/%s", a.endpoint, sub.DeviceToken())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{Outcome: Transient, Err: fmt.Errorf("create apns request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apns-topic", a.bundleID)
	req.Header.Set("apns-push-type", "alert")
	req.Header.Set("apns-priority", "10")
	req.Header.Set("Authorization", "bearer "+token)

	resp, err := a.client.Do(req)
	if err != nil {
		return Result{Outcome: Transient, Err: fmt.Errorf("send apns request: %w", err)}
	}
	defer resp.Body.Close()

	res := Result{Outcome: classify(resp.StatusCode, http.StatusBadRequest, http.StatusGone), Status: resp.StatusCode}
	if res.Outcome != Delivered {
		var apiErr apnsError
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		_ = json.Unmarshal(raw, &apiErr)
		res.Err = fmt.Errorf("apns returned %d: %s", resp.StatusCode, apiErr.Reason)
	}
	return res
}

// providerToken returns the cached JWT, signing a new one when it is within
// apnsTokenRefresh of expiry.
func (a *APNs) providerToken() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	if a.token != "" && now.Add(apnsTokenRefresh).Before(a.expiresAt) {
		return a.token, nil
	}

	t := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"iss": a.teamID,
		"iat": now.Unix(),
	})
	t.Header["kid"] = a.keyID
	signed, err := t.SignedString(a.key)
	if err != nil {
		return "", fmt.Errorf("sign apns token: %w", err)
	}
	a.token = signed
	a.expiresAt = now.Add(apnsTokenLifetime)
	return signed, nil
}
