package shared

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionManager orchestrates cookie based sessions backed by Redis.
// A session stores nothing but the authenticated identity.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, cookieName string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		client:     client,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
	}
}

func (sm *SessionManager) redisKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}

func newSessionID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Create stores the identity under a fresh session id and sets the cookie.
func (sm *SessionManager) Create(ctx context.Context, w http.ResponseWriter, ident Identity) error {
	id, err := newSessionID()
	if err != nil {
		return fmt.Errorf("shared: session id: %w", err)
	}
	payload, err := json.Marshal(ident)
	if err != nil {
		return fmt.Errorf("shared: marshal session: %w", err)
	}
	if err := sm.client.Set(ctx, sm.redisKey(id), payload, sm.ttl).Err(); err != nil {
		return fmt.Errorf("shared: persist session: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sm.cookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(sm.ttl.Seconds()),
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Load resolves the identity for the request, nil when no valid session exists.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Identity, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return nil, nil
		}
		return nil, err
	}
	payload, err := sm.client.Get(ctx, sm.redisKey(cookie.Value)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("shared: load session: %w", err)
	}
	var ident Identity
	if err := json.Unmarshal(payload, &ident); err != nil {
		return nil, fmt.Errorf("shared: decode session: %w", err)
	}
	return &ident, nil
}

// Destroy removes the session and expires the cookie.
func (sm *SessionManager) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil {
		return nil
	}
	if err := sm.client.Del(ctx, sm.redisKey(cookie.Value)).Err(); err != nil {
		return fmt.Errorf("shared: destroy session: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sm.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
