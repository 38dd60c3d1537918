package token

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/singleflight"

	apperrors "github.com/anime-shed/plant-inspector-go/internal/errors"
	"github.com/anime-shed/plant-inspector-go/internal/observer"
	"github.com/anime-shed/plant-inspector-go/internal/upstream"
)

// Path is the OAuth client-credentials endpoint, relative to the AIP base URL.
const Path = "/oauth/2.0/token"

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int64  `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Source hands out a valid bearer token, refreshing it when needed.
type Source interface {
	Token(ctx context.Context) (string, error)
	Invalidate(ctx context.Context, stale string)
}

// Provider exchanges the API key/secret pair for a bearer token and stores it in a Cache.
type Provider struct {
	client *resty.Client
	keyID  string
	secret string
	cache  *Cache
	events observer.Subject
	group  singleflight.Group
}

// NewProvider wires a provider to an AIP client (base URL already set) and an owned cache.
func NewProvider(client *resty.Client, keyID, secret string, cache *Cache, events observer.Subject) *Provider {
	if events == nil {
		events = observer.Nop{}
	}
	return &Provider{
		client: client,
		keyID:  keyID,
		secret: secret,
		cache:  cache,
		events: events,
	}
}

// Token returns the cached token, refreshing first when the cache is empty.
func (p *Provider) Token(ctx context.Context) (string, error) {
	if value, ok := p.cache.Get(); ok {
		return value, nil
	}
	return p.refreshShared(ctx)
}

// Refresh fetches a new token. Concurrent callers share one request.
// On failure the cache keeps whatever it held before.
func (p *Provider) Refresh(ctx context.Context) error {
	_, err := p.refreshShared(ctx)
	return err
}

// refreshShared runs one exchange for all concurrent callers. The exchange is
// detached from any single caller's context and bounded by the client timeout;
// each caller stops waiting when its own context ends.
func (p *Provider) refreshShared(ctx context.Context) (string, error) {
	detached := context.WithoutCancel(ctx)
	ch := p.group.DoChan("refresh", func() (interface{}, error) {
		return p.refresh(detached)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", upstream.TransportError("token request abandoned", ctx.Err())
	}
}

// Invalidate clears the cache after the provider rejected stale.
func (p *Provider) Invalidate(ctx context.Context, stale string) {
	if p.cache.Clear(stale) {
		p.events.NotifyObservers(ctx, observer.NewEvent(observer.TokenInvalidated, time.Now(), nil))
	}
}

func (p *Provider) refresh(ctx context.Context) (string, error) {
	start := time.Now()
	value, expiresIn, err := p.exchange(ctx)
	if err != nil {
		p.events.NotifyObservers(ctx, observer.NewEvent(observer.TokenRefreshFailed, start, err))
		return "", err
	}

	p.cache.Set(value)
	p.events.NotifyObservers(ctx, observer.NewEvent(observer.TokenRefreshed, start, nil).
		WithMetadata("expires_in", expiresIn))
	return value, nil
}

func (p *Provider) exchange(ctx context.Context) (string, int64, error) {
	res, err := p.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type":    "client_credentials",
			"client_id":     p.keyID,
			"client_secret": p.secret,
		}).
		Post(Path)
	if err != nil {
		return "", 0, upstream.TransportError("token request failed", err)
	}

	var body tokenResponse
	if err := json.Unmarshal(res.Body(), &body); err != nil {
		return "", 0, apperrors.NewProviderError(
			fmt.Sprintf("unexpected token response (status %d)", res.StatusCode()), err)
	}
	if body.Error != "" {
		description := body.ErrorDescription
		if description == "" {
			description = body.Error
		}
		return "", 0, apperrors.NewProviderError(description, nil).WithCode(body.Error)
	}
	if body.AccessToken == "" {
		return "", 0, apperrors.NewProviderError(
			fmt.Sprintf("token response without access_token (status %d)", res.StatusCode()), nil)
	}
	return body.AccessToken, body.ExpiresIn, nil
}
