package token

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/programme-lv/extserver/extsrv"
	"github.com/programme-lv/extserver/logger"
)

const (
	// expirySkew is the deliberate safety margin: a token within 60
	// seconds of expiry is treated as already expired.
	expirySkew = 60 * time.Second
	// minTTL floors the cache TTL so pathologically short-lived tokens
	// cannot make every call hit the identity provider.
	minTTL = 60 * time.Second

	requestTimeout = 10 * time.Second
)

// Provider obtains bearer tokens via the client-credentials grant and
// caches them in a Store under serverID+authType.
type Provider struct {
	store Store
	httpc *http.Client
}

type ProviderOption func(*Provider)

func WithHTTPClient(httpc *http.Client) ProviderOption {
	return func(p *Provider) { p.httpc = httpc }
}

func NewProvider(store Store, opts ...ProviderOption) *Provider {
	p := &Provider{
		store: store,
		httpc: &http.Client{Timeout: requestTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type tokenResponse struct {
	TokenType   string `json:"token_type"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// GetToken returns a valid bearer token for cfg, from cache when
// possible. Cached entries already carry the skewed TTL, so a cache
// hit needs no further expiry arithmetic and no network call.
func (p *Provider) GetToken(ctx context.Context, cfg extsrv.ServerConfig) (string, error) {
	if cfg.TokenEndpoint == "" || cfg.ClientID == "" {
		return "", newErrOAuthConfigIncomplete()
	}

	key := cacheKey(cfg)
	log := logger.FromContext(ctx)

	cached, ok, err := p.store.Get(ctx, key)
	if err != nil {
		// A broken cache degrades to a redundant fetch.
		log.Warn("token cache read failed", "key", key, "err", err)
	} else if ok {
		return cached, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", cfg.ClientID)
	form.Set("client_secret", cfg.Secret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		cfg.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", newErrTokenAcquisition(0).SetDebug(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpc.Do(req)
	if err != nil {
		return "", newErrTokenAcquisition(0).SetDebug(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", newErrTokenAcquisition(resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", newErrTokenAcquisition(resp.StatusCode).SetDebug(err)
	}
	if tr.AccessToken == "" {
		return "", newErrTokenAcquisition(resp.StatusCode).
			SetDebug(fmt.Errorf("token endpoint response has no access_token"))
	}

	ttl := time.Duration(tr.ExpiresIn)*time.Second - expirySkew
	if ttl < minTTL {
		ttl = minTTL
	}
	if err := p.store.SetTTL(ctx, key, tr.AccessToken, ttl); err != nil {
		log.Warn("token cache write failed", "key", key, "err", err)
	}

	return tr.AccessToken, nil
}

func cacheKey(cfg extsrv.ServerConfig) string {
	return cfg.ID + ":" + string(cfg.AuthType)
}
