package idp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/oauth2"

	"github.com/isabella232/xero-sso-form/internal/authflow"
	"github.com/isabella232/xero-sso-form/internal/config"
)

// ErrExchange marks any failure of the authorization-code exchange: a bad or
// expired code, an unknown or replayed state, or an ID token that fails the
// library's verification. The handshake does not retry on it; the user must
// restart from the landing page.
var ErrExchange = errors.New("authorization code exchange failed")

// Token is a minimal interface for verified token payloads that allows
// extracting claims. It is satisfied by *oidc.IDToken and by test fakes.
type Token interface {
	Claims(v interface{}) error
}

// TokenVerifier is the minimal verification interface the client depends on.
// The real implementation delegates to the OIDC library; this package never
// re-implements signature checks.
type TokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (Token, error)
}

type oidcVerifier struct {
	v *oidc.IDTokenVerifier
}

func (o *oidcVerifier) Verify(ctx context.Context, rawIDToken string) (Token, error) {
	t, err := o.v.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Client drives the OIDC authorization-code flow against the identity
// provider: building the authorization URL, exchanging the callback for a
// token set, and decoding identity claims from the validated ID token.
type Client struct {
	oauth          oauth2.Config
	verifier       TokenVerifier
	pending        authflow.Store
	timeout        time.Duration
	pendingTTL     time.Duration
	connectionsURL string
	http           *http.Client
}

// NewClient discovers the provider's endpoints from the issuer and wires up
// ID-token verification for the configured client ID.
func NewClient(ctx context.Context, cfg config.XeroConfig, pending authflow.Store) (*Client, error) {
	hc := cleanhttp.DefaultPooledClient()
	hc.Timeout = cfg.ExchangeTimeout

	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, hc), cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})
	return newClient(cfg, provider.Endpoint(), &oidcVerifier{v: verifier}, pending, hc), nil
}

// NewClientWithVerifier builds a client against explicit endpoints and an
// injected verifier. Used by tests and deployments without discovery.
func NewClientWithVerifier(cfg config.XeroConfig, endpoint oauth2.Endpoint, verifier TokenVerifier, pending authflow.Store) *Client {
	hc := cleanhttp.DefaultPooledClient()
	hc.Timeout = cfg.ExchangeTimeout
	return newClient(cfg, endpoint, verifier, pending, hc)
}

func newClient(cfg config.XeroConfig, endpoint oauth2.Endpoint, verifier TokenVerifier, pending authflow.Store, hc *http.Client) *Client {
	if cfg.ExchangeTimeout <= 0 {
		cfg.ExchangeTimeout = 10 * time.Second
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = 10 * time.Minute
	}
	hc.Timeout = cfg.ExchangeTimeout
	return &Client{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint:     endpoint,
			// identity-only scopes; this client never requests API access
			Scopes: []string{oidc.ScopeOpenID, "profile", "email"},
		},
		verifier:       verifier,
		pending:        pending,
		timeout:        cfg.ExchangeTimeout,
		pendingTTL:     cfg.PendingTTL,
		connectionsURL: cfg.ConnectionsURL,
		http:           hc,
	}
}

// AuthCodeURL returns a fresh authorization redirect URL. Each call records a
// new pending request (state + nonce) so the matching callback can be
// validated; no other local state changes.
func (c *Client) AuthCodeURL(ctx context.Context) (string, error) {
	p := authflow.NewPendingRequest(c.pendingTTL)
	if err := c.pending.Put(ctx, p); err != nil {
		return "", fmt.Errorf("store pending request: %w", err)
	}
	return c.oauth.AuthCodeURL(p.State, oidc.Nonce(p.Nonce)), nil
}

// Exchange redeems the callback request for a token set. callbackURL is the
// full request URL received on the callback route, carrying code and state.
// All failures wrap ErrExchange.
func (c *Client) Exchange(ctx context.Context, callbackURL string) (*TokenSet, error) {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed callback url: %v", ErrExchange, err)
	}
	q := u.Query()
	if e := q.Get("error"); e != "" {
		return nil, fmt.Errorf("%w: provider returned %q (%s)", ErrExchange, e, q.Get("error_description"))
	}
	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		return nil, fmt.Errorf("%w: callback missing code or state", ErrExchange)
	}

	p, err := c.pending.Take(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("read pending request: %w", err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: unknown or expired state", ErrExchange)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)

	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchange, err)
	}
	rawID, ok := tok.Extra("id_token").(string)
	if !ok || rawID == "" {
		return nil, fmt.Errorf("%w: id_token missing from token response", ErrExchange)
	}

	verified, err := c.verifier.Verify(ctx, rawID)
	if err != nil {
		return nil, fmt.Errorf("%w: id_token failed verification: %v", ErrExchange, err)
	}
	var claims map[string]interface{}
	if err := verified.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: cannot decode id_token claims: %v", ErrExchange, err)
	}
	if nonce, _ := claims["nonce"].(string); nonce != p.Nonce {
		return nil, fmt.Errorf("%w: nonce mismatch", ErrExchange)
	}

	return &TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		IDToken:      rawID,
		Expiry:       tok.Expiry.UTC(),
		RawClaims:    claims,
	}, nil
}
