package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunesync/internal/shared"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// ExpiryMargin is the lead time before actual expiry during which a token is
// proactively treated as expired, so it is never used mid-request while dying.
const ExpiryMargin = 60 * time.Second

// Config is the per-service OAuth2 capability table.
type Config struct {
	Service      string
	AuthURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string

	// NeedsPKCE enables the S256 verifier/challenge flow.
	NeedsPKCE bool
	// SecretOnExchange attaches the client secret to the code exchange request.
	SecretOnExchange bool
	// SecretOnRefresh attaches the client secret to refresh requests.
	SecretOnRefresh bool
}

// AuthState is the transient PKCE state between GenerateAuthURL and the
// matching ExchangeCode. At most one is outstanding; generating a new URL
// invalidates the previous verifier (last-generated wins).
type AuthState struct {
	Verifier  string
	Challenge string
	State     string
}

// Authenticator owns the TokenRecord for one service account.
//
// All record mutations happen under the authenticator's lock, so concurrent
// refresh attempts for the same account are serialized and cannot lose updates.
type Authenticator struct {
	cfg    Config
	store  Store
	logger *log.Logger

	// client, when set, carries token endpoint requests (tests inject httptest clients)
	client *http.Client
	now    func() time.Time

	mu     sync.Mutex
	record *TokenRecord
	state  *AuthState
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithHTTPClient sets the HTTP client used for token endpoint requests.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Authenticator) { a.client = c }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) { a.now = now }
}

// New creates an Authenticator for one service account, loading any cached
// TokenRecord from the store. A corrupt or missing cache leaves the
// authenticator unauthenticated.
func New(cfg Config, store Store, logger *log.Logger, opts ...Option) *Authenticator {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	a := &Authenticator{
		cfg:    cfg,
		store:  store,
		logger: shared.WithLogger(logger, "service", cfg.Service),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	if record, err := store.Load(); err == nil && record != nil {
		a.record = record
	}

	return a
}

// oauthConfig builds the x/oauth2 config, attaching the client secret only
// when the capability table says the current operation needs it.
func (a *Authenticator) oauthConfig(withSecret bool) *oauth2.Config {
	secret := ""
	if withSecret {
		secret = a.cfg.ClientSecret
	}
	return &oauth2.Config{
		ClientID:     a.cfg.ClientID,
		ClientSecret: secret,
		RedirectURL:  a.cfg.RedirectURI,
		Scopes:       a.cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  a.cfg.AuthURL,
			TokenURL: a.cfg.TokenURL,
		},
	}
}

func (a *Authenticator) ctx(ctx context.Context) context.Context {
	if a.client != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, a.client)
	}
	return ctx
}

// GenerateAuthURL builds the provider authorization URL with a fresh state
// nonce. When the service needs PKCE, a new verifier/challenge pair is
// generated and becomes the current AuthState, replacing any prior one.
func (a *Authenticator) GenerateAuthURL() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	state := uuid.New().String()
	opts := []oauth2.AuthCodeOption{}

	if a.cfg.NeedsPKCE {
		verifier := oauth2.GenerateVerifier()
		a.state = &AuthState{
			Verifier:  verifier,
			Challenge: oauth2.S256ChallengeFromVerifier(verifier),
			State:     state,
		}
		opts = append(opts, oauth2.S256ChallengeOption(verifier))
	} else {
		a.state = &AuthState{State: state}
	}

	return a.oauthConfig(a.cfg.SecretOnExchange).AuthCodeURL(state, opts...)
}

// State returns the nonce of the outstanding AuthState, or "" when none exists.
func (a *Authenticator) State() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == nil {
		return ""
	}
	return a.state.State
}

// ExchangeCode exchanges an authorization code for tokens and persists the
// resulting TokenRecord. The current AuthState is consumed.
func (a *Authenticator) ExchangeCode(ctx context.Context, code string) (*TokenRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	opts := []oauth2.AuthCodeOption{}
	if a.cfg.NeedsPKCE {
		if a.state == nil || a.state.Verifier == "" {
			return nil, fmt.Errorf("%w: %s requires PKCE but no auth state exists, call GenerateAuthURL first", shared.ErrAuthFailed, a.cfg.Service)
		}
		opts = append(opts, oauth2.VerifierOption(a.state.Verifier))
	}

	conf := a.oauthConfig(a.cfg.SecretOnExchange)
	token, err := conf.Exchange(a.ctx(ctx), code, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s code exchange rejected: %v", shared.ErrAuthFailed, a.cfg.Service, err)
	}

	record := a.recordFromToken(token, nil)
	a.state = nil

	if err := a.persist(record); err != nil {
		return nil, err
	}

	a.logger.Info("exchanged authorization code", "expires_at", record.ExpiresAt)
	return record, nil
}

// EnsureValidToken returns the cached TokenRecord when it expires more than
// ExpiryMargin in the future, without any network call. Otherwise it refreshes.
func (a *Authenticator) EnsureValidToken(ctx context.Context) (*TokenRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.record == nil {
		return nil, fmt.Errorf("%w: %s has no cached token", shared.ErrNotAuthenticated, a.cfg.Service)
	}

	if a.record.ExpiresAt.Sub(a.now()) > ExpiryMargin {
		return a.record, nil
	}

	return a.refreshLocked(ctx)
}

// Refresh forces a token refresh regardless of the cached expiry.
func (a *Authenticator) Refresh(ctx context.Context) (*TokenRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refreshLocked(ctx)
}

// refreshLocked performs the refresh grant. Callers hold a.mu.
//
// Failure never mutates the cached record: a sync aborted mid-refresh leaves
// the previously persisted token intact.
func (a *Authenticator) refreshLocked(ctx context.Context) (*TokenRecord, error) {
	if a.record == nil || a.record.RefreshToken == "" {
		return nil, fmt.Errorf("%w: %s", shared.ErrNoRefreshToken, a.cfg.Service)
	}

	conf := a.oauthConfig(a.cfg.SecretOnRefresh)
	source := conf.TokenSource(a.ctx(ctx), &oauth2.Token{RefreshToken: a.record.RefreshToken})

	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrRefreshFailed, a.cfg.Service, err)
	}

	record := a.recordFromToken(token, a.record)
	if err := a.persist(record); err != nil {
		return nil, err
	}

	a.logger.Debug("refreshed access token", "expires_at", record.ExpiresAt)
	return record, nil
}

// IsAuthenticated reports whether a TokenRecord is cached. Expiry is
// irrelevant here: an expired token is refreshable, an absent one is not.
func (a *Authenticator) IsAuthenticated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.record != nil
}

// Record returns the cached TokenRecord without validation, or nil.
func (a *Authenticator) Record() *TokenRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.record
}

// Logout clears the cached record and removes it from the store.
func (a *Authenticator) Logout() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.record = nil
	a.state = nil
	return a.store.Clear()
}

// Service returns the service name from the capability table.
func (a *Authenticator) Service() string {
	return a.cfg.Service
}

func (a *Authenticator) persist(record *TokenRecord) error {
	if err := a.store.Save(record); err != nil {
		return fmt.Errorf("failed to persist token for %s: %w", a.cfg.Service, err)
	}
	a.record = record
	return nil
}

// recordFromToken converts an oauth2 token response into a TokenRecord.
//
// Providers are not guaranteed to rotate refresh tokens or restate scopes, so
// both fall back to the previous record when the response omits them.
func (a *Authenticator) recordFromToken(token *oauth2.Token, prev *TokenRecord) *TokenRecord {
	record := &TokenRecord{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}

	if record.RefreshToken == "" && prev != nil {
		record.RefreshToken = prev.RefreshToken
	}

	if scope, ok := token.Extra("scope").(string); ok && scope != "" {
		record.Scope = strings.Fields(scope)
	} else if prev != nil {
		record.Scope = prev.Scope
	} else {
		record.Scope = a.cfg.Scopes
	}

	return record
}
