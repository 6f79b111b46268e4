// Package session issues and verifies the internally signed session
// credential that stands in for the raw provider token.
//
// The credential is a two-layer JWT: the inner envelope binds the provider
// access token to an expiry and is signed with the API secret; the outer
// envelope is applied by the distributing party (Wrap) with the web secret
// before the credential is presented back to the API.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenUnavailable means no credential was issued within the wait
	// window. Callers may retry later.
	ErrTokenUnavailable = errors.New("session credential not yet available")
	// ErrInvalidCredential means a presented credential failed signature or
	// expiry checks. Not retryable.
	ErrInvalidCredential = errors.New("invalid session credential")
)

// ReissuePolicy controls what a second Issue call does while a credential is
// outstanding.
type ReissuePolicy int

const (
	// KeepFirst makes repeated issuance a silent no-op; only the first
	// login per process lifetime takes effect.
	KeepFirst ReissuePolicy = iota
	// Overwrite replaces the outstanding credential so a re-login refreshes
	// the session.
	Overwrite
)

// Claims is the verified content of a session credential.
type Claims struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Config configures an Issuer.
type Config struct {
	// Secret signs and verifies the inner envelope.
	Secret []byte
	// WebSecret verifies the outer envelope applied by the distributing
	// party.
	WebSecret []byte
	// Algorithm names the HMAC signing method for both layers, e.g. HS256.
	Algorithm string
	// TTL is the inner envelope lifetime.
	TTL time.Duration
	// Reissue selects the repeated-issuance policy.
	Reissue ReissuePolicy
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Issuer holds the single outstanding session credential for the process.
type Issuer struct {
	secret    []byte
	webSecret []byte
	method    jwt.SigningMethod
	alg       string
	ttl       time.Duration
	policy    ReissuePolicy
	clock     func() time.Time

	mu         sync.RWMutex
	credential string
	ready      chan struct{}
}

type innerClaims struct {
	AccessToken string `json:"access_token"`
	jwt.RegisteredClaims
}

type outerClaims struct {
	APIToken string `json:"api_token"`
	jwt.RegisteredClaims
}

// NewIssuer validates the signing configuration and returns an empty-slot
// issuer.
func NewIssuer(cfg Config) (*Issuer, error) {
	method := jwt.GetSigningMethod(cfg.Algorithm)
	if method == nil {
		return nil, fmt.Errorf("unknown signing algorithm %q", cfg.Algorithm)
	}
	if len(cfg.Secret) == 0 || len(cfg.WebSecret) == 0 {
		return nil, errors.New("signing secrets must not be empty")
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("credential ttl must be positive, got %s", cfg.TTL)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Issuer{
		secret:    cfg.Secret,
		webSecret: cfg.WebSecret,
		method:    method,
		alg:       cfg.Algorithm,
		ttl:       cfg.TTL,
		policy:    cfg.Reissue,
		clock:     clock,
		ready:     make(chan struct{}),
	}, nil
}

// Issue mints a session credential wrapping the provider token and releases
// every waiter blocked in Await. Under KeepFirst a second call is a no-op;
// under Overwrite it replaces the outstanding credential.
func (i *Issuer) Issue(providerToken string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.credential != "" && i.policy == KeepFirst {
		return nil
	}

	exp := i.clock().Add(i.ttl)
	token := jwt.NewWithClaims(i.method, innerClaims{
		AccessToken: providerToken,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return fmt.Errorf("sign session credential: %w", err)
	}

	first := i.credential == ""
	i.credential = signed
	if first {
		close(i.ready)
	}
	return nil
}

// Current returns the outstanding credential without blocking.
func (i *Issuer) Current() (string, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.credential, i.credential != ""
}

// Await blocks the calling goroutine until a credential is issued, the
// timeout elapses, or ctx is canceled. Timeout failures return
// ErrTokenUnavailable, distinct from any verification failure.
func (i *Issuer) Await(ctx context.Context, timeout time.Duration) (string, error) {
	if cred, ok := i.Current(); ok {
		return cred, nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-i.ready:
		cred, _ := i.Current()
		return cred, nil
	case <-timer.C:
		return "", ErrTokenUnavailable
	case <-ctx.Done():
		return "", fmt.Errorf("await session credential: %w", ctx.Err())
	}
}

// Verify checks both signature layers of a presented credential and returns
// the provider token it wraps. Calling Verify before any Issue is a caller
// bug, not a verification failure, and panics.
func (i *Issuer) Verify(outer string) (Claims, error) {
	if _, ok := i.Current(); !ok {
		panic("session: Verify called before any credential was issued")
	}

	var oc outerClaims
	_, err := jwt.ParseWithClaims(outer, &oc, i.webKey,
		jwt.WithValidMethods([]string{i.alg}),
		jwt.WithTimeFunc(i.clock),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: outer envelope: %v", ErrInvalidCredential, err)
	}
	if oc.APIToken == "" {
		return Claims{}, fmt.Errorf("%w: outer envelope carries no api token", ErrInvalidCredential)
	}

	var ic innerClaims
	_, err = jwt.ParseWithClaims(oc.APIToken, &ic, i.apiKey,
		jwt.WithValidMethods([]string{i.alg}),
		jwt.WithTimeFunc(i.clock),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: inner envelope: %v", ErrInvalidCredential, err)
	}
	if ic.AccessToken == "" {
		return Claims{}, fmt.Errorf("%w: inner envelope carries no access token", ErrInvalidCredential)
	}
	return Claims{AccessToken: ic.AccessToken, ExpiresAt: ic.ExpiresAt.Time}, nil
}

func (i *Issuer) webKey(*jwt.Token) (any, error) { return i.webSecret, nil }
func (i *Issuer) apiKey(*jwt.Token) (any, error) { return i.secret, nil }

// Wrap applies the distributing party's outer signature to an issued
// credential, producing the form clients present on API calls.
func Wrap(credential string, webSecret []byte, algorithm string) (string, error) {
	method := jwt.GetSigningMethod(algorithm)
	if method == nil {
		return "", fmt.Errorf("unknown signing algorithm %q", algorithm)
	}
	signed, err := jwt.NewWithClaims(method, outerClaims{APIToken: credential}).SignedString(webSecret)
	if err != nil {
		return "", fmt.Errorf("sign outer envelope: %w", err)
	}
	return signed, nil
}
