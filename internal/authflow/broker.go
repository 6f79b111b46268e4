// Package authflow drives the provider's authorization-code exchange.
package authflow

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/joshsymonds/labelsweep/internal/secrets"
)

// Scopes requested on every login: identity plus mailbox modification.
var Scopes = []string{
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
	gmailapi.GmailModifyScope,
}

// ExchangeError is a provider-side rejection of a code exchange. Codes are
// single-use, so the flow must restart from AuthorizationURL; nothing
// retries the exchange.
type ExchangeError struct {
	Err error
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("oauth code exchange rejected: %v", e.Err)
}

func (e *ExchangeError) Unwrap() error { return e.Err }

// Broker holds the configured OAuth client for the one supported provider.
type Broker struct {
	cfg *oauth2.Config
}

// New builds a broker from the google secret set.
func New(g secrets.Google) *Broker {
	return &Broker{cfg: &oauth2.Config{
		ClientID:     g.ClientID,
		ClientSecret: g.ClientSecret,
		RedirectURL:  g.RedirectURL,
		Scopes:       Scopes,
		Endpoint:     google.Endpoint,
	}}
}

// NewState returns an opaque state token for one authorization round trip.
func NewState() string { return uuid.NewString() }

// AuthorizationURL is the consent-screen redirect target. It requests an
// offline (refreshable) grant with explicit consent and incremental scopes;
// deterministic for a given state.
func (b *Broker) AuthorizationURL(state string) string {
	return b.cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

// ExchangeCode performs the one-shot authorization-code exchange and returns
// the provider access token.
func (b *Broker) ExchangeCode(ctx context.Context, code string) (string, error) {
	tok, err := b.cfg.Exchange(ctx, code)
	if err != nil {
		return "", &ExchangeError{Err: err}
	}
	return tok.AccessToken, nil
}
