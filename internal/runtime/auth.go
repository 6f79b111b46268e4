// internal/runtime/auth.go
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/mbrt/gmailctl/cmd/gmailctl/localcred"
	"golang.org/x/oauth2"
	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/joshsymonds/labelsweep/internal/mailbox"
	"github.com/joshsymonds/labelsweep/internal/rate"
)

// NewBearerClient builds a mailbox client around a verified provider access
// token, the path used behind the HTTP API. One HTTP request fans out into
// several Gmail calls, so the server shares a limiter across its clients.
func NewBearerClient(ctx context.Context, accessToken string, limiter rate.Limiter) (mailbox.Client, error) {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	svc, err := gmailv1.NewService(ctx, option.WithTokenSource(src))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return NewGoogleAPIClient(svc, limiter), nil
}

// NewLocalClient builds a mailbox client from the gmailctl credential cache,
// the path used by the reconcile CLI when no server is involved. The
// reconcile loop paces its own calls, so no limiter is attached here.
func NewLocalClient(ctx context.Context, cfgDir string) (mailbox.Client, error) {
	svc, err := (localcred.Provider{}).Service(ctx, cfgDir)
	if err != nil {
		return nil, fmt.Errorf("load local gmail credentials: %w", err)
	}
	return NewGoogleAPIClient(svc, nil), nil
}

func DefaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
