// Package secrets loads the process-wide secret sets once at startup.
// The sets are read-only for the process lifetime.
package secrets

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Secret set names, used in error reporting.
const (
	SetGoogle  = "google"
	SetSession = "session"
	SetOracle  = "oracle"
)

// MissingError reports an absent or incomplete secret set. It is fatal at
// startup; nothing retries configuration.
type MissingError struct {
	Set string
	Key string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("secret set %q incomplete: %s not set", e.Set, e.Key)
}

// Google holds the OAuth client registration.
type Google struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Session holds both signing layers of the session credential. Secret signs
// the inner envelope; WebSecret is the distributing party's key for the
// outer layer.
type Session struct {
	Secret    []byte
	WebSecret []byte
	Algorithm string
	TTL       time.Duration
}

// Oracle holds the labeling oracle credentials.
type Oracle struct {
	APIKey string
	Model  string
}

const (
	defaultAlgorithm  = "HS256"
	defaultTTLSeconds = 3600
)

// Store is the loaded configuration. Construct with Load; zero value is not
// usable.
type Store struct {
	google  Google
	session Session
	oracle  Oracle
}

// Load reads the secret sets from the environment. If envFile is non-empty
// it is loaded first; a missing file is an error, since the operator asked
// for it explicitly.
func Load(envFile string) (*Store, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	ttl := defaultTTLSeconds * time.Second
	if raw := os.Getenv("SESSION_TTL_SECONDS"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("SESSION_TTL_SECONDS: invalid value %q", raw)
		}
		ttl = time.Duration(secs) * time.Second
	}
	alg := os.Getenv("SESSION_JWT_ALGORITHM")
	if alg == "" {
		alg = defaultAlgorithm
	}

	return &Store{
		google: Google{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			RedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),
		},
		session: Session{
			Secret:    []byte(os.Getenv("SESSION_JWT_SECRET")),
			WebSecret: []byte(os.Getenv("SESSION_WEB_SECRET")),
			Algorithm: alg,
			TTL:       ttl,
		},
		oracle: Oracle{
			APIKey: os.Getenv("OPENAI_API_KEY"),
			Model:  os.Getenv("OPENAI_MODEL"),
		},
	}, nil
}

// Google returns the OAuth client set.
func (s *Store) Google() (Google, error) {
	switch {
	case s.google.ClientID == "":
		return Google{}, &MissingError{Set: SetGoogle, Key: "GOOGLE_CLIENT_ID"}
	case s.google.ClientSecret == "":
		return Google{}, &MissingError{Set: SetGoogle, Key: "GOOGLE_CLIENT_SECRET"}
	case s.google.RedirectURL == "":
		return Google{}, &MissingError{Set: SetGoogle, Key: "GOOGLE_REDIRECT_URL"}
	}
	return s.google, nil
}

// Session returns the signing set.
func (s *Store) Session() (Session, error) {
	switch {
	case len(s.session.Secret) == 0:
		return Session{}, &MissingError{Set: SetSession, Key: "SESSION_JWT_SECRET"}
	case len(s.session.WebSecret) == 0:
		return Session{}, &MissingError{Set: SetSession, Key: "SESSION_WEB_SECRET"}
	}
	return s.session, nil
}

// Oracle returns the labeling oracle set. Model may be empty; callers
// default it.
func (s *Store) Oracle() (Oracle, error) {
	if s.oracle.APIKey == "" {
		return Oracle{}, &MissingError{Set: SetOracle, Key: "OPENAI_API_KEY"}
	}
	return s.oracle, nil
}
