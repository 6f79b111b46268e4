// Package httpapi exposes the authentication flow and the bearer-protected
// mailbox routes over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joshsymonds/labelsweep/internal/authflow"
	"github.com/joshsymonds/labelsweep/internal/mailbox"
	"github.com/joshsymonds/labelsweep/internal/session"
)

const stateCookie = "labelsweep_state"

// ClientFactory builds a mailbox client around a verified provider token.
type ClientFactory func(ctx context.Context, accessToken string) (mailbox.Client, error)

// Server wires the broker, the issuer, and the mailbox routes together.
type Server struct {
	Broker      *authflow.Broker
	Issuer      *session.Issuer
	Clients     ClientFactory
	Logger      *slog.Logger
	WaitTimeout time.Duration
}

// Routes returns the route table.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.home)
	mux.HandleFunc("GET /auth/login", s.login)
	mux.HandleFunc("GET /auth/callback", s.callback)
	mux.HandleFunc("GET /token", s.token)
	mux.Handle("GET /labels", s.withMailbox(s.listLabels))
	mux.Handle("POST /labels", s.withMailbox(s.createLabel))
	mux.Handle("GET /emails", s.withMailbox(s.listEmails))
	mux.Handle("POST /emails/{id}/label", s.withMailbox(s.assignLabel))
	return mux
}

func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "authentication complete, you may close this tab",
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	state := authflow.NewState()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, s.Broker.AuthorizationURL(state), http.StatusFound)
}

func (s *Server) callback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		writeError(w, http.StatusBadRequest, "state mismatch; restart login")
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	providerToken, err := s.Broker.ExchangeCode(r.Context(), code)
	if err != nil {
		s.Logger.ErrorContext(r.Context(), "code exchange failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if err := s.Issuer.Issue(providerToken); err != nil {
		s.Logger.ErrorContext(r.Context(), "credential issuance failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not issue session credential")
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) token(w http.ResponseWriter, r *http.Request) {
	cred, err := s.Issuer.Await(r.Context(), s.WaitTimeout)
	if err != nil {
		if errors.Is(err, session.ErrTokenUnavailable) {
			writeError(w, http.StatusRequestTimeout, "token not available yet")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"api_token": cred})
}

type mailboxHandler func(w http.ResponseWriter, r *http.Request, client mailbox.Client)

// withMailbox verifies the presented session credential and hands the
// handler a mailbox client authenticated with the unwrapped provider token.
func (s *Server) withMailbox(next mailboxHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bearer := bearerToken(r)
		if bearer == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer credential")
			return
		}
		if _, issued := s.Issuer.Current(); !issued {
			writeError(w, http.StatusUnauthorized, "no session credential has been issued")
			return
		}
		claims, err := s.Issuer.Verify(bearer)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		client, err := s.Clients(r.Context(), claims.AccessToken)
		if err != nil {
			s.Logger.ErrorContext(r.Context(), "mailbox client construction failed", "error", err)
			writeError(w, http.StatusInternalServerError, "could not reach mailbox provider")
			return
		}
		next(w, r, client)
	})
}

func (s *Server) listLabels(w http.ResponseWriter, r *http.Request, client mailbox.Client) {
	records, err := client.ListLabels(r.Context())
	if err != nil {
		s.writeUpstream(w, r, err)
		return
	}
	grouped := map[string][]mailbox.LabelRecord{
		"user":   {},
		"system": {},
	}
	for _, rec := range records {
		grouped[string(rec.Kind)] = append(grouped[string(rec.Kind)], rec)
	}
	writeJSON(w, http.StatusOK, grouped)
}

func (s *Server) createLabel(w http.ResponseWriter, r *http.Request, client mailbox.Client) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "missing label name")
		return
	}
	rec, err := client.CreateLabel(r.Context(), name)
	if err != nil {
		s.writeUpstream(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": string(rec.ID), "name": rec.Name})
}

type emailsResponse struct {
	Emails        []mailbox.MessageSummary `json:"emails"`
	NextPageToken *string                  `json:"next_page_token"`
}

func (s *Server) listEmails(w http.ResponseWriter, r *http.Request, client mailbox.Client) {
	var cursor *mailbox.PageCursor
	if raw := r.URL.Query().Get("pageToken"); raw != "" {
		c := mailbox.PageCursor(raw)
		cursor = &c
	}
	page, err := client.ListMessagesPage(r.Context(), cursor)
	if err != nil {
		s.writeUpstream(w, r, err)
		return
	}

	resp := emailsResponse{Emails: make([]mailbox.MessageSummary, 0, len(page.Refs))}
	for _, ref := range page.Refs {
		summary, err := client.FetchDetail(r.Context(), ref)
		if err != nil {
			s.writeUpstream(w, r, err)
			return
		}
		resp.Emails = append(resp.Emails, summary)
	}
	if page.Next != nil {
		token := string(*page.Next)
		resp.NextPageToken = &token
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) assignLabel(w http.ResponseWriter, r *http.Request, client mailbox.Client) {
	id := r.PathValue("id")
	labelID := r.URL.Query().Get("label_id")
	if id == "" || labelID == "" {
		writeError(w, http.StatusBadRequest, "missing message id or label_id")
		return
	}
	if err := client.AssignLabel(r.Context(), mailbox.MessageID(id), mailbox.LabelID(labelID)); err != nil {
		s.writeUpstream(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "label_id": labelID})
}

// writeUpstream relays provider rejections with their original status.
func (s *Server) writeUpstream(w http.ResponseWriter, r *http.Request, err error) {
	if ue, ok := mailbox.AsUpstream(err); ok {
		s.Logger.WarnContext(r.Context(), "upstream rejection", "status", ue.Status)
		writeError(w, ue.Status, ue.Body)
		return
	}
	s.Logger.ErrorContext(r.Context(), "mailbox call failed", "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, prefix))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
