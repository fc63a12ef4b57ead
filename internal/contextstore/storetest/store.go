// Package storetest provides an in-memory stand-in for the platform: the
// context store endpoints behind bearer auth plus an unauthenticated
// documentation origin, for tests that need a real HTTP server.
package storetest

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kalambet/ctxsync/internal/contextstore"
)

// Registration is a stored document as the fake sees it.
type Registration struct {
	ID     string
	Source string
	Add    contextstore.AddRequest
}

// Platform is a fake platform host. A zero failure status means the
// endpoint behaves normally.
type Platform struct {
	mu    sync.Mutex
	token string
	docs  []Registration

	originBody   string
	originStatus int

	listStatus   int
	listBody     string
	deleteStatus int
	addStatus    int
	addDelay     time.Duration

	listCalls   int
	originCalls int
	deletes     []contextstore.DeleteRequest
	adds        []contextstore.AddRequest
	authFails   int
}

// New returns a Platform that accepts token as its bearer credential.
func New(token string) *Platform {
	return &Platform{token: token, originStatus: http.StatusNotFound}
}

// Start serves the platform on an httptest server closed at test cleanup.
func Start(t testing.TB, token string) (*Platform, *httptest.Server) {
	p := New(token)
	srv := httptest.NewServer(p.Handler())
	t.Cleanup(srv.Close)
	return p, srv
}

// Register seeds an existing registration.
func (p *Platform) Register(id, source string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.docs = append(p.docs, Registration{ID: id, Source: source})
}

// ServeDocument makes the origin return body with a 200.
func (p *Platform) ServeDocument(body string) {
	p.SetOrigin(http.StatusOK, body)
}

// SetOrigin sets the origin's response.
func (p *Platform) SetOrigin(status int, body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.originStatus = status
	p.originBody = body
}

// FailList makes the list endpoint respond with status.
func (p *Platform) FailList(status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listStatus = status
}

// SetListBody replaces the list response with a raw body.
func (p *Platform) SetListBody(body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listBody = body
}

// FailDelete makes the delete endpoint respond with status.
func (p *Platform) FailDelete(status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleteStatus = status
}

// FailAdd makes the add endpoint respond with status.
func (p *Platform) FailAdd(status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.addStatus = status
}

// DelayAdd holds the add handler for d before it responds, or until the
// client gives up.
func (p *Platform) DelayAdd(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.addDelay = d
}

// Registrations returns a copy of the stored registrations.
func (p *Platform) Registrations() []Registration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Registration(nil), p.docs...)
}

// Deletes returns every delete request received.
func (p *Platform) Deletes() []contextstore.DeleteRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]contextstore.DeleteRequest(nil), p.deletes...)
}

// Adds returns every add request received, including rejected ones.
func (p *Platform) Adds() []contextstore.AddRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]contextstore.AddRequest(nil), p.adds...)
}

// ListCalls returns how many list requests were received.
func (p *Platform) ListCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.listCalls
}

// OriginCalls returns how many document fetches were received.
func (p *Platform) OriginCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.originCalls
}

// AuthFailures returns how many store requests were rejected for a bad token.
func (p *Platform) AuthFailures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.authFails
}

// Handler returns the platform router.
func (p *Platform) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/api/openapi.json", p.handleOrigin)

	r.Route("/api/v1/context", func(r chi.Router) {
		r.Use(p.bearerAuth)
		r.Get("/view/docs", p.handleList)
		r.Post("/delete", p.handleDelete)
		r.Post("/add", p.handleAdd)
	})

	return r
}

func (p *Platform) bearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(auth, prefix) || subtle.ConstantTimeCompare([]byte(auth[len(prefix):]), []byte(p.token)) != 1 {
			p.mu.Lock()
			p.authFails++
			p.mu.Unlock()
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or missing bearer token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (p *Platform) handleOrigin(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.originCalls++
	status, body := p.originStatus, p.originBody
	p.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}

func (p *Platform) handleList(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.listCalls++
	status, body := p.listStatus, p.listBody
	docs := make([]contextstore.Registration, len(p.docs))
	for i, d := range p.docs {
		docs[i] = contextstore.Registration{ID: d.ID}
	}
	p.mu.Unlock()

	if status != 0 {
		writeJSON(w, status, map[string]string{"error": "list failed"})
		return
	}
	if body != "" {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
		return
	}
	writeJSON(w, http.StatusOK, contextstore.ListResponse{Documents: docs})
}

func (p *Platform) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req contextstore.DeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	p.mu.Lock()
	p.deletes = append(p.deletes, req)
	if p.deleteStatus != 0 {
		status := p.deleteStatus
		p.mu.Unlock()
		writeJSON(w, status, map[string]string{"error": "delete failed"})
		return
	}
	kept := p.docs[:0]
	removed := 0
	for _, d := range p.docs {
		if req.ByDoc && d.Source == req.Source {
			removed++
			continue
		}
		kept = append(kept, d)
	}
	p.docs = kept
	p.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"deleted": removed})
}

func (p *Platform) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req contextstore.AddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	p.mu.Lock()
	p.adds = append(p.adds, req)
	status, delay := p.addStatus, p.addDelay
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if status != 0 {
		writeJSON(w, status, map[string]string{"error": "add failed"})
		return
	}

	id := uuid.New().String() + "/" + req.FileName
	p.mu.Lock()
	p.docs = append(p.docs, Registration{ID: id, Source: req.FileName, Add: req})
	p.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"_id": id})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
