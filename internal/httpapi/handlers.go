package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/prajakta250421/ScribeChain/internal/ledger"
	"github.com/prajakta250421/ScribeChain/internal/storage"
)

// TokenIssuer mints a credential for a wallet address.
type TokenIssuer interface {
	Issue(address string) (string, error)
	Verify(token string) (string, error)
}

// LedgerStore is the server-side ledger surface: writes carry the owner
// resolved from the caller's credential.
type LedgerStore interface {
	Upsert(ctx context.Context, sessionID, contentID, owner string) (ledger.Result, error)
	Get(ctx context.Context, sessionID string) (*ledger.Record, error)
	ListByOwner(ctx context.Context, owner string) ([]ledger.Entry, error)
}

type API struct {
	issuer TokenIssuer
	store  storage.Store
	ledger LedgerStore
	log    *zap.Logger
}

func NewAPI(issuer TokenIssuer, store storage.Store, led LedgerStore, log *zap.Logger) *API {
	return &API{issuer: issuer, store: store, ledger: led, log: log}
}

// Login issues a bearer token for the supplied wallet address. Signature
// verification against the wallet is out of scope here; the address is
// treated as an opaque identity.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Address == "" {
		http.Error(w, "missing address", http.StatusBadRequest)
		return
	}
	token, err := a.issuer.Issue(req.Address)
	if err != nil {
		a.log.Error("issue token", zap.Error(err))
		http.Error(w, "failed to issue token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// StoreDocument stores one content blob and returns its id.
func (a *API) StoreDocument(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.caller(w, r); !ok {
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	res, err := a.store.Store(r.Context(), req.Content)
	if err != nil {
		a.log.Error("store document", zap.Error(err))
		http.Error(w, "failed to store content", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// FetchDocument returns a stored blob by id.
func (a *API) FetchDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	content, err := a.store.Fetch(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		a.log.Error("fetch document", zap.String("id", id), zap.Error(err))
		http.Error(w, "failed to fetch content", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "content": content})
}

// UpsertLedger records the session's current content id for the caller.
func (a *API) UpsertLedger(w http.ResponseWriter, r *http.Request) {
	owner, ok := a.caller(w, r)
	if !ok {
		return
	}
	sessionID := chi.URLParam(r, "sessionID")
	var req struct {
		ContentID string `json:"contentId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ContentID == "" {
		http.Error(w, "missing contentId", http.StatusBadRequest)
		return
	}
	res, err := a.ledger.Upsert(r.Context(), sessionID, req.ContentID, owner)
	if err != nil {
		a.log.Warn("ledger upsert failed",
			zap.String("session", sessionID), zap.String("owner", owner), zap.Error(err))
		writeJSON(w, http.StatusForbidden, map[string]any{"success": false, "error": "not the record owner"})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetLedger returns the session's ledger record, 404 when none exists.
func (a *API) GetLedger(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	rec, err := a.ledger.Get(r.Context(), sessionID)
	if err != nil {
		a.log.Error("ledger get", zap.String("session", sessionID), zap.Error(err))
		http.Error(w, "failed to read ledger", http.StatusInternalServerError)
		return
	}
	if rec == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ListLedger returns every ledger entry of one owner.
func (a *API) ListLedger(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		http.Error(w, "missing owner", http.StatusBadRequest)
		return
	}
	entries, err := a.ledger.ListByOwner(r.Context(), owner)
	if err != nil {
		a.log.Error("ledger list", zap.String("owner", owner), zap.Error(err))
		http.Error(w, "failed to read ledger", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []ledger.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// caller resolves the wallet address behind the request's bearer token.
func (a *API) caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		http.Error(w, "missing bearer token", http.StatusUnauthorized)
		return "", false
	}
	address, err := a.issuer.Verify(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return "", false
	}
	return address, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
