package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/prajakta250421/ScribeChain/internal/hub"
	"github.com/prajakta250421/ScribeChain/internal/ws"
)

func SetupRoutes(h *hub.Hub, api *API, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(h, api.issuer, log))

	r.Post("/api/auth/login", api.Login)

	r.Post("/api/documents", api.StoreDocument)
	r.Get("/api/documents/{id}", api.FetchDocument)

	r.Put("/api/ledger/{sessionID}", api.UpsertLedger)
	r.Get("/api/ledger/{sessionID}", api.GetLedger)
	r.Get("/api/ledger", api.ListLedger)

	return r
}
