package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/cuevacelis/1vs1core-sub000/internal/coordinator"
	"github.com/cuevacelis/1vs1core-sub000/internal/hub"
	"github.com/cuevacelis/1vs1core-sub000/internal/store"
	"github.com/cuevacelis/1vs1core-sub000/internal/ws"
)

func SetupRoutes(h *hub.Hub, coord *coordinator.Coordinator, st store.Store, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(h, coord, log))

	r.Route("/matches", func(r chi.Router) {
		r.Post("/", CreateMatch(st))
		r.Get("/", ListMatches(st))
		r.Get("/{id}", GetMatch(st))
		r.Get("/{id}/selections", GetSelections(st))
		r.Post("/{id}/activate", ActivateMatch(coord))
		r.Post("/{id}/complete", CompleteMatch(coord))
		r.Post("/{id}/cancel", CancelMatch(coord))
	})
	return r
}
