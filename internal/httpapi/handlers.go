// Package httpapi exposes the request/response side of the service: match
// seeding and the admin lifecycle triggers. Everything mutating goes through
// the coordinator so the live rooms hear about it.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cuevacelis/1vs1core-sub000/internal/coordinator"
	"github.com/cuevacelis/1vs1core-sub000/internal/state"
	"github.com/cuevacelis/1vs1core-sub000/internal/store"
)

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

type createMatchRequest struct {
	TournamentID int64 `json:"tournamentId"`
	Round        int   `json:"round"`
	Player1ID    int64 `json:"player1Id"`
	Player2ID    int64 `json:"player2Id"`
}

func CreateMatch(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createMatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.Player1ID <= 0 || req.Player2ID <= 0 || req.Player1ID == req.Player2ID {
			http.Error(w, "a match needs two distinct players", http.StatusBadRequest)
			return
		}
		m := &store.Match{
			TournamentID: req.TournamentID,
			Round:        req.Round,
			Player1ID:    req.Player1ID,
			Player2ID:    req.Player2ID,
			State:        state.Pending,
		}
		if err := st.CreateMatch(r.Context(), m); err != nil {
			http.Error(w, "failed to create match", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, m)
	}
}

func ListMatches(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var tournamentID int64
		if q := r.URL.Query().Get("tournamentId"); q != "" {
			id, err := strconv.ParseInt(q, 10, 64)
			if err != nil || id <= 0 {
				http.Error(w, "bad tournamentId", http.StatusBadRequest)
				return
			}
			tournamentID = id
		}
		out, err := st.ListMatches(r.Context(), tournamentID)
		if err != nil {
			http.Error(w, "failed to list matches", http.StatusInternalServerError)
			return
		}
		if out == nil {
			out = []store.Match{}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func GetMatch(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := matchID(w, r)
		if !ok {
			return
		}
		m, err := st.GetMatch(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}

func GetSelections(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := matchID(w, r)
		if !ok {
			return
		}
		if _, err := st.GetMatch(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		sels, err := st.Selections(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		if sels == nil {
			sels = []store.ChampionSelection{}
		}
		writeJSON(w, http.StatusOK, sels)
	}
}

func ActivateMatch(coord *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := matchID(w, r)
		if !ok {
			return
		}
		if err := coord.ActivateMatch(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type completeMatchRequest struct {
	WinnerID int64 `json:"winnerId"`
}

func CompleteMatch(coord *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := matchID(w, r)
		if !ok {
			return
		}
		var req completeMatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.WinnerID <= 0 {
			http.Error(w, "winnerId required", http.StatusBadRequest)
			return
		}
		if err := coord.CompleteMatch(r.Context(), id, req.WinnerID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func CancelMatch(coord *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := matchID(w, r)
		if !ok {
			return
		}
		if err := coord.CancelMatch(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func matchID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "bad match id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "match not found", http.StatusNotFound)
	case errors.Is(err, coordinator.ErrForbidden):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, state.ErrInvalidTransition), errors.Is(err, store.ErrStateConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, coordinator.ErrInvalidWinner), errors.Is(err, store.ErrNoSelection):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
