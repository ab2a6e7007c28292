package devserver

import (
	"errors"
	"net/http"
	"strconv"
)

type RegisterTeamRequest struct {
	Game          int `json:"game"`
	PlayersNumber int `json:"players_number"`
}

type TeamPayload struct {
	ID            int `json:"id"`
	Game          int `json:"game"`
	PlayersNumber int `json:"players_number"`
}

func handleRegisterTeam(store *Store, tokens *TokenIssuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := accountFromRequest(r, tokens, store)
		if err != nil {
			// The production platform signals a missing login on this
			// route with a 500; clients depend on that, keep it.
			writeError(w, http.StatusInternalServerError, "login required")
			return
		}

		var req RegisterTeamRequest
		if err := readJSON(r, &req); err != nil || req.Game == 0 {
			writeError(w, http.StatusBadRequest, "game is required")
			return
		}
		if req.PlayersNumber <= 0 {
			req.PlayersNumber = 1
		}

		teamID, err := store.CreateTeam(r.Context(), req.Game, account.ID, req.PlayersNumber)
		if errors.Is(err, ErrDuplicate) {
			// Duplicate registration embeds the existing team so the
			// client can resume it.
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error": "user already joined this game",
				"team":  map[string]int{"id": teamID},
			})
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusCreated, TeamPayload{
			ID:            teamID,
			Game:          req.Game,
			PlayersNumber: req.PlayersNumber,
		})
	}
}

func handleIsRegistered(store *Store, tokens *TokenIssuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := accountFromRequest(r, tokens, store)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		gameID, err := strconv.Atoi(r.URL.Query().Get("game"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "game query parameter is required")
			return
		}

		team, err := store.TeamForGame(r.Context(), gameID, account.ID)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "not registered to this game")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"team": map[string]int{"id": team.ID},
		})
	}
}
