package devserver

import "net/http"

type ScenarioPayload struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Tasks       []int  `json:"tasks"`
}

type GamePayload struct {
	ID       int             `json:"id"`
	Title    string          `json:"title"`
	Scenario ScenarioPayload `json:"scenario"`
	// Field name matches the production platform's serializer.
	BeginsAt string `json:"beggining_date"`
	EndsAt   string `json:"end_date"`
}

func handleListGames(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		games, err := store.ListGames(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		payload := make([]GamePayload, len(games))
		for i, g := range games {
			payload[i] = GamePayload{
				ID:    g.ID,
				Title: g.Title,
				Scenario: ScenarioPayload{
					ID:          g.Scenario.ID,
					Title:       g.Scenario.Title,
					Description: g.Scenario.Description,
					Image:       g.Scenario.Image,
					Tasks:       g.Scenario.TaskIDs,
				},
				BeginsAt: g.BeginsAt,
				EndsAt:   g.EndsAt,
			}
		}
		writeJSON(w, http.StatusOK, payload)
	}
}
