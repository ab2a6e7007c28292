package devserver

import (
	"net/http"
	"strconv"
)

type TaskPayload struct {
	ID          int    `json:"id"`
	Scenario    int    `json:"scenario"`
	Number      int    `json:"number"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Audio       string `json:"audio"`
	AnswerType  string `json:"answer_type"`
}

func taskPayload(t TaskRow) *TaskPayload {
	return &TaskPayload{
		ID:          t.ID,
		Scenario:    t.ScenarioID,
		Number:      t.Number,
		Description: t.Description,
		Image:       t.Image,
		Audio:       t.Audio,
		AnswerType:  t.AnswerType,
	}
}

type CurrentTaskResponse struct {
	CurrentTask *TaskPayload `json:"current_task"`
	Percentage  float64      `json:"percentage"`
	Ended       bool         `json:"ended"`
}

// handleCurrentTask computes the team's play position: the first task
// (by number) the team has not completed, the completed fraction, and
// whether the scenario is exhausted.
func handleCurrentTask(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		teamID, err := strconv.Atoi(q.Get("team"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "team query parameter is required")
			return
		}
		scenarioID, err := strconv.Atoi(q.Get("scenario"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "scenario query parameter is required")
			return
		}

		tasks, err := store.TasksByScenario(r.Context(), scenarioID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if len(tasks) == 0 {
			writeError(w, http.StatusBadRequest, "scenario has no tasks")
			return
		}

		done, err := store.CompletedCount(r.Context(), teamID, scenarioID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		resp := CurrentTaskResponse{
			Percentage: float64(done) / float64(len(tasks)),
		}
		if done >= len(tasks) {
			resp.Ended = true
			resp.Percentage = 1
		} else {
			resp.CurrentTask = taskPayload(tasks[done])
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type CreateCompletionRequest struct {
	Task int `json:"task"`
	Team int `json:"team"`
}

type CompletionPayload struct {
	ID   int `json:"id"`
	Task int `json:"task"`
	Team int `json:"team"`
}

func handleCreateCompletion(store *Store, tokens *TokenIssuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := accountFromRequest(r, tokens, store); err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		var req CreateCompletionRequest
		if err := readJSON(r, &req); err != nil || req.Task == 0 || req.Team == 0 {
			writeError(w, http.StatusBadRequest, "task and team are required")
			return
		}
		id, err := store.CreateCompletion(r.Context(), req.Task, req.Team)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusCreated, CompletionPayload{ID: id, Task: req.Task, Team: req.Team})
	}
}

// handleListCompletions lists completions for a task; the client shows
// len(list) as the how-many-teams-got-here counter.
func handleListCompletions(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taskID, err := strconv.Atoi(r.URL.Query().Get("task"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "task query parameter is required")
			return
		}
		completions, err := store.CompletionsByTask(r.Context(), taskID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		payload := make([]CompletionPayload, len(completions))
		for i, c := range completions {
			payload[i] = CompletionPayload{ID: c.ID, Task: c.TaskID, Team: c.TeamID}
		}
		writeJSON(w, http.StatusOK, payload)
	}
}
