package devserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/cityplay/questclient/internal/quest"
)

type CheckAnswerResponse struct {
	IsCorrect bool `json:"is_correct"`
}

// handleCheckAnswer validates an answer candidate against the stored
// correct answer. Nothing is recorded; the client posts a completion
// separately after a correct verdict.
func handleCheckAnswer(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		taskID, err := strconv.Atoi(q.Get("task_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "task_id query parameter is required")
			return
		}
		answerType := quest.AnswerKind(q.Get("answer_type"))
		if !answerType.Valid() {
			writeError(w, http.StatusBadRequest, "unknown answer_type")
			return
		}

		task, err := store.TaskByID(r.Context(), taskID)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if string(answerType) != task.AnswerType {
			writeError(w, http.StatusBadRequest, "answer_type does not match the task")
			return
		}

		correct, err := checkAnswer(r, store, task, q.Get("answer"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, CheckAnswerResponse{IsCorrect: correct})
	}
}

func checkAnswer(r *http.Request, store *Store, task TaskRow, answer string) (bool, error) {
	switch quest.AnswerKind(task.AnswerType) {
	case quest.AnswerText:
		// Only the exact stored string is correct; a case variant or
		// padded string is a different answer.
		return answer == task.CorrectAnswer, nil

	case quest.AnswerImage:
		chosen, err := strconv.Atoi(answer)
		if err != nil {
			return false, nil
		}
		images, err := store.AnswerImages(r.Context(), task.ID)
		if err != nil {
			return false, err
		}
		for _, img := range images {
			if img.ID == chosen {
				return img.IsCorrect, nil
			}
		}
		return false, nil

	case quest.AnswerLocation:
		// Compare parsed values so formatting of the pair is
		// irrelevant; the match itself is exact.
		got, err := quest.ParseCoordinates(answer)
		if err != nil {
			return false, nil
		}
		want, err := quest.ParseCoordinates(task.CorrectAnswer)
		if err != nil {
			return false, err
		}
		return got == want, nil
	}
	return false, nil
}

type AnswerImagePayload struct {
	ID    int    `json:"id"`
	Image string `json:"image"`
}

// handleAnswerImages lists the candidate choices for a task. The
// is_correct flag never leaves the server.
func handleAnswerImages(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taskID, err := strconv.Atoi(r.URL.Query().Get("task_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "task_id query parameter is required")
			return
		}
		images, err := store.AnswerImages(r.Context(), taskID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		payload := make([]AnswerImagePayload, len(images))
		for i, img := range images {
			payload[i] = AnswerImagePayload{ID: img.ID, Image: img.Image}
		}
		writeJSON(w, http.StatusOK, payload)
	}
}
