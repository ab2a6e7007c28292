package devserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/cityplay/questclient/internal/database"
)

func setupRouter(t *testing.T) (chi.Router, *Store, *TokenIssuer) {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := database.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := NewStore(ctx, db)
	if err != nil {
		t.Fatalf("init store: %v", err)
	}
	if err := Seed(ctx, logger, store); err != nil {
		t.Fatalf("seed: %v", err)
	}

	tokens := NewTokenIssuer("test-secret")
	return Router(logger, store, tokens), store, tokens
}

func login(t *testing.T, r chi.Router) string {
	t.Helper()
	body, _ := json.Marshal(LoginRequest{Username: DemoUsername, Password: DemoPassword})
	req := httptest.NewRequest(http.MethodPost, "/auth/jwt/create/", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp LoginResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Access == "" || resp.Refresh == "" {
		t.Fatal("login: missing tokens")
	}
	return resp.Access
}

func TestLoginAndRefresh(t *testing.T) {
	r, _, _ := setupRouter(t)

	body, _ := json.Marshal(LoginRequest{Username: DemoUsername, Password: DemoPassword})
	req := httptest.NewRequest(http.MethodPost, "/auth/jwt/create/", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", w.Code)
	}
	var pair LoginResponse
	json.NewDecoder(w.Body).Decode(&pair)

	// Refresh trades the refresh token for a new access token.
	body, _ = json.Marshal(RefreshRequest{Refresh: pair.Refresh})
	req = httptest.NewRequest(http.MethodPost, "/auth/jwt/refresh/", bytes.NewReader(body))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var refreshed RefreshResponse
	json.NewDecoder(w.Body).Decode(&refreshed)
	if refreshed.Access == "" {
		t.Fatal("refresh: no access token")
	}

	// An access token is not a refresh token.
	body, _ = json.Marshal(RefreshRequest{Refresh: pair.Access})
	req = httptest.NewRequest(http.MethodPost, "/auth/jwt/refresh/", bytes.NewReader(body))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("refresh with access token: expected 401, got %d", w.Code)
	}
}

func TestLoginBadPassword(t *testing.T) {
	r, _, _ := setupRouter(t)

	body, _ := json.Marshal(LoginRequest{Username: DemoUsername, Password: "nope"})
	req := httptest.NewRequest(http.MethodPost, "/auth/jwt/create/", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRegisterWithoutLoginAnswers500(t *testing.T) {
	r, _, _ := setupRouter(t)

	// Platform convention: a missing login on this route is a 500, and
	// clients rely on it.
	body, _ := json.Marshal(RegisterTeamRequest{Game: 1, PlayersNumber: 3})
	req := httptest.NewRequest(http.MethodPost, "/api/teams/", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestRegisterConflictEmbedsExistingTeam(t *testing.T) {
	r, _, _ := setupRouter(t)
	access := login(t, r)

	register := func() *httptest.ResponseRecorder {
		body, _ := json.Marshal(RegisterTeamRequest{Game: 1, PlayersNumber: 3})
		req := httptest.NewRequest(http.MethodPost, "/api/teams/", bytes.NewReader(body))
		req.Header.Set("Authorization", "JWT "+access)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := register()
	if w.Code != http.StatusCreated {
		t.Fatalf("first register: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created TeamPayload
	json.NewDecoder(w.Body).Decode(&created)

	w = register()
	if w.Code != http.StatusBadRequest {
		t.Fatalf("second register: expected 400, got %d", w.Code)
	}
	var conflict struct {
		Team struct {
			ID int `json:"id"`
		} `json:"team"`
	}
	json.NewDecoder(w.Body).Decode(&conflict)
	if conflict.Team.ID != created.ID {
		t.Errorf("conflict team id = %d, want %d", conflict.Team.ID, created.ID)
	}
}

func TestCheckAnswerText(t *testing.T) {
	r, store, _ := setupRouter(t)

	tasks, err := store.TasksByScenario(context.Background(), 1)
	if err != nil || len(tasks) == 0 {
		t.Fatalf("tasks: %v", err)
	}
	textTask := tasks[0]

	check := func(answer string) bool {
		t.Helper()
		url := fmt.Sprintf("/api/tasks/check-answer/?answer_type=text&answer=%s&task_id=%d", answer, textTask.ID)
		req := httptest.NewRequest(http.MethodGet, url, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("check-answer: expected 200, got %d: %s", w.Code, w.Body.String())
		}
		var resp CheckAnswerResponse
		json.NewDecoder(w.Body).Decode(&resp)
		return resp.IsCorrect
	}

	if !check("clock+tower") {
		t.Error("exact answer judged wrong")
	}
	if check("Clock+Tower") {
		t.Error("case variant judged correct; only the exact stored string matches")
	}
	if check("clock+tower+") {
		t.Error("padded answer judged correct; only the exact stored string matches")
	}
	if check("water+tower") {
		t.Error("wrong answer judged correct")
	}
}

func TestCheckAnswerKindMismatch(t *testing.T) {
	r, store, _ := setupRouter(t)

	tasks, _ := store.TasksByScenario(context.Background(), 1)
	textTask := tasks[0]

	url := fmt.Sprintf("/api/tasks/check-answer/?answer_type=image&answer=1&task_id=%d", textTask.ID)
	req := httptest.NewRequest(http.MethodGet, url, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on kind mismatch, got %d", w.Code)
	}
}

func TestAnswerImagesHideCorrectness(t *testing.T) {
	r, store, _ := setupRouter(t)

	tasks, _ := store.TasksByScenario(context.Background(), 1)
	imageTask := tasks[1]

	url := fmt.Sprintf("/api/answerimages/?task_id=%d", imageTask.ID)
	req := httptest.NewRequest(http.MethodGet, url, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if bytes.Contains(w.Body.Bytes(), []byte("is_correct")) {
		t.Error("answer images response leaks is_correct")
	}
	var images []AnswerImagePayload
	json.NewDecoder(w.Body).Decode(&images)
	if len(images) != 3 {
		t.Errorf("images = %d, want 3", len(images))
	}
}

func TestOpenAPIServed(t *testing.T) {
	r, _, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/openapi.json", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var spec struct {
		OpenAPI string         `json:"openapi"`
		Paths   map[string]any `json:"paths"`
	}
	if err := json.NewDecoder(w.Body).Decode(&spec); err != nil {
		t.Fatalf("decoding spec: %v", err)
	}
	if _, ok := spec.Paths["/api/task-completion/current-task/"]; !ok {
		t.Error("spec is missing the current-task path")
	}
}
