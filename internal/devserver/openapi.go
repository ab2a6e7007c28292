package devserver

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"
)

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Game Platform API (dev)"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Local stand-in for the game-platform REST API consumed by questplay.")

	// POST /auth/jwt/create/
	postLogin, _ := r.NewOperationContext(http.MethodPost, "/auth/jwt/create/")
	postLogin.SetSummary("Log in")
	postLogin.SetDescription("Trades credentials for an access/refresh token pair.")
	postLogin.AddReqStructure(LoginRequest{})
	postLogin.AddRespStructure(LoginResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postLogin.AddRespStructure(ErrorPayload{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postLogin)

	// POST /auth/jwt/refresh/
	postRefresh, _ := r.NewOperationContext(http.MethodPost, "/auth/jwt/refresh/")
	postRefresh.SetSummary("Refresh access token")
	postRefresh.SetDescription("Trades the refresh token for a fresh access token.")
	postRefresh.AddReqStructure(RefreshRequest{})
	postRefresh.AddRespStructure(RefreshResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postRefresh.AddRespStructure(ErrorPayload{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postRefresh)

	// GET /auth/users/me/
	getMe, _ := r.NewOperationContext(http.MethodGet, "/auth/users/me/")
	getMe.SetSummary("Current user")
	getMe.AddRespStructure(MeResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getMe.AddRespStructure(ErrorPayload{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getMe)

	// GET /api/games/
	getGames, _ := r.NewOperationContext(http.MethodGet, "/api/games/")
	getGames.SetSummary("List games")
	getGames.SetDescription("Scheduled games with their scenarios.")
	getGames.AddRespStructure([]GamePayload{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getGames)

	// POST /api/teams/
	postTeam, _ := r.NewOperationContext(http.MethodPost, "/api/teams/")
	postTeam.SetSummary("Register a team")
	postTeam.SetDescription("Registers the current user's team for a game. " +
		"A duplicate registration answers 400 with the existing team embedded; " +
		"a missing login answers 500 (platform convention).")
	postTeam.AddReqStructure(RegisterTeamRequest{})
	postTeam.AddRespStructure(TeamPayload{}, openapi.WithHTTPStatus(http.StatusCreated))
	postTeam.AddRespStructure(ErrorPayload{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postTeam.AddRespStructure(ErrorPayload{}, openapi.WithHTTPStatus(http.StatusInternalServerError))
	_ = r.AddOperation(postTeam)

	// GET /api/teams/is-registered-to-game
	getRegistered, _ := r.NewOperationContext(http.MethodGet, "/api/teams/is-registered-to-game")
	getRegistered.SetSummary("Look up own team for a game")
	getRegistered.AddRespStructure(map[string]any{}, openapi.WithHTTPStatus(http.StatusOK))
	getRegistered.AddRespStructure(ErrorPayload{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getRegistered)

	// GET /api/tasks/check-answer/
	getCheck, _ := r.NewOperationContext(http.MethodGet, "/api/tasks/check-answer/")
	getCheck.SetSummary("Check an answer")
	getCheck.SetDescription("Validates an answer candidate without recording anything.")
	getCheck.AddRespStructure(CheckAnswerResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getCheck.AddRespStructure(ErrorPayload{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(getCheck)

	// GET /api/answerimages/
	getImages, _ := r.NewOperationContext(http.MethodGet, "/api/answerimages/")
	getImages.SetSummary("List answer image choices")
	getImages.AddRespStructure([]AnswerImagePayload{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getImages)

	// GET /api/task-completion/current-task/
	getCurrent, _ := r.NewOperationContext(http.MethodGet, "/api/task-completion/current-task/")
	getCurrent.SetSummary("Current task and progress")
	getCurrent.SetDescription("The authoritative play position for a team in a scenario.")
	getCurrent.AddRespStructure(CurrentTaskResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getCurrent)

	// POST /api/task-completion/
	postCompletion, _ := r.NewOperationContext(http.MethodPost, "/api/task-completion/")
	postCompletion.SetSummary("Record a task completion")
	postCompletion.AddReqStructure(CreateCompletionRequest{})
	postCompletion.AddRespStructure(CompletionPayload{}, openapi.WithHTTPStatus(http.StatusCreated))
	_ = r.AddOperation(postCompletion)

	// GET /api/task-completion/
	getCompletions, _ := r.NewOperationContext(http.MethodGet, "/api/task-completion/")
	getCompletions.SetSummary("List completions for a task")
	getCompletions.AddRespStructure([]CompletionPayload{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getCompletions)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		json.NewEncoder(w).Encode(spec)
	}
}
