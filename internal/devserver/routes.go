package devserver

import (
	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"
)

func addRoutes(r chi.Router, store *Store, tokens *TokenIssuer) {
	r.Get("/healthz", handleHealth(store))
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Game Platform API (dev)", "/openapi.json", "/docs"))

	// djoser-compatible auth surface.
	r.Post("/auth/jwt/create/", handleLogin(store, tokens))
	r.Post("/auth/jwt/refresh/", handleRefresh(tokens))
	r.Get("/auth/users/me/", handleMe(store, tokens))

	r.Route("/api", func(r chi.Router) {
		r.Get("/games/", handleListGames(store))

		r.Post("/teams/", handleRegisterTeam(store, tokens))
		r.Get("/teams/is-registered-to-game", handleIsRegistered(store, tokens))

		r.Get("/tasks/check-answer/", handleCheckAnswer(store))
		r.Get("/answerimages/", handleAnswerImages(store))

		r.Get("/task-completion/current-task/", handleCurrentTask(store))
		r.Post("/task-completion/", handleCreateCompletion(store, tokens))
		r.Get("/task-completion/", handleListCompletions(store))
	})
}
