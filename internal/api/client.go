// Package api is a typed client for the game-platform REST API.
//
// Every request carries the stored access token; a 401 triggers a
// silent token refresh and a single retry of the original request.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/cityplay/questclient/internal/quest"
)

// The platform does not bound request duration itself; a hung call
// would otherwise leave the play UI disabled forever.
const defaultTimeout = 30 * time.Second

type Client struct {
	base      *url.URL
	http      *http.Client
	tokens    TokenSource
	log       *slog.Logger
	refreshMu sync.Mutex
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base url %q: %w", baseURL, err)
	}
	c := &Client{
		base: u,
		http: &http.Client{Timeout: defaultTimeout},
		log:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Login trades credentials for a token pair. The caller decides where
// the pair is stored; Login does not touch the client's TokenSource.
func (c *Client) Login(ctx context.Context, username, password string) (TokenPair, error) {
	var pair TokenPair
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/jwt/create/", nil, body, &pair); err != nil {
		return TokenPair{}, fmt.Errorf("logging in: %w", err)
	}
	return pair, nil
}

// Me returns the identity behind the stored session.
func (c *Client) Me(ctx context.Context) (User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/auth/users/me/", nil, nil, &u); err != nil {
		return User{}, err
	}
	return u, nil
}

type scenarioDTO struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Tasks       []int  `json:"tasks"`
}

type gameDTO struct {
	ID       int         `json:"id"`
	Title    string      `json:"title"`
	Scenario scenarioDTO `json:"scenario"`
	// The platform spells the field this way; keep it for wire
	// compatibility.
	BeginsAt time.Time `json:"beggining_date"`
	EndsAt   time.Time `json:"end_date"`
}

func (d gameDTO) domain() quest.Game {
	return quest.Game{
		ID:    d.ID,
		Title: d.Title,
		Scenario: quest.Scenario{
			ID:          d.Scenario.ID,
			Title:       d.Scenario.Title,
			Description: d.Scenario.Description,
			Image:       d.Scenario.Image,
			TaskIDs:     d.Scenario.Tasks,
		},
		BeginsAt: d.BeginsAt,
		EndsAt:   d.EndsAt,
	}
}

// Games lists the scheduled games with their scenarios.
func (c *Client) Games(ctx context.Context) ([]quest.Game, error) {
	var dtos []gameDTO
	if err := c.do(ctx, http.MethodGet, "/api/games/", nil, nil, &dtos); err != nil {
		return nil, fmt.Errorf("listing games: %w", err)
	}
	games := make([]quest.Game, len(dtos))
	for i, d := range dtos {
		games[i] = d.domain()
	}
	return games, nil
}

// RegisterResult is the outcome of a team registration attempt.
type RegisterResult struct {
	TeamID int
	// Resumed is true when the user already had a team for this game
	// and the existing one was returned instead of a new record.
	Resumed bool
}

// RegisterTeam creates a team for the current user in the given game.
// A duplicate registration is recovered, not surfaced: the platform
// answers 400 with the existing team embedded, and that team's id is
// returned with Resumed set. A 500 on this route is the platform's way
// of signalling a missing login and maps to ErrAuthRequired.
func (c *Client) RegisterTeam(ctx context.Context, gameID, playersNumber int) (RegisterResult, error) {
	body := map[string]int{"game": gameID, "players_number": playersNumber}
	var created struct {
		ID int `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, "/api/teams/", nil, body, &created)
	if err == nil {
		return RegisterResult{TeamID: created.ID}, nil
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == http.StatusBadRequest:
			if teamID, ok := conflictTeamID(apiErr.Body); ok {
				return RegisterResult{TeamID: teamID, Resumed: true}, nil
			}
		case apiErr.Status == http.StatusInternalServerError:
			return RegisterResult{}, fmt.Errorf("registering team: %w",
				statusError(http.StatusUnauthorized, "log in to join a game"))
		}
	}
	return RegisterResult{}, fmt.Errorf("registering team: %w", err)
}

// conflictTeamID extracts {"team": {"id": N}} from a duplicate-
// registration response.
func conflictTeamID(body []byte) (int, bool) {
	var payload struct {
		Team struct {
			ID int `json:"id"`
		} `json:"team"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Team.ID == 0 {
		return 0, false
	}
	return payload.Team.ID, true
}

// ResumeTeam looks up the current user's existing team for a game.
// ErrNotFound means the user has not registered yet; the production
// platform reports that case on this route with a 500, so both map the
// same way.
func (c *Client) ResumeTeam(ctx context.Context, gameID int) (int, error) {
	query := url.Values{"game": {strconv.Itoa(gameID)}}
	var resp struct {
		Team struct {
			ID int `json:"id"`
		} `json:"team"`
	}
	err := c.do(ctx, http.MethodGet, "/api/teams/is-registered-to-game", query, nil, &resp)
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusInternalServerError {
			return 0, fmt.Errorf("resuming team: %w", statusError(http.StatusNotFound, "not registered"))
		}
		return 0, fmt.Errorf("resuming team: %w", err)
	}
	return resp.Team.ID, nil
}

type taskDTO struct {
	ID          int              `json:"id"`
	Scenario    int              `json:"scenario"`
	Number      int              `json:"number"`
	Description string           `json:"description"`
	Image       string           `json:"image"`
	Audio       string           `json:"audio"`
	AnswerType  quest.AnswerKind `json:"answer_type"`
}

func (d taskDTO) domain() *quest.Task {
	return &quest.Task{
		ID:          d.ID,
		ScenarioID:  d.Scenario,
		Number:      d.Number,
		Description: d.Description,
		Image:       d.Image,
		Audio:       d.Audio,
		AnswerKind:  d.AnswerType,
	}
}

// CurrentTask asks the platform for the team's active task, completed
// fraction and ended flag. This is the single source of truth for the
// play position.
func (c *Client) CurrentTask(ctx context.Context, teamID, scenarioID int) (quest.Progress, error) {
	query := url.Values{
		"team":     {strconv.Itoa(teamID)},
		"scenario": {strconv.Itoa(scenarioID)},
	}
	var resp struct {
		CurrentTask *taskDTO `json:"current_task"`
		Percentage  float64  `json:"percentage"`
		Ended       bool     `json:"ended"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/task-completion/current-task/", query, nil, &resp); err != nil {
		return quest.Progress{}, fmt.Errorf("fetching current task: %w", err)
	}
	p := quest.Progress{Percentage: resp.Percentage, Ended: resp.Ended}
	if resp.CurrentTask != nil {
		p.Task = resp.CurrentTask.domain()
	}
	return p, nil
}

// CheckAnswer submits an answer candidate for server-side validation
// and returns the verdict. Nothing is recorded by this call.
func (c *Client) CheckAnswer(ctx context.Context, taskID int, answer quest.Answer) (bool, error) {
	query := url.Values{
		"answer_type": {string(answer.Kind())},
		"answer":      {answer.Value()},
		"task_id":     {strconv.Itoa(taskID)},
	}
	var resp struct {
		IsCorrect bool `json:"is_correct"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/tasks/check-answer/", query, nil, &resp); err != nil {
		return false, fmt.Errorf("checking answer: %w", err)
	}
	return resp.IsCorrect, nil
}

// RecordCompletion asserts that the team finished the task. Duplicate
// records for the same (task, team) are the backend's to reject or
// collapse.
func (c *Client) RecordCompletion(ctx context.Context, taskID, teamID int) error {
	body := map[string]int{"task": taskID, "team": teamID}
	if err := c.do(ctx, http.MethodPost, "/api/task-completion/", nil, body, nil); err != nil {
		return fmt.Errorf("recording completion: %w", err)
	}
	return nil
}

// CompletionCount reports how many teams have completed the task — the
// social-proof counter next to the current task.
func (c *Client) CompletionCount(ctx context.Context, taskID int) (int, error) {
	query := url.Values{"task": {strconv.Itoa(taskID)}}
	var completions []json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/task-completion/", query, nil, &completions); err != nil {
		return 0, fmt.Errorf("fetching completion count: %w", err)
	}
	return len(completions), nil
}

// AnswerImages fetches the candidate choices for an image-answer task,
// in server order.
func (c *Client) AnswerImages(ctx context.Context, taskID int) ([]quest.AnswerOption, error) {
	query := url.Values{"task_id": {strconv.Itoa(taskID)}}
	var dtos []struct {
		ID    int    `json:"id"`
		Image string `json:"image"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/answerimages/", query, nil, &dtos); err != nil {
		return nil, fmt.Errorf("fetching answer images: %w", err)
	}
	options := make([]quest.AnswerOption, len(dtos))
	for i, d := range dtos {
		options[i] = quest.AnswerOption{ID: d.ID, ImageURL: d.Image}
	}
	return options, nil
}
