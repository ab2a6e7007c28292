package devserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrDuplicate marks a second team registration for the same
	// (account, game) pair.
	ErrDuplicate = errors.New("already exists")
)

type Account struct {
	ID           int
	Username     string
	Email        string
	PasswordHash string
}

type ScenarioRow struct {
	ID          int
	Title       string
	Description string
	Image       string
	TaskIDs     []int
}

type GameRow struct {
	ID       int
	Title    string
	BeginsAt string
	EndsAt   string
	Scenario ScenarioRow
}

type TaskRow struct {
	ID            int
	ScenarioID    int
	Number        int
	Description   string
	Image         string
	Audio         string
	AnswerType    string
	CorrectAnswer string
}

type AnswerImageRow struct {
	ID        int
	TaskID    int
	Image     string
	IsCorrect bool
}

type TeamRow struct {
	ID            int
	GameID        int
	AccountID     int
	PlayersNumber int
}

type CompletionRow struct {
	ID     int
	TaskID int
	TeamID int
}

// Store is the dev server's SQLite-backed state. Ids are integer
// autoincrements to match the production platform's row ids.
type Store struct {
	db *sql.DB
}

// NewStore initializes the schema on the given database.
func NewStore(ctx context.Context, db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.init(ctx); err != nil {
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS scenarios (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			image TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			scenario_id INTEGER NOT NULL REFERENCES scenarios(id) ON DELETE CASCADE,
			number INTEGER NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			image TEXT NOT NULL DEFAULT '',
			audio TEXT NOT NULL DEFAULT '',
			answer_type TEXT NOT NULL,
			correct_answer TEXT NOT NULL DEFAULT '',
			UNIQUE (scenario_id, number)
		)`,
		`CREATE TABLE IF NOT EXISTS answer_images (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id INTEGER NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
			image TEXT NOT NULL DEFAULT '',
			is_correct INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS games (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			scenario_id INTEGER NOT NULL REFERENCES scenarios(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			beggining_date TEXT NOT NULL,
			end_date TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS teams (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			game_id INTEGER NOT NULL REFERENCES games(id) ON DELETE CASCADE,
			account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			players_number INTEGER NOT NULL DEFAULT 1,
			UNIQUE (game_id, account_id)
		)`,
		`CREATE TABLE IF NOT EXISTS task_completions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id INTEGER NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
			team_id INTEGER NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
			UNIQUE (task_id, team_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) AccountByUsername(ctx context.Context, username string) (Account, error) {
	var a Account
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash FROM accounts WHERE username = ?
	`, username).Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return a, ErrNotFound
	}
	return a, err
}

func (s *Store) AccountByID(ctx context.Context, id int) (Account, error) {
	var a Account
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash FROM accounts WHERE id = ?
	`, id).Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return a, ErrNotFound
	}
	return a, err
}

func (s *Store) CreateAccount(ctx context.Context, username, email, passwordHash string) (int, error) {
	var id int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO accounts (username, email, password_hash) VALUES (?, ?, ?)
		RETURNING id
	`, username, email, passwordHash).Scan(&id)
	return id, err
}

func (s *Store) ListGames(ctx context.Context) ([]GameRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.id, g.title, g.beggining_date, g.end_date,
		       sc.id, sc.title, sc.description, sc.image
		FROM games g
		JOIN scenarios sc ON sc.id = g.scenario_id
		ORDER BY g.beggining_date
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []GameRow
	for rows.Next() {
		var g GameRow
		if err := rows.Scan(&g.ID, &g.Title, &g.BeginsAt, &g.EndsAt,
			&g.Scenario.ID, &g.Scenario.Title, &g.Scenario.Description, &g.Scenario.Image); err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range games {
		ids, err := s.taskIDs(ctx, games[i].Scenario.ID)
		if err != nil {
			return nil, err
		}
		games[i].Scenario.TaskIDs = ids
	}
	return games, nil
}

func (s *Store) taskIDs(ctx context.Context, scenarioID int) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM tasks WHERE scenario_id = ? ORDER BY number
	`, scenarioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) CreateScenario(ctx context.Context, title, description, image string) (int, error) {
	var id int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO scenarios (title, description, image) VALUES (?, ?, ?)
		RETURNING id
	`, title, description, image).Scan(&id)
	return id, err
}

func (s *Store) CreateTask(ctx context.Context, t TaskRow) (int, error) {
	var id int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO tasks (scenario_id, number, description, image, audio, answer_type, correct_answer)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`, t.ScenarioID, t.Number, t.Description, t.Image, t.Audio, t.AnswerType, t.CorrectAnswer).Scan(&id)
	return id, err
}

func (s *Store) CreateAnswerImage(ctx context.Context, taskID int, image string, isCorrect bool) (int, error) {
	correct := 0
	if isCorrect {
		correct = 1
	}
	var id int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO answer_images (task_id, image, is_correct) VALUES (?, ?, ?)
		RETURNING id
	`, taskID, image, correct).Scan(&id)
	return id, err
}

func (s *Store) CreateGame(ctx context.Context, scenarioID int, title, beginsAt, endsAt string) (int, error) {
	var id int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO games (scenario_id, title, beggining_date, end_date)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`, scenarioID, title, beginsAt, endsAt).Scan(&id)
	return id, err
}

func (s *Store) CountAccounts(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n)
	return n, err
}

func (s *Store) TaskByID(ctx context.Context, id int) (TaskRow, error) {
	var t TaskRow
	err := s.db.QueryRowContext(ctx, `
		SELECT id, scenario_id, number, description, image, audio, answer_type, correct_answer
		FROM tasks WHERE id = ?
	`, id).Scan(&t.ID, &t.ScenarioID, &t.Number, &t.Description, &t.Image, &t.Audio, &t.AnswerType, &t.CorrectAnswer)
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrNotFound
	}
	return t, err
}

// TasksByScenario returns the scenario's tasks ordered by number.
func (s *Store) TasksByScenario(ctx context.Context, scenarioID int) ([]TaskRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scenario_id, number, description, image, audio, answer_type, correct_answer
		FROM tasks WHERE scenario_id = ? ORDER BY number
	`, scenarioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []TaskRow
	for rows.Next() {
		var t TaskRow
		if err := rows.Scan(&t.ID, &t.ScenarioID, &t.Number, &t.Description, &t.Image, &t.Audio, &t.AnswerType, &t.CorrectAnswer); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *Store) AnswerImages(ctx context.Context, taskID int) ([]AnswerImageRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, image, is_correct FROM answer_images
		WHERE task_id = ? ORDER BY id
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []AnswerImageRow
	for rows.Next() {
		var img AnswerImageRow
		var correct int
		if err := rows.Scan(&img.ID, &img.TaskID, &img.Image, &correct); err != nil {
			return nil, err
		}
		img.IsCorrect = correct == 1
		images = append(images, img)
	}
	return images, rows.Err()
}

// CreateTeam registers a team, or returns ErrDuplicate with the
// existing team's id when the account already joined the game.
func (s *Store) CreateTeam(ctx context.Context, gameID, accountID, playersNumber int) (int, error) {
	var id int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO teams (game_id, account_id, players_number)
		VALUES (?, ?, ?)
		ON CONFLICT (game_id, account_id) DO NOTHING
		RETURNING id
	`, gameID, accountID, playersNumber).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		existing, lookupErr := s.TeamForGame(ctx, gameID, accountID)
		if lookupErr != nil {
			return 0, lookupErr
		}
		return existing.ID, ErrDuplicate
	}
	return id, err
}

func (s *Store) TeamForGame(ctx context.Context, gameID, accountID int) (TeamRow, error) {
	var t TeamRow
	err := s.db.QueryRowContext(ctx, `
		SELECT id, game_id, account_id, players_number FROM teams
		WHERE game_id = ? AND account_id = ?
	`, gameID, accountID).Scan(&t.ID, &t.GameID, &t.AccountID, &t.PlayersNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrNotFound
	}
	return t, err
}

// CreateCompletion records that the team finished the task. A repeat
// for the same pair is collapsed silently — the client may double-post
// around a correct verdict.
func (s *Store) CreateCompletion(ctx context.Context, taskID, teamID int) (int, error) {
	var id int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO task_completions (task_id, team_id)
		VALUES (?, ?)
		ON CONFLICT (task_id, team_id) DO NOTHING
		RETURNING id
	`, taskID, teamID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		err = s.db.QueryRowContext(ctx, `
			SELECT id FROM task_completions WHERE task_id = ? AND team_id = ?
		`, taskID, teamID).Scan(&id)
	}
	return id, err
}

func (s *Store) CompletionsByTask(ctx context.Context, taskID int) ([]CompletionRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, team_id FROM task_completions
		WHERE task_id = ? ORDER BY id
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var completions []CompletionRow
	for rows.Next() {
		var c CompletionRow
		if err := rows.Scan(&c.ID, &c.TaskID, &c.TeamID); err != nil {
			return nil, err
		}
		completions = append(completions, c)
	}
	return completions, rows.Err()
}

// CompletedCount counts the team's completions within one scenario.
func (s *Store) CompletedCount(ctx context.Context, teamID, scenarioID int) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM task_completions tc
		JOIN tasks t ON t.id = tc.task_id
		WHERE tc.team_id = ? AND t.scenario_id = ?
	`, teamID, scenarioID).Scan(&n)
	return n, err
}
