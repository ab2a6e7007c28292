// Package play owns the game-progression flow: registering or resuming
// a team for a game, tracking the server-reported current task, and
// submitting answers.
//
// The server is the source of truth for the play position. The session
// only caches the last CurrentTask result and re-fetches it after every
// state-changing action; it never advances on a local counter.
package play

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cityplay/questclient/internal/api"
	"github.com/cityplay/questclient/internal/quest"
)

// State is the session's position in the play flow.
type State int

const (
	// StateUnregistered: no team yet; waiting for a manual join.
	StateUnregistered State = iota
	// StateLoading: team known, current task not fetched yet.
	StateLoading
	// StatePlaying: a task is displayed and answerable.
	StatePlaying
	// StateEnded: the scenario is exhausted. Terminal.
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StateEnded:
		return "ended"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var (
	// ErrNotPlaying is returned for actions that need a displayed task.
	ErrNotPlaying = errors.New("no task is active")
	// ErrEnded is returned for submissions after the game is over.
	ErrEnded = errors.New("game has ended")
)

// Session drives one team's run through one game.
//
// All methods take the session lock for their full duration, network
// round trips included, so at most one submission is ever in flight and
// a stray concurrent call waits instead of interleaving.
type Session struct {
	api     *api.Client
	log     *slog.Logger
	game    quest.Game
	locator Locator

	mu        sync.Mutex
	state     State
	teamID    int
	task      *quest.Task
	percent   int // rounded 0..100, never decreases within the session
	choices   []quest.AnswerOption
	completed int // teams that finished the current task
	collector Collector
	notice    string
}

type Options struct {
	Locator Locator
	Logger  *slog.Logger
}

func NewSession(client *api.Client, game quest.Game, opts Options) *Session {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Session{
		api:     client,
		log:     log,
		game:    game,
		locator: opts.Locator,
		state:   StateUnregistered,
	}
}

// Snapshot is the displayable session state.
type Snapshot struct {
	State       State
	TeamID      int
	Task        *quest.Task
	Percent     int
	Choices     []quest.AnswerOption
	Completions int
	Notice      string
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		State:       s.state,
		TeamID:      s.teamID,
		Task:        s.task,
		Percent:     s.percent,
		Completions: s.completed,
		Notice:      s.notice,
	}
	snap.Choices = append(snap.Choices, s.choices...)
	return snap
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) TeamID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.teamID
}

// Enter runs the automatic resume attempt that happens once per
// game-entry. If the user already has a team the session jumps straight
// into the play loop; otherwise it stays unregistered and waits for
// Join. Runs at most once; a game is re-entered with a fresh Session.
func (s *Session) Enter(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUnregistered {
		return fmt.Errorf("enter: session already %s", s.state)
	}

	teamID, err := s.api.ResumeTeam(ctx, s.game.ID)
	if errors.Is(err, api.ErrNotFound) {
		s.notice = "Register for the game with your team size to play."
		return nil
	}
	if err != nil {
		return fmt.Errorf("enter: %w", err)
	}

	s.log.Info("resumed existing team", "game", s.game.ID, "team", teamID)
	s.adoptTeam(teamID, "Welcome back!")
	return s.reload(ctx)
}

// Join registers a new team with the given size. A duplicate
// registration is resumed transparently (the API layer recovers the
// existing team id from the conflict response).
func (s *Session) Join(ctx context.Context, playersNumber int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUnregistered {
		return fmt.Errorf("join: session already %s", s.state)
	}
	if playersNumber <= 0 {
		return errors.New("join: team size must be a positive number")
	}

	res, err := s.api.RegisterTeam(ctx, s.game.ID, playersNumber)
	if err != nil {
		if errors.Is(err, api.ErrAuthRequired) {
			s.notice = "Log in to join the game."
		} else {
			s.notice = "Could not join the game, try again."
		}
		return fmt.Errorf("join: %w", err)
	}

	if res.Resumed {
		s.log.Info("already registered, resuming team", "game", s.game.ID, "team", res.TeamID)
		s.adoptTeam(res.TeamID, "You already joined this game.")
	} else {
		s.log.Info("registered new team", "game", s.game.ID, "team", res.TeamID, "players", playersNumber)
		s.adoptTeam(res.TeamID, "Registered for the game.")
	}
	return s.reload(ctx)
}

// adoptTeam stores the team id and moves to loading. Written once per
// session; every later read goes through the same lock.
func (s *Session) adoptTeam(teamID int, notice string) {
	s.teamID = teamID
	s.state = StateLoading
	s.notice = notice
}

// Submit validates the pending answer with the platform. On a correct
// verdict it records the completion and re-fetches the current task, in
// that order; on an incorrect one the task stays displayed with a
// notice and, for image tasks, a refreshed choice set.
//
// The returned bool is the verdict. An error means the session state is
// unchanged and the action can be retried.
func (s *Session) Submit(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateEnded:
		return false, ErrEnded
	case StatePlaying:
	default:
		return false, ErrNotPlaying
	}

	answer, err := s.collector.Answer()
	if err != nil {
		return false, err
	}

	correct, err := s.api.CheckAnswer(ctx, s.task.ID, answer)
	if err != nil {
		return false, fmt.Errorf("submit: %w", err)
	}

	if !correct {
		s.notice = "Incorrect answer."
		// The choice set may be reshuffled per attempt; refresh it so
		// the displayed ids stay valid.
		if s.task.AnswerKind == quest.AnswerImage {
			if choices, err := s.api.AnswerImages(ctx, s.task.ID); err != nil {
				s.log.Warn("refreshing answer images", "task", s.task.ID, "err", err)
			} else {
				s.choices = choices
			}
		}
		return false, nil
	}

	// Verdict first, completion second, re-fetch last. The re-fetched
	// percentage and ended flag must already include this task.
	if err := s.api.RecordCompletion(ctx, s.task.ID, s.teamID); err != nil {
		s.log.Warn("recording completion", "task", s.task.ID, "team", s.teamID, "err", err)
	}

	s.notice = ""
	if err := s.reload(ctx); err != nil {
		// Keep showing the just-answered task; Retry re-fetches.
		return true, err
	}
	return true, nil
}

// Retry re-fetches the current task after a transient reload failure.
func (s *Session) Retry(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateUnregistered:
		return ErrNotPlaying
	case StateEnded:
		return nil
	}
	return s.reload(ctx)
}

// reload pulls the authoritative play position and reconciles the local
// cache with it. On error nothing local changes. Callers hold s.mu.
func (s *Session) reload(ctx context.Context) error {
	progress, err := s.api.CurrentTask(ctx, s.teamID, s.game.Scenario.ID)
	if err != nil {
		return fmt.Errorf("loading current task: %w", err)
	}

	if pct := int(math.Round(progress.Percentage * 100)); pct >= s.percent {
		s.percent = pct
	} else {
		s.log.Warn("server reported lower completion, keeping previous",
			"got", pct, "have", s.percent)
	}

	if progress.Ended || progress.Task == nil {
		s.state = StateEnded
		s.task = nil
		s.choices = nil
		s.collector.Reset("")
		return nil
	}

	prev := s.task
	s.task = progress.Task
	s.state = StatePlaying
	if prev == nil || prev.ID != progress.Task.ID {
		s.onTaskChanged(ctx)
	}
	return nil
}

// onTaskChanged resets the answer collector and loads the per-task
// extras: the candidate images for image tasks and the social-proof
// completion counter. Both fetches are independent of each other and of
// rendering, so they run concurrently; failures only log, the task is
// playable without them. Callers hold s.mu.
func (s *Session) onTaskChanged(ctx context.Context) {
	task := s.task
	s.collector.Reset(task.AnswerKind)
	s.choices = nil
	s.completed = 0

	g, gctx := errgroup.WithContext(ctx)
	if task.AnswerKind == quest.AnswerImage {
		g.Go(func() error {
			choices, err := s.api.AnswerImages(gctx, task.ID)
			if err != nil {
				s.log.Warn("fetching answer images", "task", task.ID, "err", err)
				return nil
			}
			s.choices = choices
			return nil
		})
	}
	g.Go(func() error {
		count, err := s.api.CompletionCount(gctx, task.ID)
		if err != nil {
			s.log.Warn("fetching completion count", "task", task.ID, "err", err)
			return nil
		}
		s.completed = count
		return nil
	})
	g.Wait()
}

// AnswerText stores a text answer for the current task.
func (s *Session) AnswerText(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePlaying {
		return ErrNotPlaying
	}
	return s.collector.SetText(text)
}

// ChooseImage selects one of the current task's candidate images,
// replacing any earlier choice.
func (s *Session) ChooseImage(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePlaying {
		return ErrNotPlaying
	}
	for _, c := range s.choices {
		if c.ID == id {
			return s.collector.ChooseImage(id)
		}
	}
	return fmt.Errorf("image %d is not one of the current choices", id)
}

// CaptureLocation reads the device position into the pending answer.
func (s *Session) CaptureLocation(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePlaying {
		return ErrNotPlaying
	}
	return s.collector.Capture(ctx, s.locator)
}

// HasAnswer reports whether the submit action should be enabled.
func (s *Session) HasAnswer() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StatePlaying && s.collector.HasAnswer()
}
