package main

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/cityplay/questclient/internal/play"
	"github.com/cityplay/questclient/internal/quest"
)

// playGame runs one session of the game loop until the player leaves or
// the scenario ends.
func (a *app) playGame(ctx context.Context, game quest.Game) error {
	session := play.NewSession(a.api, game, play.Options{
		Locator: a.locator,
		Logger:  a.log,
	})

	a.printf("\n=== %s ===\n%s\n\n", game.Title, game.Scenario.Description)

	if err := session.Enter(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		a.printf("could not enter the game: %v\n", err)
	}

	for {
		snap := session.Snapshot()
		if snap.Notice != "" {
			a.printf("%s\n", snap.Notice)
		}

		switch snap.State {
		case play.StateUnregistered:
			line, ok := a.prompt(ctx, "team size (or 'back'): ")
			if !ok || line == "back" {
				return nil
			}
			size, err := strconv.Atoi(line)
			if err != nil {
				a.printf("enter a number\n")
				continue
			}
			if err := session.Join(ctx, size); err != nil {
				a.printf("join failed: %v\n", err)
			}

		case play.StateLoading:
			if err := session.Retry(ctx); err != nil {
				a.printf("loading failed: %v\n", err)
				if line, ok := a.prompt(ctx, "press enter to retry, or 'back': "); !ok || line == "back" {
					return nil
				}
			}

		case play.StatePlaying:
			a.renderTask(snap)
			if done, err := a.taskPrompt(ctx, session, snap); done || err != nil {
				return err
			}

		case play.StateEnded:
			a.printf("\nCongratulations! You finished the whole game (%d%%). Great job!\n\n", snap.Percent)
			return nil
		}
	}
}

func (a *app) renderTask(snap play.Snapshot) {
	task := snap.Task
	a.printf("\n--- Task %d ---  [%d%% done, %d teams finished this one]\n",
		task.Number, snap.Percent, snap.Completions)
	a.printf("%s\n", task.Description)
	if task.Image != "" {
		a.printf("image: %s\n", task.Image)
	}
	if task.Audio != "" {
		a.printf("audio: %s\n", task.Audio)
	}
	switch task.AnswerKind {
	case quest.AnswerImage:
		for i, c := range snap.Choices {
			a.printf("  choice %d: %s (id %d)\n", i+1, c.ImageURL, c.ID)
		}
		a.printf("commands: choose <n>, submit, back\n")
	case quest.AnswerLocation:
		a.printf("commands: locate, submit, back\n")
	default:
		a.printf("commands: answer <text>, submit, back\n")
	}
}

// taskPrompt handles input for one displayed task. Returns done=true
// when the player leaves the game view.
func (a *app) taskPrompt(ctx context.Context, session *play.Session, snap play.Snapshot) (bool, error) {
	for {
		line, ok := a.prompt(ctx, "task> ")
		if !ok {
			return true, nil
		}
		cmd, arg, _ := strings.Cut(line, " ")

		switch cmd {
		case "back":
			return true, nil

		case "answer":
			if err := session.AnswerText(arg); err != nil {
				a.printf("%v\n", err)
			}

		case "choose":
			n, err := strconv.Atoi(arg)
			if err != nil || n < 1 || n > len(snap.Choices) {
				a.printf("usage: choose <1..%d>\n", len(snap.Choices))
				continue
			}
			if err := session.ChooseImage(snap.Choices[n-1].ID); err != nil {
				a.printf("%v\n", err)
			}

		case "locate":
			if err := session.CaptureLocation(ctx); err != nil {
				a.printf("%v\n", err)
				continue
			}
			a.printf("position captured\n")

		case "submit":
			if !session.HasAnswer() {
				a.printf("enter an answer first\n")
				continue
			}
			correct, err := session.Submit(ctx)
			if err != nil {
				a.printf("submit failed: %v\n", err)
				continue
			}
			if correct {
				a.printf("Correct!\n")
			} else {
				a.printf("Incorrect answer, try again.\n")
			}
			// Re-render from the refreshed session state.
			return false, nil

		case "":
			return false, nil

		default:
			a.printf("unknown command %q\n", cmd)
		}
	}
}
