package devserver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/cityplay/questclient/internal/quest"
)

// Demo credentials seeded into a fresh database.
const (
	DemoUsername = "demo"
	DemoPassword = "demo1234"
)

// Seed creates a demo account, a three-task scenario (text, image,
// location) and a running game. Idempotent: does nothing once any
// account exists.
func Seed(ctx context.Context, logger *slog.Logger, store *Store) error {
	n, err := store.CountAccounts(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if _, err := store.CreateAccount(ctx, DemoUsername, "demo@example.com", string(hash)); err != nil {
		return fmt.Errorf("seeding account: %w", err)
	}

	scenarioID, err := store.CreateScenario(ctx,
		"Old Town Walk",
		"A stroll through the old town: riddles, pictures and one spot to find.",
		"")
	if err != nil {
		return fmt.Errorf("seeding scenario: %w", err)
	}

	if _, err := store.CreateTask(ctx, TaskRow{
		ScenarioID:    scenarioID,
		Number:        1,
		Description:   "What is the name of the tower overlooking the main square?",
		AnswerType:    string(quest.AnswerText),
		CorrectAnswer: "clock tower",
	}); err != nil {
		return fmt.Errorf("seeding task 1: %w", err)
	}

	imageTaskID, err := store.CreateTask(ctx, TaskRow{
		ScenarioID:  scenarioID,
		Number:      2,
		Description: "Which of these gates stands at the end of Castle Street?",
		AnswerType:  string(quest.AnswerImage),
	})
	if err != nil {
		return fmt.Errorf("seeding task 2: %w", err)
	}
	for i, correct := range []bool{false, true, false} {
		img := fmt.Sprintf("/media/answers/gate-%d.jpg", i+1)
		if _, err := store.CreateAnswerImage(ctx, imageTaskID, img, correct); err != nil {
			return fmt.Errorf("seeding answer image: %w", err)
		}
	}

	if _, err := store.CreateTask(ctx, TaskRow{
		ScenarioID:    scenarioID,
		Number:        3,
		Description:   "Walk to the fountain in the park and confirm your position.",
		AnswerType:    string(quest.AnswerLocation),
		CorrectAnswer: quest.LocationAnswer{Lat: 52.2297, Lng: 21.0122}.Value(),
	}); err != nil {
		return fmt.Errorf("seeding task 3: %w", err)
	}

	now := time.Now().UTC()
	if _, err := store.CreateGame(ctx, scenarioID, "Old Town Walk — open run",
		now.Format(time.RFC3339), now.Add(30*24*time.Hour).Format(time.RFC3339)); err != nil {
		return fmt.Errorf("seeding game: %w", err)
	}

	logger.Info("seeded demo data", "username", DemoUsername)
	return nil
}
