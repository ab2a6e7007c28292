// questplay is a terminal client for the city-game platform: log in,
// pick a game, register a team and walk through the scenario's tasks.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/cityplay/questclient/internal/api"
	"github.com/cityplay/questclient/internal/config"
	"github.com/cityplay/questclient/internal/play"
	"github.com/cityplay/questclient/internal/quest"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type app struct {
	cfg     *config.CLI
	api     *api.Client
	tokens  *api.FileTokens
	locator play.Locator
	in      *bufio.Scanner
	out     io.Writer
	log     *slog.Logger
}

func run(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	godotenv.Load()

	cfg, err := config.LoadCLI()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	tokens := api.NewFileTokens(cfg.TokenFile)
	client, err := api.New(cfg.APIBase,
		api.WithTokenSource(tokens),
		api.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	a := &app{
		cfg:    cfg,
		api:    client,
		tokens: tokens,
		in:     bufio.NewScanner(stdin),
		out:    stdout,
		log:    logger,
	}
	if cfg.Lat != nil && cfg.Lng != nil {
		a.locator = play.FixedLocator{Lat: *cfg.Lat, Lng: *cfg.Lng}
	} else {
		a.locator = promptLocator{a}
	}

	return a.mainLoop(ctx)
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// prompt prints the prompt and reads one line; ok is false on EOF or a
// cancelled context.
func (a *app) prompt(ctx context.Context, p string) (string, bool) {
	if ctx.Err() != nil {
		return "", false
	}
	a.printf("%s", p)
	if !a.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(a.in.Text()), true
}

func (a *app) mainLoop(ctx context.Context) error {
	a.printf("questplay — %s\n", a.cfg.APIBase)
	a.printf("commands: login, whoami, games, play <number>, quit\n")

	var games []quest.Game
	for {
		line, ok := a.prompt(ctx, "> ")
		if !ok {
			return nil
		}
		cmd, arg, _ := strings.Cut(line, " ")

		switch cmd {
		case "":
		case "quit", "exit":
			return nil

		case "login":
			if err := a.login(ctx); err != nil {
				a.printf("login failed: %v\n", err)
			}

		case "whoami":
			user, err := a.api.Me(ctx)
			if err != nil {
				a.printf("not logged in: %v\n", err)
				continue
			}
			a.printf("%s <%s>\n", user.Username, user.Email)

		case "games":
			var err error
			games, err = a.api.Games(ctx)
			if err != nil {
				a.printf("listing games failed: %v\n", err)
				continue
			}
			if len(games) == 0 {
				a.printf("no games scheduled\n")
			}
			for i, g := range games {
				a.printf("%2d. %s — %s (%s to %s)\n", i+1, g.Title, g.Scenario.Title,
					g.BeginsAt.Format("2006-01-02 15:04"), g.EndsAt.Format("2006-01-02 15:04"))
			}

		case "play":
			n, err := strconv.Atoi(arg)
			if err != nil || n < 1 || n > len(games) {
				a.printf("usage: play <number> (run 'games' first)\n")
				continue
			}
			if err := a.playGame(ctx, games[n-1]); err != nil {
				a.printf("%v\n", err)
			}

		default:
			a.printf("unknown command %q\n", cmd)
		}
	}
}

func (a *app) login(ctx context.Context) error {
	username, ok := a.prompt(ctx, "username: ")
	if !ok || username == "" {
		return fmt.Errorf("username is required")
	}
	password, ok := a.prompt(ctx, "password: ")
	if !ok || password == "" {
		return fmt.Errorf("password is required")
	}

	pair, err := a.api.Login(ctx, username, password)
	if err != nil {
		return err
	}
	if err := a.tokens.Set(pair); err != nil {
		return fmt.Errorf("storing session: %w", err)
	}
	a.printf("logged in as %s\n", username)
	return nil
}

// promptLocator asks the player to type their position. A terminal has
// no geolocation device; the coordinates come from the player's phone
// or map.
type promptLocator struct {
	a *app
}

func (p promptLocator) CurrentPosition(ctx context.Context) (float64, float64, error) {
	line, ok := p.a.prompt(ctx, "your position (lat, lng): ")
	if !ok {
		return 0, 0, fmt.Errorf("no position entered")
	}
	loc, err := quest.ParseCoordinates(line)
	if err != nil {
		return 0, 0, err
	}
	return loc.Lat, loc.Lng, nil
}
