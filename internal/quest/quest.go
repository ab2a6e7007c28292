// Package quest defines the core domain types of the game platform.
// It has zero external dependencies — everything here is pure Go.
package quest

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AnswerKind selects how a task is answered and validated.
type AnswerKind string

const (
	AnswerText     AnswerKind = "text"
	AnswerImage    AnswerKind = "image"
	AnswerLocation AnswerKind = "location"
)

// Valid reports whether k is one of the three kinds the platform knows.
func (k AnswerKind) Valid() bool {
	switch k {
	case AnswerText, AnswerImage, AnswerLocation:
		return true
	}
	return false
}

type Scenario struct {
	ID          int
	Title       string
	Description string
	Image       string
	TaskIDs     []int
}

// Game is a time-boxed activation of a Scenario that teams can join.
type Game struct {
	ID       int
	Title    string
	Scenario Scenario
	BeginsAt time.Time
	EndsAt   time.Time
}

// Task is one step of a Scenario. Number is 1-based and contiguous
// within the scenario.
type Task struct {
	ID          int
	ScenarioID  int
	Number      int
	Description string
	Image       string
	Audio       string
	AnswerKind  AnswerKind
}

// Team binds the current user to one Game. The platform enforces
// uniqueness per (user, game).
type Team struct {
	ID            int
	GameID        int
	PlayersNumber int
}

// AnswerOption is one candidate choice for an image-answer task.
type AnswerOption struct {
	ID       int
	ImageURL string
}

// Progress is the server-authoritative play position for a team:
// the active task (nil once the scenario is exhausted), the completed
// fraction in [0,1], and whether the game is over.
type Progress struct {
	Task       *Task
	Percentage float64
	Ended      bool
}

// Answer is the value submitted for a task, tagged by kind so a text
// string, an image id, and a coordinate pair cannot be confused.
type Answer interface {
	Kind() AnswerKind
	// Value is the wire form the check-answer endpoint expects.
	Value() string
}

type TextAnswer string

func (TextAnswer) Kind() AnswerKind { return AnswerText }
func (a TextAnswer) Value() string  { return string(a) }

// ImageAnswer is the id of the chosen AnswerOption.
type ImageAnswer int

func (ImageAnswer) Kind() AnswerKind { return AnswerImage }
func (a ImageAnswer) Value() string  { return strconv.Itoa(int(a)) }

type LocationAnswer struct {
	Lat float64
	Lng float64
}

func (LocationAnswer) Kind() AnswerKind { return AnswerLocation }

// Value renders the pair the way the platform stores it: "lat, lng".
func (a LocationAnswer) Value() string {
	return strconv.FormatFloat(a.Lat, 'f', -1, 64) + ", " + strconv.FormatFloat(a.Lng, 'f', -1, 64)
}

// ParseCoordinates parses a "lat, lng" pair. Whitespace around either
// component is ignored.
func ParseCoordinates(s string) (LocationAnswer, error) {
	lat, lng, ok := strings.Cut(s, ",")
	if !ok {
		return LocationAnswer{}, fmt.Errorf("coordinates %q: want \"lat, lng\"", s)
	}
	latF, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return LocationAnswer{}, fmt.Errorf("latitude in %q: %w", s, err)
	}
	lngF, err := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if err != nil {
		return LocationAnswer{}, fmt.Errorf("longitude in %q: %w", s, err)
	}
	return LocationAnswer{Lat: latF, Lng: lngF}, nil
}
