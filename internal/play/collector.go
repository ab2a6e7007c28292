package play

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cityplay/questclient/internal/quest"
)

// ErrNoAnswer means the collector has no usable value for the current
// task yet; nothing is sent to the platform in that case.
var ErrNoAnswer = errors.New("no answer entered")

// Locator produces the device position for location-answer tasks.
// The CLI prompts for coordinates; tests use a fixed position.
type Locator interface {
	CurrentPosition(ctx context.Context) (lat, lng float64, err error)
}

// FixedLocator always reports the same position.
type FixedLocator struct {
	Lat float64
	Lng float64
}

func (l FixedLocator) CurrentPosition(context.Context) (float64, float64, error) {
	return l.Lat, l.Lng, nil
}

// Collector gathers the pending answer for one task. It is keyed by the
// task's answer kind: setting a value of the wrong kind is an error, so
// a leftover image id can never be submitted for a text task. Reset is
// called on every task change and drops all transient input at once.
type Collector struct {
	kind     quest.AnswerKind
	text     string
	imageID  int // 0 = nothing chosen
	location *quest.LocationAnswer
}

// Reset rebinds the collector to a task kind and clears any pending
// input from the previous task.
func (c *Collector) Reset(kind quest.AnswerKind) {
	c.kind = kind
	c.text = ""
	c.imageID = 0
	c.location = nil
}

func (c *Collector) Kind() quest.AnswerKind { return c.kind }

func (c *Collector) SetText(text string) error {
	if c.kind != quest.AnswerText {
		return fmt.Errorf("task expects a %s answer, not text", c.kind)
	}
	c.text = text
	return nil
}

// ChooseImage selects one candidate image. Selection is exclusive: the
// previous choice is replaced, not accumulated.
func (c *Collector) ChooseImage(id int) error {
	if c.kind != quest.AnswerImage {
		return fmt.Errorf("task expects a %s answer, not an image choice", c.kind)
	}
	if id <= 0 {
		return fmt.Errorf("invalid image id %d", id)
	}
	c.imageID = id
	return nil
}

func (c *Collector) ChosenImage() int { return c.imageID }

// Capture queries the locator and stores the position as the pending
// answer.
func (c *Collector) Capture(ctx context.Context, loc Locator) error {
	if c.kind != quest.AnswerLocation {
		return fmt.Errorf("task expects a %s answer, not a location", c.kind)
	}
	if loc == nil {
		return errors.New("no locator available")
	}
	lat, lng, err := loc.CurrentPosition(ctx)
	if err != nil {
		return fmt.Errorf("reading position: %w", err)
	}
	c.location = &quest.LocationAnswer{Lat: lat, Lng: lng}
	return nil
}

func (c *Collector) Location() *quest.LocationAnswer { return c.location }

// HasAnswer reports whether Submit would have something to send.
// Whitespace-only text counts as absent.
func (c *Collector) HasAnswer() bool {
	switch c.kind {
	case quest.AnswerText:
		return strings.TrimSpace(c.text) != ""
	case quest.AnswerImage:
		return c.imageID > 0
	case quest.AnswerLocation:
		return c.location != nil
	}
	return false
}

// Answer packages the pending input as the tagged union for submission.
func (c *Collector) Answer() (quest.Answer, error) {
	if !c.HasAnswer() {
		return nil, ErrNoAnswer
	}
	switch c.kind {
	case quest.AnswerText:
		return quest.TextAnswer(c.text), nil
	case quest.AnswerImage:
		return quest.ImageAnswer(c.imageID), nil
	case quest.AnswerLocation:
		return *c.location, nil
	}
	return nil, fmt.Errorf("unknown answer kind %q", c.kind)
}
