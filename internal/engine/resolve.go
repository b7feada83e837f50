package engine

import (
	"context"
	"errors"
	"fmt"

	appLog "calnorm/internal/log"
	"calnorm/internal/model"
	"calnorm/internal/prompt"
	"calnorm/internal/rules"
)

// Labels are the field placeholders shown for each request kind.
type Labels struct {
	TitleName        string
	TitleDescription string
	LocationAddress  string
	LocationGeo      string
}

// DefaultLabels returns the German field placeholders.
func DefaultLabels() Labels {
	return Labels{
		TitleName:        "Name des Events",
		TitleDescription: "Beschreibung des Events",
		LocationAddress:  "Adresse des Ortes",
		LocationGeo:      "Geo-Koordinaten",
	}
}

// Coordinator turns unknown values into rules by asking a Prompter, one
// request at a time in discovery order.
type Coordinator struct {
	Prompter prompt.Prompter
	Labels   Labels
}

func NewCoordinator(p prompt.Prompter, labels Labels) *Coordinator {
	return &Coordinator{Prompter: p, Labels: labels}
}

// ResolveTitles asks for a title rule for every value of set. Rules are
// committed to store only after all of them were answered; on abandonment
// nothing is written and the error wraps ErrAborted. It returns the number
// of prompts answered.
func (c *Coordinator) ResolveTitles(ctx context.Context, set UnknownSet, store *rules.Store) (int, error) {
	staged := make(map[string]model.TitleRule, set.Len())
	placeholders := [2]string{c.Labels.TitleName, c.Labels.TitleDescription}

	for _, title := range set.Values {
		text := title + ": " + set.Examples[title]
		values, err := c.ask(ctx, prompt.NewRequest(prompt.KindTitle, title, text, placeholders))
		if err != nil {
			return len(staged), err
		}
		staged[title] = model.TitleRule{Title: values[0], Description: values[1]}
	}

	for k, v := range staged {
		store.SetTitle(k, v)
	}
	return len(staged), nil
}

// ResolveLocations is ResolveTitles for location rules.
func (c *Coordinator) ResolveLocations(ctx context.Context, set UnknownSet, store *rules.Store) (int, error) {
	staged := make(map[string]model.LocationRule, set.Len())
	placeholders := [2]string{c.Labels.LocationAddress, c.Labels.LocationGeo}

	for _, loc := range set.Values {
		values, err := c.ask(ctx, prompt.NewRequest(prompt.KindLocation, loc, loc, placeholders))
		if err != nil {
			return len(staged), err
		}
		staged[loc] = model.LocationRule{Location: values[0], Geo: values[1]}
	}

	for k, v := range staged {
		store.SetLocation(k, v)
	}
	return len(staged), nil
}

// ask issues one request and blocks until it is answered. The next request
// is only built after this returns.
func (c *Coordinator) ask(ctx context.Context, req prompt.Request) ([2]string, error) {
	if err := ctx.Err(); err != nil {
		return [2]string{}, fmt.Errorf("%w: %w", ErrAborted, err)
	}

	appLog.Info("prompting for unknown value", "kind", req.Kind, "key", req.Key)
	resp, err := c.Prompter.Ask(ctx, req)
	if err != nil {
		if errors.Is(err, prompt.ErrAbandoned) || errors.Is(err, context.Canceled) || errors.Is(err, prompt.ErrClosed) {
			appLog.Info("prompt abandoned", "kind", req.Kind, "key", req.Key)
			return [2]string{}, fmt.Errorf("%w: %s %q: %w", ErrAborted, req.Kind, req.Key, err)
		}
		return [2]string{}, fmt.Errorf("prompt %s %q: %w", req.Kind, req.Key, err)
	}
	return resp.Values, nil
}
