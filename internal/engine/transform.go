package engine

import (
	"calnorm/internal/model"
	"calnorm/internal/prompt"
	"calnorm/internal/rules"
)

// ApplyTitles rewrites title and description of every event from its title
// rule and drops events whose rule suppresses them. It returns new calendars
// and leaves cals untouched. Every non-empty title key must have a rule;
// events without a title pass through unchanged.
func ApplyTitles(cals []model.Calendar, store *rules.Store) ([]model.Calendar, error) {
	out := make([]model.Calendar, len(cals))
	for i, cal := range cals {
		events := make([]model.Event, 0, len(cal.Events))
		for _, ev := range cal.Events {
			key := ev.TitleKey()
			if key == "" {
				events = append(events, ev)
				continue
			}
			rule, ok := store.Title(key)
			if !ok {
				return nil, &MissingRuleError{Kind: prompt.KindTitle, Key: key}
			}
			if rule.Suppressed() {
				continue
			}
			ev.SourceTitle = key
			ev.Title = rule.Title
			ev.Description = rule.Description
			events = append(events, ev)
		}
		out[i] = model.Calendar{Events: events}
	}
	return out, nil
}

// ApplyLocations rewrites location and geo of every event that has a
// location key. Events without one pass through unchanged.
func ApplyLocations(cals []model.Calendar, store *rules.Store) ([]model.Calendar, error) {
	out := make([]model.Calendar, len(cals))
	for i, cal := range cals {
		events := make([]model.Event, 0, len(cal.Events))
		for _, ev := range cal.Events {
			key := ev.LocationKey()
			if key != "" {
				rule, ok := store.Location(key)
				if !ok {
					return nil, &MissingRuleError{Kind: prompt.KindLocation, Key: key}
				}
				ev.SourceLocation = key
				ev.Location = rule.Location
				ev.Geo = rule.Geo
			}
			events = append(events, ev)
		}
		out[i] = model.Calendar{Events: events}
	}
	return out, nil
}
