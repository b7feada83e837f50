package engine

import (
	"calnorm/internal/model"
	"calnorm/internal/rules"
)

// UnknownSet is an insertion-ordered set of values without a rule.
// Examples holds the description of the first event seen with each title;
// it is prompt context only and never persisted.
type UnknownSet struct {
	Values   []string
	Examples map[string]string
	seen     map[string]struct{}
}

func newUnknownSet() UnknownSet {
	return UnknownSet{
		Examples: map[string]string{},
		seen:     map[string]struct{}{},
	}
}

// add records v unless already present. The first example wins.
func (u *UnknownSet) add(v, example string) {
	if _, ok := u.seen[v]; ok {
		return
	}
	u.seen[v] = struct{}{}
	u.Values = append(u.Values, v)
	u.Examples[v] = example
}

func (u UnknownSet) Len() int {
	return len(u.Values)
}

// ScanTitles returns every non-empty title key in cals that has no title
// rule, in first-seen order across calendars. Events without a title never
// take part in title rules.
func ScanTitles(cals []model.Calendar, store *rules.Store) UnknownSet {
	out := newUnknownSet()
	for _, cal := range cals {
		for _, ev := range cal.Events {
			key := ev.TitleKey()
			if key == "" {
				continue
			}
			if _, ok := store.Title(key); ok {
				continue
			}
			out.add(key, ev.Description)
		}
	}
	return out
}

// ScanLocations returns every non-empty location key in cals that has no
// location rule. Run it on the title-filtered calendars so suppressed events
// cannot cause prompts.
func ScanLocations(cals []model.Calendar, store *rules.Store) UnknownSet {
	out := newUnknownSet()
	for _, cal := range cals {
		for _, ev := range cal.Events {
			key := ev.LocationKey()
			if key == "" {
				continue
			}
			if _, ok := store.Location(key); ok {
				continue
			}
			out.add(key, "")
		}
	}
	return out
}
