package engine

import (
	"context"
	"errors"
	"fmt"

	appLog "calnorm/internal/log"
	"calnorm/internal/model"
	"calnorm/internal/rules"
)

// State is a step of the linear pipeline.
type State string

const (
	StateStart              State = "start"
	StateLoadRules          State = "load_rules"
	StateScanTitles         State = "scan_titles"
	StateResolveTitles      State = "resolve_titles"
	StateTransformTitles    State = "transform_titles"
	StateScanLocations      State = "scan_locations"
	StateResolveLocations   State = "resolve_locations"
	StateTransformLocations State = "transform_locations"
	StatePersistRules       State = "persist_rules"
	StateDone               State = "done"
	StateAborted            State = "aborted"
)

// Repository loads and persists the rule store.
type Repository interface {
	Load() (*rules.Store, error)
	Save(*rules.Store) error
}

// Stats summarizes a run for logging.
type Stats struct {
	Events          int
	Dropped         int
	TitlePrompts    int
	LocationPrompts int
}

// Result is the outcome of Run. Calendars is only set when State is Done.
type Result struct {
	State     State
	Calendars []model.Calendar
	Rules     *rules.Store
	Stats     Stats
}

// Pipeline composes scan, resolve and transform:
//
//	LoadRules → ScanTitles → ResolveTitles → TransformTitles →
//	ScanLocations → ResolveLocations → TransformLocations → PersistRules → Done
//
// An abandoned prompt moves straight to Aborted, skipping PersistRules.
type Pipeline struct {
	Rules       Repository
	Coordinator *Coordinator
}

func NewPipeline(repo Repository, coord *Coordinator) *Pipeline {
	return &Pipeline{Rules: repo, Coordinator: coord}
}

// Run normalizes cals. On abandonment it returns a Result in StateAborted
// together with an error wrapping ErrAborted. A MissingRuleError is returned
// as is; callers must treat it as fatal.
func (p *Pipeline) Run(ctx context.Context, cals []model.Calendar) (*Result, error) {
	res := &Result{State: StateStart}
	res.Stats.Events = model.CountEvents(cals)

	p.enter(res, StateLoadRules)
	store, err := p.Rules.Load()
	if err != nil {
		return res, fmt.Errorf("load rules: %w", err)
	}
	res.Rules = store

	p.enter(res, StateScanTitles)
	titles := ScanTitles(cals, store)
	appLog.Info("title scan completed", "events", res.Stats.Events, "unknown_titles", titles.Len())

	p.enter(res, StateResolveTitles)
	res.Stats.TitlePrompts, err = p.Coordinator.ResolveTitles(ctx, titles, store)
	if err != nil {
		return p.abort(res, err)
	}

	p.enter(res, StateTransformTitles)
	kept, err := ApplyTitles(cals, store)
	if err != nil {
		return res, err
	}
	res.Stats.Dropped = res.Stats.Events - model.CountEvents(kept)

	p.enter(res, StateScanLocations)
	locations := ScanLocations(kept, store)
	appLog.Info("location scan completed", "unknown_locations", locations.Len())

	p.enter(res, StateResolveLocations)
	res.Stats.LocationPrompts, err = p.Coordinator.ResolveLocations(ctx, locations, store)
	if err != nil {
		return p.abort(res, err)
	}

	p.enter(res, StateTransformLocations)
	out, err := ApplyLocations(kept, store)
	if err != nil {
		return res, err
	}

	p.enter(res, StatePersistRules)
	if err := p.Rules.Save(store); err != nil {
		return res, fmt.Errorf("persist rules: %w", err)
	}

	p.enter(res, StateDone)
	res.Calendars = out
	appLog.Info("normalization completed",
		"events", res.Stats.Events,
		"dropped", res.Stats.Dropped,
		"title_prompts", res.Stats.TitlePrompts,
		"location_prompts", res.Stats.LocationPrompts,
	)
	return res, nil
}

func (p *Pipeline) enter(res *Result, s State) {
	appLog.Debug("pipeline state", "from", res.State, "to", s)
	res.State = s
}

// abort moves to Aborted for user aborts and passes other errors through
// with the current state left in place.
func (p *Pipeline) abort(res *Result, err error) (*Result, error) {
	if errors.Is(err, ErrAborted) {
		p.enter(res, StateAborted)
		appLog.Info("run aborted; rules not persisted", "reason", err.Error())
	}
	return res, err
}
