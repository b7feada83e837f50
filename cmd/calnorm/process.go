package main

import (
	"context"
	"fmt"

	"calnorm/internal/config"
	"calnorm/internal/engine"
	"calnorm/internal/ics"
	appLog "calnorm/internal/log"
	"calnorm/internal/prompt"
	"calnorm/internal/rules"
	"calnorm/internal/web"
)

// normalizer runs the rule pipeline over a raw ICS payload.
type normalizer struct {
	repo   engine.Repository
	labels engine.Labels
}

func newNormalizer(cfg *config.Config) normalizer {
	return normalizer{
		repo:   rules.NewFileRepository(cfg.RulesPath),
		labels: engineLabels(cfg.Labels),
	}
}

// engineLabels converts the configured placeholders for the coordinator.
func engineLabels(l config.LabelsConfig) engine.Labels {
	return engine.Labels{
		TitleName:        l.TitleName,
		TitleDescription: l.TitleDescription,
		LocationAddress:  l.LocationAddress,
		LocationGeo:      l.LocationGeo,
	}
}

// normalize decodes body, resolves unknown values through p, persists the
// learned rules and returns the re-encoded calendar.
func (n normalizer) normalize(ctx context.Context, body []byte, p prompt.Prompter) ([]byte, *engine.Result, error) {
	doc, err := ics.Decode(body)
	if err != nil {
		return nil, nil, fmt.Errorf("decode input: %w", err)
	}

	pipe := engine.NewPipeline(n.repo, engine.NewCoordinator(p, n.labels))
	res, err := pipe.Run(ctx, doc.Calendars())
	if err != nil {
		return nil, res, err
	}

	out, err := doc.Encode(res.Calendars)
	if err != nil {
		return nil, res, fmt.Errorf("encode output: %w", err)
	}

	appLog.Info("calendar normalized",
		"calendars", doc.Len(),
		"events", res.Stats.Events,
		"dropped", res.Stats.Dropped,
		"title_prompts", res.Stats.TitlePrompts,
		"location_prompts", res.Stats.LocationPrompts,
	)
	return out, res, nil
}

// webFrontend serves a prompt.Channel over HTTP for the lifetime of a
// command. stop closes the channel, which abandons a pending request, and
// waits for the server to shut down.
type webFrontend struct {
	prompts *prompt.Channel
	cancel  context.CancelFunc
	done    chan struct{}
}

func startWebFrontend(ctx context.Context, cfg *config.Config, listen string) *webFrontend {
	ch := prompt.NewChannel()
	srvCtx, cancel := context.WithCancel(ctx)
	f := &webFrontend{prompts: ch, cancel: cancel, done: make(chan struct{})}

	handler := web.NewServer(ch, rules.NewFileRepository(cfg.RulesPath), cfg.BasicAuth).Handler()
	go func() {
		defer close(f.done)
		if err := web.StartServer(srvCtx, listen, handler, nil); err != nil {
			appLog.Error("HTTP server failed", err, "listen", listen)
			// Nobody can answer anymore.
			ch.Close()
		}
	}()
	return f
}

func (f *webFrontend) stop() {
	f.prompts.Close()
	f.cancel()
	<-f.done
}
