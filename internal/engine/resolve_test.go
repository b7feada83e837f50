package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calnorm/internal/model"
	"calnorm/internal/prompt"
	"calnorm/internal/rules"
)

func TestResolveTitles(t *testing.T) {
	p := answers(ans("Lecture (EN)", "Main lecture"), ans("", ""))
	coord := NewCoordinator(p, DefaultLabels())
	store := rules.New()

	set := ScanTitles([]model.Calendar{cal(
		ev("1", "Lecture", "Room A", ""),
		ev("2", "Holiday", "", ""),
	)}, store)

	n, err := coord.ResolveTitles(context.Background(), set, store)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, []string{"Lecture: Room A", "Holiday: "}, p.contexts())
	assert.Equal(t, model.TitleRule{Title: "Lecture (EN)", Description: "Main lecture"}, store.Titles["Lecture"])
	assert.True(t, store.Titles["Holiday"].Suppressed())

	req := p.requests[0]
	assert.Equal(t, prompt.KindTitle, req.Kind)
	assert.Equal(t, "Lecture", req.Key)
	assert.Equal(t, "Name des Events", req.Fields[0].Placeholder)
	assert.Equal(t, "Beschreibung des Events", req.Fields[1].Placeholder)
	assert.Equal(t, 1, p.maxFlight)
}

func TestResolveLocations(t *testing.T) {
	p := answers(ans("Main Hall", "50.77;6.07"))
	labels := Labels{LocationAddress: "Address", LocationGeo: "Coordinates"}
	coord := NewCoordinator(p, labels)
	store := rules.New()

	set := ScanLocations([]model.Calendar{cal(ev("1", "A", "", "HS1"))}, store)
	_, err := coord.ResolveLocations(context.Background(), set, store)
	require.NoError(t, err)

	assert.Equal(t, []string{"HS1"}, p.contexts())
	assert.Equal(t, "Address", p.requests[0].Fields[0].Placeholder)
	assert.Equal(t, "Coordinates", p.requests[0].Fields[1].Placeholder)
	assert.Equal(t, model.LocationRule{Location: "Main Hall", Geo: "50.77;6.07"}, store.Locations["HS1"])
}

func TestResolve_AbandonCommitsNothing(t *testing.T) {
	p := answers(ans("first", ""), nil, ans("never", ""))
	coord := NewCoordinator(p, DefaultLabels())
	store := rules.New()

	set := ScanTitles([]model.Calendar{cal(
		ev("1", "A", "", ""),
		ev("2", "B", "", ""),
		ev("3", "C", "", ""),
	)}, store)

	_, err := coord.ResolveTitles(context.Background(), set, store)

	require.ErrorIs(t, err, ErrAborted)
	require.ErrorIs(t, err, prompt.ErrAbandoned)
	assert.Empty(t, store.Titles, "no rule of the aborted phase is committed")
	assert.Len(t, p.requests, 2, "no request after the abandoned one")
}

func TestResolve_CanceledContext(t *testing.T) {
	p := answers(ans("x", ""))
	coord := NewCoordinator(p, DefaultLabels())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	set := ScanTitles([]model.Calendar{cal(ev("1", "A", "", ""))}, rules.New())
	_, err := coord.ResolveTitles(ctx, set, rules.New())

	require.ErrorIs(t, err, ErrAborted)
	assert.Empty(t, p.requests)
}

func TestResolve_PrompterFailureIsNotAbort(t *testing.T) {
	boom := errors.New("terminal gone")
	coord := NewCoordinator(prompt.Func(func(context.Context, prompt.Request) (prompt.Response, error) {
		return prompt.Response{}, boom
	}), DefaultLabels())

	set := ScanTitles([]model.Calendar{cal(ev("1", "A", "", ""))}, rules.New())
	_, err := coord.ResolveTitles(context.Background(), set, rules.New())

	require.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, ErrAborted))
}

// The coordinator must wait for each answer before issuing the next request,
// even when the front-end answers from another goroutine.
func TestResolve_SequentialOverChannel(t *testing.T) {
	ch := prompt.NewChannel()
	coord := NewCoordinator(ch, DefaultLabels())
	store := rules.New()
	set := ScanTitles([]model.Calendar{cal(
		ev("1", "A", "", ""),
		ev("2", "B", "", ""),
		ev("3", "C", "", ""),
	)}, store)

	done := make(chan error, 1)
	go func() {
		_, err := coord.ResolveTitles(context.Background(), set, store)
		done <- err
	}()

	var seen []string
	for range set.Values {
		select {
		case <-ch.Notify():
		case <-time.After(2 * time.Second):
			t.Fatal("coordinator did not issue the next request")
		}
		req, ok := ch.Pending()
		require.True(t, ok)
		seen = append(seen, req.Key)
		require.NoError(t, ch.Respond(req.ID, [2]string{req.Key + "!", ""}))
	}

	require.NoError(t, <-done)
	assert.Equal(t, []string{"A", "B", "C"}, seen)
	assert.Equal(t, "B!", store.Titles["B"].Title)
}
