package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calnorm/internal/model"
	"calnorm/internal/prompt"
	"calnorm/internal/rules"
)

func coveringStore() *rules.Store {
	s := rules.New()
	s.SetTitle("Lecture", model.TitleRule{Title: "Lecture (EN)", Description: "Main lecture"})
	s.SetTitle("Holiday", model.TitleRule{})
	s.SetTitle("Exam", model.TitleRule{Title: "Exam", Description: "bring ID"})
	s.SetLocation("HS1", model.LocationRule{Location: "Main Hall", Geo: "50.77;6.07"})
	s.SetLocation("SR 4", model.LocationRule{Location: "Seminar Room 4"})
	return s
}

func sampleCalendars() []model.Calendar {
	return []model.Calendar{
		cal(
			ev("1", "Lecture", "Room A", "HS1"),
			ev("2", "Holiday", "", "HS1"),
			ev("3", "Exam", "", ""),
			ev("4", "Lecture", "Room B", "SR 4"),
		),
		cal(
			ev("5", "Holiday", "", ""),
		),
		cal(
			ev("6", "Exam", "x", "SR 4"),
			ev("7", "Lecture", "", ""),
		),
	}
}

func TestApplyTitles_Filtering(t *testing.T) {
	store := coveringStore()
	in := sampleCalendars()

	out, err := ApplyTitles(in, store)
	require.NoError(t, err)

	require.Len(t, out, 3, "calendar boundaries are kept")
	assert.Equal(t, []string{"Lecture (EN)", "Exam", "Lecture (EN)"}, titles(out[0]))
	assert.Empty(t, out[1].Events)
	assert.Equal(t, []string{"Exam", "Lecture (EN)"}, titles(out[2]))

	for _, c := range out {
		for _, e := range c.Events {
			rule := store.Titles[e.SourceTitle]
			assert.False(t, rule.Suppressed())
			assert.Equal(t, rule.Title, e.Title)
			assert.Equal(t, rule.Description, e.Description)
		}
	}
}

func TestApplyTitles_EmptyTitlePassesThrough(t *testing.T) {
	in := []model.Calendar{cal(
		ev("1", "", "no summary", "HS1"),
		ev("2", "Lecture", "", ""),
	)}

	out, err := ApplyTitles(in, coveringStore())
	require.NoError(t, err)

	require.Len(t, out[0].Events, 2)
	assert.Equal(t, in[0].Events[0], out[0].Events[0])
	assert.Equal(t, "Lecture (EN)", out[0].Events[1].Title)
}

func TestApplyTitles_PreservesOrder(t *testing.T) {
	out, err := ApplyTitles(sampleCalendars(), coveringStore())
	require.NoError(t, err)

	uids := func(c model.Calendar) []string {
		var s []string
		for _, e := range c.Events {
			s = append(s, e.UID)
		}
		return s
	}
	assert.Equal(t, []string{"1", "3", "4"}, uids(out[0]))
	assert.Equal(t, []string{"6", "7"}, uids(out[2]))
}

func TestApplyTitles_DoesNotMutateInput(t *testing.T) {
	in := sampleCalendars()
	snapshot := sampleCalendars()

	_, err := ApplyTitles(in, coveringStore())
	require.NoError(t, err)

	assert.Equal(t, snapshot, in)
}

func TestApplyTitles_MissingRule(t *testing.T) {
	_, err := ApplyTitles([]model.Calendar{cal(ev("1", "Unknown", "", ""))}, rules.New())

	require.ErrorIs(t, err, ErrMissingRule)
	var mre *MissingRuleError
	require.ErrorAs(t, err, &mre)
	assert.Equal(t, prompt.KindTitle, mre.Kind)
	assert.Equal(t, "Unknown", mre.Key)
}

func TestApplyLocations(t *testing.T) {
	store := coveringStore()
	kept, err := ApplyTitles(sampleCalendars(), store)
	require.NoError(t, err)

	out, err := ApplyLocations(kept, store)
	require.NoError(t, err)

	first := out[0].Events[0]
	assert.Equal(t, "Main Hall", first.Location)
	assert.Equal(t, "50.77;6.07", first.Geo)
	assert.Equal(t, "HS1", first.SourceLocation)

	noLocation := out[0].Events[1]
	assert.Equal(t, kept[0].Events[1], noLocation, "events without location pass unchanged")

	assert.Equal(t, "Seminar Room 4", out[0].Events[2].Location)
	assert.Equal(t, "", out[0].Events[2].Geo)
}

func TestApplyLocations_MissingRule(t *testing.T) {
	_, err := ApplyLocations([]model.Calendar{cal(ev("1", "A", "", "Nowhere"))}, rules.New())

	var mre *MissingRuleError
	require.ErrorAs(t, err, &mre)
	assert.Equal(t, prompt.KindLocation, mre.Kind)
}

func TestApplyRulesIsIdempotent(t *testing.T) {
	store := coveringStore()
	apply := func(c []model.Calendar) []model.Calendar {
		t.Helper()
		kept, err := ApplyTitles(c, store)
		require.NoError(t, err)
		out, err := ApplyLocations(kept, store)
		require.NoError(t, err)
		return out
	}

	once := apply(sampleCalendars())
	twice := apply(once)

	assert.Equal(t, once, twice)
}
