package ics

import (
	"errors"
	"sort"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	appLog "calnorm/internal/log"
)

const defaultMaxOccurrencesPerEvent = 500

// Occurrence is one concrete instance of a VEVENT.
type Occurrence struct {
	UID      string
	Summary  string
	Location string
	Start    time.Time
	End      time.Time
	AllDay   bool
}

// PreviewOptions bounds Preview.
type PreviewOptions struct {
	// From / To is the inclusive window of occurrence start times.
	From time.Time
	To   time.Time

	// Location converts occurrences for display. Nil means time.Local.
	Location *time.Location

	// MaxPerEvent caps the expansion of a single RRULE. Zero uses the default.
	MaxPerEvent int
}

// Preview lists the occurrences of every VEVENT in d that start within the
// window, sorted by start time. RRULE and EXDATE are expanded; an instance
// moved by a RECURRENCE-ID override replaces the regular one.
func (d *Document) Preview(opts PreviewOptions) ([]Occurrence, error) {
	if opts.To.Before(opts.From) {
		return nil, errors.New("preview: window end is before start")
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.MaxPerEvent <= 0 {
		opts.MaxPerEvent = defaultMaxOccurrencesPerEvent
	}

	var out []Occurrence
	for _, evs := range d.events {
		moved := overriddenStarts(evs)
		for _, ve := range evs {
			out = append(out, expandVEvent(ve, moved, opts)...)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out, nil
}

// overriddenStarts collects RECURRENCE-ID values per UID.
func overriddenStarts(evs []*ical.VEvent) map[string][]time.Time {
	moved := make(map[string][]time.Time)
	for _, ve := range evs {
		rid := ve.GetProperty(ical.ComponentPropertyRecurrenceId)
		if rid == nil {
			continue
		}
		t, err := parseICSTime(rid.Value, tzOf(rid))
		if err != nil {
			continue
		}
		uid := propValue(ve, ical.ComponentPropertyUniqueId)
		moved[uid] = append(moved[uid], t)
	}
	return moved
}

func expandVEvent(ve *ical.VEvent, moved map[string][]time.Time, opts PreviewOptions) []Occurrence {
	uid := propValue(ve, ical.ComponentPropertyUniqueId)

	start, err := ve.GetStartAt()
	if err != nil {
		appLog.Debug("preview: skipping event without usable DTSTART", "uid", uid, "err", err.Error())
		return nil
	}
	allDay := isAllDay(ve.GetProperty(ical.ComponentPropertyDtStart))

	duration := time.Duration(0)
	if end, err := ve.GetEndAt(); err == nil && end.After(start) {
		duration = end.Sub(start)
	} else if allDay {
		duration = 24 * time.Hour
	}

	base := Occurrence{
		UID:      uid,
		Summary:  propValue(ve, ical.ComponentPropertySummary),
		Location: propValue(ve, ical.ComponentPropertyLocation),
		AllDay:   allDay,
	}
	at := func(s time.Time) Occurrence {
		o := base
		o.Start = s.In(opts.Location)
		o.End = s.Add(duration).In(opts.Location)
		return o
	}

	rr := ve.GetProperty(ical.ComponentPropertyRrule)
	isOverride := ve.GetProperty(ical.ComponentPropertyRecurrenceId) != nil
	if rr == nil || isOverride {
		if inWindow(start, opts) {
			return []Occurrence{at(start)}
		}
		return nil
	}

	rule, err := rrule.StrToRRule(rr.Value)
	if err != nil {
		appLog.Error("preview: failed to parse RRULE", err, "uid", uid, "rrule", rr.Value)
		return nil
	}
	rule.DTStart(start)

	var set rrule.Set
	set.RRule(rule)
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		loc := tzOf(p)
		if loc == nil {
			loc = start.Location()
		}
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part, loc); err == nil {
				set.ExDate(t)
			}
		}
	}
	for _, t := range moved[uid] {
		set.ExDate(t.In(start.Location()))
	}

	times := set.Between(opts.From.In(start.Location()), opts.To.In(start.Location()), true)
	if len(times) > opts.MaxPerEvent {
		appLog.Warn("preview: occurrences truncated", "uid", uid, "cap", opts.MaxPerEvent)
		times = times[:opts.MaxPerEvent]
	}

	out := make([]Occurrence, 0, len(times))
	for _, t := range times {
		out = append(out, at(t))
	}
	return out
}

func inWindow(t time.Time, opts PreviewOptions) bool {
	return !t.Before(opts.From) && !t.After(opts.To)
}

func isAllDay(p *ical.IANAProperty) bool {
	if p == nil {
		return false
	}
	if vs := p.ICalParameters[string(ical.ParameterValue)]; len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

func tzOf(p *ical.IANAProperty) *time.Location {
	tz := p.ICalParameters["TZID"]
	if len(tz) == 0 {
		return nil
	}
	loc, err := time.LoadLocation(tz[0])
	if err != nil {
		return nil
	}
	return loc
}

// parseICSTime parses DATE / DATE-TIME values. Floating values use loc,
// falling back to time.Local.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if loc == nil {
		loc = time.Local
	}
	switch {
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}
