package ics

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	ical "github.com/arran4/golang-ical"

	appLog "calnorm/internal/log"
	"calnorm/internal/model"
)

// ErrNoCalendar is returned by Decode when the input holds no VCALENDAR block.
var ErrNoCalendar = errors.New("ics: no VCALENDAR found")

// rewritten lists the VEVENT properties Encode may change, in the order
// missing ones are appended.
var rewritten = []ical.ComponentProperty{
	ical.ComponentPropertySummary,
	ical.ComponentPropertyDescription,
	ical.ComponentPropertyLocation,
	ical.ComponentPropertyGeo,
}

// Document is a decoded ICS file. Values are read through golang-ical; the
// original content lines are kept so that Encode writes everything calnorm
// does not touch exactly as it was read.
type Document struct {
	raw    []rawCalendar
	cals   []*ical.Calendar
	events [][]*ical.VEvent
}

// contentLine is one unfolded content line and the physical text, line
// breaks and folds included, it was read from.
type contentLine struct {
	raw   string
	value string
}

func (l contentLine) token() string {
	return strings.ToUpper(strings.TrimRight(l.value, " \t"))
}

// rawCalendar is one VCALENDAR block. events holds the inclusive line
// ranges of its top-level VEVENTs in document order.
type rawCalendar struct {
	lines   []contentLine
	events  [][2]int
	newline string
}

func (rc rawCalendar) text() []byte {
	var b bytes.Buffer
	for _, l := range rc.lines {
		b.WriteString(l.raw)
	}
	return b.Bytes()
}

// Decode parses body into a Document. A file may contain several VCALENDAR
// blocks; each one becomes a separate model.Calendar.
func Decode(body []byte) (*Document, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("ics: empty body")
	}

	blocks, err := splitCalendars(readContentLines(body))
	if err != nil {
		return nil, err
	}

	doc := &Document{raw: blocks}
	for i, block := range blocks {
		cal, err := ical.ParseCalendarWithOptions(bytes.NewReader(block.text()),
			ical.WithUnknownPropertyHandler(ical.AcceptUnknownPropertyHandler))
		if err != nil {
			return nil, fmt.Errorf("ics: parse calendar %d: %w", i, err)
		}
		events := cal.Events()
		if len(events) != len(block.events) {
			return nil, fmt.Errorf("ics: calendar %d: found %d VEVENT blocks, parsed %d", i, len(block.events), len(events))
		}
		doc.cals = append(doc.cals, cal)
		doc.events = append(doc.events, events)
	}

	appLog.Debug("ics decode completed", "calendars", len(doc.cals), "events", doc.eventCount())
	return doc, nil
}

// readContentLines unfolds body into content lines, keeping the physical
// text of each.
func readContentLines(body []byte) []contentLine {
	var out []contentLine
	r := bufio.NewReader(bytes.NewReader(body))
	for {
		phys, err := r.ReadString('\n')
		if phys != "" {
			text := strings.TrimRight(phys, "\r\n")
			if (phys[0] == ' ' || phys[0] == '\t') && len(out) > 0 {
				last := &out[len(out)-1]
				last.raw += phys
				last.value += text[1:]
			} else {
				out = append(out, contentLine{raw: phys, value: text})
			}
		}
		if err != nil {
			return out
		}
	}
}

// splitCalendars cuts lines into BEGIN:VCALENDAR ... END:VCALENDAR blocks
// and records the position of every top-level VEVENT. Text outside of a
// block is ignored.
func splitCalendars(lines []contentLine) ([]rawCalendar, error) {
	var (
		blocks []rawCalendar
		cur    *rawCalendar
		depth  int
		start  int
	)

	for _, l := range lines {
		token := l.token()
		if cur == nil {
			if token != "BEGIN:VCALENDAR" {
				continue
			}
			cur = &rawCalendar{newline: lineBreak(l.raw)}
			depth = 0
		}

		idx := len(cur.lines)
		cur.lines = append(cur.lines, l)
		switch {
		case token == "END:VCALENDAR":
			blocks = append(blocks, *cur)
			cur = nil
		case strings.HasPrefix(token, "BEGIN:"):
			if depth == 1 && token == "BEGIN:VEVENT" {
				start = idx
			}
			depth++
		case strings.HasPrefix(token, "END:"):
			depth--
			if depth == 1 && token == "END:VEVENT" {
				cur.events = append(cur.events, [2]int{start, idx})
			}
		}
	}
	if cur != nil {
		return nil, errors.New("ics: unterminated VCALENDAR")
	}
	if len(blocks) == 0 {
		return nil, ErrNoCalendar
	}
	return blocks, nil
}

func lineBreak(raw string) string {
	if strings.HasSuffix(raw, "\n") && !strings.HasSuffix(raw, "\r\n") {
		return "\n"
	}
	return "\r\n"
}

func (d *Document) eventCount() int {
	n := 0
	for _, evs := range d.events {
		n += len(evs)
	}
	return n
}

// Len returns the number of VCALENDAR blocks.
func (d *Document) Len() int {
	return len(d.cals)
}

// Calendars returns the events of every VCALENDAR, in document order.
func (d *Document) Calendars() []model.Calendar {
	out := make([]model.Calendar, len(d.cals))
	for i, evs := range d.events {
		events := make([]model.Event, 0, len(evs))
		for seq, ve := range evs {
			events = append(events, model.Event{
				UID:         propValue(ve, ical.ComponentPropertyUniqueId),
				Seq:         seq,
				Title:       propValue(ve, ical.ComponentPropertySummary),
				Description: propValue(ve, ical.ComponentPropertyDescription),
				Location:    propValue(ve, ical.ComponentPropertyLocation),
				Geo:         propValue(ve, ical.ComponentPropertyGeo),
			})
		}
		out[i] = model.Calendar{Events: events}
	}
	return out
}

func propValue(ve *ical.VEvent, p ical.ComponentProperty) string {
	if prop := ve.GetProperty(p); prop != nil {
		return prop.Value
	}
	return ""
}

// Encode serializes cals against the decoded document. cals must have one
// entry per VCALENDAR and every event must reference an original VEVENT by
// Seq. Events are written in the order given, at the position of the first
// original VEVENT.
//
// Only SUMMARY, DESCRIPTION, LOCATION and GEO are ever rewritten, and only
// when their value changed; every other line is copied from the input as
// read, folding included. An empty description, location or geo removes the
// property instead of writing an empty value.
func (d *Document) Encode(cals []model.Calendar) ([]byte, error) {
	if len(cals) != len(d.cals) {
		return nil, fmt.Errorf("ics: encode %d calendars into document with %d", len(cals), len(d.cals))
	}

	var buf bytes.Buffer
	for i, rc := range d.raw {
		for _, ev := range cals[i].Events {
			if ev.Seq < 0 || ev.Seq >= len(d.events[i]) {
				return nil, fmt.Errorf("ics: calendar %d: event %q has unknown position %d", i, ev.UID, ev.Seq)
			}
		}

		cfg := &ical.SerializationConfiguration{MaxLength: 75, PropertyMaxLength: 75, NewLine: rc.newline}
		next := 0
		for n, span := range rc.events {
			writeLines(&buf, rc.lines[next:span[0]])
			if n == 0 {
				for _, ev := range cals[i].Events {
					lines := rc.events[ev.Seq]
					err := writeEvent(&buf, rc.lines[lines[0]:lines[1]+1], d.events[i][ev.Seq], ev, cfg)
					if err != nil {
						return nil, fmt.Errorf("ics: calendar %d: event %q: %w", i, ev.UID, err)
					}
				}
			}
			next = span[1] + 1
		}
		writeLines(&buf, rc.lines[next:])
	}
	return buf.Bytes(), nil
}

func writeLines(w *bytes.Buffer, lines []contentLine) {
	for _, l := range lines {
		w.WriteString(l.raw)
	}
}

// writeEvent copies the VEVENT lines, replacing the rewritten properties
// whose value differs from src and appending the ones src lacks.
func writeEvent(w *bytes.Buffer, lines []contentLine, src *ical.VEvent, ev model.Event, cfg *ical.SerializationConfiguration) error {
	want := map[ical.ComponentProperty]string{
		ical.ComponentPropertySummary:     ev.Title,
		ical.ComponentPropertyDescription: ev.Description,
		ical.ComponentPropertyLocation:    ev.Location,
		ical.ComponentPropertyGeo:         ev.Geo,
	}
	seen := map[ical.ComponentProperty]bool{}

	depth := 0
	for i, l := range lines {
		token := l.token()
		switch {
		case strings.HasPrefix(token, "BEGIN:"):
			depth++
			w.WriteString(l.raw)
			continue
		case strings.HasPrefix(token, "END:"):
			if i == len(lines)-1 {
				for _, p := range rewritten {
					if seen[p] || want[p] == "" {
						continue
					}
					if err := writeProperty(w, "", p, want[p], cfg); err != nil {
						return err
					}
				}
			}
			depth--
			w.WriteString(l.raw)
			continue
		}

		p := ical.ComponentProperty(propertyName(l.value))
		value, ok := want[p]
		if depth != 1 || !ok || seen[p] {
			w.WriteString(l.raw)
			continue
		}
		seen[p] = true

		switch {
		case value == propValue(src, p):
			w.WriteString(l.raw)
		case value == "" && p != ical.ComponentPropertySummary:
			// dropped
		default:
			if err := writeProperty(w, l.value, p, value, cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeProperty serializes p with value, keeping the parameters of the
// original content line when there is one.
func writeProperty(w io.Writer, line string, p ical.ComponentProperty, value string, cfg *ical.SerializationConfiguration) error {
	prop := &ical.BaseProperty{IANAToken: string(p), ICalParameters: map[string][]string{}}
	if line != "" {
		if parsed, err := ical.ParseProperty(ical.ContentLine(line)); err == nil && parsed != nil {
			prop = parsed
		}
	}
	prop.Value = value
	return prop.SerializeTo(w, cfg)
}

func propertyName(line string) string {
	if i := strings.IndexAny(line, ";:"); i >= 0 {
		return strings.ToUpper(line[:i])
	}
	return strings.ToUpper(line)
}
