package model

// Event is the normalized view of a single VEVENT. Values are copied out of
// the parsed document; rewriting an Event never touches the source.
type Event struct {
	UID string

	// Seq is the position of the VEVENT inside its source VCALENDAR. The
	// codec uses it to find the original component when encoding.
	Seq int

	Title       string
	Description string
	Location    string
	Geo         string

	// SourceTitle / SourceLocation hold the original lookup keys once a rule
	// has been applied, so applying the same rules again is a no-op.
	SourceTitle    string
	SourceLocation string
}

// TitleKey returns the key used to look up the title rule for e.
func (e Event) TitleKey() string {
	if e.SourceTitle != "" {
		return e.SourceTitle
	}
	return e.Title
}

// LocationKey returns the key used to look up the location rule for e.
// An empty key means the event does not take part in location rules.
func (e Event) LocationKey() string {
	if e.SourceLocation != "" {
		return e.SourceLocation
	}
	return e.Location
}

// Calendar is one VCALENDAR block of the input, events in document order.
type Calendar struct {
	Events []Event
}

// TitleRule replaces title and description of events with a given original
// title. An empty Title suppresses those events.
type TitleRule struct {
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
}

// Suppressed reports whether events matching this rule are dropped.
func (r TitleRule) Suppressed() bool {
	return r.Title == ""
}

// LocationRule replaces location and geo of events with a given original
// location.
type LocationRule struct {
	Location string `yaml:"location" json:"location"`
	Geo      string `yaml:"geo" json:"geo"`
}

// CountEvents returns the total number of events across cals.
func CountEvents(cals []Calendar) int {
	n := 0
	for _, c := range cals {
		n += len(c.Events)
	}
	return n
}
