package rules

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	appLog "calnorm/internal/log"
	"calnorm/internal/model"
)

// Store is the complete user-curated rule set: title rules keyed by the
// original event title and location rules keyed by the original location.
type Store struct {
	Titles    map[string]model.TitleRule    `yaml:"title_rules" json:"title_rules"`
	Locations map[string]model.LocationRule `yaml:"location_rules" json:"location_rules"`
}

// New returns an empty rule store.
func New() *Store {
	return &Store{
		Titles:    map[string]model.TitleRule{},
		Locations: map[string]model.LocationRule{},
	}
}

// Load parses persisted rule bytes. Empty or unparsable input yields the
// empty default with fresh set, signalling that a new file should be
// written. Load never fails: a corrupt rule file is recovered by reset.
//
// yaml.v3 accepts JSON documents as well, so a rules file hand-converted
// to JSON still loads.
func Load(data []byte) (s *Store, fresh bool) {
	if len(data) == 0 {
		return New(), true
	}

	var parsed Store
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		appLog.Error("rule store unreadable; starting from empty rules", err)
		return New(), true
	}
	parsed.normalize()
	return &parsed, false
}

// normalize fills nil maps and drops entries with empty keys, which can
// never match an event.
func (s *Store) normalize() {
	if s.Titles == nil {
		s.Titles = map[string]model.TitleRule{}
	}
	if s.Locations == nil {
		s.Locations = map[string]model.LocationRule{}
	}
	if _, ok := s.Titles[""]; ok {
		appLog.Warn("dropping title rule with empty key")
		delete(s.Titles, "")
	}
	if _, ok := s.Locations[""]; ok {
		appLog.Warn("dropping location rule with empty key")
		delete(s.Locations, "")
	}
}

// Marshal serializes the store as YAML. yaml.v3 emits map keys sorted, so
// the output is deterministic.
func (s *Store) Marshal() ([]byte, error) {
	out, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal rules: %w", err)
	}
	return out, nil
}

func (s *Store) Title(key string) (model.TitleRule, bool) {
	r, ok := s.Titles[key]
	return r, ok
}

func (s *Store) Location(key string) (model.LocationRule, bool) {
	r, ok := s.Locations[key]
	return r, ok
}

// SetTitle stores r under key. Empty keys can never match an event and are
// ignored.
func (s *Store) SetTitle(key string, r model.TitleRule) {
	if key == "" {
		return
	}
	s.Titles[key] = r
}

// SetLocation stores r under key; empty keys are ignored.
func (s *Store) SetLocation(key string, r model.LocationRule) {
	if key == "" {
		return
	}
	s.Locations[key] = r
}

// Clone returns a deep copy of s.
func (s *Store) Clone() *Store {
	c := New()
	for k, v := range s.Titles {
		c.Titles[k] = v
	}
	for k, v := range s.Locations {
		c.Locations[k] = v
	}
	return c
}

// Merge copies the rules of other into s. Existing keys are only replaced
// when overwrite is set; empty keys are skipped. It returns the number of
// rules written.
func (s *Store) Merge(other *Store, overwrite bool) int {
	n := 0
	for k, v := range other.Titles {
		if k == "" {
			continue
		}
		if _, exists := s.Titles[k]; exists && !overwrite {
			continue
		}
		s.Titles[k] = v
		n++
	}
	for k, v := range other.Locations {
		if k == "" {
			continue
		}
		if _, exists := s.Locations[k]; exists && !overwrite {
			continue
		}
		s.Locations[k] = v
		n++
	}
	return n
}

// TitleKeys returns the title rule keys in sorted order.
func (s *Store) TitleKeys() []string {
	return sortedKeys(s.Titles)
}

// LocationKeys returns the location rule keys in sorted order.
func (s *Store) LocationKeys() []string {
	return sortedKeys(s.Locations)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
