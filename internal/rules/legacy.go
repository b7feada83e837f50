package rules

import (
	"encoding/json"
	"fmt"

	"calnorm/internal/model"
)

// legacyConfig is the config.json layout written by the first generation of
// this tool: upper-case iCalendar property names as record fields.
type legacyConfig struct {
	Naming map[string]struct {
		Summary     string `json:"SUMMARY"`
		Description string `json:"DESCRIPTION"`
	} `json:"naming"`
	Location map[string]struct {
		Location string `json:"LOCATION"`
		Geo      string `json:"GEO"`
	} `json:"location"`
}

// ImportLegacy converts a legacy config.json document into a Store. Unlike
// Load, malformed input is an error: an explicit import should not silently
// produce an empty rule set.
func ImportLegacy(data []byte) (*Store, error) {
	var lc legacyConfig
	if err := json.Unmarshal(data, &lc); err != nil {
		return nil, fmt.Errorf("parse legacy config: %w", err)
	}

	s := New()
	for k, v := range lc.Naming {
		if k == "" {
			continue
		}
		s.Titles[k] = model.TitleRule{Title: v.Summary, Description: v.Description}
	}
	for k, v := range lc.Location {
		if k == "" {
			continue
		}
		s.Locations[k] = model.LocationRule{Location: v.Location, Geo: v.Geo}
	}
	return s, nil
}
