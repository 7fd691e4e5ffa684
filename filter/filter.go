// Package filter restricts detections to the classes and confidence a
// deployment cares about.
package filter

import (
	"encoding/json"
	"strings"

	"github.com/swdee/go-visionedge/postprocess"
)

// DefaultName is the name of the filter that always exists
const DefaultName = "default"

// DefaultMinConfidence is the minimum confidence of a filter that does not
// set one
const DefaultMinConfidence = 0.5

// Config defines a named detection filter
type Config struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	// IncludeClasses when not empty keeps only detections with these labels,
	// matched case insensitively
	IncludeClasses []string `json:"include_classes"`
	// ExcludeClasses drops detections with these labels, matched case
	// insensitively
	ExcludeClasses []string `json:"exclude_classes"`
	// MinConfidence drops detections scoring below it
	MinConfidence float32 `json:"min_confidence"`
}

// Default returns the enabled filter used when none are configured
func Default() Config {
	return Config{
		Name:           DefaultName,
		Enabled:        true,
		IncludeClasses: []string{},
		ExcludeClasses: []string{},
		MinConfidence:  DefaultMinConfidence,
	}
}

// UnmarshalJSON decodes a filter, fields absent from the JSON take the
// values of Default
func (c *Config) UnmarshalJSON(data []byte) error {

	type plain Config

	p := plain(Default())
	p.Name = ""

	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	*c = Config(p)

	return nil
}

// Apply returns the detections passing the filter in their original order.
// A disabled filter returns dets unchanged
func Apply(dets []postprocess.Detection, cfg Config) []postprocess.Detection {

	if !cfg.Enabled {
		return dets
	}

	include := lowerSet(cfg.IncludeClasses)
	exclude := lowerSet(cfg.ExcludeClasses)

	out := make([]postprocess.Detection, 0, len(dets))

	for _, det := range dets {

		if det.Score < cfg.MinConfidence {
			continue
		}

		label := strings.ToLower(det.Label)

		if len(include) > 0 {
			if _, ok := include[label]; !ok {
				continue
			}
		}

		if _, ok := exclude[label]; ok {
			continue
		}

		out = append(out, det)
	}

	return out
}

// lowerSet returns the lower cased set of the class names
func lowerSet(classes []string) map[string]struct{} {

	set := make(map[string]struct{}, len(classes))

	for _, c := range classes {
		set[strings.ToLower(c)] = struct{}{}
	}

	return set
}
