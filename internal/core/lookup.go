package core

import (
	"strings"
	"time"

	"github.com/jmylchreest/autovol/internal/model"
)

// LookupByID finds an adjustment by its ID or a unique, case-insensitive
// prefix of it. Returns nil if nothing or more than one adjustment matches.
func LookupByID(adjustments []model.Adjustment, id string) *model.Adjustment {
	id = strings.ToUpper(strings.TrimSpace(id))
	if id == "" {
		return nil
	}

	var match *model.Adjustment
	for i := range adjustments {
		if adjustments[i].ID == id {
			return &adjustments[i]
		}
		if strings.HasPrefix(adjustments[i].ID, id) {
			if match != nil {
				return nil
			}
			match = &adjustments[i]
		}
	}
	return match
}

// Summary aggregates a set of adjustments.
type Summary struct {
	Count     int       `json:"count" yaml:"count"`
	Up        int       `json:"up" yaml:"up"`
	Down      int       `json:"down" yaml:"down"`
	MeanScore float64   `json:"mean_score" yaml:"mean_score"`
	MinVolume int       `json:"min_volume" yaml:"min_volume"`
	MaxVolume int       `json:"max_volume" yaml:"max_volume"`
	First     time.Time `json:"first,omitzero" yaml:"first,omitempty"`
	Last      time.Time `json:"last,omitzero" yaml:"last,omitempty"`
	Runs      int       `json:"runs" yaml:"runs"`
}

// Summarize computes a Summary over adjustments in any order.
func Summarize(adjustments []model.Adjustment) Summary {
	var s Summary
	if len(adjustments) == 0 {
		return s
	}

	runs := make(map[string]bool)
	var total float64
	s.MinVolume = adjustments[0].To
	s.MaxVolume = adjustments[0].To

	for _, a := range adjustments {
		s.Count++
		if a.Direction() == model.DirectionUp {
			s.Up++
		} else {
			s.Down++
		}
		total += a.Score
		s.MinVolume = min(s.MinVolume, a.To)
		s.MaxVolume = max(s.MaxVolume, a.To)

		t := a.Time()
		if s.First.IsZero() || t.Before(s.First) {
			s.First = t
		}
		if t.After(s.Last) {
			s.Last = t
		}
		if a.RunID != "" {
			runs[a.RunID] = true
		}
	}

	s.MeanScore = total / float64(s.Count)
	s.Runs = len(runs)
	return s
}
