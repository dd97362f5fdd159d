// Package core provides filtering, sorting, and lookup logic for adjustment history.
package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/autovol/internal/model"
)

// FilterOptions specifies criteria for filtering adjustments.
type FilterOptions struct {
	Since     time.Duration // Filter to adjustments newer than now-since (0=all)
	Direction string        // model.DirectionUp, model.DirectionDown or "" for both
	RunID     string        // Exact match on run ID
	MinScore  float64       // Minimum loudness score (0=any)
	Limit     int           // Maximum results (0=unlimited)
}

// Filter filters adjustments based on the provided options.
func Filter(adjustments []model.Adjustment, opts FilterOptions) []model.Adjustment {
	return FilterAt(adjustments, opts, time.Now())
}

// FilterAt is Filter with an explicit reference time for the Since window.
func FilterAt(adjustments []model.Adjustment, opts FilterOptions, now time.Time) []model.Adjustment {
	result := make([]model.Adjustment, 0, len(adjustments))

	var cutoff time.Time
	if opts.Since > 0 {
		cutoff = now.Add(-opts.Since)
	}

	for _, a := range adjustments {
		if opts.Since > 0 && a.Time().Before(cutoff) {
			continue
		}
		if opts.Direction != "" && a.Direction() != opts.Direction {
			continue
		}
		if opts.RunID != "" && a.RunID != opts.RunID {
			continue
		}
		if opts.MinScore > 0 && a.Score < opts.MinScore {
			continue
		}
		result = append(result, a)
	}

	// Apply limit
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result
}

// ParseDuration parses a duration string with extended formats.
// Supports: 48h, 7d, 1w, 0 (all time)
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	// Special case: 0 means no filter (all time)
	if s == "0" || s == "" {
		return 0, nil
	}

	// Handle day suffix (7d -> 168h)
	if daysStr, found := strings.CutSuffix(s, "d"); found {
		days, err := strconv.Atoi(daysStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}

	// Handle week suffix (1w -> 168h)
	if weeksStr, found := strings.CutSuffix(s, "w"); found {
		weeks, err := strconv.Atoi(weeksStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(weeks) * 7 * 24 * time.Hour, nil
	}

	// Standard Go duration parsing
	return time.ParseDuration(s)
}

// ParseDirection parses a direction string.
// Accepts: up, down, +, -, or empty for both.
func ParseDirection(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all", "both":
		return "", nil
	case "up", "+":
		return model.DirectionUp, nil
	case "down", "-":
		return model.DirectionDown, nil
	default:
		return "", fmt.Errorf("invalid direction: %s (use up or down)", s)
	}
}
