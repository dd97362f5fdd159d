package core

import (
	"sort"
	"strings"

	"github.com/jmylchreest/autovol/internal/model"
)

// SortField represents a field to sort by.
type SortField string

const (
	SortByTimestamp SortField = "timestamp"
	SortByScore     SortField = "score"
	SortByVolume    SortField = "volume"
)

// SortOrder represents ascending or descending order.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// SortOptions specifies sorting criteria.
type SortOptions struct {
	Field SortField // Field to sort by
	Order SortOrder // Sort order (asc/desc)
}

// DefaultSortOptions returns default sort options (newest first).
func DefaultSortOptions() SortOptions {
	return SortOptions{
		Field: SortByTimestamp,
		Order: SortDesc,
	}
}

// Sort sorts adjustments in place based on the provided options.
// Entries with equal keys are ordered by ID, which is time ordered.
func Sort(adjustments []model.Adjustment, opts SortOptions) {
	if len(adjustments) == 0 {
		return
	}

	sort.SliceStable(adjustments, func(i, j int) bool {
		a, b := adjustments[i], adjustments[j]

		var less, equal bool
		switch opts.Field {
		case SortByScore:
			less, equal = a.Score < b.Score, a.Score == b.Score
		case SortByVolume:
			less, equal = a.To < b.To, a.To == b.To
		default:
			less, equal = a.Timestamp < b.Timestamp, a.Timestamp == b.Timestamp
		}
		if equal {
			if opts.Order == SortDesc {
				return a.ID > b.ID
			}
			return a.ID < b.ID
		}

		if opts.Order == SortDesc {
			return !less
		}
		return less
	})
}

// ParseSortField parses a sort field string.
func ParseSortField(s string) (SortField, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "timestamp", "time", "t":
		return SortByTimestamp, nil
	case "score", "loudness", "s":
		return SortByScore, nil
	case "volume", "level", "v":
		return SortByVolume, nil
	default:
		return SortByTimestamp, nil
	}
}

// ParseSortOrder parses a sort order string.
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "ascending", "a":
		return SortAsc, nil
	case "desc", "descending", "d":
		return SortDesc, nil
	default:
		return SortDesc, nil
	}
}
