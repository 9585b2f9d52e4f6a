package engine

import (
	"time"

	"example.com/backstage/services/visibility/internal/models"

	"github.com/pkg/errors"
)

// DateRange bounds a filter to timestamps within [Start, End]
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the range, inclusive at both ends
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// ParseDateRange builds a DateRange from textual bounds, accepting RFC 3339
// timestamps or plain dates. An empty start leaves the range open at the
// bottom; an empty end makes it open at the top.
func ParseDateRange(start, end string) (DateRange, error) {
	var r DateRange
	var err error

	if start != "" {
		if r.Start, err = parseBound(start); err != nil {
			return DateRange{}, errors.Wrap(err, "invalid start date")
		}
	}
	if end != "" {
		if r.End, err = parseBound(end); err != nil {
			return DateRange{}, errors.Wrap(err, "invalid end date")
		}
	} else {
		r.End = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)
	}

	if r.End.Before(r.Start) {
		return DateRange{}, errors.New("end date before start date")
	}
	return r, nil
}

func parseBound(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}

// FilterCriteria describes a conjunctive filter over a dataset snapshot.
// Every field is independently optional; a zero field imposes no constraint.
// Ownership of the "current" criteria value belongs to the caller - the
// engine holds no session state.
type FilterCriteria struct {
	DateRange    *DateRange `json:"date_range,omitempty"`
	Status       []string   `json:"status,omitempty"`
	Location     []string   `json:"location,omitempty"`
	Category     []string   `json:"category,omitempty"`
	SearchQuery  string     `json:"search_query,omitempty"`
	SearchFields []string   `json:"search_fields,omitempty"`

	// ResolveReferences requests referential filtering: suppliers referenced
	// by retained shipments are kept in the view even when they fail the
	// other criteria, so that every supplier_id on a retained shipment still
	// resolves inside the view.
	ResolveReferences bool `json:"resolve_references,omitempty"`
}

// Active reports whether any constraint is set
func (c FilterCriteria) Active() bool {
	return c.DateRange != nil ||
		len(c.Status) > 0 ||
		len(c.Location) > 0 ||
		len(c.Category) > 0 ||
		c.SearchQuery != ""
}

// Reset returns the default criteria with every constraint absent. The
// result is a pure constant independent of any previously applied criteria.
func Reset() FilterCriteria {
	return FilterCriteria{}
}

// FilteredView is the subset of a dataset snapshot produced by applying
// FilterCriteria. The view never contains entities absent from the input
// snapshot and never duplicates them.
type FilteredView struct {
	Data models.SupplyChainData `json:"data"`

	// ReferentiallyConsistent is true when every reference field on a
	// retained entity resolves within the view itself. When false the view
	// is still valid; dangling references are flagged rather than dropped.
	ReferentiallyConsistent bool `json:"referentially_consistent"`
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
