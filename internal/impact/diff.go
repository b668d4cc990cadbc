// Package impact compares a unit's cadastro against its effective competency map
// and reports which activities changed and which competencies they affect.
package impact

import (
	"sort"
	"strings"
)

// Activity is the snapshot of an activity used for comparison.
// Key pairs activities across the two collections for alteration detection.
type Activity struct {
	Key         string
	Description string
}

// CompetencyLookup returns the competency descriptions linked to a baseline activity key.
type CompetencyLookup func(key string) []string

// Inserted is an activity present only in the current collection.
type Inserted struct {
	Key         string
	Description string
}

// Removed is a baseline activity no longer present in the current collection.
type Removed struct {
	Key          string
	Description  string
	Competencies []string
}

// Altered is an activity whose description changed while keeping its identity key.
type Altered struct {
	Key                 string
	PreviousDescription string
	Description         string
	Competencies        []string
}

// Diffs holds the three change lists.
type Diffs struct {
	Inserted []Inserted
	Removed  []Removed
	Altered  []Altered
}

// Empty reports whether nothing changed.
func (d Diffs) Empty() bool {
	return len(d.Inserted) == 0 && len(d.Removed) == 0 && len(d.Altered) == 0
}

// Normalize returns the comparison key of a description.
func Normalize(description string) string {
	return strings.ToLower(strings.TrimSpace(description))
}

// Diff compares current against baseline. Insertions and removals match on normalized
// description; alterations match on Key. An activity whose key is kept but whose
// description changed therefore also shows up as inserted and removed.
func Diff(current, baseline []Activity, lookup CompetencyLookup) Diffs {
	if lookup == nil {
		lookup = func(string) []string { return nil }
	}

	baselineDescriptions := make(map[string]struct{}, len(baseline))
	baselineByKey := make(map[string]Activity, len(baseline))
	for _, activity := range baseline {
		baselineDescriptions[Normalize(activity.Description)] = struct{}{}
		if activity.Key != "" {
			baselineByKey[activity.Key] = activity
		}
	}
	currentDescriptions := make(map[string]struct{}, len(current))
	for _, activity := range current {
		currentDescriptions[Normalize(activity.Description)] = struct{}{}
	}

	var out Diffs
	for _, activity := range current {
		if _, ok := baselineDescriptions[Normalize(activity.Description)]; !ok {
			out.Inserted = append(out.Inserted, Inserted{
				Key:         activity.Key,
				Description: strings.TrimSpace(activity.Description),
			})
		}
		if activity.Key == "" {
			continue
		}
		previous, ok := baselineByKey[activity.Key]
		if !ok || Normalize(previous.Description) == Normalize(activity.Description) {
			continue
		}
		out.Altered = append(out.Altered, Altered{
			Key:                 activity.Key,
			PreviousDescription: strings.TrimSpace(previous.Description),
			Description:         strings.TrimSpace(activity.Description),
			Competencies:        sortedCopy(lookup(previous.Key)),
		})
	}
	for _, activity := range baseline {
		if _, ok := currentDescriptions[Normalize(activity.Description)]; ok {
			continue
		}
		out.Removed = append(out.Removed, Removed{
			Key:          activity.Key,
			Description:  strings.TrimSpace(activity.Description),
			Competencies: sortedCopy(lookup(activity.Key)),
		})
	}

	sort.SliceStable(out.Inserted, func(i, j int) bool {
		return lessByDescription(out.Inserted[i].Description, out.Inserted[i].Key, out.Inserted[j].Description, out.Inserted[j].Key)
	})
	sort.SliceStable(out.Removed, func(i, j int) bool {
		return lessByDescription(out.Removed[i].Description, out.Removed[i].Key, out.Removed[j].Description, out.Removed[j].Key)
	})
	sort.SliceStable(out.Altered, func(i, j int) bool {
		return lessByDescription(out.Altered[i].Description, out.Altered[i].Key, out.Altered[j].Description, out.Altered[j].Key)
	})
	return out
}

func lessByDescription(aDesc, aKey, bDesc, bKey string) bool {
	an, bn := Normalize(aDesc), Normalize(bDesc)
	if an != bn {
		return an < bn
	}
	return aKey < bKey
}

func sortedCopy(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
