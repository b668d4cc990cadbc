package impact

import (
	"fmt"
	"sort"
	"strings"
)

// ReasonTag types why a competency is impacted.
type ReasonTag string

// ReasonTag values.
const (
	ReasonRemoved ReasonTag = "REMOVED"
	ReasonAltered ReasonTag = "ALTERED"
)

// Kind is the classification of an impacted competency.
type Kind string

// Kind values.
const (
	KindRemoved Kind = "REMOVED_IMPACT"
	// KindAltered only appears when the previous description still exists in the
	// current collection; otherwise the rename also counts as a removal.
	KindAltered Kind = "ALTERED_IMPACT"
	KindMixed   Kind = "MIXED_IMPACT"
)

// Reason is one cause of a competency impact.
type Reason struct {
	Tag         ReasonTag
	ActivityKey string
	Text        string
}

// Competency is a competency of the effective map.
type Competency struct {
	ID          string
	Description string
}

// Link ties a baseline competency to a baseline activity key.
type Link struct {
	CompetencyID string
	ActivityKey  string
}

// Baseline is the effective map the cadastro is compared against.
type Baseline struct {
	Activities   []Activity
	Competencies []Competency
	Links        []Link
}

// ImpactedCompetency is a baseline competency touched by removed or altered activities.
type ImpactedCompetency struct {
	ID          string
	Description string
	Kind        Kind
	Reasons     []Reason
}

// Report is the derived result of an impact verification.
type Report struct {
	HasImpacts   bool
	Inserted     []Inserted
	Removed      []Removed
	Altered      []Altered
	Competencies []ImpactedCompetency
}

// TotalInserted returns the number of inserted activities.
func (r Report) TotalInserted() int { return len(r.Inserted) }

// TotalRemoved returns the number of removed activities.
func (r Report) TotalRemoved() int { return len(r.Removed) }

// TotalAltered returns the number of altered activities.
func (r Report) TotalAltered() int { return len(r.Altered) }

// TotalImpactedCompetencies returns the number of impacted competencies.
func (r Report) TotalImpactedCompetencies() int { return len(r.Competencies) }

// Summary renders a one-line count summary.
func (r Report) Summary() string {
	if !r.HasImpacts {
		return "no impacts on the effective map"
	}
	return fmt.Sprintf("%d inserted, %d removed, %d altered activities; %d competencies impacted",
		r.TotalInserted(), r.TotalRemoved(), r.TotalAltered(), r.TotalImpactedCompetencies())
}

// Classify folds reason tags into a single impact kind. It returns "" for no tags.
func Classify(tags []ReasonTag) Kind {
	var removed, altered bool
	for _, tag := range tags {
		switch tag {
		case ReasonRemoved:
			removed = true
		case ReasonAltered:
			altered = true
		}
	}
	switch {
	case removed && altered:
		return KindMixed
	case removed:
		return KindRemoved
	case altered:
		return KindAltered
	default:
		return ""
	}
}

// Analyze diffs current against the baseline activities that back at least one
// competency, then propagates removals and alterations to those competencies.
func Analyze(current []Activity, baseline Baseline) Report {
	competenciesByID := make(map[string]Competency, len(baseline.Competencies))
	for _, competency := range baseline.Competencies {
		competenciesByID[competency.ID] = competency
	}
	competencyIDsByKey := map[string][]string{}
	for _, link := range baseline.Links {
		if _, ok := competenciesByID[link.CompetencyID]; !ok {
			continue
		}
		competencyIDsByKey[link.ActivityKey] = append(competencyIDsByKey[link.ActivityKey], link.CompetencyID)
	}

	linked := make([]Activity, 0, len(baseline.Activities))
	for _, activity := range baseline.Activities {
		if len(competencyIDsByKey[activity.Key]) > 0 {
			linked = append(linked, activity)
		}
	}

	lookup := func(key string) []string {
		ids := competencyIDsByKey[key]
		out := make([]string, 0, len(ids))
		for _, id := range ids {
			out = append(out, competenciesByID[id].Description)
		}
		return out
	}
	diffs := Diff(current, linked, lookup)

	reasons := map[string][]Reason{}
	var order []string
	add := func(competencyID string, reason Reason) {
		if _, seen := reasons[competencyID]; !seen {
			order = append(order, competencyID)
		}
		reasons[competencyID] = append(reasons[competencyID], reason)
	}
	for _, removed := range diffs.Removed {
		for _, id := range competencyIDsByKey[removed.Key] {
			add(id, Reason{
				Tag:         ReasonRemoved,
				ActivityKey: removed.Key,
				Text:        "Activity removed: " + removed.Description,
			})
		}
	}
	for _, altered := range diffs.Altered {
		for _, id := range competencyIDsByKey[altered.Key] {
			add(id, Reason{
				Tag:         ReasonAltered,
				ActivityKey: altered.Key,
				Text:        fmt.Sprintf("Activity altered: '%s' → '%s'", altered.PreviousDescription, altered.Description),
			})
		}
	}

	impacted := make([]ImpactedCompetency, 0, len(order))
	for _, id := range order {
		tags := make([]ReasonTag, 0, len(reasons[id]))
		for _, reason := range reasons[id] {
			tags = append(tags, reason.Tag)
		}
		impacted = append(impacted, ImpactedCompetency{
			ID:          id,
			Description: competenciesByID[id].Description,
			Kind:        Classify(tags),
			Reasons:     reasons[id],
		})
	}
	sort.SliceStable(impacted, func(i, j int) bool {
		if len(impacted[i].Reasons) != len(impacted[j].Reasons) {
			return len(impacted[i].Reasons) > len(impacted[j].Reasons)
		}
		a, b := strings.ToLower(impacted[i].Description), strings.ToLower(impacted[j].Description)
		if a != b {
			return a < b
		}
		return impacted[i].ID < impacted[j].ID
	})

	return Report{
		HasImpacts:   !diffs.Empty(),
		Inserted:     diffs.Inserted,
		Removed:      diffs.Removed,
		Altered:      diffs.Altered,
		Competencies: impacted,
	}
}
