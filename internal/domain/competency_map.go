package domain

import (
	"fmt"
	"strings"
	"time"
)

// Map is a unit's competency map: its cadastro of activities plus the competencies built on them.
// SubprocessID is empty for maps imported directly as effective maps.
type Map struct {
	ID           string
	SubprocessID string
	UnitID       string
	Suggestions  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewMap constructs an empty map for a unit.
func NewMap(id, subprocessID, unitID string, now time.Time) (Map, error) {
	id = strings.TrimSpace(id)
	subprocessID = strings.TrimSpace(subprocessID)
	unitID = strings.TrimSpace(unitID)
	if id == "" || unitID == "" {
		return Map{}, ErrInvalidID
	}
	return Map{
		ID:           id,
		SubprocessID: subprocessID,
		UnitID:       unitID,
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}, nil
}

// Activity is one cadastro entry. OriginID names the effective-map activity it was copied from.
type Activity struct {
	ID          string
	MapID       string
	OriginID    string
	Description string
	Knowledge   []Knowledge
}

// NewActivity constructs an activity.
func NewActivity(id, mapID, description string) (Activity, error) {
	id = strings.TrimSpace(id)
	mapID = strings.TrimSpace(mapID)
	description = strings.TrimSpace(description)
	if id == "" || mapID == "" {
		return Activity{}, ErrInvalidID
	}
	if description == "" {
		return Activity{}, ErrInvalidDescription
	}
	return Activity{ID: id, MapID: mapID, Description: description}, nil
}

// IdentityKey returns the key used to pair this activity with its effective-map counterpart.
func (a Activity) IdentityKey() string {
	if a.OriginID != "" {
		return a.OriginID
	}
	return a.ID
}

// Knowledge is a knowledge item required by an activity.
type Knowledge struct {
	ID          string
	ActivityID  string
	Description string
}

// NewKnowledge constructs a knowledge item.
func NewKnowledge(id, activityID, description string) (Knowledge, error) {
	id = strings.TrimSpace(id)
	activityID = strings.TrimSpace(activityID)
	description = strings.TrimSpace(description)
	if id == "" || activityID == "" {
		return Knowledge{}, ErrInvalidID
	}
	if description == "" {
		return Knowledge{}, ErrInvalidDescription
	}
	return Knowledge{ID: id, ActivityID: activityID, Description: description}, nil
}

// Competency belongs to a map and is justified by one or more activities.
type Competency struct {
	ID          string
	MapID       string
	Description string
}

// NewCompetency constructs a competency.
func NewCompetency(id, mapID, description string) (Competency, error) {
	id = strings.TrimSpace(id)
	mapID = strings.TrimSpace(mapID)
	description = strings.TrimSpace(description)
	if id == "" || mapID == "" {
		return Competency{}, ErrInvalidID
	}
	if description == "" {
		return Competency{}, ErrInvalidDescription
	}
	return Competency{ID: id, MapID: mapID, Description: description}, nil
}

// CompetencyLink associates a competency with an activity.
type CompetencyLink struct {
	CompetencyID string
	ActivityID   string
}

// MissingKnowledge lists activities that have no knowledge items.
func MissingKnowledge(activities []Activity) []string {
	var out []string
	for _, activity := range activities {
		if len(activity.Knowledge) == 0 {
			out = append(out, fmt.Sprintf("activity %q has no knowledge", activity.Description))
		}
	}
	return out
}

// CompletenessIssues lists every competency without activities and every activity without a competency.
func CompletenessIssues(activities []Activity, competencies []Competency, links []CompetencyLink) []string {
	linkedCompetencies := map[string]struct{}{}
	linkedActivities := map[string]struct{}{}
	for _, link := range links {
		linkedCompetencies[link.CompetencyID] = struct{}{}
		linkedActivities[link.ActivityID] = struct{}{}
	}
	var out []string
	for _, competency := range competencies {
		if _, ok := linkedCompetencies[competency.ID]; !ok {
			out = append(out, fmt.Sprintf("competency %q has no linked activity", competency.Description))
		}
	}
	for _, activity := range activities {
		if _, ok := linkedActivities[activity.ID]; !ok {
			out = append(out, fmt.Sprintf("activity %q is not linked to any competency", activity.Description))
		}
	}
	return out
}

// EffectiveMap records which map is currently in force for a unit.
type EffectiveMap struct {
	UnitID         string
	MapID          string
	ProcessID      string
	EffectiveSince time.Time
}
