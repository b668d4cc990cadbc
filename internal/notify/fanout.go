// Package notify turns workflow events into e-mail notifications for the people of each unit.
package notify

import (
	"slices"
	"strings"

	"github.com/hylla/sgc/internal/domain"
)

// Template names the message layout used for an intent.
type Template string

// Template values. Subprocess events use their event kind as template name.
const (
	TemplateProcessStarted              Template = "process_started"
	TemplateProcessFinished             Template = "process_finished"
	TemplateProcessFinishedSubordinates Template = "process_finished_subordinates"
)

// Intent is one message to one person about one event.
type Intent struct {
	Template     Template
	Event        domain.Event
	Unit         domain.Unit
	Recipient    domain.Person
	Subordinates []domain.Unit
}

// Skip explains why a unit produced no intent.
type Skip struct {
	UnitID string
	Reason string
}

// Plan resolves the recipients of event against the unit tree.
// Operational units notify their responsible and substitute; every other unit type
// notifies its responsible only. Units that cannot be notified are reported as skips.
func Plan(event domain.Event, tree *domain.UnitTree) ([]Intent, []Skip) {
	var (
		intents []Intent
		skips   []Skip
	)
	add := func(template Template, unitID string, subordinates []domain.Unit) {
		unit, ok := tree.Unit(unitID)
		if !ok {
			skips = append(skips, Skip{UnitID: unitID, Reason: "unit not in directory"})
			return
		}
		recipients := recipientsOf(unit)
		if len(recipients) == 0 {
			skips = append(skips, Skip{UnitID: unitID, Reason: "unit has no responsible or substitute with an e-mail address"})
			return
		}
		for _, person := range recipients {
			intents = append(intents, Intent{
				Template:     template,
				Event:        event,
				Unit:         unit,
				Recipient:    person,
				Subordinates: subordinates,
			})
		}
	}

	if !event.IsProcessLevel() {
		if event.RecipientUnitID == "" {
			return nil, nil
		}
		add(Template(event.Kind), event.RecipientUnitID, nil)
		return intents, skips
	}

	template := TemplateProcessStarted
	if event.Kind == domain.EventProcessFinished {
		template = TemplateProcessFinished
	}
	for _, unitID := range event.UnitIDs {
		add(template, unitID, nil)
	}
	if event.Kind == domain.EventProcessFinished {
		for _, unitID := range event.UnitIDs {
			unit, ok := tree.Unit(unitID)
			if !ok || !aggregates(unit.Type) {
				continue
			}
			if subordinates := participatingSubordinates(tree, unit.ID, event.UnitIDs); len(subordinates) > 0 {
				add(TemplateProcessFinishedSubordinates, unit.ID, subordinates)
			}
		}
	}
	return intents, skips
}

func aggregates(t domain.UnitType) bool {
	return t == domain.UnitTypeIntermediate || t == domain.UnitTypeInteroperational
}

// recipientsOf returns the responsible and, for operational units, the substitute.
// People without an e-mail address are left out on their own.
func recipientsOf(unit domain.Unit) []domain.Person {
	var out []domain.Person
	responsible := strings.TrimSpace(unit.Responsible.Email)
	if responsible != "" {
		out = append(out, unit.Responsible)
	}
	if unit.Type != domain.UnitTypeOperational {
		return out
	}
	if substitute := strings.TrimSpace(unit.Substitute.Email); substitute != "" && !strings.EqualFold(substitute, responsible) {
		out = append(out, unit.Substitute)
	}
	return out
}

// participatingSubordinates lists operational descendants of unitID that take part in the process.
func participatingSubordinates(tree *domain.UnitTree, unitID string, participants []string) []domain.Unit {
	var out []domain.Unit
	for _, unit := range tree.Descendants(unitID) {
		if unit.Type == domain.UnitTypeOperational && slices.Contains(participants, unit.ID) {
			out = append(out, unit)
		}
	}
	return out
}
