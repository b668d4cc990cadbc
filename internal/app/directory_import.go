package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/hylla/sgc/internal/domain"
	"github.com/hylla/sgc/internal/impact"
)

// UnitWriter is implemented by directories that accept imported units.
type UnitWriter interface {
	UpsertUnits(context.Context, []domain.Unit) error
}

// ErrReadOnlyDirectory reports a unit import against a directory that cannot store units.
var ErrReadOnlyDirectory = errors.New("unit directory is read-only")

// ImportUnits merges units into the directory after checking the merged hierarchy.
func (s *Service) ImportUnits(ctx context.Context, units []domain.Unit) error {
	writer, ok := s.units.(UnitWriter)
	if !ok {
		return ErrReadOnlyDirectory
	}
	current, err := s.units.UnitSnapshot(ctx)
	if err != nil {
		return err
	}
	merged := make([]domain.Unit, 0, len(units))
	incoming := make(map[string]struct{}, len(units))
	for _, unit := range units {
		incoming[unit.ID] = struct{}{}
	}
	for _, unit := range current.Units() {
		if _, replaced := incoming[unit.ID]; !replaced {
			merged = append(merged, unit)
		}
	}
	merged = append(merged, units...)
	if _, err := domain.NewUnitTree(merged); err != nil {
		return err
	}
	return writer.UpsertUnits(ctx, units)
}

// EffectiveMapInput describes an already-homologated map to register for a unit.
type EffectiveMapInput struct {
	UnitID       string
	Activities   []ActivityInput
	Competencies []SeedCompetencyInput
}

// ActivityInput is an activity with its knowledge items.
type ActivityInput struct {
	Description string
	Knowledge   []string
}

// SeedCompetencyInput references activities by description.
type SeedCompetencyInput struct {
	Description string
	Activities  []string
}

// ImportEffectiveMap stores a complete map and makes it the unit's effective map.
func (s *Service) ImportEffectiveMap(ctx context.Context, in EffectiveMapInput) (domain.EffectiveMap, error) {
	tree, err := s.units.UnitSnapshot(ctx)
	if err != nil {
		return domain.EffectiveMap{}, err
	}
	if _, ok := tree.Unit(in.UnitID); !ok {
		return domain.EffectiveMap{}, fmt.Errorf("%w: unit %s", ErrNotFound, in.UnitID)
	}

	var out domain.EffectiveMap
	err = s.repo.InTx(ctx, func(store Store) error {
		now := s.clock()
		competencyMap, err := domain.NewMap(s.idGen(), "", in.UnitID, now)
		if err != nil {
			return err
		}
		if err := store.CreateMap(ctx, competencyMap); err != nil {
			return err
		}

		byDescription := make(map[string]domain.Activity, len(in.Activities))
		var activities []domain.Activity
		for _, item := range in.Activities {
			activity, err := domain.NewActivity(s.idGen(), competencyMap.ID, item.Description)
			if err != nil {
				return err
			}
			if _, dup := byDescription[impact.Normalize(activity.Description)]; dup {
				return domain.NewValidationError("duplicate activity in imported map", activity.Description)
			}
			if err := store.CreateActivity(ctx, activity); err != nil {
				return err
			}
			for _, description := range item.Knowledge {
				knowledge, err := domain.NewKnowledge(s.idGen(), activity.ID, description)
				if err != nil {
					return err
				}
				if err := store.CreateKnowledge(ctx, knowledge); err != nil {
					return err
				}
				activity.Knowledge = append(activity.Knowledge, knowledge)
			}
			byDescription[impact.Normalize(activity.Description)] = activity
			activities = append(activities, activity)
		}

		var (
			problems     []string
			competencies []domain.Competency
			links        []domain.CompetencyLink
		)
		for _, item := range in.Competencies {
			competency, err := domain.NewCompetency(s.idGen(), competencyMap.ID, item.Description)
			if err != nil {
				return err
			}
			competencies = append(competencies, competency)
			for _, description := range item.Activities {
				activity, ok := byDescription[impact.Normalize(description)]
				if !ok {
					problems = append(problems, fmt.Sprintf("competency %q references unknown activity %q", competency.Description, description))
					continue
				}
				links = append(links, domain.CompetencyLink{CompetencyID: competency.ID, ActivityID: activity.ID})
			}
		}
		problems = append(problems, domain.CompletenessIssues(activities, competencies, links)...)
		if len(problems) > 0 {
			return domain.NewValidationError("imported map is incomplete", problems...)
		}
		if err := store.ReplaceCompetencies(ctx, competencyMap.ID, competencies, links); err != nil {
			return err
		}
		out = domain.EffectiveMap{UnitID: in.UnitID, MapID: competencyMap.ID, EffectiveSince: now.UTC()}
		return store.SetEffectiveMap(ctx, out)
	})
	if err != nil {
		return domain.EffectiveMap{}, err
	}
	return out, nil
}
