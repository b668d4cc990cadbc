package main

import (
	"context"
	"fmt"
	"os"

	"github.com/hylla/sgc/internal/app"
	"github.com/hylla/sgc/internal/domain"
	"gopkg.in/yaml.v3"
)

// seedFile is the YAML document accepted by `sgc seed`.
type seedFile struct {
	Units         []seedUnit         `yaml:"units"`
	EffectiveMaps []seedEffectiveMap `yaml:"effective_maps"`
}

type seedPerson struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

type seedUnit struct {
	ID          string     `yaml:"id"`
	Code        string     `yaml:"code"`
	Name        string     `yaml:"name"`
	Type        string     `yaml:"type"`
	Superior    string     `yaml:"superior"`
	Responsible seedPerson `yaml:"responsible"`
	Substitute  seedPerson `yaml:"substitute"`
}

type seedActivity struct {
	Description string   `yaml:"description"`
	Knowledge   []string `yaml:"knowledge"`
}

type seedCompetency struct {
	Description string   `yaml:"description"`
	Activities  []string `yaml:"activities"`
}

type seedEffectiveMap struct {
	Unit         string           `yaml:"unit"`
	Activities   []seedActivity   `yaml:"activities"`
	Competencies []seedCompetency `yaml:"competencies"`
}

// competencyFile is the YAML document accepted by `sgc map save`. Activities are
// referenced by description.
type competencyFile struct {
	Competencies []seedCompetency `yaml:"competencies"`
}

func readYAML(path string, out any) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(content, out); err != nil {
		return fmt.Errorf("decode yaml %s: %w", path, err)
	}
	return nil
}

func toPerson(p seedPerson) domain.Person {
	return domain.Person{ID: p.ID, Name: p.Name, Email: p.Email}
}

// applySeed imports the units first so the effective maps can reference them.
func applySeed(ctx context.Context, svc *app.Service, seed seedFile) (int, int, error) {
	units := make([]domain.Unit, 0, len(seed.Units))
	for i, in := range seed.Units {
		unit, err := domain.NewUnit(domain.UnitInput{
			ID:          in.ID,
			Code:        in.Code,
			Name:        in.Name,
			Type:        domain.UnitType(in.Type),
			SuperiorID:  in.Superior,
			Responsible: toPerson(in.Responsible),
			Substitute:  toPerson(in.Substitute),
		})
		if err != nil {
			return 0, 0, fmt.Errorf("units[%d]: %w", i, err)
		}
		units = append(units, unit)
	}
	if len(units) > 0 {
		if err := svc.ImportUnits(ctx, units); err != nil {
			return 0, 0, fmt.Errorf("import units: %w", err)
		}
	}

	for i, m := range seed.EffectiveMaps {
		in := app.EffectiveMapInput{UnitID: m.Unit}
		for _, a := range m.Activities {
			in.Activities = append(in.Activities, app.ActivityInput{Description: a.Description, Knowledge: a.Knowledge})
		}
		for _, c := range m.Competencies {
			in.Competencies = append(in.Competencies, app.SeedCompetencyInput{Description: c.Description, Activities: c.Activities})
		}
		if _, err := svc.ImportEffectiveMap(ctx, in); err != nil {
			return len(units), i, fmt.Errorf("effective_maps[%d] (%s): %w", i, m.Unit, err)
		}
	}
	return len(units), len(seed.EffectiveMaps), nil
}

// competencyInputs resolves activity descriptions against the subprocess cadastro.
func competencyInputs(file competencyFile, activities []domain.Activity) ([]app.CompetencyInput, error) {
	byDescription := make(map[string]string, len(activities))
	for _, a := range activities {
		byDescription[a.Description] = a.ID
	}
	out := make([]app.CompetencyInput, 0, len(file.Competencies))
	for _, c := range file.Competencies {
		in := app.CompetencyInput{Description: c.Description}
		for _, description := range c.Activities {
			id, ok := byDescription[description]
			if !ok {
				return nil, fmt.Errorf("competency %q references unknown activity %q", c.Description, description)
			}
			in.ActivityIDs = append(in.ActivityIDs, id)
		}
		out = append(out, in)
	}
	return out, nil
}
